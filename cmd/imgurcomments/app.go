package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imgurcomments/pkg/auth"
	"imgurcomments/pkg/cache"
	"imgurcomments/pkg/commentsync"
	"imgurcomments/pkg/config"
	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/logger"
	"imgurcomments/pkg/retry"
)

// app holds everything a command needs to talk to the API and the cache
type app struct {
	cfg    *config.Config
	log    logger.Logger
	client *imgur.Client
	store  cache.Store
	engine *commentsync.Engine
	retry  *retry.Config
}

// configFlags lists the flags MergeCommandLineFlags understands
var configFlags = []string{
	"client-id", "base-url", "page-size", "require-empty-page", "cache-backend",
	"cache-dir", "no-cache", "deferred", "rate-limit", "max-retries", "log-level",
}

// changedFlags collects the flags the user set on cmd, keyed for
// config.MergeCommandLineFlags
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := cmd.Flags()

	for _, name := range configFlags {
		f := set.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		switch f.Value.Type() {
		case "int":
			if v, err := set.GetInt(name); err == nil {
				flags[name] = v
			}
		case "bool":
			if v, err := set.GetBool(name); err == nil {
				flags[name] = v
			}
		default:
			flags[name] = f.Value.String()
		}
	}
	return flags
}

// loadConfig loads the configuration and initializes the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// resolveClientID picks the Client-ID: --client-id, then a credential named
// with --credential, then config file or environment, then the stored default
func resolveClientID(cfg *config.Config, manager *auth.Manager) (string, error) {
	if clientID != "" {
		return clientID, nil
	}

	if credentialName != "" {
		if manager == nil {
			return "", fmt.Errorf("credential %q requested but no credential store is available", credentialName)
		}
		cred, err := manager.Retrieve(credentialName)
		if err != nil {
			return "", err
		}
		return cred.ClientID, nil
	}

	if cfg.Imgur.ClientID != "" {
		return cfg.Imgur.ClientID, nil
	}

	if manager != nil {
		if cred, err := manager.RetrieveDefault(); err == nil {
			return cred.ClientID, nil
		}
	}

	return "", fmt.Errorf("no Imgur Client-ID configured: pass --client-id, set %s or run 'imgurcomments auth add'", auth.EnvClientID)
}

// newClient builds an API client from the imgur and fetch sections
func newClient(cfg *config.Config, credential string, log logger.Logger) *imgur.Client {
	client := imgur.NewClient(cfg.Fetch.Timeout, log)
	client.SetBaseURL(cfg.Imgur.BaseURL)
	client.SetAPIVersion(cfg.Imgur.APIVersion)
	client.SetUserAgent(cfg.Imgur.UserAgent)
	return client.WithCredential(credential)
}

// newAPIClient loads configuration and returns a client authenticated with
// the resolved Client-ID. Without requireCredential a missing Client-ID
// leaves the client unauthenticated.
func newAPIClient(cmd *cobra.Command, requireCredential bool) (*config.Config, *imgur.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log := logger.GetLogger()

	manager, err := auth.NewManager("")
	if err != nil {
		log.WithError(err).Debug("credential manager unavailable")
		manager = nil
	}

	credential, err := resolveClientID(cfg, manager)
	if err != nil && requireCredential {
		return nil, nil, err
	}
	return cfg, newClient(cfg, credential, log), nil
}

// newApp loads configuration, resolves the credential and opens the cache
func newApp(ctx context.Context, cmd *cobra.Command, requireCredential bool) (*app, error) {
	cfg, client, err := newAPIClient(cmd, requireCredential)
	if err != nil {
		return nil, err
	}
	log := logger.GetLogger()

	store, err := cache.Open(ctx, cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", cfg.Cache.Backend, err)
	}

	return &app{
		cfg:    cfg,
		log:    log,
		client: client,
		store:  store,
		engine: commentsync.NewFromConfig(client, store, cfg, log),
		retry:  retry.FromConfig(cfg.Retry, log),
	}, nil
}

// Close releases the cache backend
func (a *app) Close() error {
	return a.store.Close()
}

// sync starts a sync, retrying the parts that run before the first comment is
// served. With PersistBeforeReturn that is the whole fetch.
func (a *app) sync(ctx context.Context, req commentsync.Request) (*commentsync.Result, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*commentsync.Result, error) {
		return a.engine.GetComments(ctx, req)
	}, a.retry)
}

// writeComments encodes comments as a JSON or YAML array
func writeComments(w io.Writer, comments []imgur.Comment, format string) error {
	if comments == nil {
		comments = []imgur.Comment{}
	}

	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(comments)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(comments); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}
