package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"imgurcomments/pkg/config"
	"imgurcomments/pkg/errors"
	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/logger"
)

// Store persists the full known comment history of each account, newest
// first, as one unit
type Store interface {
	// Load returns the cached history. A missing, unreadable or corrupt entry
	// yields an empty slice and a nil error; the problem is logged.
	Load(ctx context.Context, accountID string) ([]imgur.Comment, error)
	// Save atomically replaces the cached history
	Save(ctx context.Context, accountID string, comments []imgur.Comment) error
	// Delete removes the cached history; a missing entry is not an error
	Delete(ctx context.Context, accountID string) error
	// Info summarizes the cached history without degrading read errors
	Info(ctx context.Context, accountID string) (*Info, error)
	Close() error
}

// Info describes one cached history
type Info struct {
	AccountID  string    `json:"account_id" yaml:"account_id"`
	Backend    string    `json:"backend" yaml:"backend"`
	Location   string    `json:"location" yaml:"location"`
	Exists     bool      `json:"exists" yaml:"exists"`
	Count      int       `json:"count" yaml:"count"`
	Newest     int64     `json:"newest,omitempty" yaml:"newest,omitempty"`
	Oldest     int64     `json:"oldest,omitempty" yaml:"oldest,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty" yaml:"modified_at,omitempty"`
}

// Open creates the Store selected by cfg.Backend
func Open(ctx context.Context, cfg config.CacheConfig, log logger.Logger) (Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(cfg.Directory, log)
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Directory, "history.db")
		}
		return NewSQLiteStore(ctx, path, log)
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresDSN, log)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix, log)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// validateAccountID rejects ids that could escape a key namespace or directory
func validateAccountID(accountID string) error {
	if accountID == "" {
		return errors.New(errors.ErrorTypeCacheIO, 0, "account id is empty")
	}
	if strings.ContainsAny(accountID, `/\:`) || accountID == "." || accountID == ".." {
		return errors.New(errors.ErrorTypeCacheIO, 0, "invalid account id %q", accountID)
	}
	return nil
}

// summarize fills the count and datetime range of info from comments
func summarize(info *Info, comments []imgur.Comment) {
	info.Count = len(comments)
	if len(comments) == 0 {
		return
	}
	info.Newest = comments[0].Datetime
	info.Oldest = comments[len(comments)-1].Datetime
}

// coldStart logs a degraded read and returns the empty history
func coldStart(log logger.Logger, accountID, reason string, err error) []imgur.Comment {
	log.WithError(err).WithFields(map[string]interface{}{
		"account_id": accountID,
		"reason":     reason,
	}).Warn("cached history unusable, starting from an empty cache")
	return []imgur.Comment{}
}

// nonNil keeps empty histories serialized as [] rather than null
func nonNil(comments []imgur.Comment) []imgur.Comment {
	if comments == nil {
		return []imgur.Comment{}
	}
	return comments
}
