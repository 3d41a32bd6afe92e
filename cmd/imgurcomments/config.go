package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imgurcomments/pkg/config"
	"imgurcomments/pkg/storage"
	"imgurcomments/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage imgurcomments configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IMGURCOMMENTS_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as '.imgurcomments.yaml'
unless a different path is given with --config.`,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after flags, environment, file and defaults have
been applied. The Client-ID and connection strings are masked.`,
	RunE: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Cache backend settings
  - Path accessibility`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# imgurcomments configuration file
#
# Every option can also be set with an environment variable prefixed with
# IMGURCOMMENTS_, for example IMGURCOMMENTS_CLIENT_ID or IMGURCOMMENTS_CACHE_DIR.

imgur:
  # Application Client-ID. Leave empty to use one stored with 'auth add'.
  client_id: ""
  user_agent: "imgurcomments/1.0"
  base_url: "https://api.imgur.com"
  api_version: "3"

fetch:
  # Comments per page request, 1-100
  page_size: 100
  # HTTP timeout per request, 0 for none
  timeout: 30s
  # Keep paginating after a short page until the API returns an empty one
  require_empty_page: false

cache:
  # file, sqlite, postgres or redis
  backend: "file"
  # Directory of the file backend, and of the sqlite database unless
  # sqlite_path is set. Defaults to the per-user data directory.
  # directory: "/path/to/cache"
  sqlite_path: ""
  postgres_dsn: ""
  redis_url: ""
  redis_prefix: "imgurcomments:history:"
  # Write the merged history back after each sync
  persist: true
  # Save when the output is finished instead of before it starts
  deferred: false

rate_limit:
  # Client-side pacing, 0 disables it
  requests_per_minute: 0
  burst_size: 10
  # token_bucket or sliding_window
  strategy: "token_bucket"
  # Warn when this many requests or fewer remain in a quota
  quota_margin: 1
  # Stop the sync at the first quota warning
  abort_on_quota: false

retry:
  enabled: true
  max_attempts: 3
  initial_backoff: 2s
  max_backoff: 1m
  multiplier: 2.0
  # Give up instead of waiting longer than this for a quota reset
  max_wait: 5m

logging:
  # debug, info, warn, error or disabled
  level: "warn"
  # console or json
  format: "console"
  # Optional log file, written in addition to stderr
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".imgurcomments.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to start over)", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	err := storage.WriteFileAtomicMode(configPath, 0600, func(w io.Writer) error {
		_, err := io.WriteString(w, exampleConfig)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	ui.Default().Printf("\nNext steps:\n")
	ui.Default().Printf("1. Store a Client-ID with 'imgurcomments auth add' or set it in the file\n")
	ui.Default().Printf("2. Run 'imgurcomments config validate' to check the configuration\n")
	ui.Default().Printf("3. Fetch a history with 'imgurcomments dump <user>'\n")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	fmt.Fprint(os.Stdout, string(data))

	p := ui.Default()
	p.Printf("\nConfiguration sources (in order of priority):\n")
	p.Printf("1. Command line flags\n")
	p.Printf("2. Environment variables (%s*)\n", config.EnvPrefix)
	if configFile != "" {
		p.Printf("3. Configuration file: %s\n", configFile)
	} else {
		p.Printf("3. Configuration file: (searched in standard locations)\n")
	}
	p.Printf("4. Default values\n")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	}

	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var warnings, problems []string

	if cfg.Imgur.ClientID == "" {
		warnings = append(warnings, "no Client-ID in the configuration; a stored one will be needed")
	}
	if cfg.Cache.Backend == "file" {
		if err := os.MkdirAll(cfg.Cache.Directory, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create cache directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if !cfg.Retry.Enabled {
		warnings = append(warnings, "retries are disabled; a transient API error fails the sync")
	}

	p := ui.Default()
	if len(problems) > 0 {
		p.PrintError("Configuration has errors")
		for _, msg := range problems {
			p.PrintError("  - " + msg)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}

	if len(warnings) > 0 {
		p.PrintWarning("Configuration warnings:")
		for _, msg := range warnings {
			p.Printf("  - %s\n", msg)
		}
	}

	p.PrintSuccess("Configuration is valid")
	p.Printf("\nConfiguration summary:\n")
	p.Printf("  Cache backend: %s\n", cfg.Cache.Backend)
	p.Printf("  Persist: %t (deferred: %t)\n", cfg.Cache.Persist, cfg.Cache.Deferred)
	p.Printf("  Page size: %d\n", cfg.Fetch.PageSize)
	p.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	p.Printf("  Max attempts: %d\n", cfg.Retry.MaxAttempts)
	p.Printf("  Log level: %s\n", strings.ToLower(cfg.Logging.Level))
	return nil
}
