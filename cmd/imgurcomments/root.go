package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"imgurcomments/pkg/ui"
)

var (
	// Version information, set with -ldflags at build time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile     string
	logLevel       string
	clientID       string
	credentialName string
	baseURL        string
	cacheBackend   string
	cacheDir       string
	pageSize       int
	requireEmpty   bool
	rateLimit      int
	maxRetries     int
	noColor        bool
	quiet          bool
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "imgurcomments",
	Short: "Fetch, cache and search the comment history of an Imgur account",
	Long: `imgurcomments keeps a local copy of an Imgur account's comment history.

The first run for an account downloads the whole history. Later runs only
request the comments posted since the newest cached one and merge them in,
so an unchanged account costs a single API request.

Features:
  - Incremental sync against a file, SQLite, PostgreSQL or Redis cache
  - Literal and regular expression search over the full history
  - Client-ID storage in the system keychain or an encrypted file
  - Quota monitoring through the API rate-limit headers
  - Automatic retry with exponential backoff`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColorMode(false)
		}
		if quiet {
			ui.SetQuietMode(true)
		}
		if verbose && cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintBanner()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default is ./.imgurcomments.yaml or ~/.config/imgurcomments/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVarP(&clientID, "client-id", "C", "", "Imgur API Client-ID (overrides stored credentials)")
	flags.StringVar(&credentialName, "credential", "", "name of a stored Client-ID to use")
	flags.StringVar(&baseURL, "base-url", "", "API base URL")
	flags.StringVar(&cacheBackend, "cache-backend", "", "cache backend (file, sqlite, postgres, redis)")
	flags.StringVar(&cacheDir, "cache-dir", "", "directory of the file and sqlite caches")
	flags.IntVar(&pageSize, "page-size", 0, "comments per page request (1-100)")
	flags.BoolVar(&requireEmpty, "require-empty-page", false, "keep paginating after a short page until an empty one")
	flags.IntVar(&rateLimit, "rate-limit", 0, "client-side request limit per minute (0 disables pacing)")
	flags.IntVar(&maxRetries, "max-retries", 0, "attempts per sync (0 disables retries)")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "print nothing but results and errors")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print a banner and a sync summary")

	rootCmd.SetVersionTemplate(`imgurcomments {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
