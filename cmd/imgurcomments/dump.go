package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"imgurcomments/pkg/commentsync"
	"imgurcomments/pkg/storage"
	"imgurcomments/pkg/ui"
)

var (
	// Dump command flags
	dumpOutput      string
	dumpLimit       int
	dumpFormat      string
	dumpAccountID   string
	dumpNoCache     bool
	dumpDeferred    bool
	dumpRefreshOnly bool
	dumpNotify      bool
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <user>",
	Short: "Print the full comment history of an account",
	Long: `Print every comment of an account, newest first, as a JSON array.

The cached history is loaded first and only the comments posted since the
newest cached one are requested from the API. The merged history is written
back to the cache unless --no-cache is given.`,
	Example: `  # Whole history to stdout
  imgurcomments dump someone

  # Newest 50 comments into a file, written atomically
  imgurcomments dump someone --limit 50 --output someone.json

  # Only what was posted since the last sync
  imgurcomments dump someone --refresh-only

  # Read the cache but leave it untouched
  imgurcomments dump someone --no-cache`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "write to this file instead of stdout")
	dumpCmd.Flags().IntVarP(&dumpLimit, "limit", "l", 0, "maximum number of comments to print (0 for all)")
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "json", "output format (json, yaml)")
	dumpCmd.Flags().StringVar(&dumpAccountID, "account-id", "", "numeric account id, skips the username lookup")
	dumpCmd.Flags().BoolVar(&dumpNoCache, "no-cache", false, "do not update the cache")
	dumpCmd.Flags().BoolVar(&dumpDeferred, "deferred", false, "save the cache after printing instead of before")
	dumpCmd.Flags().BoolVar(&dumpRefreshOnly, "refresh-only", false, "print only comments newer than the cache")
	dumpCmd.Flags().BoolVar(&dumpNotify, "notify", false, "send a desktop notification when the dump finishes")
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user := strings.TrimSpace(args[0])

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	tracker := ui.NewSyncTracker(ui.Default(), user)
	notifier := ui.NewNotifier(ui.Default())

	req := commentsync.Request{
		AccountID:      dumpAccountID,
		Username:       user,
		Limit:          dumpLimit,
		Persist:        commentsync.PersistModeFromConfig(a.cfg.Cache),
		DeltaOnly:      dumpRefreshOnly,
		OnQuotaWarning: tracker.QuotaWarning,
	}

	a.log.WithFields(map[string]interface{}{
		"user":    user,
		"limit":   dumpLimit,
		"persist": req.Persist.String(),
	}).Info("dump starting")

	result, err := a.sync(ctx, req)
	if err != nil {
		if dumpNotify {
			_ = notifier.SendError(ctx, "Dump failed", err.Error())
		}
		return fmt.Errorf("failed to fetch comments of %s: %w", user, err)
	}

	comments, err := result.All(ctx)
	if err != nil {
		_ = result.Close(ctx)
		if dumpNotify {
			_ = notifier.SendError(ctx, "Dump failed", err.Error())
		}
		return fmt.Errorf("failed to fetch comments of %s: %w", user, err)
	}
	for range comments {
		tracker.Scanned()
	}

	write := func(w io.Writer) error {
		return writeComments(w, comments, dumpFormat)
	}
	if dumpOutput == "" {
		err = write(os.Stdout)
	} else {
		err = storage.WriteFileAtomic(dumpOutput, write)
	}
	closeErr := result.Close(ctx)
	if err != nil {
		return fmt.Errorf("failed to write comments: %w", err)
	}

	if perr := result.PersistErr(); perr != nil {
		ui.PrintWarning("Comments printed but the cache could not be updated", perr)
	} else if closeErr != nil {
		ui.PrintWarning("Comments printed but the cache could not be updated", closeErr)
	}

	if verbose {
		tracker.PrintSummary(result.Stats(), result.Complete())
	}
	if dumpOutput != "" {
		ui.PrintSuccess(fmt.Sprintf("Wrote %d comments to %s", len(comments), dumpOutput))
	}
	if dumpNotify {
		_ = notifier.SendSuccess(ctx, "Dump finished", fmt.Sprintf("%d comments of %s", len(comments), user))
	}

	return nil
}
