package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"imgurcomments/pkg/commentsync"
	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/search"
	"imgurcomments/pkg/ui"
)

var (
	// Search command flags
	searchUser          string
	searchRegex         bool
	searchCaseSensitive bool
	searchLimit         int
	searchLinks         bool
	searchStopWhenFound bool
	searchNoCache       bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the comments of an account",
	Long: `Search all comments of an account for a string or a regular expression.

Comments are scanned newest first: first those posted since the last sync,
then the cached history. No further pages are requested once the search is
satisfied. When the search ends, the rest of the comments posted since the
last sync are fetched and the cache is updated; --no-cache skips both.`,
	Example: `  # Case-insensitive literal search
  imgurcomments search "cat" -u someone

  # Regular expression, permalinks only
  imgurcomments search -r '^\d+ points' -u someone --links

  # The most recent match only
  imgurcomments search "cat" -u someone -s`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVarP(&searchUser, "user", "u", "", "account whose comments are searched (required)")
	searchCmd.Flags().BoolVarP(&searchRegex, "regex", "r", false, "treat the query as a regular expression")
	searchCmd.Flags().BoolVar(&searchCaseSensitive, "case-sensitive", false, "do not ignore case")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", search.DefaultLimit, "maximum number of hits to print (0 for all)")
	searchCmd.Flags().BoolVarP(&searchLinks, "links", "L", false, "print permalinks instead of the full comments")
	searchCmd.Flags().BoolVarP(&searchStopWhenFound, "stop-when-found", "s", false, "stop at the first hit")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "do not update the cache")
	_ = searchCmd.MarkFlagRequired("user")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	user := strings.TrimSpace(searchUser)

	opts := search.Options{
		Query:         args[0],
		Regex:         searchRegex,
		CaseSensitive: searchCaseSensitive,
		Limit:         searchLimit,
		StopWhenFound: searchStopWhenFound,
	}
	if _, err := search.NewMatcher(opts); err != nil {
		return err
	}

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	tracker := ui.NewSyncTracker(ui.Default(), user)

	persist := commentsync.PersistNone
	if a.cfg.Cache.Persist {
		persist = commentsync.PersistDeferred
	}

	result, err := a.sync(ctx, commentsync.Request{
		Username:       user,
		Persist:        persist,
		OnQuotaWarning: tracker.QuotaWarning,
	})
	if err != nil {
		return fmt.Errorf("failed to search comments of %s: %w", user, err)
	}

	src := &trackedSource{result: result, tracker: tracker}
	outcome, err := search.Run(ctx, src, opts, func(c imgur.Comment) error {
		tracker.Matched()
		if searchLinks {
			_, werr := fmt.Fprintln(os.Stdout, imgur.FormatLink(c))
			return werr
		}
		_, werr := fmt.Fprintln(os.Stdout, imgur.FormatHuman(c, time.Local))
		return werr
	})
	if closeErr := result.Close(ctx); closeErr != nil && err == nil {
		ui.PrintWarning("Search finished but the cache could not be updated", closeErr)
	}
	if err != nil {
		return fmt.Errorf("search of %s failed after %d comments: %w", user, src.scanned, err)
	}

	if verbose && ui.Default().Interactive() && src.scanned >= 100 {
		ui.Default().Printf("\n")
	}
	// Links output is meant for piping, so the summary needs --verbose
	if !searchLinks || verbose {
		printSearchSummary(outcome, searchLimit)
	}
	return nil
}

// trackedSource counts the comments the search pulls
type trackedSource struct {
	result  *commentsync.Result
	tracker *ui.SyncTracker
	scanned int
}

func (s *trackedSource) Next(ctx context.Context) (imgur.Comment, error) {
	c, err := s.result.Next(ctx)
	if err != nil {
		return c, err
	}
	s.scanned++
	s.tracker.Scanned()
	if verbose && s.scanned%100 == 0 {
		s.tracker.PrintProgress()
	}
	return c, nil
}

func printSearchSummary(outcome *search.Outcome, limit int) {
	ui.PrintInfo("Printed hits", fmt.Sprintf("%d of %d comments scanned", outcome.Hits, outcome.Scanned))
	switch {
	case outcome.LimitReached:
		ui.PrintWarning(fmt.Sprintf("Found more comments than are shown here. Raise the limit (currently %d) with --limit to show more", limit))
	case outcome.Stopped:
		ui.PrintSuccess("Stopped at the first hit")
	default:
		ui.PrintSuccess("Search complete. All matching comments were printed")
	}
}
