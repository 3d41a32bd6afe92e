package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"imgurcomments/pkg/imgur"
	"imgurcomments/pkg/retry"
)

var inspectJSON bool

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <id|permalink>",
	Short: "Show a single comment with its vote ratio",
	Long: `Fetch a single comment by its numeric id or its permalink and print it
with its score and the share of upvotes.`,
	Example: `  imgurcomments inspect 1234567890
  imgurcomments inspect https://imgur.com/gallery/AbCdEf/comment/1234567890`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the comment as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := imgur.ParseCommentIdentifier(args[0])
	if err != nil {
		return err
	}

	cfg, client, err := newAPIClient(cmd, true)
	if err != nil {
		return err
	}

	comment, err := retry.DoWithResult(ctx, func(ctx context.Context) (*imgur.Comment, error) {
		return client.FetchComment(ctx, id)
	}, retry.FromConfig(cfg.Retry, nil))
	if err != nil {
		return fmt.Errorf("failed to fetch comment %d: %w", id, err)
	}

	if inspectJSON {
		return writeComments(os.Stdout, []imgur.Comment{*comment}, "json")
	}

	fmt.Fprintln(os.Stdout, imgur.FormatHuman(*comment, time.Local))
	fmt.Fprintf(os.Stdout, "\tpoints: %d  upvoted: %.1f%%\n", comment.Points, imgur.VoteRatio(*comment)*100)
	if comment.Author != "" {
		fmt.Fprintf(os.Stdout, "\tby %s", comment.Author)
		if comment.IsRoot() {
			fmt.Fprintln(os.Stdout, " on the post")
		} else {
			fmt.Fprintf(os.Stdout, " in reply to %d\n", comment.ParentID)
		}
	}
	return nil
}
