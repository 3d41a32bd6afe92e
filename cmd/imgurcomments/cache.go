package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imgurcomments/pkg/ui"
)

var (
	cacheClearYes bool
	cacheInfoYAML bool
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached comment histories",
	Long: `Inspect or clear the cached comment history of an account.

An account can be given by username, which is resolved through the API, or
directly by its numeric account id.`,
}

// cacheInfoCmd represents the cache info command
var cacheInfoCmd = &cobra.Command{
	Use:   "info <user|account id>",
	Short: "Show what is cached for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheInfo,
}

// cacheClearCmd represents the cache clear command
var cacheClearCmd = &cobra.Command{
	Use:   "clear <user|account id>",
	Short: "Delete the cached history of an account",
	Long: `Delete the cached history of an account. The next sync downloads the
whole history again.`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheInfoCmd.Flags().BoolVar(&cacheInfoYAML, "yaml", false, "print the cache info as YAML")
	cacheClearCmd.Flags().BoolVarP(&cacheClearYes, "yes", "y", false, "do not ask for confirmation")
}

// accountIDFor returns ref when it is a numeric account id and looks the
// username up otherwise
func (a *app) accountIDFor(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if isAccountID(ref) {
		return ref, nil
	}
	return a.engine.ResolveAccountID(ctx, ref, "")
}

func isAccountID(ref string) bool {
	if ref == "" {
		return false
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cmd, !isAccountID(strings.TrimSpace(args[0])))
	if err != nil {
		return err
	}
	defer a.Close()

	accountID, err := a.accountIDFor(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}

	info, err := a.store.Info(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to read cache info: %w", err)
	}

	if cacheInfoYAML {
		return yaml.NewEncoder(os.Stdout).Encode(info)
	}

	p := ui.NewPrinter(os.Stdout)
	p.PrintInfo("Account id", info.AccountID)
	p.PrintInfo("Backend", info.Backend)
	p.PrintInfo("Location", info.Location)
	if !info.Exists {
		p.PrintWarning("Nothing cached yet")
		return nil
	}
	p.PrintInfo("Comments", fmt.Sprintf("%d", info.Count))
	if info.Count > 0 {
		p.PrintInfo("Newest", time.Unix(info.Newest, 0).Local().Format("2006-01-02 15:04:05"))
		p.PrintInfo("Oldest", time.Unix(info.Oldest, 0).Local().Format("2006-01-02 15:04:05"))
	}
	if !info.ModifiedAt.IsZero() {
		p.PrintInfo("Last sync", info.ModifiedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cmd, !isAccountID(strings.TrimSpace(args[0])))
	if err != nil {
		return err
	}
	defer a.Close()

	accountID, err := a.accountIDFor(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[0], err)
	}

	if !cacheClearYes {
		fmt.Fprintf(os.Stderr, "Delete the cached history of %s (account %s)? (y/N): ", args[0], accountID)
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	if err := a.store.Delete(ctx, accountID); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	a.log.WithField("account_id", accountID).Info("cache cleared")
	ui.PrintSuccess("Cache cleared for account " + accountID)
	return nil
}
