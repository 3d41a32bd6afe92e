package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "imgurcomments %s\n", version)
		fmt.Fprintf(os.Stdout, "  commit:  %s\n", gitCommit)
		fmt.Fprintf(os.Stdout, "  built:   %s\n", buildDate)
		fmt.Fprintf(os.Stdout, "  go:      %s\n", runtime.Version())
		fmt.Fprintf(os.Stdout, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
