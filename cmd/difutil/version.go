package main

import (
	"runtime"

	"github.com/spf13/cobra"
)

// Set by -ldflags "-X main.version=...".
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("difutil version %s\n", version)
			cmd.Printf("Git commit: %s\n", gitCommit)
			cmd.Printf("Build date: %s\n", buildDate)
			cmd.Printf("Go version: %s\n", runtime.Version())
		},
	}
}
