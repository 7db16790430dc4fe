// Issuevec loads Jira issues into a vector store.
//
// Issues are read through a local MCP relay process, embedded, and upserted
// into a per-project collection. Configuration comes from
// ~/.config/issuevec/config.yaml and the environment. See internal/config.
//
// Usage:
//
//	# Run the pipeline for the configured project
//	issuevec
//
//	# Override the project and issue count
//	issuevec run --project OPS --max-results 50
//
//	# Print a single issue as the relay returns it
//	issuevec issue OPS-42
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command runs the pipeline.
func newRootCmd() *cobra.Command {
	var configPath string
	opts := &runOptions{}

	run := newRunCmd(&configPath, opts)

	root := &cobra.Command{
		Use:   "issuevec",
		Short: "Load Jira issues into a vector store",
		Long: `issuevec fetches issues for a Jira project through an MCP relay,
embeds their summary and description, and upserts the vectors into a
per-project collection.

Running issuevec without a subcommand is the same as "issuevec run".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          run.RunE,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/issuevec/config.yaml)")
	bindRunFlags(root.Flags(), opts)

	root.AddCommand(run)
	root.AddCommand(newIssueCmd(&configPath))
	root.AddCommand(newCollectionNameCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "issuevec by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
