package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/pkg/collections"
)

func newIssueCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "issue <KEY>",
		Short: "Print one issue as returned by the relay",
		Long: `Fetch a single issue through the MCP relay and print its JSON payload.

Examples:
  issuevec issue PRTFL-101`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if missing := a.cfg.RequiredMissing(); len(missing) > 0 {
				return fmt.Errorf("%w: %v", config.ErrMissingRequired, missing)
			}

			detail, err := a.trackerClient().GetIssue(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := json.Indent(&buf, detail.Raw, "", "  "); err != nil {
				buf.Reset()
				buf.Write(detail.Raw)
			}
			buf.WriteByte('\n')
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		},
	}
}

func newCollectionNameCmd() *cobra.Command {
	var reverse bool

	cmd := &cobra.Command{
		Use:   "collection-name <PROJECT_KEY>",
		Short: "Print the collection name used for a project",
		Long: `Print the vector collection name derived from a project key.

With --reverse the argument is a collection name and the sanitized project
key is printed instead.

Examples:
  issuevec collection-name My-Proj              # jira_issues_my_proj
  issuevec collection-name --reverse jira_issues_my_proj   # my_proj`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			convert := collections.NameForProject
			if reverse {
				convert = collections.ParseCollectionName
			}
			out, err := convert(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "treat the argument as a collection name and print its project key")
	return cmd
}
