package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/IvanBrykalov/fragcache/codec"
	"github.com/IvanBrykalov/fragcache/internal/components"
)

func (c *CLI) newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print a sample issue-list payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			repo, _ := cmd.Flags().GetString("repo")
			payload, err := codec.Encode(components.IssueList(owner, repo, sampleIssues))
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), payload)
			return err
		},
	}
	cmd.Flags().String("owner", "acme", "repository owner")
	cmd.Flags().String("repo", "rocket", "repository name")
	return cmd
}

var sampleIssues = []components.Issue{
	{Number: 12, Title: "Engine stalls on cold start", Status: "OPEN", Comments: 4, Labels: []string{"bug", "engine"}},
	{Number: 11, Title: "Document launch checklist", Status: "CLOSED", Comments: 1, Labels: []string{"docs"}},
	{Number: 9, Title: "Support lunar gravity", Status: "NOT_PLANNED"},
}
