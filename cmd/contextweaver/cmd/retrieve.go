package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lyy0709/contextweaver/internal/mcp"
	"github.com/lyy0709/contextweaver/internal/wiring"
)

func newRetrieveCmd() *cobra.Command {
	var technicalTerms string

	cmd := &cobra.Command{
		Use:   "retrieve <repo_path> <information_request>",
		Short: "Query a scanned repository for relevant code",
		Long: `Search a repository previously scanned with 'contextweaver scan' for
code relevant to information_request, expand the result with
neighboring chunks, breadcrumb siblings and (when enabled) imported
files, and print a packed, budget-limited
block of source excerpts.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath, informationRequest := args[0], args[1]

			project, err := wiring.Open(cmd.Context(), repoPath)
			if err != nil {
				return fmt.Errorf("open project: %w", err)
			}
			defer project.Close()

			query := informationRequest
			if technicalTerms != "" {
				query = query + " " + technicalTerms
			}

			seeds, err := project.Engine.BuildSeeds(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("build seeds: %w", err)
			}

			expanded, err := project.Expander.Expand(cmd.Context(), seeds)
			if err != nil {
				return fmt.Errorf("expand: %w", err)
			}

			contextPack := project.Packer.Build(seeds, expanded)
			fmt.Fprintln(cmd.OutOrStdout(), mcp.FormatContextPack(contextPack))
			return nil
		},
	}

	cmd.Flags().StringVar(&technicalTerms, "technical-terms", "", "specific identifiers, symbol names, or keywords to emphasize")

	return cmd
}
