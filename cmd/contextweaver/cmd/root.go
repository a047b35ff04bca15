// Package cmd provides the CLI commands for ContextWeaver.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lyy0709/contextweaver/internal/logging"
	"github.com/lyy0709/contextweaver/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the contextweaver CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contextweaver",
		Short: "Local-first semantic retrieval engine for source repositories",
		Long: `ContextWeaver indexes a source repository's code and returns the
slice of it relevant to a given information request: hybrid BM25 +
semantic recall, reciprocal rank fusion, cross-encoder reranking, and
neighbor/breadcrumb/import expansion, packed into a character budget.

Run 'contextweaver scan <repo_path>' to build an index, then
'contextweaver retrieve <repo_path> "<information request>"' to query it,
or 'contextweaver serve' to expose both as MCP tools.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("contextweaver version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.contextweaver/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newRetrieveCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
