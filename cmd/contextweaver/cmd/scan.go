package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lyy0709/contextweaver/internal/embed"
	"github.com/lyy0709/contextweaver/internal/index"
	"github.com/lyy0709/contextweaver/internal/progress"
	"github.com/lyy0709/contextweaver/internal/watcher"
	"github.com/lyy0709/contextweaver/internal/wiring"
)

func newScanCmd() *cobra.Command {
	var force bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "scan <repo_path>",
		Short: "Crawl and index a repository",
		Long: `Crawl the repository at repo_path, chunk and embed its source files,
and update the vector, full-text, and metadata indexes under
<repo_path>/.contextweaver. Files whose content hash hasn't changed
since the last scan are skipped unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoPath := args[0]

			project, err := wiring.Open(cmd.Context(), repoPath)
			if err != nil {
				return fmt.Errorf("open project: %w", err)
			}
			defer project.Close()

			runOnce := func(force bool) error {
				reporter := progress.New(cmd.OutOrStdout())
				progressCh := make(chan embed.ProgressEvent, 16)

				reporter.Start()
				drained := make(chan struct{})
				go func() {
					defer close(drained)
					for event := range progressCh {
						reporter.Update(event)
					}
				}()

				counts, err := project.Runner.Scan(cmd.Context(), index.ScanOptions{
					RepoRoot:        project.RepoRoot,
					ExcludePatterns: project.Config.Paths.Exclude,
					Force:           force,
					OnEmbedProgress: progressCh,
				})
				close(progressCh)
				<-drained
				reporter.Stop(counts)
				if err != nil {
					return fmt.Errorf("scan: %w", err)
				}
				return nil
			}

			if err := runOnce(force); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			return watchAndRescan(cmd, project.RepoRoot, func() error { return runOnce(false) })
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-embed every tracked file regardless of content hash")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running, re-scanning on filesystem changes")

	return cmd
}

// watchAndRescan starts a filesystem watcher on root and invokes
// rescan each time a debounced batch of changes arrives, until the
// command's context is canceled.
func watchAndRescan(cmd *cobra.Command, root string, rescan func() error) error {
	w, err := watcher.NewHybridWatcher(watcher.Options{}.WithDefaults())
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()

	ctx := cmd.Context()
	if err := w.Start(ctx, root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s for changes (ctrl-c to stop)\n", root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			if len(batch) == 0 {
				continue
			}
			if err := rescan(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "rescan failed: %v\n", err)
			}
		}
	}
}
