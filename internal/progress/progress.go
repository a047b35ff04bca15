// Package progress renders scan progress to the terminal: a bubbletea
// spinner and bar while embedding is underway for interactive
// terminals, and line-based output otherwise. Adapted from the
// teacher's internal/ui, trimmed to the one signal the rewritten
// pipeline actually reports (embed.ProgressEvent's completed/total
// batch count) instead of the teacher's five-stage tracker.
package progress

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/lyy0709/contextweaver/internal/embed"
	"github.com/lyy0709/contextweaver/internal/index"
)

// Reporter displays embedding progress during a scan and a summary
// once it completes.
type Reporter interface {
	// Start begins rendering. Safe to call once.
	Start()

	// Update reports one embedding batch completing.
	Update(event embed.ProgressEvent)

	// Stop renders the final counts and releases any terminal state.
	Stop(counts index.Counts)
}

// New returns a TUI reporter for interactive terminal output, and a
// plain line-based reporter otherwise (CI logs, pipes, redirected
// files), matching the teacher's IsTTY-gated renderer selection.
func New(out io.Writer) Reporter {
	if isTTY(out) && os.Getenv("NO_COLOR") == "" {
		return newTUIReporter(out)
	}
	return newPlainReporter(out)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
