package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/lyy0709/contextweaver/internal/embed"
	"github.com/lyy0709/contextweaver/internal/index"
)

// plainReporter prints one line per embedding batch, grounded on the
// teacher's internal/ui.PlainRenderer for non-TTY output.
type plainReporter struct {
	mu  sync.Mutex
	out io.Writer
}

func newPlainReporter(out io.Writer) *plainReporter {
	return &plainReporter{out: out}
}

func (r *plainReporter) Start() {}

func (r *plainReporter) Update(event embed.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.Total > 0 {
		fmt.Fprintf(r.out, "[embed] %d/%d\n", event.Completed, event.Total)
	}
}

func (r *plainReporter) Stop(counts index.Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "added: %d  modified: %d  unchanged: %d  deleted: %d  skipped: %d  errors: %d\n",
		counts.Added, counts.Modified, counts.Unchanged, counts.Deleted, counts.Skipped, counts.Errors)
	fmt.Fprintf(r.out, "vector index — indexed: %d  deleted: %d  errors: %d\n",
		counts.VectorIndexed, counts.VectorDeleted, counts.VectorErrors)
}
