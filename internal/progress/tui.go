package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lyy0709/contextweaver/internal/embed"
	"github.com/lyy0709/contextweaver/internal/index"
)

// tuiReporter drives a bubbletea spinner+bar while embedding runs,
// grounded on the teacher's internal/ui.TUIRenderer/indexingModel but
// reduced to the one stage (embedding) the rewritten pipeline actually
// streams progress for; the teacher's scan/chunk/index stages and
// sparkline/speed tracking have no analogue here since
// index.Runner.Scan reports only embed.ProgressEvent batches.
type tuiReporter struct {
	program *tea.Program
	done    chan struct{}
}

func newTUIReporter(out io.Writer) *tuiReporter {
	m := newEmbedModel()
	var opts []tea.ProgramOption
	if f, ok := out.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	return &tuiReporter{
		program: tea.NewProgram(m, opts...),
		done:    make(chan struct{}),
	}
}

func (r *tuiReporter) Start() {
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
}

func (r *tuiReporter) Update(event embed.ProgressEvent) {
	r.program.Send(progressMsg(event))
}

func (r *tuiReporter) Stop(counts index.Counts) {
	r.program.Send(completeMsg(counts))
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
}

type progressMsg embed.ProgressEvent
type completeMsg index.Counts

type embedModel struct {
	spinner  spinner.Model
	bar      progress.Model
	current  int
	total    int
	complete bool
	counts   index.Counts
}

func newEmbedModel() *embedModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	b := progress.New(progress.WithSolidFill(colorGreen), progress.WithWidth(40), progress.WithoutPercentage())
	return &embedModel{spinner: s, bar: b}
}

func (m *embedModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *embedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case progressMsg:
		m.current = msg.Completed
		m.total = msg.Total
		return m, nil
	case completeMsg:
		m.complete = true
		m.counts = index.Counts(msg)
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *embedModel) View() string {
	if m.complete {
		return styleHeader.Render("scan complete") + "\n" +
			styleLabel.Render(fmt.Sprintf(
				"added: %d  modified: %d  unchanged: %d  deleted: %d  skipped: %d  errors: %d\n",
				m.counts.Added, m.counts.Modified, m.counts.Unchanged,
				m.counts.Deleted, m.counts.Skipped, m.counts.Errors)) +
			styleLabel.Render(fmt.Sprintf(
				"vector index — indexed: %d  deleted: %d  errors: %d\n",
				m.counts.VectorIndexed, m.counts.VectorDeleted, m.counts.VectorErrors))
	}

	if m.total == 0 {
		return fmt.Sprintf("%s %s\n", m.spinner.View(), styleActive.Render("scanning..."))
	}

	percent := float64(m.current) / float64(m.total)
	bar := m.bar.ViewAs(percent)
	pct := styleActive.Render(fmt.Sprintf("%3.0f%%", percent*100))
	count := styleLabel.Render(fmt.Sprintf("%d/%d batches embedded", m.current, m.total))
	return fmt.Sprintf("%s %s  %s\n%s\n", m.spinner.View(), bar, pct, count)
}
