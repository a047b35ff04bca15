package progress

import "github.com/charmbracelet/lipgloss"

// Color palette, carried over from the teacher's asitop-inspired lime
// green theme (internal/ui/styles.go).
const (
	colorLime  = "154"
	colorGray  = "245"
	colorRed   = "196"
	colorGreen = colorLime
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime))
	styleActive = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime))
	styleLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray))
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed))
)
