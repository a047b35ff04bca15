package mcp

import (
	"fmt"
	"strings"

	"github.com/lyy0709/contextweaver/internal/pack"
)

// FormatContextPack renders a ContextPack into the retrieve tool's
// text-block response: a summary line followed by each file's
// admitted segments as breadcrumb/line-range-tagged code fences.
func FormatContextPack(p *pack.ContextPack) string {
	segmentCount := 0
	for _, f := range p.Files {
		segmentCount += len(f.Segments)
	}

	if len(p.Files) == 0 {
		return "Found 0 relevant code blocks | Files: 0 | Total segments: 0\n\nNo matching code found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d relevant code blocks | Files: %d | Total segments: %d\n\n",
		segmentCount, len(p.Files), segmentCount)

	for _, file := range p.Files {
		fmt.Fprintf(&sb, "## %s\n\n", file.RelativePath)
		for _, seg := range file.Segments {
			fmt.Fprintf(&sb, "### Lines %d-%d", seg.StartLine, seg.EndLine)
			if seg.Breadcrumb != "" {
				fmt.Fprintf(&sb, " — %s", seg.Breadcrumb)
			}
			if seg.Truncated {
				sb.WriteString(" (truncated)")
			}
			sb.WriteString("\n\n")

			lang := seg.Language
			sb.WriteString("```")
			sb.WriteString(lang)
			sb.WriteString("\n")
			sb.WriteString(seg.Text)
			if !strings.HasSuffix(seg.Text, "\n") {
				sb.WriteString("\n")
			}
			sb.WriteString("```\n\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}
