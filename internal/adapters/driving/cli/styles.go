package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// Terminal palette.
var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6C7086")
	colorSuccess = lipgloss.Color("#A6E3A1")
	colorWarning = lipgloss.Color("#F9E2AF")
	colorError   = lipgloss.Color("#F38BA8")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

// statusStyle colours a connection status.
func statusStyle(c domain.Connection) lipgloss.Style {
	switch {
	case c.IsUsable():
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case c.Status == domain.ConnectionError:
		return lipgloss.NewStyle().Foreground(colorError)
	default:
		return lipgloss.NewStyle().Foreground(colorWarning)
	}
}

// renderTable lays out rows in padded columns. Widths are measured on the
// unstyled text so colour codes do not skew alignment.
func renderTable(headers []string, rows [][]string, style func(row, col int) lipgloss.Style) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(cellStyle.Width(widths[i] + 2).Render(headerStyle.Render(h)))
	}
	b.WriteString("\n")
	for r, row := range rows {
		for i, cell := range row {
			text := cell
			if style != nil {
				text = style(r, i).Render(cell)
			}
			b.WriteString(cellStyle.Width(widths[i] + 2).Render(text))
		}
		b.WriteString("\n")
	}
	return b.String()
}
