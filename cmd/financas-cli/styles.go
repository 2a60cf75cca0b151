package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#4ECDC4")
	subtleColor  = lipgloss.Color("#666666")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	subtleStyle  = lipgloss.NewStyle().Foreground(subtleColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(subtleColor).
			PaddingRight(2)
	cellStyle = lipgloss.NewStyle().PaddingRight(2)
)

// renderTable lays rows out in columns as wide as their widest cell.
// Columns listed in right are right-aligned.
func renderTable(headers []string, rows [][]string, right ...int) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	alignRight := make(map[int]bool, len(right))
	for _, i := range right {
		alignRight[i] = true
	}
	style := func(base lipgloss.Style, col int) lipgloss.Style {
		s := base.Width(widths[col] + 2)
		if alignRight[col] {
			s = s.Align(lipgloss.Right)
		}
		return s
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = style(headerStyle, i).Render(h)
	}
	lines := []string{lipgloss.JoinHorizontal(lipgloss.Top, cells...)}

	for _, row := range rows {
		cells := make([]string, len(headers))
		for i := range headers {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = style(cellStyle, i).Render(cell)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(lines, "\n")
}
