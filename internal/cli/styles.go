package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/JonMunkholm/crm/internal/core"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1a1a1a", Dark: "#dddddd"}).
			Bold(true).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#005577", Dark: "#00aadd"}).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#859900", Dark: "#50fa7b"}).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#b58900", Dark: "#f1fa8c"}).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#dc322f", Dark: "#ff5555"}).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#626262", Dark: "#a8a8a8"})

	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// severityStyle colors a report period by its severity.
func severityStyle(severity string) lipgloss.Style {
	switch severity {
	case "destructive":
		return errorStyle
	case "warning":
		return warningStyle
	case "secondary":
		return labelStyle
	default:
		return mutedStyle
	}
}

// newTable builds a bordered table with the standard cell padding.
func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// statusStyle colors an import run status.
func statusStyle(s core.ImportRunStatus) lipgloss.Style {
	switch s {
	case core.RunCompleted:
		return successStyle
	case core.RunPartial, core.RunNoRows:
		return warningStyle
	default:
		return errorStyle
	}
}
