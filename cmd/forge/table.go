package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// simpleTable renders static rows with aligned columns for list output.
type simpleTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func newTable(title string, headers ...string) *simpleTable {
	return &simpleTable{Title: title, Headers: headers}
}

func (t *simpleTable) AddRow(row ...string) {
	t.Rows = append(t.Rows, row)
}

func (t *simpleTable) View(st styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	var sb strings.Builder

	if t.Title != "" {
		sb.WriteString(st.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	colWidths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		colWidths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) {
				if w := lipgloss.Width(cell); w > colWidths[i] {
					colWidths[i] = w
				}
			}
		}
	}
	// Width includes the cell padding
	for i := range colWidths {
		colWidths[i] += 2
	}

	headerStyle := st.Bold.Padding(0, 1)
	rowStyle := st.Body.Padding(0, 1)
	sepStyle := st.Muted

	for i, h := range t.Headers {
		sb.WriteString(headerStyle.Width(colWidths[i]).Render(h))
		if i < len(t.Headers)-1 {
			sb.WriteString(sepStyle.Render("|"))
		}
	}
	sb.WriteString("\n")

	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) {
				sb.WriteString(rowStyle.Width(colWidths[i]).Render(cell))
				if i < len(row)-1 {
					sb.WriteString(sepStyle.Render("|"))
				}
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
