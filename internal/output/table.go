package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatSolved renders a result as a numbered table of slugs.
func (f *TableFormatter) FormatSolved(result *SolvedResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s (%s)", result.Handle, result.period()))
	t.AppendHeader(table.Row{"#", "Slug"})

	for i, slug := range result.Slugs {
		t.AppendRow(table.Row{i + 1, slug})
	}

	t.AppendFooter(table.Row{"", fmt.Sprintf("%d solved", result.Count)})
	return t.Render(), nil
}
