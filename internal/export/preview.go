package export

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DefaultPreviewRows matches the usual head-of-table glance.
const DefaultPreviewRows = 5

// PreviewWriter prints the first rows of a Table.
type PreviewWriter struct {
	Out  io.Writer
	Rows int
}

// Write renders up to Rows rows with a row-count footer.
func (p PreviewWriter) Write(t Table) error {
	if p.Out == nil {
		return nil
	}
	limit := p.Rows
	if limit <= 0 {
		limit = DefaultPreviewRows
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault
	header := table.Row{"#"}
	for _, col := range t.Columns {
		header = append(header, string(col))
	}
	tw.AppendHeader(header)
	for i, row := range t.Rows {
		if i >= limit {
			break
		}
		r := table.Row{i}
		for _, cell := range row {
			r = append(r, cell)
		}
		tw.AppendRow(r)
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d rows x %d columns", len(t.Rows), len(t.Columns))})

	if _, err := fmt.Fprintln(p.Out, tw.Render()); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	return nil
}
