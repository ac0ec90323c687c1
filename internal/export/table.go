// Package export turns the harvested records into a single table and writes
// it out as a spreadsheet, with an optional console preview.
package export

import (
	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
)

// Table is the aggregated output. Rows[i] holds the cells of record i in
// Columns order; absent values are empty strings.
type Table struct {
	Columns []crawler.Field
	Rows    [][]string
}

// Header returns the column names as strings.
func (t Table) Header() []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = string(col)
	}
	return out
}

// Aggregate merges records into a Table. Columns are the union of keys seen in
// any record, in canonical field order. Row order follows record order and
// empty records still produce a (blank) row.
func Aggregate(records []crawler.Record) Table {
	seen := make(map[crawler.Field]bool, len(crawler.Fields))
	for _, rec := range records {
		for _, key := range rec.Keys() {
			seen[key] = true
		}
	}
	var table Table
	for _, field := range crawler.Fields {
		if seen[field] {
			table.Columns = append(table.Columns, field)
		}
	}
	table.Rows = make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(table.Columns))
		for j, col := range table.Columns {
			row[j], _ = rec.Get(col)
		}
		table.Rows[i] = row
	}
	return table
}
