package export

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
)

func strPtr(s string) *string { return &s }

// TestAggregateMissingPhoneLeavesBlankCell covers a record without a phone row.
func TestAggregateMissingPhoneLeavesBlankCell(t *testing.T) {
	t.Parallel()

	records := []crawler.Record{
		{Name: strPtr("Acme"), Phone: strPtr("+998 90"), TaxID: strPtr("01110")},
		{Name: strPtr("Bobur"), TaxID: strPtr("01120")},
	}

	table := Aggregate(records)
	require.Equal(t, []crawler.Field{crawler.FieldName, crawler.FieldPhone, crawler.FieldTaxID}, table.Columns)
	require.Equal(t, [][]string{
		{"Acme", "+998 90", "01110"},
		{"Bobur", "", "01120"},
	}, table.Rows)
}

func TestAggregateKeepsEmptyRecordsAsRows(t *testing.T) {
	t.Parallel()

	table := Aggregate([]crawler.Record{{}, {Email: strPtr("a@b.uz")}, {}})
	require.Equal(t, []string{"email"}, table.Header())
	require.Equal(t, [][]string{{""}, {"a@b.uz"}, {""}}, table.Rows)
}

func TestAggregateNoRecords(t *testing.T) {
	t.Parallel()

	table := Aggregate(nil)
	require.Empty(t, table.Columns)
	require.Empty(t, table.Rows)
}

func TestAggregateColumnOrderIsCanonical(t *testing.T) {
	t.Parallel()

	table := Aggregate([]crawler.Record{
		{TaxID: strPtr("1")},
		{Address: strPtr("Urgut")},
		{Name: strPtr("X")},
	})
	require.Equal(t, []string{"name", "address", "tax_id"}, table.Header())
}
