package publisher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
)

func TestNewCompletionCountsEmptyRecords(t *testing.T) {
	t.Parallel()

	name := "Acme"
	cp := crawler.Checkpoint{
		Links:   []crawler.Link{"/a/", "/b/", "/c/"},
		Records: []crawler.Record{{Name: &name}, {}, {}},
	}
	at := time.Unix(1700000000, 0).UTC()

	got := NewCompletion("run-1", "data.xlsx", cp, at)
	require.Equal(t, Completion{
		RunID:        "run-1",
		Links:        3,
		Records:      3,
		EmptyRecords: 2,
		Output:       "data.xlsx",
		FinishedAt:   at,
	}, got)
}
