// Package publisher holds the completion notice sent after a successful
// export. Transports live in subpackages (pubsub, memory).
package publisher

import (
	"time"

	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
)

// Completion summarizes a finished harvest run.
type Completion struct {
	RunID        string    `json:"run_id"`
	Links        int       `json:"links"`
	Records      int       `json:"records"`
	EmptyRecords int       `json:"empty_records"`
	Output       string    `json:"output"`
	FinishedAt   time.Time `json:"finished_at"`
}

// NewCompletion counts the empty records in cp.
func NewCompletion(runID, output string, cp crawler.Checkpoint, finishedAt time.Time) Completion {
	empty := 0
	for _, rec := range cp.Records {
		if rec.IsEmpty() {
			empty++
		}
	}
	return Completion{
		RunID:        runID,
		Links:        len(cp.Links),
		Records:      len(cp.Records),
		EmptyRecords: empty,
		Output:       output,
		FinishedAt:   finishedAt,
	}
}
