package api

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/orginfo-harvester/internal/progress"
)

// Run states reported in Snapshot.State.
const (
	StatePending = "pending"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// Snapshot is the operator view of a harvest run, folded from progress events.
type Snapshot struct {
	RunID     string `json:"run_id,omitempty"`
	State     string `json:"state"`
	Phase     string `json:"phase,omitempty"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	// Links and Records are the counts of the last saved checkpoint.
	Links      int              `json:"links"`
	Records    int              `json:"records"`
	Fetches    map[string]int64 `json:"fetches"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	UpdatedAt  *time.Time       `json:"updated_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// StatusSink is a progress.Sink that keeps the latest Snapshot in memory.
type StatusSink struct {
	mu   sync.RWMutex
	snap Snapshot
}

var _ progress.Sink = (*StatusSink)(nil)

// NewStatusSink returns a sink reporting a pending run.
func NewStatusSink() *StatusSink {
	return &StatusSink{snap: Snapshot{State: StatePending, Fetches: map[string]int64{}}}
}

// Consume folds batch into the snapshot.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *StatusSink) apply(evt progress.Event) {
	ts := evt.TS
	s.snap.UpdatedAt = &ts
	if s.snap.RunID == "" {
		s.snap.RunID = uuid.UUID(evt.RunID).String()
	}

	switch evt.Stage {
	case progress.StageRunStart:
		s.snap.State = StateRunning
		s.snap.StartedAt = &ts
	case progress.StageRunDone:
		s.snap.State = StateDone
		s.snap.FinishedAt = &ts
	case progress.StageRunError:
		s.snap.State = StateFailed
		s.snap.FinishedAt = &ts
		s.snap.Error = evt.Note
	case progress.StagePhaseStart:
		s.snap.Phase = string(evt.Phase)
		s.snap.Completed = 0
		s.snap.Total = evt.Total
	case progress.StagePhaseDone, progress.StageTaskDone:
		s.snap.Phase = string(evt.Phase)
		s.snap.Completed = evt.Completed
		s.snap.Total = evt.Total
	case progress.StageCheckpoint:
		s.snap.Links = evt.Total
		s.snap.Records = evt.Completed
	case progress.StageFetchDone:
		s.snap.Fetches[string(evt.StatusClass)]++
	}
}

// Close is a no-op.
func (s *StatusSink) Close(context.Context) error {
	return nil
}

// Snapshot returns a copy of the current state.
func (s *StatusSink) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.Fetches = maps.Clone(s.snap.Fetches)
	return out
}
