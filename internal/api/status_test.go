package api

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/orginfo-harvester/internal/progress"
)

func event(stage progress.Stage, mutate func(*progress.Event)) progress.Event {
	evt := progress.Event{
		RunID: progress.UUIDToBytes(uuid.MustParse("0190c5a4-2b3c-7d4e-8f60-123456789abc")),
		TS:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Stage: stage,
	}
	if mutate != nil {
		mutate(&evt)
	}
	return evt
}

func TestStatusSinkFoldsRun(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	require.Equal(t, StatePending, sink.Snapshot().State)

	err := sink.Consume(context.Background(), []progress.Event{
		event(progress.StageRunStart, nil),
		event(progress.StagePhaseStart, func(e *progress.Event) {
			e.Phase = progress.PhaseDetails
			e.Total = 13
		}),
		event(progress.StageFetchDone, func(e *progress.Event) {
			e.Phase = progress.PhaseDetails
			e.StatusClass = progress.Status2xx
		}),
		event(progress.StageFetchDone, func(e *progress.Event) {
			e.Phase = progress.PhaseDetails
			e.StatusClass = progress.Status5xx
		}),
		event(progress.StageTaskDone, func(e *progress.Event) {
			e.Phase = progress.PhaseDetails
			e.Completed = 2
			e.Total = 13
		}),
		event(progress.StageCheckpoint, func(e *progress.Event) {
			e.Phase = progress.PhaseDetails
			e.Total = 13
			e.Completed = 2
		}),
	})
	require.NoError(t, err)

	snap := sink.Snapshot()
	require.Equal(t, "0190c5a4-2b3c-7d4e-8f60-123456789abc", snap.RunID)
	require.Equal(t, StateRunning, snap.State)
	require.Equal(t, "details", snap.Phase)
	require.Equal(t, 2, snap.Completed)
	require.Equal(t, 13, snap.Total)
	require.Equal(t, 13, snap.Links)
	require.Equal(t, 2, snap.Records)
	require.Equal(t, map[string]int64{"2xx": 1, "5xx": 1}, snap.Fetches)
	require.NotNil(t, snap.StartedAt)
	require.Nil(t, snap.FinishedAt)
}

func TestStatusSinkRecordsFailure(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		event(progress.StageRunStart, nil),
		event(progress.StageRunError, func(e *progress.Event) { e.Note = "export: disk full" }),
	}))

	snap := sink.Snapshot()
	require.Equal(t, StateFailed, snap.State)
	require.Equal(t, "export: disk full", snap.Error)
	require.NotNil(t, snap.FinishedAt)
	require.NoError(t, sink.Close(context.Background()))
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	snap := sink.Snapshot()
	snap.Fetches["2xx"] = 99
	require.Empty(t, sink.Snapshot().Fetches)
}
