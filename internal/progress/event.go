package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageRunError   Stage = "RUN_ERROR"
	StagePhaseStart Stage = "PHASE_START"
	StagePhaseDone  Stage = "PHASE_DONE"
	StageTaskDone   Stage = "TASK_DONE"
	StageCheckpoint Stage = "CHECKPOINT"
	StageFetchDone  Stage = "FETCH_DONE"
)

// Phase names one step of the harvest.
type Phase string

// Harvest phases.
const (
	PhaseLinks   Phase = "links"
	PhaseDetails Phase = "details"
	PhaseExport  Phase = "export"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single component of harvest progress.
type Event struct {
	// RunID identifies the harvest run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Phase scopes phase, task, checkpoint and fetch events.
	Phase Phase
	// Completed and Total carry task counts for TASK_DONE and PHASE_DONE, and
	// the persisted link/record counts for CHECKPOINT.
	Completed int
	Total     int
	URL       string
	Bytes     int64
	// StatusClass groups HTTP response codes for FETCH_DONE.
	StatusClass StatusClass
	Dur         time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StagePhaseStart, StagePhaseDone, StageTaskDone, StageCheckpoint:
		if e.Phase == "" {
			return fmt.Errorf("%s requires phase", e.Stage)
		}
	case StageFetchDone:
		if e.Phase == "" {
			return errors.New("fetch done requires phase")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Completed < 0 || e.Total < 0 {
		return errors.New("counts must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events. A zero code means
// no response arrived.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
