package progress

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	id := UUIDToBytes(uuid.New())
	now := time.Now()

	require.NoError(t, Event{RunID: id, TS: now, Stage: StageRunStart}.Validate())
	require.NoError(t, Event{RunID: id, TS: now, Stage: StageTaskDone, Phase: PhaseLinks, Completed: 1, Total: 2}.Validate())
	require.NoError(t, Event{RunID: id, TS: now, Stage: StageFetchDone, Phase: PhaseDetails, StatusClass: Status2xx}.Validate())

	require.Error(t, Event{TS: now, Stage: StageRunStart}.Validate())
	require.Error(t, Event{RunID: id, Stage: StageRunStart}.Validate())
	require.Error(t, Event{RunID: id, TS: now, Stage: "BOGUS"}.Validate())
	require.Error(t, Event{RunID: id, TS: now, Stage: StagePhaseStart}.Validate())
	require.Error(t, Event{RunID: id, TS: now, Stage: StageFetchDone, Phase: PhaseLinks}.Validate())
	require.Error(t, Event{RunID: id, TS: now, Stage: StageRunDone, Dur: -time.Second}.Validate())
	require.Error(t, Event{RunID: id, TS: now, Stage: StageTaskDone, Phase: PhaseLinks, Completed: -1}.Validate())
}

func TestRunUUIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	require.Equal(t, id, Event{RunID: UUIDToBytes(id)}.RunUUID())
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, Status2xx, ClassifyStatus(http.StatusOK))
	require.Equal(t, Status3xx, ClassifyStatus(http.StatusFound))
	require.Equal(t, Status4xx, ClassifyStatus(http.StatusNotFound))
	require.Equal(t, Status5xx, ClassifyStatus(http.StatusBadGateway))
	require.Equal(t, StatusOther, ClassifyStatus(0))
}
