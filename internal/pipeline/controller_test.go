package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/orginfo-harvester/internal/checkpoint"
	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
	"github.com/JakeFAU/orginfo-harvester/internal/progress"
	"github.com/JakeFAU/orginfo-harvester/internal/publisher"
	pubmemory "github.com/JakeFAU/orginfo-harvester/internal/publisher/memory"
	"github.com/JakeFAU/orginfo-harvester/internal/storage/memory"
)

func runConfig(t *testing.T, start, end, workers, batch int) crawler.RunConfig {
	t.Helper()
	cfg, err := crawler.NewRunConfig(crawler.RunConfig{
		StartPage:      start,
		EndPage:        end,
		Workers:        workers,
		BatchSize:      batch,
		RequestTimeout: time.Second,
	})
	require.NoError(t, err)
	return cfg
}

func newStore(t *testing.T, blob *memory.BlobStore) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.NewStore(blob, checkpoint.Config{}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func newController(t *testing.T, cfg crawler.RunConfig, deps Deps, opts Options) *Controller {
	t.Helper()
	c, err := New(cfg, deps, opts, zap.NewNop())
	require.NoError(t, err)
	return c
}

func requireAligned(t *testing.T, cp crawler.Checkpoint) {
	t.Helper()
	require.LessOrEqual(t, len(cp.Records), len(cp.Links))
	for i, rec := range cp.Records {
		if rec.IsEmpty() {
			continue
		}
		name, _ := rec.Get(crawler.FieldName)
		require.Equal(t, "org "+string(cp.Links[i]), name, "record %d misaligned", i)
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	site := newFakeSite(1)
	deps := Deps{Store: newStore(t, memory.NewBlobStore()), Links: site, Details: site, Exporter: &fakeExporter{}}

	_, err := New(crawler.RunConfig{}, deps, Options{}, nil)
	require.Error(t, err)

	_, err = New(runConfig(t, 1, 1, 1, 1), Deps{Links: site}, Options{}, nil)
	require.Error(t, err)

	c, err := New(runConfig(t, 1, 1, 1, 1), deps, Options{}, nil)
	require.NoError(t, err)
	require.Equal(t, StateInit, c.State())
}

// TestRunThirteenLinks covers two listing pages holding 10 and 3 links.
func TestRunThirteenLinks(t *testing.T) {
	t.Parallel()

	site := newFakeSite(10, 3)
	exporter := &fakeExporter{}
	c := newController(t, runConfig(t, 1, 2, 4, 0), Deps{
		Store:    newStore(t, memory.NewBlobStore()),
		Links:    site,
		Details:  site,
		Exporter: exporter,
	}, Options{})

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateDone, res.State)
	require.Equal(t, []State{
		StateInit, StateLoading, StateCollectingLinks, StateFetchingDetails, StateExporting, StateDone,
	}, c.History())

	require.Len(t, res.Checkpoint.Links, 13)
	require.Len(t, res.Checkpoint.Records, 13)
	require.Equal(t, 13, site.totalFetches())
	for _, link := range res.Checkpoint.Links {
		require.Equal(t, 1, site.calls(link))
	}
	require.Len(t, exporter.records, 13)
	requireAligned(t, res.Checkpoint)
}

// TestRunAlignmentUnderRandomLatency checks records[i] matches links[i] even
// when completions arrive out of order.
func TestRunAlignmentUnderRandomLatency(t *testing.T) {
	t.Parallel()

	site := newFakeSite(10, 10, 10, 10, 7)
	site.jitter = 3 * time.Millisecond
	c := newController(t, runConfig(t, 1, 5, 8, 7), Deps{
		Store:    newStore(t, memory.NewBlobStore()),
		Links:    site,
		Details:  site,
		Exporter: &fakeExporter{},
	}, Options{})

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Checkpoint.Records, 47)
	for _, rec := range res.Checkpoint.Records {
		require.False(t, rec.IsEmpty())
	}
	requireAligned(t, res.Checkpoint)
}

// TestRunPartialFailure ensures one failing link yields one empty record and
// the run still completes.
func TestRunPartialFailure(t *testing.T) {
	t.Parallel()

	site := newFakeSite(10)
	bad := site.pages[1][4]
	site.failing[bad] = true
	exporter := &fakeExporter{}
	c := newController(t, runConfig(t, 1, 1, 3, 0), Deps{
		Store:    newStore(t, memory.NewBlobStore()),
		Links:    site,
		Details:  site,
		Exporter: exporter,
	}, Options{})

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Checkpoint.Records, 10)

	empty := 0
	for i, rec := range res.Checkpoint.Records {
		if rec.IsEmpty() {
			empty++
			require.Equal(t, bad, res.Checkpoint.Links[i])
		}
	}
	require.Equal(t, 1, empty)
	require.Len(t, exporter.records, 10)
	requireAligned(t, res.Checkpoint)
}

// TestRunIdempotentResumption runs twice against the same checkpoint; the
// second run fetches nothing.
func TestRunIdempotentResumption(t *testing.T) {
	t.Parallel()

	blob := memory.NewBlobStore()
	site := newFakeSite(10, 10)
	cfg := runConfig(t, 1, 2, 4, 5)

	first := newController(t, cfg, Deps{Store: newStore(t, blob), Links: site, Details: site, Exporter: &fakeExporter{}}, Options{})
	_, err := first.Run(context.Background())
	require.NoError(t, err)
	pageCalls, fetches := site.totalPageCalls(), site.totalFetches()

	exporter := &fakeExporter{}
	second := newController(t, cfg, Deps{Store: newStore(t, blob), Links: site, Details: site, Exporter: exporter}, Options{})
	res, err := second.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.LinksSkipped)
	require.True(t, res.DetailsSkipped)
	require.Equal(t, pageCalls, site.totalPageCalls())
	require.Equal(t, fetches, site.totalFetches())
	require.Len(t, exporter.records, 20)
	requireAligned(t, res.Checkpoint)
}

// TestRunResumesAfterInterrupt cancels during the second detail batch. The
// batch still drains and is saved, and the restart fetches only the rest.
func TestRunResumesAfterInterrupt(t *testing.T) {
	t.Parallel()

	blob := memory.NewBlobStore()
	site := newFakeSite(10, 10)
	cfg := runConfig(t, 1, 2, 2, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	site.onFetch = func(calls int) {
		if calls == 7 {
			cancel()
		}
	}
	exporter := &fakeExporter{}
	first := newController(t, cfg, Deps{Store: newStore(t, blob), Links: site, Details: site, Exporter: exporter}, Options{})
	res, err := first.Run(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInterrupted))
	require.Equal(t, StateFailed, res.State)
	require.Equal(t, StateFailed, first.State())
	require.Zero(t, exporter.calls)

	saved := newStore(t, blob).Load(context.Background())
	require.Len(t, saved.Links, 20)
	require.Len(t, saved.Records, 10)
	requireAligned(t, saved)

	site.onFetch = nil
	second := newController(t, cfg, Deps{Store: newStore(t, blob), Links: site, Details: site, Exporter: exporter}, Options{})
	res, err = second.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.LinksSkipped)
	require.Len(t, res.Checkpoint.Records, 20)
	for _, link := range res.Checkpoint.Links {
		require.Equal(t, 1, site.calls(link), "link %s fetched more than once", link)
	}
	requireAligned(t, res.Checkpoint)
}

// TestRunResumesAfterLinkInterrupt cancels during the first listing batch.
// The batch drains and its links are saved, and the restart collects only the
// pages not yet represented.
func TestRunResumesAfterLinkInterrupt(t *testing.T) {
	t.Parallel()

	blob := memory.NewBlobStore()
	site := newFakeSite(10, 10, 10, 10)
	cfg := runConfig(t, 1, 4, 2, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	site.onCollect = func(calls int) {
		if calls == 2 {
			cancel()
		}
	}
	exporter := &fakeExporter{}
	first := newController(t, cfg, Deps{Store: newStore(t, blob), Links: site, Details: site, Exporter: exporter}, Options{})
	res, err := first.Run(ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	require.Equal(t, StateFailed, res.State)
	require.Equal(t, []State{StateInit, StateLoading, StateCollectingLinks, StateFailed}, first.History())
	require.Zero(t, site.totalFetches())
	require.Zero(t, exporter.calls)

	saved := newStore(t, blob).Load(context.Background())
	require.Equal(t, append(site.pages[1], site.pages[2]...), saved.Links)
	require.Empty(t, saved.Records)
	require.Equal(t, []int{3, 4}, slices.Collect(crawler.Pages(cfg, saved)))

	site.onCollect = nil
	second := newController(t, cfg, Deps{Store: newStore(t, blob), Links: site, Details: site, Exporter: exporter}, Options{})
	res, err = second.Run(context.Background())
	require.NoError(t, err)
	require.False(t, res.LinksSkipped)
	require.Len(t, res.Checkpoint.Links, 40)
	require.Len(t, res.Checkpoint.Records, 40)
	for page := 1; page <= 4; page++ {
		require.Equal(t, 1, site.pageCallsFor(page), "page %d collected more than once", page)
	}
	for _, link := range res.Checkpoint.Links {
		require.Equal(t, 1, site.calls(link))
	}
	requireAligned(t, res.Checkpoint)
	require.Len(t, exporter.records, 40)
}

func TestRunCanceledBeforeStart(t *testing.T) {
	t.Parallel()

	site := newFakeSite(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newController(t, runConfig(t, 1, 1, 2, 0), Deps{
		Store:    newStore(t, memory.NewBlobStore()),
		Links:    site,
		Details:  site,
		Exporter: &fakeExporter{},
	}, Options{})
	_, err := c.Run(ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	require.Zero(t, site.totalPageCalls())
}

// TestRunExportFailureIsFatal keeps the checkpoint so a rerun only exports.
func TestRunExportFailureIsFatal(t *testing.T) {
	t.Parallel()

	blob := memory.NewBlobStore()
	site := newFakeSite(10)
	cfg := runConfig(t, 1, 1, 2, 0)
	exporter := &fakeExporter{err: errors.New("read-only file system")}

	c := newController(t, cfg, Deps{Store: newStore(t, blob), Links: site, Details: site, Exporter: exporter}, Options{})
	res, err := c.Run(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrInterrupted))
	require.Equal(t, StateFailed, res.State)
	require.Equal(t, StateFailed, c.History()[len(c.History())-1])

	exporter.err = nil
	rerun := newController(t, cfg, Deps{Store: newStore(t, blob), Links: site, Details: site, Exporter: exporter}, Options{})
	_, err = rerun.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, site.totalFetches())
	require.Len(t, exporter.records, 10)
}

func TestRunSaveFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	site := newFakeSite(10, 2)
	store := &failingStore{CheckpointStore: newStore(t, memory.NewBlobStore())}
	c := newController(t, runConfig(t, 1, 2, 2, 4), Deps{
		Store:    store,
		Links:    site,
		Details:  site,
		Exporter: &fakeExporter{},
	}, Options{})

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateDone, res.State)
	// one save for the single links batch, three for twelve details in fours
	require.Equal(t, 4, store.saves)
}

func TestRunSecondCallFails(t *testing.T) {
	t.Parallel()

	site := newFakeSite(1)
	c := newController(t, runConfig(t, 1, 1, 1, 0), Deps{
		Store:    newStore(t, memory.NewBlobStore()),
		Links:    site,
		Details:  site,
		Exporter: &fakeExporter{},
	}, Options{})
	_, err := c.Run(context.Background())
	require.NoError(t, err)
	_, err = c.Run(context.Background())
	require.Error(t, err)
}

func TestRunEmitsProgress(t *testing.T) {
	t.Parallel()

	site := newFakeSite(10, 3)
	emitter := &recordingEmitter{}
	runID := uuid.Must(uuid.NewV7())
	c := newController(t, runConfig(t, 1, 2, 3, 5), Deps{
		Store:    newStore(t, memory.NewBlobStore()),
		Links:    site,
		Details:  site,
		Exporter: &fakeExporter{},
		Emitter:  emitter,
	}, Options{RunID: runID})

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, runID.String(), res.RunID)

	require.Equal(t, progress.StageRunStart, emitter.events[0].Stage)
	require.Equal(t, progress.StageRunDone, emitter.events[len(emitter.events)-1].Stage)
	for _, evt := range emitter.events {
		require.NoError(t, evt.Validate())
		require.Equal(t, runID, evt.RunUUID())
	}

	tasks := emitter.byStage(progress.StageTaskDone)
	require.Len(t, tasks, 2+13)
	last := tasks[len(tasks)-1]
	require.Equal(t, progress.PhaseDetails, last.Phase)
	require.Equal(t, 13, last.Total)

	// one links batch, three detail batches of up to five
	require.Len(t, emitter.byStage(progress.StageCheckpoint), 4)
	require.Len(t, emitter.byStage(progress.StagePhaseDone), 3)
}

func TestRunPublishesCompletion(t *testing.T) {
	t.Parallel()

	site := newFakeSite(3)
	site.failing[site.pages[1][0]] = true
	pub := pubmemory.New()
	c := newController(t, runConfig(t, 1, 1, 2, 0), Deps{
		Store:     newStore(t, memory.NewBlobStore()),
		Links:     site,
		Details:   site,
		Exporter:  &fakeExporter{},
		Publisher: pub,
	}, Options{Topic: "harvest-done", Output: "data.xlsx"})

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "harvest-done", msgs[0].Topic)
	notice, ok := msgs[0].Payload.(publisher.Completion)
	require.True(t, ok)
	require.Equal(t, res.RunID, notice.RunID)
	require.Equal(t, 3, notice.Records)
	require.Equal(t, 1, notice.EmptyRecords)
	require.Equal(t, "data.xlsx", notice.Output)
}

func TestRunPublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	site := newFakeSite(2)
	pub := pubmemory.New()
	pub.FailWith(errors.New("topic not found"))
	c := newController(t, runConfig(t, 1, 1, 1, 0), Deps{
		Store:     newStore(t, memory.NewBlobStore()),
		Links:     site,
		Details:   site,
		Exporter:  &fakeExporter{},
		Publisher: pub,
	}, Options{Topic: "harvest-done"})

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateDone, res.State)
}
