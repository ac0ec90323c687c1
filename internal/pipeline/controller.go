// Package pipeline drives one resumable harvest run: load the checkpoint,
// collect listing links, fetch detail records, and export the table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/orginfo-harvester/internal/clock/system"
	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
	uuidgen "github.com/JakeFAU/orginfo-harvester/internal/id/uuid"
	"github.com/JakeFAU/orginfo-harvester/internal/progress"
	"github.com/JakeFAU/orginfo-harvester/internal/publisher"
	"github.com/JakeFAU/orginfo-harvester/internal/worker"
)

// ErrInterrupted is returned when the run context is canceled. The batch in
// flight is always finished and checkpointed first.
var ErrInterrupted = errors.New("harvest interrupted")

// TracerName names the tracer spans are recorded under.
const TracerName = "github.com/JakeFAU/orginfo-harvester/internal/pipeline"

// Deps are the collaborators a Controller drives. Emitter, Publisher, Clock
// and Tracer are optional; Tracer defaults to the global provider.
type Deps struct {
	Store     crawler.CheckpointStore
	Links     crawler.LinkCollector
	Details   crawler.DetailFetcher
	Exporter  crawler.Exporter
	Emitter   progress.Emitter
	Publisher crawler.Publisher
	Clock     crawler.Clock
	Tracer    trace.Tracer
}

// Options carry per-run settings that are not part of RunConfig.
type Options struct {
	// RunID tags progress events; a UUIDv7 is generated when zero.
	RunID uuid.UUID
	// Topic receives the completion notice when both it and Deps.Publisher
	// are set.
	Topic string
	// Output is reported in the completion notice.
	Output string
}

// Result describes a finished (or failed) run.
type Result struct {
	RunID          string
	State          State
	Checkpoint     crawler.Checkpoint
	LinksSkipped   bool
	DetailsSkipped bool
}

// Controller owns the checkpoint for the duration of a run and is its only
// writer. A Controller runs once.
type Controller struct {
	cfg    crawler.RunConfig
	deps   Deps
	opts   Options
	runID  [16]byte
	logger *zap.Logger

	mu      sync.Mutex
	state   State
	history []State
}

// New validates cfg and deps and returns a Controller in StateInit.
func New(cfg crawler.RunConfig, deps Deps, opts Options, logger *zap.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	if deps.Store == nil || deps.Links == nil || deps.Details == nil || deps.Exporter == nil {
		return nil, fmt.Errorf("pipeline requires a checkpoint store, link collector, detail fetcher and exporter")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(TracerName)
	}
	if opts.RunID == uuid.Nil {
		id, err := uuidgen.New().NewRunID()
		if err != nil {
			return nil, fmt.Errorf("allocate run id: %w", err)
		}
		opts.RunID = id
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:     cfg,
		deps:    deps,
		opts:    opts,
		runID:   progress.UUIDToBytes(opts.RunID),
		logger:  logger.With(zap.String("run_id", opts.RunID.String())),
		state:   StateInit,
		history: []State{StateInit},
	}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns every state entered so far, in order.
func (c *Controller) History() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

func (c *Controller) transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := canTransition(c.state, to); err != nil {
		return err
	}
	c.logger.Debug("state transition", zap.String("from", string(c.state)), zap.String("to", string(to)))
	c.state = to
	c.history = append(c.history, to)
	return nil
}

// Run executes the state machine to DONE or FAILED. Only an export failure or
// an interruption fails the run; fetch failures become empty records and a
// failed checkpoint save is logged and retried after the next batch.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	started := c.deps.Clock.Now()
	res := Result{RunID: c.opts.RunID.String()}
	if err := c.transition(StateLoading); err != nil {
		return res, err
	}
	c.emit(progress.Event{Stage: progress.StageRunStart})

	ctx, span := c.deps.Tracer.Start(ctx, "harvest.run",
		trace.WithAttributes(attribute.String("harvest.run_id", res.RunID)))
	defer span.End()

	cp, err := c.run(ctx, &res)
	res.Checkpoint = cp
	span.SetAttributes(
		attribute.Int("harvest.links", len(cp.Links)),
		attribute.Int("harvest.records", len(cp.Records)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		_ = c.transition(StateFailed)
		res.State = StateFailed
		c.emit(progress.Event{Stage: progress.StageRunError, Dur: c.since(started), Note: err.Error()})
		c.logger.Error("harvest failed", zap.Error(err))
		return res, err
	}
	res.State = StateDone
	c.emit(progress.Event{
		Stage:     progress.StageRunDone,
		Completed: len(cp.Records),
		Total:     len(cp.Links),
		Dur:       c.since(started),
	})
	c.logger.Info("harvest finished",
		zap.Int("links", len(cp.Links)),
		zap.Int("records", len(cp.Records)),
		zap.Duration("elapsed", c.since(started)),
	)
	return res, nil
}

func (c *Controller) run(ctx context.Context, res *Result) (crawler.Checkpoint, error) {
	cp := c.deps.Store.Load(ctx)

	if err := c.transition(StateCollectingLinks); err != nil {
		return cp, err
	}
	if len(cp.Links) >= c.cfg.ExpectedLinks() {
		res.LinksSkipped = true
		c.logger.Info("link collection skipped",
			zap.Int("links", len(cp.Links)),
			zap.Int("expected", c.cfg.ExpectedLinks()),
		)
	} else if err := c.traced(ctx, progress.PhaseLinks, func(ctx context.Context) error {
		return c.collectLinks(ctx, &cp)
	}); err != nil {
		return cp, err
	}

	if err := c.transition(StateFetchingDetails); err != nil {
		return cp, err
	}
	if len(cp.Links) == len(cp.Records) {
		res.DetailsSkipped = true
		c.logger.Info("detail fetching skipped", zap.Int("records", len(cp.Records)))
	} else if err := c.traced(ctx, progress.PhaseDetails, func(ctx context.Context) error {
		return c.fetchDetails(ctx, &cp)
	}); err != nil {
		return cp, err
	}

	if err := interrupted(ctx); err != nil {
		return cp, err
	}
	if err := c.transition(StateExporting); err != nil {
		return cp, err
	}
	if err := c.traced(ctx, progress.PhaseExport, func(ctx context.Context) error {
		return c.export(ctx, cp)
	}); err != nil {
		return cp, err
	}
	return cp, c.transition(StateDone)
}

// traced runs one phase inside its own span.
func (c *Controller) traced(ctx context.Context, phase progress.Phase, fn func(context.Context) error) error {
	ctx, span := c.deps.Tracer.Start(ctx, "harvest."+string(phase))
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Controller) collectLinks(ctx context.Context, cp *crawler.Checkpoint) error {
	pages := slices.Collect(crawler.Pages(c.cfg, *cp))
	phaseStart := c.deps.Clock.Now()
	c.emit(progress.Event{Stage: progress.StagePhaseStart, Phase: progress.PhaseLinks, Total: len(pages)})
	c.logger.Info("collecting links", zap.Int("pages", len(pages)), zap.Int("links", len(cp.Links)))

	done := 0
	for batch := range slices.Chunk(pages, c.cfg.BatchSize) {
		if err := interrupted(ctx); err != nil {
			return err
		}
		results := worker.Run(context.WithoutCancel(ctx), c.poolConfig(progress.PhaseLinks, done, len(pages)), batch,
			func(ctx context.Context, page int) []crawler.Link {
				ctx, cancel := c.taskContext(ctx)
				defer cancel()
				return c.deps.Links.Collect(ctx, page)
			})
		for _, links := range results {
			cp.Links = append(cp.Links, links...)
		}
		done += len(batch)
		c.save(ctx, *cp, progress.PhaseLinks)
	}

	c.emit(progress.Event{
		Stage:     progress.StagePhaseDone,
		Phase:     progress.PhaseLinks,
		Completed: done,
		Total:     len(pages),
		Dur:       c.since(phaseStart),
	})
	return nil
}

type detailTask struct {
	index int
	link  crawler.Link
}

type detailResult struct {
	index  int
	record crawler.Record
}

func (c *Controller) fetchDetails(ctx context.Context, cp *crawler.Checkpoint) error {
	offset := len(cp.Records)
	pending := cp.PendingLinks()
	tasks := make([]detailTask, len(pending))
	for i, link := range pending {
		tasks[i] = detailTask{index: offset + i, link: link}
	}
	phaseStart := c.deps.Clock.Now()
	c.emit(progress.Event{Stage: progress.StagePhaseStart, Phase: progress.PhaseDetails, Total: len(tasks)})
	c.logger.Info("fetching details", zap.Int("pending", len(tasks)), zap.Int("records", offset))

	done := 0
	for batch := range slices.Chunk(tasks, c.cfg.BatchSize) {
		if err := interrupted(ctx); err != nil {
			return err
		}
		results := worker.Run(context.WithoutCancel(ctx), c.poolConfig(progress.PhaseDetails, done, len(tasks)), batch,
			func(ctx context.Context, task detailTask) detailResult {
				ctx, cancel := c.taskContext(ctx)
				defer cancel()
				return detailResult{index: task.index, record: c.deps.Details.Fetch(ctx, task.link)}
			})

		// Completion order is arbitrary; place each record by its link index.
		base := batch[0].index
		ordered := make([]crawler.Record, len(batch))
		for _, r := range results {
			ordered[r.index-base] = r.record
		}
		cp.Records = append(cp.Records, ordered...)
		done += len(batch)
		c.save(ctx, *cp, progress.PhaseDetails)
	}

	c.emit(progress.Event{
		Stage:     progress.StagePhaseDone,
		Phase:     progress.PhaseDetails,
		Completed: done,
		Total:     len(tasks),
		Dur:       c.since(phaseStart),
	})
	return nil
}

func (c *Controller) export(ctx context.Context, cp crawler.Checkpoint) error {
	phaseStart := c.deps.Clock.Now()
	c.emit(progress.Event{Stage: progress.StagePhaseStart, Phase: progress.PhaseExport, Total: len(cp.Records)})
	if err := c.deps.Exporter.Export(ctx, cp.Records); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	c.emit(progress.Event{
		Stage:     progress.StagePhaseDone,
		Phase:     progress.PhaseExport,
		Completed: len(cp.Records),
		Total:     len(cp.Records),
		Dur:       c.since(phaseStart),
	})
	c.notify(ctx, cp)
	return nil
}

// notify publishes the completion notice. Failures are logged only.
func (c *Controller) notify(ctx context.Context, cp crawler.Checkpoint) {
	if c.deps.Publisher == nil || c.opts.Topic == "" {
		return
	}
	payload := publisher.NewCompletion(c.opts.RunID.String(), c.opts.Output, cp, c.deps.Clock.Now())
	id, err := c.deps.Publisher.Publish(ctx, c.opts.Topic, payload)
	if err != nil {
		c.logger.Warn("completion notice failed", zap.String("topic", c.opts.Topic), zap.Error(err))
		return
	}
	c.logger.Info("completion notice published", zap.String("topic", c.opts.Topic), zap.String("message_id", id))
}

// save persists cp on a context detached from cancellation so an interrupt
// never discards a drained batch.
func (c *Controller) save(ctx context.Context, cp crawler.Checkpoint, phase progress.Phase) {
	if err := c.deps.Store.Save(context.WithoutCancel(ctx), cp); err != nil {
		c.logger.Warn("checkpoint save failed",
			zap.String("phase", string(phase)),
			zap.Int("links", len(cp.Links)),
			zap.Int("records", len(cp.Records)),
			zap.Error(err),
		)
		return
	}
	c.emit(progress.Event{
		Stage:     progress.StageCheckpoint,
		Phase:     phase,
		Completed: len(cp.Records),
		Total:     len(cp.Links),
	})
}

func (c *Controller) poolConfig(phase progress.Phase, offset, total int) worker.Config {
	return worker.Config{
		Concurrency: c.cfg.Workers,
		Progress: func(completed, _ int) {
			c.emit(progress.Event{
				Stage:     progress.StageTaskDone,
				Phase:     phase,
				Completed: offset + completed,
				Total:     total,
			})
		},
	}
}

func (c *Controller) taskContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

func (c *Controller) emit(evt progress.Event) {
	if c.deps.Emitter == nil {
		return
	}
	evt.RunID = c.runID
	evt.TS = c.deps.Clock.Now()
	c.deps.Emitter.Emit(evt)
}

func (c *Controller) since(t time.Time) time.Duration {
	return c.deps.Clock.Now().Sub(t)
}

func interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return nil
}
