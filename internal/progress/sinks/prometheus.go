package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/orginfo-harvester/internal/progress"
)

// PrometheusSink exports harvest progress via Prometheus: run outcomes, phase
// runtimes, per-phase task completions, fetch status classes, and the last
// persisted checkpoint size.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runRuntime    *prometheus.HistogramVec
	phaseRuntime  *prometheus.HistogramVec
	tasksDone     *prometheus.CounterVec
	fetchRequests *prometheus.CounterVec
	checkpointed  *prometheus.GaugeVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_runs_started_total",
			Help: "Total harvest runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_runs_completed_total",
			Help: "Total harvest runs completed partitioned by result.",
		}, []string{"result"}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"result"}),
		phaseRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_phase_runtime_seconds",
			Help:    "Wall time per completed phase.",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600},
		}, []string{"phase"}),
		tasksDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_tasks_completed_total",
			Help: "Pool tasks completed partitioned by phase.",
		}, []string{"phase"}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_fetch_requests_total",
			Help: "Fetch completions partitioned by phase and status class.",
		}, []string{"phase", "status_class"}),
		checkpointed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "harvest_checkpoint_items",
			Help: "Items held by the last saved checkpoint.",
		}, []string{"sequence"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runRuntime,
		s.phaseRuntime,
		s.tasksDone,
		s.fetchRequests,
		s.checkpointed,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.observeRun(evt, "success")
	case progress.StageRunError:
		s.observeRun(evt, "error")
	case progress.StagePhaseDone:
		if evt.Dur > 0 {
			s.phaseRuntime.WithLabelValues(string(evt.Phase)).Observe(evt.Dur.Seconds())
		}
	case progress.StageTaskDone:
		s.tasksDone.WithLabelValues(string(evt.Phase)).Inc()
	case progress.StageFetchDone:
		statusClass := evt.StatusClass
		if statusClass == "" {
			statusClass = progress.StatusOther
		}
		s.fetchRequests.WithLabelValues(string(evt.Phase), string(statusClass)).Inc()
	case progress.StageCheckpoint:
		s.checkpointed.WithLabelValues("links").Set(float64(evt.Total))
		s.checkpointed.WithLabelValues("records").Set(float64(evt.Completed))
	}
}

func (s *PrometheusSink) observeRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
