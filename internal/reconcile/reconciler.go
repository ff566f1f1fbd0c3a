// Package reconcile keeps stored task statuses in agreement with the
// orchestration platform. The platform only knows whether a task is running
// or stopped; whether a stopped task actually finished its batch is decided
// by markers in the worker's log output, which makes logs authoritative over
// the platform's exit status.
package reconcile

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/moseshope/scraping-admin-dashboard/internal/logs"
	"github.com/moseshope/scraping-admin-dashboard/internal/metrics"
	"github.com/moseshope/scraping-admin-dashboard/internal/notify"
	"github.com/moseshope/scraping-admin-dashboard/internal/orchestrator"
	"github.com/moseshope/scraping-admin-dashboard/internal/project"
	"github.com/moseshope/scraping-admin-dashboard/internal/retry"
	"github.com/moseshope/scraping-admin-dashboard/internal/utilization"
)

// Store is the persistence surface the reconciler needs.
type Store interface {
	ListProjects() ([]*project.Project, error)
	UpdateProjectTasks(id string, status project.Status, tasks []project.TaskRecord) error
}

// Describer is the platform surface the reconciler needs.
type Describer interface {
	Describe(ctx context.Context, taskHandles []string) ([]orchestrator.RemoteTask, error)
}

// Config tunes the reconciler.
type Config struct {
	Interval      time.Duration
	SuccessMarker string
	ErrorMarker   string
	LogTailLines  int
	LogFetchLimit int
	// Retry governs describe, log and metrics fetches. All are idempotent
	// reads; nothing here ever retries a launch.
	Retry retry.Config
}

// Reconciler sweeps stored projects against the platform.
type Reconciler struct {
	store    Store
	platform Describer
	logs     logs.Reader
	usage    utilization.Querier
	notifier notify.Notifier
	metrics  *metrics.Metrics
	cfg      Config
	logger   zerolog.Logger
}

// New creates a Reconciler. usage may be nil when no metrics backend is
// configured; Performance then reports statuses without utilization data.
func New(store Store, platform Describer, reader logs.Reader, usage utilization.Querier, notifier notify.Notifier, m *metrics.Metrics, cfg Config, logger zerolog.Logger) *Reconciler {
	if cfg.LogFetchLimit <= 0 {
		cfg.LogFetchLimit = 8
	}
	if cfg.LogTailLines <= 0 {
		cfg.LogTailLines = 200
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &Reconciler{
		store:    store,
		platform: platform,
		logs:     reader,
		usage:    usage,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.With().Str("component", "reconciler").Logger(),
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.cfg.Interval).Msg("reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep reconciles every project once. All remote lookups for the sweep are
// batched: one Describe for every live task, then a bounded fan-out of log
// fetches for the tasks that stopped.
func (r *Reconciler) Sweep(ctx context.Context) error {
	started := time.Now()

	err := r.sweep(ctx)
	r.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		r.metrics.SweepsTotal.WithLabelValues("error").Inc()
		return err
	}
	r.metrics.SweepsTotal.WithLabelValues("ok").Inc()
	return nil
}

func (r *Reconciler) sweep(ctx context.Context) error {
	projects, err := r.store.ListProjects()
	if err != nil {
		return err
	}

	var handles []string
	for _, p := range projects {
		for _, t := range p.Tasks {
			if !t.LastStatus.Terminal() {
				handles = append(handles, t.TaskHandle)
			}
		}
	}
	if len(handles) == 0 {
		return nil
	}

	described, err := r.describe(ctx, handles)
	if err != nil {
		return err
	}
	remote := make(map[string]orchestrator.RemoteTask, len(described))
	for _, task := range described {
		remote[task.TaskHandle] = task
	}

	verdicts := r.inspectLogs(ctx, projects, remote)

	for _, p := range projects {
		r.reconcileProject(ctx, p, remote, verdicts)
	}
	return nil
}

// verdict is the outcome of one task's log inspection.
type verdict int

const (
	verdictNone verdict = iota // no marker found, or logs unavailable
	verdictSuccess
	verdictFailure
)

// inspectLogs fetches logs for every non-terminal task whose remote
// lifecycle warrants a look, with bounded concurrency. A failed fetch is
// recorded and treated as "no verdict"; the task stays non-terminal and the
// next sweep tries again.
func (r *Reconciler) inspectLogs(ctx context.Context, projects []*project.Project, remote map[string]orchestrator.RemoteTask) map[string]verdict {
	var targets []string
	for _, p := range projects {
		for i := range p.Tasks {
			t := &p.Tasks[i]
			rt, ok := remote[t.TaskHandle]
			if !ok || t.LastStatus.Terminal() {
				continue
			}
			if !needsLogCheck(t, rt.Lifecycle) {
				continue
			}
			targets = append(targets, t.TaskHandle)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	verdicts := make(map[string]verdict, len(targets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.LogFetchLimit)
	for _, handle := range targets {
		handle := handle
		g.Go(func() error {
			lines, err := r.fetchLogs(gctx, handle)
			if err != nil {
				r.metrics.LogFetchFailures.Inc()
				r.logger.Warn().Err(err).Str("task", handle).Msg("log fetch failed")
				return nil
			}
			v := r.classify(lines)

			mu.Lock()
			verdicts[handle] = v
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return verdicts
}

// describe batches remote task state with retries; a describe is a read and
// safe to repeat.
func (r *Reconciler) describe(ctx context.Context, handles []string) ([]orchestrator.RemoteTask, error) {
	var out []orchestrator.RemoteTask
	err := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context) error {
		var err error
		out, err = r.platform.Describe(ctx, handles)
		return err
	})
	return out, err
}

// fetchLogs tails one task's logs with retries.
func (r *Reconciler) fetchLogs(ctx context.Context, handle string) ([]string, error) {
	var lines []string
	err := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context) error {
		var err error
		lines, err = r.logs.FetchLogs(ctx, handle, r.cfg.LogTailLines)
		return err
	})
	return lines, err
}

// needsLogCheck decides whether a task's logs must be consulted. Only an
// ambiguous STOPPED lifecycle needs a verdict: running tasks have nothing to
// find yet, a FAILED lifecycle is conclusive on its own, and a manually
// stopped task keeps its Stopped status without a log check because the
// operator interrupted it, so marker absence means nothing.
func needsLogCheck(t *project.TaskRecord, lifecycle orchestrator.Lifecycle) bool {
	if lifecycle != orchestrator.LifecycleStopped {
		return false
	}
	if t.LastStatus == project.TaskStopped && t.Controller == project.ControllerManual {
		return false
	}
	return true
}

// classify scans log lines for the configured outcome markers. The error
// marker wins when both appear.
func (r *Reconciler) classify(lines []string) verdict {
	found := verdictNone
	for _, line := range lines {
		if r.cfg.ErrorMarker != "" && strings.Contains(line, r.cfg.ErrorMarker) {
			return verdictFailure
		}
		if r.cfg.SuccessMarker != "" && strings.Contains(line, r.cfg.SuccessMarker) {
			found = verdictSuccess
		}
	}
	return found
}

func (r *Reconciler) reconcileProject(ctx context.Context, p *project.Project, remote map[string]orchestrator.RemoteTask, verdicts map[string]verdict) {
	wasTerminal := p.Status == project.StatusCompleted || p.Status == project.StatusFailed
	changed := false

	for i := range p.Tasks {
		t := &p.Tasks[i]
		if t.LastStatus.Terminal() {
			continue
		}

		rt, ok := remote[t.TaskHandle]
		if !ok {
			// The platform no longer knows the task; keep the last status.
			continue
		}

		next := r.nextStatus(t, rt.Lifecycle, verdicts[t.TaskHandle])
		if next == t.LastStatus {
			continue
		}

		r.logger.Info().
			Str("project", p.ID).
			Str("task", t.TaskHandle).
			Str("from", string(t.LastStatus)).
			Str("to", string(next)).
			Msg("task status transition")

		t.LastStatus = next
		t.Controller = project.ControllerAuto
		t.UpdatedAt = time.Now().UTC()
		r.metrics.RecordTransition(string(next))
		changed = true
	}

	if !changed {
		return
	}

	p.Status = project.DeriveStatus(p.Tasks)
	if err := r.store.UpdateProjectTasks(p.ID, p.Status, p.Tasks); err != nil {
		r.logger.Error().Err(err).Str("project", p.ID).Msg("persisting reconciled tasks failed")
		return
	}

	if !wasTerminal && (p.Status == project.StatusCompleted || p.Status == project.StatusFailed) {
		r.notifier.ProjectFinished(ctx, p)
	}
}

// nextStatus maps a task's remote lifecycle and log verdict to its stored
// status. Successful and Failed are only ever entered here or via a FAILED
// lifecycle; once entered they are never left.
func (r *Reconciler) nextStatus(t *project.TaskRecord, lifecycle orchestrator.Lifecycle, v verdict) project.TaskStatus {
	switch lifecycle {
	case orchestrator.LifecycleRunning, orchestrator.LifecycleProvisioning:
		return project.TaskRunning

	case orchestrator.LifecycleStopped:
		if t.LastStatus == project.TaskStopped && t.Controller == project.ControllerManual {
			return project.TaskStopped
		}
		switch v {
		case verdictSuccess:
			return project.TaskSuccessful
		case verdictFailure:
			return project.TaskFailed
		default:
			return project.TaskStopped
		}

	case orchestrator.LifecycleFailed:
		// A failed exit is conclusive; logs are never consulted.
		return project.TaskFailed

	default:
		return t.LastStatus
	}
}
