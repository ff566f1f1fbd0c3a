package reconcile

import (
	"context"
	"time"

	"github.com/moseshope/scraping-admin-dashboard/internal/orchestrator"
	"github.com/moseshope/scraping-admin-dashboard/internal/project"
	"github.com/moseshope/scraping-admin-dashboard/internal/retry"
	"github.com/moseshope/scraping-admin-dashboard/internal/utilization"
)

// TaskPerformance combines a task's reconciled status, its live platform
// lifecycle, and its resource usage over the requested window.
type TaskPerformance struct {
	TaskHandle  string                       `json:"taskHandle"`
	Status      project.TaskStatus           `json:"status"`
	Controller  project.Controller           `json:"controller"`
	Lifecycle   orchestrator.Lifecycle       `json:"lifecycleStatus,omitempty"`
	IDCount     int                          `json:"idCount"`
	Utilization *utilization.TaskUtilization `json:"utilization,omitempty"`
}

// ProjectPerformance is the per-project performance report.
type ProjectPerformance struct {
	ProjectID   string            `json:"projectId"`
	ProjectName string            `json:"projectName"`
	Status      project.Status    `json:"status"`
	QueryCount  int               `json:"queryCount"`
	Tasks       []TaskPerformance `json:"tasks"`
}

// Performance runs a sweep so the report reflects current truth, then joins
// stored task state with live lifecycles and utilization series.
func (r *Reconciler) Performance(ctx context.Context, start, end time.Time) ([]ProjectPerformance, error) {
	if err := r.Sweep(ctx); err != nil {
		return nil, err
	}

	projects, err := r.store.ListProjects()
	if err != nil {
		return nil, err
	}

	var handles []string
	for _, p := range projects {
		handles = append(handles, p.TaskHandles()...)
	}

	remote := map[string]orchestrator.RemoteTask{}
	if len(handles) > 0 {
		described, err := r.describe(ctx, handles)
		if err != nil {
			return nil, err
		}
		for _, task := range described {
			remote[task.TaskHandle] = task
		}
	}

	usage := map[string]utilization.TaskUtilization{}
	if r.usage != nil && len(handles) > 0 {
		usage, err = r.queryUsage(ctx, handles, start, end)
		if err != nil {
			// Utilization is best-effort; statuses are still worth reporting.
			r.logger.Warn().Err(err).Msg("utilization query failed")
			usage = map[string]utilization.TaskUtilization{}
		}
	}

	report := make([]ProjectPerformance, 0, len(projects))
	for _, p := range projects {
		pp := ProjectPerformance{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Status:      p.Status,
			QueryCount:  p.QueryCount,
			Tasks:       make([]TaskPerformance, 0, len(p.Tasks)),
		}
		for _, t := range p.Tasks {
			tp := TaskPerformance{
				TaskHandle: t.TaskHandle,
				Status:     t.LastStatus,
				Controller: t.Controller,
				IDCount:    t.IDCount,
			}
			if rt, ok := remote[t.TaskHandle]; ok {
				tp.Lifecycle = rt.Lifecycle
			}
			if u, ok := usage[t.TaskHandle]; ok {
				tp.Utilization = &u
			}
			pp.Tasks = append(pp.Tasks, tp)
		}
		report = append(report, pp)
	}
	return report, nil
}

// queryUsage fetches utilization series with retries.
func (r *Reconciler) queryUsage(ctx context.Context, handles []string, start, end time.Time) (map[string]utilization.TaskUtilization, error) {
	var out map[string]utilization.TaskUtilization
	err := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context) error {
		var err error
		out, err = r.usage.QueryUtilization(ctx, handles, start, end)
		return err
	})
	return out, err
}
