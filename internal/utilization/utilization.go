// Package utilization reports per-task CPU and memory usage over a time
// window, queried from a Prometheus server scraping the worker pods.
package utilization

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
)

// Point is one sample of a utilization series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series is a time-ordered sample series.
type Series []Point

// TaskUtilization holds the usage series of one remote task. CPU is in
// cores, Memory in bytes.
type TaskUtilization struct {
	TaskHandle string `json:"taskHandle"`
	CPU        Series `json:"cpu"`
	Memory     Series `json:"memory"`
}

// Querier fetches utilization series for a set of task handles. Handles with
// no samples in the window are absent from the result.
type Querier interface {
	QueryUtilization(ctx context.Context, taskHandles []string, start, end time.Time) (map[string]TaskUtilization, error)
}

// Prometheus implements Querier against a Prometheus HTTP API. Worker pods
// are named after their task handle plus a generated suffix, which is how
// samples are attributed back to tasks.
type Prometheus struct {
	api       promv1.API
	namespace string
	step      time.Duration
	logger    zerolog.Logger
}

// NewPrometheus creates a Querier talking to the Prometheus server at addr.
func NewPrometheus(addr, namespace string, step time.Duration, logger zerolog.Logger) (*Prometheus, error) {
	client, err := api.NewClient(api.Config{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client: %w", err)
	}
	return NewPrometheusFromAPI(promv1.NewAPI(client), namespace, step, logger), nil
}

// NewPrometheusFromAPI creates a Querier from an existing API handle (for
// testing).
func NewPrometheusFromAPI(papi promv1.API, namespace string, step time.Duration, logger zerolog.Logger) *Prometheus {
	if step <= 0 {
		step = time.Minute
	}
	return &Prometheus{
		api:       papi,
		namespace: namespace,
		step:      step,
		logger:    logger.With().Str("component", "utilization").Logger(),
	}
}

// QueryUtilization runs one range query per resource for all handles at once
// and splits the resulting matrix back per task.
func (p *Prometheus) QueryUtilization(ctx context.Context, taskHandles []string, start, end time.Time) (map[string]TaskUtilization, error) {
	if len(taskHandles) == 0 {
		return map[string]TaskUtilization{}, nil
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: window end must be after start", derrors.ErrInvalidInput)
	}

	r := promv1.Range{Start: start, End: end, Step: p.step}

	cpu, err := p.queryRange(ctx, p.cpuQuery(taskHandles), r)
	if err != nil {
		return nil, fmt.Errorf("querying cpu usage: %w", err)
	}
	mem, err := p.queryRange(ctx, p.memoryQuery(taskHandles), r)
	if err != nil {
		return nil, fmt.Errorf("querying memory usage: %w", err)
	}

	out := make(map[string]TaskUtilization)
	attribute(out, taskHandles, cpu, func(u *TaskUtilization, s Series) { u.CPU = s })
	attribute(out, taskHandles, mem, func(u *TaskUtilization, s Series) { u.Memory = s })

	p.logger.Debug().Int("tasks", len(taskHandles)).Int("with_samples", len(out)).Msg("utilization queried")
	return out, nil
}

func (p *Prometheus) cpuQuery(handles []string) string {
	return fmt.Sprintf(
		`sum by (pod) (rate(container_cpu_usage_seconds_total{namespace=%q,pod=~%q,container!=""}[5m]))`,
		p.namespace, podPattern(handles),
	)
}

func (p *Prometheus) memoryQuery(handles []string) string {
	return fmt.Sprintf(
		`sum by (pod) (container_memory_working_set_bytes{namespace=%q,pod=~%q,container!=""})`,
		p.namespace, podPattern(handles),
	)
}

func (p *Prometheus) queryRange(ctx context.Context, query string, r promv1.Range) (model.Matrix, error) {
	value, warnings, err := p.api.QueryRange(ctx, query, r)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		p.logger.Warn().Str("warning", w).Msg("prometheus warning")
	}

	matrix, ok := value.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("unexpected prometheus result type %s", value.Type())
	}
	return matrix, nil
}

// podPattern builds an anchored regex matching any pod spawned by the given
// task handles.
func podPattern(handles []string) string {
	quoted := make([]string, len(handles))
	for i, h := range handles {
		quoted[i] = regexp.QuoteMeta(h)
	}
	return fmt.Sprintf("^(%s)-.*", strings.Join(quoted, "|"))
}

// attribute maps matrix sample streams back to task handles by pod name
// prefix and stores the series via set.
func attribute(out map[string]TaskUtilization, handles []string, matrix model.Matrix, set func(*TaskUtilization, Series)) {
	for _, stream := range matrix {
		podName := string(stream.Metric["pod"])
		handle := handleForPod(handles, podName)
		if handle == "" {
			continue
		}

		series := make(Series, 0, len(stream.Values))
		for _, sample := range stream.Values {
			series = append(series, Point{
				Timestamp: sample.Timestamp.Time(),
				Value:     float64(sample.Value),
			})
		}
		sort.Slice(series, func(i, j int) bool { return series[i].Timestamp.Before(series[j].Timestamp) })

		u := out[handle]
		u.TaskHandle = handle
		set(&u, series)
		out[handle] = u
	}
}

// handleForPod finds the task whose pods this pod name belongs to. The
// longest matching handle wins, guarding against one handle being a prefix
// of another.
func handleForPod(handles []string, podName string) string {
	best := ""
	for _, h := range handles {
		if strings.HasPrefix(podName, h+"-") && len(h) > len(best) {
			best = h
		}
	}
	return best
}
