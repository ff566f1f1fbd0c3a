// Package launcher turns a resolved id list into running remote tasks: it
// partitions the ids, ensures the worker template exists, and starts one
// task per partition.
package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
	"github.com/moseshope/scraping-admin-dashboard/internal/metrics"
	"github.com/moseshope/scraping-admin-dashboard/internal/orchestrator"
	"github.com/moseshope/scraping-admin-dashboard/internal/partition"
	"github.com/moseshope/scraping-admin-dashboard/internal/project"
)

// Payload is the JSON document each worker receives as its input parameter.
type Payload struct {
	QueryIDs  []int64 `json:"queryIds"`
	TaskIndex int     `json:"taskIndex"`
	TaskCount int     `json:"taskCount"`
}

// Launcher starts remote scraping tasks.
type Launcher struct {
	platform orchestrator.Platform
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// New creates a Launcher.
func New(platform orchestrator.Platform, m *metrics.Metrics, logger zerolog.Logger) *Launcher {
	return &Launcher{
		platform: platform,
		metrics:  m,
		logger:   logger.With().Str("component", "launcher").Logger(),
	}
}

// Launch starts up to taskCount remote tasks covering ids and returns the
// task records for everything that actually started. Launches are not
// retried: a failed launch returns the records of the tasks already running
// alongside the error, so the caller can persist the partial launch instead
// of orphaning live workers.
func (l *Launcher) Launch(ctx context.Context, taskCount int, ids []int64) ([]project.TaskRecord, error) {
	if taskCount <= 0 {
		return nil, fmt.Errorf("%w: task count must be positive, got %d", derrors.ErrInvalidInput, taskCount)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no ids to launch", derrors.ErrInvalidInput)
	}

	templateHandle, err := l.platform.EnsureTemplate(ctx)
	if err != nil {
		l.metrics.LaunchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ensuring worker template: %w", err)
	}

	slices := partition.Split(ids, taskCount)
	records := make([]project.TaskRecord, 0, len(slices))

	for i, slice := range slices {
		payload, err := json.Marshal(Payload{
			QueryIDs:  slice,
			TaskIndex: i,
			TaskCount: len(slices),
		})
		if err != nil {
			l.metrics.LaunchesTotal.WithLabelValues("error").Inc()
			return records, fmt.Errorf("encoding payload for task %d: %w", i, err)
		}

		task, err := l.platform.Launch(ctx, templateHandle, payload)
		if err != nil {
			l.metrics.LaunchesTotal.WithLabelValues("error").Inc()
			l.logger.Error().Err(err).Int("task_index", i).Int("started", len(records)).Msg("task launch failed")
			return records, fmt.Errorf("launching task %d of %d: %w", i+1, len(slices), err)
		}

		l.metrics.TasksLaunched.Inc()
		now := time.Now().UTC()
		records = append(records, project.TaskRecord{
			TaskHandle:     task.TaskHandle,
			TemplateHandle: task.TemplateHandle,
			LastStatus:     project.TaskRunning,
			Controller:     project.ControllerAuto,
			IDCount:        len(slice),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	l.metrics.LaunchesTotal.WithLabelValues("ok").Inc()
	l.logger.Info().Int("tasks", len(records)).Int("ids", len(ids)).Msg("launch complete")
	return records, nil
}
