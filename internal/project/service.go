package project

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
	"github.com/moseshope/scraping-admin-dashboard/internal/filter"
	"github.com/moseshope/scraping-admin-dashboard/internal/orchestrator"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateProject(p *Project) error
	GetProject(id string) (*Project, error)
	GetProjectByName(name string) (*Project, error)
	ListProjects() ([]*Project, error)
	UpdateProject(p *Project) error
	UpdateProjectTasks(id string, status Status, tasks []TaskRecord) error
	DeleteProject(id string) error
}

// Resolver resolves a filter spec into estimate ids.
type Resolver interface {
	Resolve(ctx context.Context, spec filter.Spec) ([]int64, error)
}

// TaskLauncher starts remote tasks for a resolved id list.
type TaskLauncher interface {
	Launch(ctx context.Context, taskCount int, ids []int64) ([]TaskRecord, error)
}

// TaskController is the subset of platform operations used for operator
// actions on individual tasks.
type TaskController interface {
	Stop(ctx context.Context, taskHandle string) error
	Resume(ctx context.Context, taskHandle string) error
	Restart(ctx context.Context, taskHandle string) (*orchestrator.RemoteTask, error)
}

// Service implements project lifecycle operations.
type Service struct {
	store    Store
	resolver Resolver
	launcher TaskLauncher
	tasks    TaskController
	logger   zerolog.Logger
}

// NewService creates a project service.
func NewService(store Store, resolver Resolver, launcher TaskLauncher, tasks TaskController, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		launcher: launcher,
		tasks:    tasks,
		logger:   logger.With().Str("component", "project_service").Logger(),
	}
}

// StartParams are the inputs to StartScraping.
type StartParams struct {
	ProjectName string
	Settings    Settings
	Filters     *filter.Spec
}

func (p StartParams) filterSpec() (filter.Spec, error) {
	if p.Settings.EntireScraping || p.Filters == nil {
		return filter.EntireDataset(), nil
	}
	return *p.Filters, nil
}

// StartScraping resolves the filter selection, launches worker tasks, and
// persists the result as a project. A project name that already exists is
// merged rather than rejected: the new ids and tasks are appended and the
// query and task counts are summed. When the launch fails partway the tasks that did start are
// persisted anyway, alongside the returned error, so no running worker is
// ever untracked.
func (s *Service) StartScraping(ctx context.Context, params StartParams) (*Project, error) {
	if params.ProjectName == "" {
		return nil, fmt.Errorf("%w: project name is required", derrors.ErrInvalidInput)
	}
	if params.Settings.TaskCount <= 0 {
		return nil, fmt.Errorf("%w: task count must be positive", derrors.ErrInvalidInput)
	}

	spec, err := params.filterSpec()
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ids, err := s.resolver.Resolve(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("resolving filters: %w", err)
	}

	var records []TaskRecord
	var launchErr error
	if len(ids) > 0 {
		records, launchErr = s.launcher.Launch(ctx, params.Settings.TaskCount, ids)
		if launchErr != nil && len(records) == 0 {
			return nil, launchErr
		}
	}

	proj, err := s.persistLaunch(params, spec, ids, records)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("project", proj.ID).
		Str("name", proj.Name).
		Int("ids", len(ids)).
		Int("tasks", len(records)).
		Msg("scraping started")

	// A partial launch is persisted but still reported as a failure.
	return proj, launchErr
}

func (s *Service) persistLaunch(params StartParams, spec filter.Spec, ids []int64, records []TaskRecord) (*Project, error) {
	existing, err := s.store.GetProjectByName(params.ProjectName)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		// Merge semantics: ids union, counts sum. queryCount tracks the total
		// work ever submitted under the name, so it can exceed the id union.
		existing.QueryIDs = mergeIDs(existing.QueryIDs, ids)
		existing.QueryCount += len(ids)
		merged := params.Settings
		merged.TaskCount += existing.Settings.TaskCount
		existing.Settings = merged
		existing.Filters = &filter.Spec{}
		*existing.Filters = spec
		existing.Tasks = append(existing.Tasks, records...)
		existing.Status = DeriveStatus(existing.Tasks)

		if err := s.store.UpdateProject(existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	proj := &Project{
		ID:         uuid.NewString(),
		Name:       params.ProjectName,
		Settings:   params.Settings,
		Filters:    &spec,
		QueryIDs:   ids,
		QueryCount: len(ids),
		Tasks:      records,
		Status:     DeriveStatus(records),
	}
	if err := s.store.CreateProject(proj); err != nil {
		return nil, err
	}
	return proj, nil
}

// CreateProject persists a project record without launching any workers.
// The filter selection is resolved so the record carries its id set; an
// existing name merges the same way StartScraping does. Workers are started
// later through StartScraping or per-task actions.
func (s *Service) CreateProject(ctx context.Context, params StartParams) (*Project, error) {
	if params.ProjectName == "" {
		return nil, fmt.Errorf("%w: project name is required", derrors.ErrInvalidInput)
	}

	spec, err := params.filterSpec()
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ids, err := s.resolver.Resolve(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("resolving filters: %w", err)
	}

	proj, err := s.persistLaunch(params, spec, ids, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("project", proj.ID).Str("name", proj.Name).Int("ids", len(ids)).Msg("project created")
	return proj, nil
}

// UpdateProject rewrites a project's name, settings and filter selection.
// A changed filter selection is re-resolved and replaces the stored id set.
// Task records are never touched here.
func (s *Service) UpdateProject(ctx context.Context, id string, params StartParams) (*Project, error) {
	proj, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.ProjectName != "" {
		proj.Name = params.ProjectName
	}
	proj.Settings = params.Settings

	if params.Filters != nil || params.Settings.EntireScraping {
		spec, err := params.filterSpec()
		if err != nil {
			return nil, err
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		ids, err := s.resolver.Resolve(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("resolving filters: %w", err)
		}
		proj.Filters = &spec
		proj.QueryIDs = ids
		proj.QueryCount = len(ids)
	}

	if err := s.store.UpdateProject(proj); err != nil {
		return nil, err
	}
	s.logger.Info().Str("project", proj.ID).Msg("project updated")
	return proj, nil
}

// LocateTask finds the project that owns a task handle.
func (s *Service) LocateTask(ctx context.Context, taskHandle string) (*Project, error) {
	projects, err := s.store.ListProjects()
	if err != nil {
		return nil, err
	}
	for _, proj := range projects {
		if proj.FindTask(taskHandle) != nil {
			return proj, nil
		}
	}
	return nil, fmt.Errorf("%w: task %s", derrors.ErrNotFound, taskHandle)
}

// Get returns a project by id.
func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	proj, err := s.store.GetProject(id)
	if err != nil {
		return nil, err
	}
	if proj == nil {
		return nil, fmt.Errorf("%w: project %s", derrors.ErrNotFound, id)
	}
	return proj, nil
}

// List returns all projects, newest first.
func (s *Service) List(ctx context.Context) ([]*Project, error) {
	return s.store.ListProjects()
}

// Delete removes a project record. Remote tasks are not touched; a project
// with running tasks cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	proj, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if DeriveStatus(proj.Tasks) == StatusRunning {
		return fmt.Errorf("%w: project %s has running tasks", derrors.ErrConflict, id)
	}
	return s.store.DeleteProject(id)
}

// StopTask stops one of the project's tasks. The stored status flips to
// Stopped immediately and is tagged manual, which tells the reconciler not
// to second-guess the stop via log inspection.
func (s *Service) StopTask(ctx context.Context, projectID, taskHandle string) (*Project, error) {
	return s.taskAction(ctx, projectID, taskHandle, TaskStopped, func(ctx context.Context, rec *TaskRecord) error {
		return s.tasks.Stop(ctx, rec.TaskHandle)
	})
}

// StartTask resumes a previously stopped task in place.
func (s *Service) StartTask(ctx context.Context, projectID, taskHandle string) (*Project, error) {
	return s.taskAction(ctx, projectID, taskHandle, TaskRunning, func(ctx context.Context, rec *TaskRecord) error {
		return s.tasks.Resume(ctx, rec.TaskHandle)
	})
}

// RestartTask replaces a task with a fresh one carrying the same input. The
// stored record is rewritten to track the replacement's handle.
func (s *Service) RestartTask(ctx context.Context, projectID, taskHandle string) (*Project, error) {
	return s.taskAction(ctx, projectID, taskHandle, TaskRunning, func(ctx context.Context, rec *TaskRecord) error {
		replacement, err := s.tasks.Restart(ctx, rec.TaskHandle)
		if err != nil {
			return err
		}
		rec.TaskHandle = replacement.TaskHandle
		return nil
	})
}

func (s *Service) taskAction(ctx context.Context, projectID, taskHandle string, target TaskStatus, act func(context.Context, *TaskRecord) error) (*Project, error) {
	proj, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	rec := proj.FindTask(taskHandle)
	if rec == nil {
		return nil, fmt.Errorf("%w: task %s in project %s", derrors.ErrNotFound, taskHandle, projectID)
	}
	if rec.LastStatus.Terminal() {
		return nil, fmt.Errorf("%w: task %s already %s", derrors.ErrConflict, taskHandle, rec.LastStatus)
	}

	if err := act(ctx, rec); err != nil {
		return nil, err
	}

	rec.LastStatus = target
	rec.Controller = ControllerManual
	rec.UpdatedAt = time.Now().UTC()
	proj.Status = DeriveStatus(proj.Tasks)

	if err := s.store.UpdateProjectTasks(proj.ID, proj.Status, proj.Tasks); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("project", proj.ID).
		Str("task", rec.TaskHandle).
		Str("status", string(target)).
		Msg("manual task action applied")
	return proj, nil
}

// mergeIDs unions two id lists, keeping the existing order and appending
// unseen ids in their incoming order.
func mergeIDs(existing, incoming []int64) []int64 {
	seen := make(map[int64]struct{}, len(existing))
	out := make([]int64, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range incoming {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
