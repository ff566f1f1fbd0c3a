package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
	"github.com/moseshope/scraping-admin-dashboard/internal/estimates"
	"github.com/moseshope/scraping-admin-dashboard/internal/filter"
	"github.com/moseshope/scraping-admin-dashboard/internal/project"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "test.db"), zerolog.New(os.Stderr))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleProject(name string) *project.Project {
	return &project.Project{
		ID:     "proj-" + name,
		Name:   name,
		Status: project.StatusPending,
		Settings: project.Settings{
			TaskCount:    3,
			HighPriority: true,
		},
		Filters: &filter.Spec{
			Mode: filter.ModeFiltered,
			States: []filter.StateFilter{{
				State:  "California",
				Cities: []filter.CityFilter{{City: "San Jose", BusinessTypes: []string{"Caterer"}}},
			}},
		},
		QueryIDs:   []int64{10, 11, 12},
		QueryCount: 3,
		Tasks: []project.TaskRecord{{
			TaskHandle:     "scrape-task-aaaa",
			TemplateHandle: "scrape-worker",
			LastStatus:     project.TaskRunning,
			Controller:     project.ControllerAuto,
			IDCount:        3,
		}},
	}
}

func TestCreateAndGetProject(t *testing.T) {
	s := testStore(t)

	p := sampleProject("alpha")
	require.NoError(t, s.CreateProject(p))
	assert.False(t, p.CreatedAt.IsZero())

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.QueryIDs, got.QueryIDs)
	assert.Equal(t, p.Settings, got.Settings)
	require.NotNil(t, got.Filters)
	assert.Equal(t, *p.Filters, *got.Filters)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, project.TaskRunning, got.Tasks[0].LastStatus)
}

func TestGetProject_Missing(t *testing.T) {
	s := testStore(t)

	got, err := s.GetProject("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetProjectByName(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.CreateProject(sampleProject("alpha")))

	got, err := s.GetProjectByName("alpha")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "proj-alpha", got.ID)

	missing, err := s.GetProjectByName("beta")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateProject_DuplicateName(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.CreateProject(sampleProject("alpha")))

	dup := sampleProject("alpha")
	dup.ID = "proj-other"
	assert.ErrorIs(t, s.CreateProject(dup), derrors.ErrConflict)
}

func TestCreateProject_NilCollectionsRoundTrip(t *testing.T) {
	s := testStore(t)

	p := &project.Project{ID: "proj-min", Name: "minimal", Status: project.StatusPending}
	require.NoError(t, s.CreateProject(p))

	got, err := s.GetProject("proj-min")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.QueryIDs)
	assert.Empty(t, got.Tasks)
	assert.Nil(t, got.Filters)
}

func TestListProjects_NewestFirst(t *testing.T) {
	s := testStore(t)

	first := sampleProject("first")
	require.NoError(t, s.CreateProject(first))
	second := sampleProject("second")
	second.ID = "proj-second"
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, s.CreateProject(second))

	list, err := s.ListProjects()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Name)
	assert.Equal(t, "first", list[1].Name)
}

func TestUpdateProject(t *testing.T) {
	s := testStore(t)

	p := sampleProject("alpha")
	require.NoError(t, s.CreateProject(p))

	p.QueryIDs = []int64{1, 2}
	p.QueryCount = 2
	p.Status = project.StatusRunning
	require.NoError(t, s.UpdateProject(p))

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got.QueryIDs)
	assert.Equal(t, project.StatusRunning, got.Status)
}

func TestUpdateProject_Missing(t *testing.T) {
	s := testStore(t)
	assert.ErrorIs(t, s.UpdateProject(sampleProject("ghost")), derrors.ErrNotFound)
}

func TestUpdateProjectTasks(t *testing.T) {
	s := testStore(t)

	p := sampleProject("alpha")
	require.NoError(t, s.CreateProject(p))

	tasks := []project.TaskRecord{
		{TaskHandle: "scrape-task-aaaa", LastStatus: project.TaskSuccessful, Controller: project.ControllerAuto},
		{TaskHandle: "scrape-task-bbbb", LastStatus: project.TaskSuccessful, Controller: project.ControllerAuto},
	}
	require.NoError(t, s.UpdateProjectTasks(p.ID, project.StatusCompleted, tasks))

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Equal(t, project.StatusCompleted, got.Status)
	require.Len(t, got.Tasks, 2)
	assert.Equal(t, project.TaskSuccessful, got.Tasks[1].LastStatus)

	// The untouched columns survive the task update.
	assert.Equal(t, []int64{10, 11, 12}, got.QueryIDs)
}

func TestUpdateProjectTasks_Missing(t *testing.T) {
	s := testStore(t)
	err := s.UpdateProjectTasks("nope", project.StatusPending, nil)
	assert.ErrorIs(t, err, derrors.ErrNotFound)
}

func TestDeleteProject(t *testing.T) {
	s := testStore(t)

	p := sampleProject("alpha")
	require.NoError(t, s.CreateProject(p))
	require.NoError(t, s.DeleteProject(p.ID))

	got, err := s.GetProject(p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.DeleteProject(p.ID), derrors.ErrNotFound)
}

func seedEstimates(t *testing.T, s *Store) {
	t.Helper()
	err := s.InsertEstimates(context.Background(), []estimates.Estimate{
		{ID: 10, State: "California", City: "San Jose", Category: "Caterer", Count: 5},
		{ID: 11, State: "California", City: "San Jose", Category: "Florist", Count: 2},
		{ID: 12, State: "California", City: "Oakland", Category: "Caterer", Count: 1},
		{ID: 20, State: "Nevada", City: "Reno", Category: "Plumber", Count: 9},
	})
	require.NoError(t, err)
}

func TestEstimates_Scans(t *testing.T) {
	s := testStore(t)
	seedEstimates(t, s)
	q := s.Estimates()
	ctx := context.Background()

	all, err := q.ScanAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	// Keyset pagination yields ascending id order.
	assert.Equal(t, int64(10), all[0].ID)
	assert.Equal(t, int64(20), all[3].ID)

	ca, err := q.ScanByState(ctx, "California")
	require.NoError(t, err)
	assert.Len(t, ca, 3)

	sj, err := q.ScanByStateCity(ctx, "California", "San Jose")
	require.NoError(t, err)
	assert.Len(t, sj, 2)

	none, err := q.ScanByState(ctx, "Atlantis")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEstimates_Distinct(t *testing.T) {
	s := testStore(t)
	seedEstimates(t, s)
	q := s.Estimates()
	ctx := context.Background()

	states, err := q.UniqueStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"California", "Nevada"}, states)

	cities, err := q.CitiesInState(ctx, "California")
	require.NoError(t, err)
	assert.Equal(t, []string{"Oakland", "San Jose"}, cities)
}

func TestInsertEstimates_UpsertsAndCounts(t *testing.T) {
	s := testStore(t)
	seedEstimates(t, s)
	ctx := context.Background()

	// Re-inserting an existing id replaces the row instead of duplicating it.
	err := s.InsertEstimates(ctx, []estimates.Estimate{
		{ID: 10, State: "California", City: "San Jose", Category: "Caterer", Count: 99},
	})
	require.NoError(t, err)

	n, err := s.CountEstimates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	all, err := s.Estimates().ScanAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(99), all[0].Count)
}

func TestInsertEstimates_EmptyBatch(t *testing.T) {
	s := testStore(t)
	assert.NoError(t, s.InsertEstimates(context.Background(), nil))
}
