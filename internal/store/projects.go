package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
	"github.com/moseshope/scraping-admin-dashboard/internal/filter"
	"github.com/moseshope/scraping-admin-dashboard/internal/project"
)

// projectRow mirrors the projects table with its JSON columns still encoded.
type projectRow struct {
	id         string
	name       string
	status     string
	settings   string
	filters    sql.NullString
	queryIDs   string
	queryCount int
	tasks      string
	createdAt  int64
	updatedAt  int64
}

const projectColumns = `id, name, status, settings, filters, query_ids, query_count, scraping_tasks, created_at, updated_at`

// CreateProject inserts a new project. The project name must be unique; a
// duplicate name fails with ErrConflict (callers merge instead, see the
// project service).
func (s *Store) CreateProject(p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	row, err := encodeProject(p)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO projects (` + projectColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		row.id, row.name, row.status, row.settings, row.filters,
		row.queryIDs, row.queryCount, row.tasks, row.createdAt, row.updatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: project name %q already exists", derrors.ErrConflict, p.Name)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by id. A missing project yields (nil, nil).
func (s *Store) GetProject(id string) (*project.Project, error) {
	return s.getProjectWhere(`id = ?`, id)
}

// GetProjectByName retrieves a project by its unique name. A missing project
// yields (nil, nil).
func (s *Store) GetProjectByName(name string) (*project.Project, error) {
	return s.getProjectWhere(`name = ?`, name)
}

func (s *Store) getProjectWhere(where string, arg any) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row projectRow
	query := `SELECT ` + projectColumns + ` FROM projects WHERE ` + where

	err := s.db.QueryRow(query, arg).Scan(
		&row.id, &row.name, &row.status, &row.settings, &row.filters,
		&row.queryIDs, &row.queryCount, &row.tasks, &row.createdAt, &row.updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return decodeProject(&row)
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects() ([]*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC, id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		var row projectRow
		err := rows.Scan(
			&row.id, &row.name, &row.status, &row.settings, &row.filters,
			&row.queryIDs, &row.queryCount, &row.tasks, &row.createdAt, &row.updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}

		p, err := decodeProject(&row)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// UpdateProject replaces the whole stored project.
func (s *Store) UpdateProject(p *project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = time.Now().UTC()

	row, err := encodeProject(p)
	if err != nil {
		return err
	}

	query := `
	UPDATE projects
	SET name = ?, status = ?, settings = ?, filters = ?, query_ids = ?,
	    query_count = ?, scraping_tasks = ?, updated_at = ?
	WHERE id = ?
	`

	res, err := s.db.Exec(query,
		row.name, row.status, row.settings, row.filters, row.queryIDs,
		row.queryCount, row.tasks, row.updatedAt, row.id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: project name %q already exists", derrors.ErrConflict, p.Name)
		}
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireRowAffected(res, p.ID)
}

// UpdateProjectTasks replaces the project's task list and derived status in
// one UPDATE, so concurrent readers never see a half-written task list.
func (s *Store) UpdateProjectTasks(id string, status project.Status, tasks []project.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tasks == nil {
		tasks = []project.TaskRecord{}
	}
	encoded, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	query := `UPDATE projects SET status = ?, scraping_tasks = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.Exec(query, string(status), string(encoded), time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to update project tasks: %w", err)
	}
	return requireRowAffected(res, id)
}

// DeleteProject removes a project.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireRowAffected(res, id)
}

// isUniqueViolation detects a UNIQUE constraint failure. The sqlite driver
// exposes no typed error for this, so the message is matched.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func requireRowAffected(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: project %s", derrors.ErrNotFound, id)
	}
	return nil
}

func encodeProject(p *project.Project) (*projectRow, error) {
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}

	ids := p.QueryIDs
	if ids == nil {
		ids = []int64{}
	}
	queryIDs, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query ids: %w", err)
	}

	taskList := p.Tasks
	if taskList == nil {
		taskList = []project.TaskRecord{}
	}
	tasks, err := json.Marshal(taskList)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tasks: %w", err)
	}

	row := &projectRow{
		id:         p.ID,
		name:       p.Name,
		status:     string(p.Status),
		settings:   string(settings),
		queryIDs:   string(queryIDs),
		queryCount: p.QueryCount,
		tasks:      string(tasks),
		createdAt:  p.CreatedAt.UnixMilli(),
		updatedAt:  p.UpdatedAt.UnixMilli(),
	}

	if p.Filters != nil {
		filters, err := json.Marshal(p.Filters)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filters: %w", err)
		}
		row.filters = sql.NullString{String: string(filters), Valid: true}
	}
	return row, nil
}

func decodeProject(row *projectRow) (*project.Project, error) {
	p := &project.Project{
		ID:         row.id,
		Name:       row.name,
		Status:     project.Status(row.status),
		QueryCount: row.queryCount,
		CreatedAt:  time.UnixMilli(row.createdAt).UTC(),
		UpdatedAt:  time.UnixMilli(row.updatedAt).UTC(),
	}

	if err := json.Unmarshal([]byte(row.settings), &p.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings for project %s: %w", row.id, err)
	}
	if err := json.Unmarshal([]byte(row.queryIDs), &p.QueryIDs); err != nil {
		return nil, fmt.Errorf("failed to decode query ids for project %s: %w", row.id, err)
	}
	if err := json.Unmarshal([]byte(row.tasks), &p.Tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks for project %s: %w", row.id, err)
	}
	if row.filters.Valid {
		p.Filters = &filter.Spec{}
		if err := json.Unmarshal([]byte(row.filters.String), p.Filters); err != nil {
			return nil, fmt.Errorf("failed to decode filters for project %s: %w", row.id, err)
		}
	}
	return p, nil
}
