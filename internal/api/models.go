package api

import (
	"time"

	"github.com/moseshope/scraping-admin-dashboard/internal/filter"
	"github.com/moseshope/scraping-admin-dashboard/internal/project"
	"github.com/moseshope/scraping-admin-dashboard/internal/reconcile"
)

// ProblemDetail is an RFC 7807 problem response body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// StartScrapingRequest starts a scraping project.
type StartScrapingRequest struct {
	ProjectName string           `json:"projectName"`
	Settings    project.Settings `json:"settings"`
	Filters     *filter.Spec     `json:"filters,omitempty"`
}

// ProjectRequest creates or updates a project record without launching
// workers. It carries the same shape as StartScrapingRequest.
type ProjectRequest struct {
	ProjectName string           `json:"projectName"`
	Settings    project.Settings `json:"settings"`
	Filters     *filter.Spec     `json:"filters,omitempty"`
}

// QueryIDsRequest resolves a filter spec without launching anything.
type QueryIDsRequest struct {
	Filters filter.Spec `json:"filters"`
}

// QueryIDsResponse carries a resolved id set.
type QueryIDsResponse struct {
	QueryIDs []int64 `json:"queryIds"`
	Count    int     `json:"count"`
}

// StatesResponse lists the distinct states of the reference dataset.
type StatesResponse struct {
	States []string `json:"states"`
}

// CitiesResponse lists the distinct cities of one state.
type CitiesResponse struct {
	State  string   `json:"state"`
	Cities []string `json:"cities"`
}

// ProjectResponse wraps a single project.
type ProjectResponse struct {
	Project *project.Project `json:"project"`
}

// ProjectListResponse wraps the project list.
type ProjectListResponse struct {
	Projects []*project.Project `json:"projects"`
	Total    int                `json:"total"`
}

// TaskLogsResponse carries recent log lines of one task.
type TaskLogsResponse struct {
	TaskHandle string   `json:"taskHandle"`
	Lines      []string `json:"lines"`
}

// PerformanceResponse is the combined status and utilization report.
type PerformanceResponse struct {
	Start    time.Time                      `json:"start"`
	End      time.Time                      `json:"end"`
	Projects []reconcile.ProjectPerformance `json:"projects"`
}

// HealthDetailResponse reports per-dependency health.
type HealthDetailResponse struct {
	Status       string            `json:"status"`
	Integrations map[string]string `json:"integrations"`
	Uptime       string            `json:"uptime"`
	Version      string            `json:"version"`
}
