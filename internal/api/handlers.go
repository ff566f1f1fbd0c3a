package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
	"github.com/moseshope/scraping-admin-dashboard/internal/estimates"
	"github.com/moseshope/scraping-admin-dashboard/internal/filter"
	"github.com/moseshope/scraping-admin-dashboard/internal/health"
	"github.com/moseshope/scraping-admin-dashboard/internal/logs"
	"github.com/moseshope/scraping-admin-dashboard/internal/project"
	"github.com/moseshope/scraping-admin-dashboard/internal/reconcile"
)

// ProjectService is the project operation surface the handlers call.
type ProjectService interface {
	StartScraping(ctx context.Context, params project.StartParams) (*project.Project, error)
	CreateProject(ctx context.Context, params project.StartParams) (*project.Project, error)
	UpdateProject(ctx context.Context, id string, params project.StartParams) (*project.Project, error)
	Get(ctx context.Context, id string) (*project.Project, error)
	List(ctx context.Context) ([]*project.Project, error)
	Delete(ctx context.Context, id string) error
	LocateTask(ctx context.Context, taskHandle string) (*project.Project, error)
	StopTask(ctx context.Context, projectID, taskHandle string) (*project.Project, error)
	StartTask(ctx context.Context, projectID, taskHandle string) (*project.Project, error)
	RestartTask(ctx context.Context, projectID, taskHandle string) (*project.Project, error)
}

// FilterResolver resolves filter specs to estimate ids.
type FilterResolver interface {
	Resolve(ctx context.Context, spec filter.Spec) ([]int64, error)
}

// PerformanceReporter produces the combined status and utilization report.
type PerformanceReporter interface {
	Performance(ctx context.Context, start, end time.Time) ([]reconcile.ProjectPerformance, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	projects  ProjectService
	resolver  FilterResolver
	dataset   estimates.Query
	perf      PerformanceReporter
	logs      logs.Reader
	checker   *health.Checker
	logTail   int
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandlers creates a Handlers instance.
func NewHandlers(projects ProjectService, resolver FilterResolver, dataset estimates.Query, perf PerformanceReporter, reader logs.Reader, checker *health.Checker, logTail int, logger zerolog.Logger) *Handlers {
	if logTail <= 0 {
		logTail = 200
	}
	return &Handlers{
		projects:  projects,
		resolver:  resolver,
		dataset:   dataset,
		perf:      perf,
		logs:      reader,
		checker:   checker,
		logTail:   logTail,
		logger:    logger.With().Str("component", "handlers").Logger(),
		startTime: time.Now(),
	}
}

// ListStates handles GET /api/v1/estimates/states.
func (h *Handlers) ListStates(c *fiber.Ctx) error {
	states, err := h.dataset.UniqueStates(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	if states == nil {
		states = []string{}
	}
	return c.JSON(StatesResponse{States: states})
}

// ListCities handles GET /api/v1/estimates/cities?state=X.
func (h *Handlers) ListCities(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_state", "Bad Request",
			"Query parameter state is required")
	}

	cities, err := h.dataset.CitiesInState(c.Context(), state)
	if err != nil {
		return serviceError(c, err)
	}
	if cities == nil {
		cities = []string{}
	}
	return c.JSON(CitiesResponse{State: state, Cities: cities})
}

// ResolveQueryIDs handles POST /api/v1/estimates/query-ids. It resolves a
// filter selection without launching anything, for UI previews.
func (h *Handlers) ResolveQueryIDs(c *fiber.Ctx) error {
	var req QueryIDsRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	ids, err := h.resolver.Resolve(c.Context(), req.Filters)
	if err != nil {
		return serviceError(c, err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return c.JSON(QueryIDsResponse{QueryIDs: ids, Count: len(ids)})
}

// StartScraping handles POST /api/v1/scraping/start.
func (h *Handlers) StartScraping(c *fiber.Ctx) error {
	var req StartScrapingRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	proj, err := h.projects.StartScraping(c.Context(), project.StartParams{
		ProjectName: req.ProjectName,
		Settings:    req.Settings,
		Filters:     req.Filters,
	})
	if err != nil {
		// A partial launch still carries the persisted project.
		if proj != nil {
			return c.Status(fiber.StatusBadGateway).JSON(ProjectResponse{Project: proj})
		}
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ProjectResponse{Project: proj})
}

// Performance handles GET /api/v1/scraping/performance.
func (h *Handlers) Performance(c *fiber.Ctx) error {
	end := time.Now().UTC()
	start := end.Add(-time.Hour)

	if v := c.Query("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_start", "Bad Request",
				"start must be RFC 3339: "+err.Error())
		}
		start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_end", "Bad Request",
				"end must be RFC 3339: "+err.Error())
		}
		end = t
	}
	if !end.After(start) {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_window", "Bad Request",
			"end must be after start")
	}

	report, err := h.perf.Performance(c.Context(), start, end)
	if err != nil {
		return serviceError(c, err)
	}
	if report == nil {
		report = []reconcile.ProjectPerformance{}
	}
	return c.JSON(PerformanceResponse{Start: start, End: end, Projects: report})
}

// HealthDetail handles GET /api/v1/health.
func (h *Handlers) HealthDetail(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())

	integrations := make(map[string]string, len(results))
	overall := "ok"
	for name, status := range results {
		integrations[name] = string(status)
		if status == health.StatusDown {
			overall = "degraded"
		}
	}

	return c.JSON(HealthDetailResponse{
		Status:       overall,
		Integrations: integrations,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Version:      "1.0.0",
	})
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if !h.checker.IsReady(c.Context()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// serviceError maps sentinel errors to problem responses.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case derrors.Is(err, derrors.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_input", "Bad Request", err.Error())
	case derrors.Is(err, derrors.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", err.Error())
	case derrors.Is(err, derrors.ErrConflict):
		return problemResponse(c, fiber.StatusConflict,
			"conflict", "Conflict", err.Error())
	case derrors.Is(err, derrors.ErrUnavailable), derrors.Is(err, derrors.ErrTimeout):
		return problemResponse(c, fiber.StatusBadGateway,
			"upstream_unavailable", "Bad Gateway", err.Error())
	default:
		return problemResponse(c, fiber.StatusInternalServerError,
			"internal_error", "Internal Server Error", err.Error())
	}
}
