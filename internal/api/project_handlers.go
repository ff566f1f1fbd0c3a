package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/moseshope/scraping-admin-dashboard/internal/project"
)

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	projects, err := h.projects.List(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	return c.JSON(ProjectListResponse{Projects: projects, Total: len(projects)})
}

// CreateProject handles POST /api/v1/projects. The record is created (or
// merged into an existing project of the same name) without launching any
// workers.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var req ProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	proj, err := h.projects.CreateProject(c.Context(), project.StartParams{
		ProjectName: req.ProjectName,
		Settings:    req.Settings,
		Filters:     req.Filters,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ProjectResponse{Project: proj})
}

// UpdateProject handles PUT /api/v1/projects/:id.
func (h *Handlers) UpdateProject(c *fiber.Ctx) error {
	var req ProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	proj, err := h.projects.UpdateProject(c.Context(), c.Params("id"), project.StartParams{
		ProjectName: req.ProjectName,
		Settings:    req.Settings,
		Filters:     req.Filters,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(ProjectResponse{Project: proj})
}

// GetProject handles GET /api/v1/projects/:id.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	proj, err := h.projects.Get(c.Context(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(ProjectResponse{Project: proj})
}

// DeleteProject handles DELETE /api/v1/projects/:id.
func (h *Handlers) DeleteProject(c *fiber.Ctx) error {
	if err := h.projects.Delete(c.Context(), c.Params("id")); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// StopTask handles POST /api/v1/projects/:id/tasks/:handle/stop.
func (h *Handlers) StopTask(c *fiber.Ctx) error {
	proj, err := h.projects.StopTask(c.Context(), c.Params("id"), c.Params("handle"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(ProjectResponse{Project: proj})
}

// StartTask handles POST /api/v1/projects/:id/tasks/:handle/start.
func (h *Handlers) StartTask(c *fiber.Ctx) error {
	proj, err := h.projects.StartTask(c.Context(), c.Params("id"), c.Params("handle"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(ProjectResponse{Project: proj})
}

// RestartTask handles POST /api/v1/projects/:id/tasks/:handle/restart.
func (h *Handlers) RestartTask(c *fiber.Ctx) error {
	proj, err := h.projects.RestartTask(c.Context(), c.Params("id"), c.Params("handle"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(ProjectResponse{Project: proj})
}

// StopTaskByHandle handles POST /api/v1/tasks/:handle/stop. The owning
// project is located by handle.
func (h *Handlers) StopTaskByHandle(c *fiber.Ctx) error {
	return h.taskByHandle(c, h.projects.StopTask)
}

// StartTaskByHandle handles POST /api/v1/tasks/:handle/start.
func (h *Handlers) StartTaskByHandle(c *fiber.Ctx) error {
	return h.taskByHandle(c, h.projects.StartTask)
}

// RestartTaskByHandle handles POST /api/v1/tasks/:handle/restart.
func (h *Handlers) RestartTaskByHandle(c *fiber.Ctx) error {
	return h.taskByHandle(c, h.projects.RestartTask)
}

func (h *Handlers) taskByHandle(c *fiber.Ctx, act func(ctx context.Context, projectID, taskHandle string) (*project.Project, error)) error {
	handle := c.Params("handle")
	proj, err := h.projects.LocateTask(c.Context(), handle)
	if err != nil {
		return serviceError(c, err)
	}
	proj, err = act(c.Context(), proj.ID, handle)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(ProjectResponse{Project: proj})
}

// TaskLogs handles GET /api/v1/tasks/:handle/logs.
func (h *Handlers) TaskLogs(c *fiber.Ctx) error {
	handle := c.Params("handle")
	tail := c.QueryInt("tail", h.logTail)
	if tail <= 0 || tail > 10000 {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_tail", "Bad Request",
			"tail must be between 1 and 10000")
	}

	lines, err := h.logs.FetchLogs(c.Context(), handle, tail)
	if err != nil {
		return serviceError(c, err)
	}
	if lines == nil {
		lines = []string{}
	}
	return c.JSON(TaskLogsResponse{TaskHandle: handle, Lines: lines})
}
