// Package project defines scraping projects: a named batch of resolved
// estimate ids, the settings used to launch them, and the remote tasks
// working through them.
package project

import (
	"time"

	"github.com/moseshope/scraping-admin-dashboard/internal/filter"
)

// TaskStatus is the service-level status of one remote scraping task. It is
// richer than the platform lifecycle: Successful and Failed are verdicts
// derived from the task's log output, and once reached they never change.
type TaskStatus string

const (
	TaskRunning    TaskStatus = "Running"
	TaskStopped    TaskStatus = "Stopped"
	TaskSuccessful TaskStatus = "Successful"
	TaskFailed     TaskStatus = "Failed"
)

// Terminal reports whether the status is immutable.
func (s TaskStatus) Terminal() bool {
	return s == TaskSuccessful || s == TaskFailed
}

// Controller records who caused the task's latest status: the reconciler
// observing the platform, or an operator action through the API. A manual
// stop skips the log inspection an automatic stop would trigger.
type Controller string

const (
	ControllerAuto   Controller = "auto"
	ControllerManual Controller = "manual"
)

// TaskRecord is the stored view of one remote task within a project.
type TaskRecord struct {
	TaskHandle     string     `json:"taskHandle"`
	TemplateHandle string     `json:"templateHandle"`
	LastStatus     TaskStatus `json:"lastStatus"`
	Controller     Controller `json:"controller"`
	IDCount        int        `json:"idCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Settings captures the launch parameters a project was created with.
type Settings struct {
	EntireScraping bool   `json:"entireScraping"`
	HighPriority   bool   `json:"highPriority"`
	TaskCount      int    `json:"taskCount"`
	StartDate      string `json:"startDate,omitempty"`
	CustomQuery    string `json:"customQuery,omitempty"`
}

// Status is the project-level status derived from the project's tasks.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Project is one scraping project.
type Project struct {
	ID         string       `json:"id"`
	Name       string       `json:"projectName"`
	Status     Status       `json:"status"`
	Settings   Settings     `json:"settings"`
	Filters    *filter.Spec `json:"filters,omitempty"`
	QueryIDs   []int64      `json:"queryIds"`
	QueryCount int          `json:"queryCount"`
	Tasks      []TaskRecord `json:"scrapingTasks"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// DeriveStatus computes the project status from its task statuses. Any
// running task makes the project running; otherwise all-successful means
// completed and all-failed means failed. Everything else, including a
// project with no tasks yet, is pending.
func DeriveStatus(tasks []TaskRecord) Status {
	if len(tasks) == 0 {
		return StatusPending
	}

	allSuccessful := true
	allFailed := true
	for _, t := range tasks {
		if t.LastStatus == TaskRunning {
			return StatusRunning
		}
		if t.LastStatus != TaskSuccessful {
			allSuccessful = false
		}
		if t.LastStatus != TaskFailed {
			allFailed = false
		}
	}

	switch {
	case allSuccessful:
		return StatusCompleted
	case allFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// TaskHandles returns the handles of the project's tasks in stored order.
func (p *Project) TaskHandles() []string {
	handles := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		handles = append(handles, t.TaskHandle)
	}
	return handles
}

// FindTask returns a pointer into Tasks for the given handle, or nil.
func (p *Project) FindTask(handle string) *TaskRecord {
	for i := range p.Tasks {
		if p.Tasks[i].TaskHandle == handle {
			return &p.Tasks[i]
		}
	}
	return nil
}
