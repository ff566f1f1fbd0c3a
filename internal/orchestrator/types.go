// Package orchestrator abstracts the container-orchestration platform that
// runs scraping worker tasks. One remote task corresponds to one Kubernetes
// Job stamped out from a shared worker pod template.
package orchestrator

import (
	"context"
	"time"
)

// Lifecycle is the coarse remote task lifecycle as exposed by the platform.
// It cannot distinguish "stopped because finished" from "stopped because
// asked to"; logs are consulted for that (see the reconcile package).
type Lifecycle string

const (
	LifecycleProvisioning Lifecycle = "PROVISIONING"
	LifecycleRunning      Lifecycle = "RUNNING"
	LifecycleStopped      Lifecycle = "STOPPED"
	LifecycleFailed       Lifecycle = "FAILED"
)

// Container describes one container of a remote task.
type Container struct {
	Name       string `json:"name"`
	Image      string `json:"image"`
	LastStatus string `json:"lastStatus"`
}

// RemoteTask is the platform's view of one worker task. The service holds a
// cached, possibly stale copy; the platform owns the truth.
type RemoteTask struct {
	TaskHandle     string      `json:"taskHandle"`
	TemplateHandle string      `json:"templateHandle"`
	Lifecycle      Lifecycle   `json:"lifecycleStatus"`
	DesiredStatus  string      `json:"desiredStatus"`
	CreatedAt      time.Time   `json:"createdAt"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
	StoppedAt      *time.Time  `json:"stoppedAt,omitempty"`
	Containers     []Container `json:"containers"`
}

// Platform is the orchestration surface the core depends on. Launch is not
// idempotent and must not be retried blindly; the remaining operations are
// safe to retry.
type Platform interface {
	// EnsureTemplate resolves the reusable worker template handle, creating
	// the template once if it does not exist yet.
	EnsureTemplate(ctx context.Context) (string, error)

	// Launch starts one remote task from the template, passing payload as the
	// task's opaque input parameter. The returned task's lifecycle is a
	// transient starting state, not yet authoritative.
	Launch(ctx context.Context, templateHandle string, payload []byte) (*RemoteTask, error)

	// Stop requests the task to stop. The task remains describable.
	Stop(ctx context.Context, taskHandle string) error

	// Resume restarts a previously stopped task in place.
	Resume(ctx context.Context, taskHandle string) error

	// Restart stops the task and launches a replacement with the same input
	// parameters, returning the replacement's descriptor.
	Restart(ctx context.Context, taskHandle string) (*RemoteTask, error)

	// Describe returns descriptors for the given handles. Handles unknown to
	// the platform are omitted from the result, not errors.
	Describe(ctx context.Context, taskHandles []string) ([]RemoteTask, error)

	// ListHandles returns the handles of all managed tasks in the given
	// lifecycle, or all managed tasks when lifecycle is empty.
	ListHandles(ctx context.Context, lifecycle Lifecycle) ([]string, error)
}
