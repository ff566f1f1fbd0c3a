package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tasksWith(statuses ...TaskStatus) []TaskRecord {
	out := make([]TaskRecord, len(statuses))
	for i, s := range statuses {
		out[i] = TaskRecord{TaskHandle: "t", LastStatus: s}
	}
	return out
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name  string
		tasks []TaskRecord
		want  Status
	}{
		{"no tasks", nil, StatusPending},
		{"single running", tasksWith(TaskRunning), StatusRunning},
		{"running wins over terminal", tasksWith(TaskSuccessful, TaskFailed, TaskRunning), StatusRunning},
		{"all successful", tasksWith(TaskSuccessful, TaskSuccessful), StatusCompleted},
		{"all failed", tasksWith(TaskFailed, TaskFailed), StatusFailed},
		{"mixed terminal", tasksWith(TaskSuccessful, TaskFailed), StatusPending},
		{"stopped only", tasksWith(TaskStopped), StatusPending},
		{"stopped plus successful", tasksWith(TaskStopped, TaskSuccessful), StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.tasks))
		})
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	assert.True(t, TaskSuccessful.Terminal())
	assert.True(t, TaskFailed.Terminal())
	assert.False(t, TaskRunning.Terminal())
	assert.False(t, TaskStopped.Terminal())
}

func TestProject_FindTask(t *testing.T) {
	p := &Project{Tasks: []TaskRecord{
		{TaskHandle: "a"},
		{TaskHandle: "b"},
	}}

	assert.Nil(t, p.FindTask("missing"))

	rec := p.FindTask("b")
	if assert.NotNil(t, rec) {
		// The pointer must alias the stored record, not a copy.
		rec.LastStatus = TaskFailed
		assert.Equal(t, TaskFailed, p.Tasks[1].LastStatus)
	}
}

func TestProject_TaskHandles(t *testing.T) {
	p := &Project{Tasks: []TaskRecord{{TaskHandle: "a"}, {TaskHandle: "b"}}}
	assert.Equal(t, []string{"a", "b"}, p.TaskHandles())
	assert.Empty(t, (&Project{}).TaskHandles())
}
