package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
	"github.com/moseshope/scraping-admin-dashboard/internal/metrics"
	"github.com/moseshope/scraping-admin-dashboard/internal/orchestrator"
	"github.com/moseshope/scraping-admin-dashboard/internal/project"
)

// fakePlatform records launches and can fail the Nth one.
type fakePlatform struct {
	orchestrator.Platform
	payloads    [][]byte
	failAtIndex int // -1 = never fail
	ensureErr   error
}

func (f *fakePlatform) EnsureTemplate(ctx context.Context) (string, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	return "scrape-worker", nil
}

func (f *fakePlatform) Launch(ctx context.Context, templateHandle string, payload []byte) (*orchestrator.RemoteTask, error) {
	if f.failAtIndex >= 0 && len(f.payloads) == f.failAtIndex {
		return nil, derrors.ErrUnavailable
	}
	f.payloads = append(f.payloads, payload)
	return &orchestrator.RemoteTask{
		TaskHandle:     fmt.Sprintf("scrape-task-%04d", len(f.payloads)),
		TemplateHandle: templateHandle,
		Lifecycle:      orchestrator.LifecycleProvisioning,
	}, nil
}

func newLauncher(p orchestrator.Platform) *Launcher {
	return New(p, metrics.New(), zerolog.New(os.Stderr))
}

func seq(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestLaunch_PartitionsAcrossTasks(t *testing.T) {
	p := &fakePlatform{failAtIndex: -1}
	l := newLauncher(p)

	records, err := l.Launch(context.Background(), 3, seq(10))
	require.NoError(t, err)
	require.Len(t, records, 3)

	var seen []int64
	for i, raw := range p.payloads {
		var payload Payload
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, i, payload.TaskIndex)
		assert.Equal(t, 3, payload.TaskCount)
		assert.Equal(t, len(payload.QueryIDs), records[i].IDCount)
		seen = append(seen, payload.QueryIDs...)
	}
	assert.Equal(t, seq(10), seen, "every id must be covered exactly once")

	for _, rec := range records {
		assert.Equal(t, project.TaskRunning, rec.LastStatus)
		assert.Equal(t, project.ControllerAuto, rec.Controller)
		assert.Equal(t, "scrape-worker", rec.TemplateHandle)
	}
}

func TestLaunch_FewerIdsThanTasks(t *testing.T) {
	p := &fakePlatform{failAtIndex: -1}
	l := newLauncher(p)

	records, err := l.Launch(context.Background(), 5, seq(2))
	require.NoError(t, err)
	assert.Len(t, records, 2, "no empty tasks are launched")
}

func TestLaunch_InvalidInput(t *testing.T) {
	l := newLauncher(&fakePlatform{failAtIndex: -1})

	_, err := l.Launch(context.Background(), 0, seq(5))
	assert.ErrorIs(t, err, derrors.ErrInvalidInput)

	_, err = l.Launch(context.Background(), 3, nil)
	assert.ErrorIs(t, err, derrors.ErrInvalidInput)
}

func TestLaunch_EnsureTemplateFailure(t *testing.T) {
	l := newLauncher(&fakePlatform{ensureErr: errors.New("boom")})

	records, err := l.Launch(context.Background(), 3, seq(5))
	assert.Error(t, err)
	assert.Empty(t, records)
}

func TestLaunch_PartialFailureReturnsStartedTasks(t *testing.T) {
	p := &fakePlatform{failAtIndex: 2}
	l := newLauncher(p)

	records, err := l.Launch(context.Background(), 3, seq(9))
	require.Error(t, err)
	assert.ErrorIs(t, err, derrors.ErrUnavailable)
	// Two tasks started before the failure; the caller must get them so the
	// running workers are not orphaned.
	assert.Len(t, records, 2)
}
