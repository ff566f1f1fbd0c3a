package health

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestChecker_RunAll(t *testing.T) {
	c := NewChecker(zerolog.New(os.Stderr))
	c.Register("database", func(ctx context.Context) Status { return StatusOK })
	c.Register("orchestration", func(ctx context.Context) Status { return StatusDown })

	results := c.RunAll(context.Background())
	assert.Equal(t, StatusOK, results["database"])
	assert.Equal(t, StatusDown, results["orchestration"])
}

func TestChecker_IsReady(t *testing.T) {
	c := NewChecker(zerolog.New(os.Stderr))
	assert.True(t, c.IsReady(context.Background()), "no checks means ready")

	c.Register("database", func(ctx context.Context) Status { return StatusOK })
	assert.True(t, c.IsReady(context.Background()))

	c.Register("orchestration", func(ctx context.Context) Status { return StatusDown })
	assert.False(t, c.IsReady(context.Background()))
}
