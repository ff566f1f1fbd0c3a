package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "none")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "scraping", cfg.WorkerNamespace)
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, "All estimates processed successfully", cfg.SuccessMarker)
	assert.Equal(t, 25, cfg.SeedChunkSize)
	assert.False(t, cfg.SlackEnabled())
	assert.False(t, cfg.MetricsEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RECONCILE_INTERVAL", "5s")
	t.Setenv("WORKER_NAMESPACE", "scrape-prod")
	t.Setenv("PROMETHEUS_URL", "http://prom:9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "jwt", cfg.AuthMode)
	assert.Equal(t, 5*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, "scrape-prod", cfg.WorkerNamespace)
	assert.True(t, cfg.MetricsEnabled())
}

func TestValidate_AuthCombinations(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"none mode", Config{AuthMode: "none", ReconcileInterval: time.Second}, false},
		{"api-key with key", Config{AuthMode: "api-key", APIKey: "k", ReconcileInterval: time.Second}, false},
		{"api-key without key", Config{AuthMode: "api-key", ReconcileInterval: time.Second}, true},
		{"jwt without secret", Config{AuthMode: "jwt", ReconcileInterval: time.Second}, true},
		{"unknown mode", Config{AuthMode: "basic", ReconcileInterval: time.Second}, true},
		{"bad interval", Config{AuthMode: "none", ReconcileInterval: 0}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
