package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 32<<20, cfg.Server.BodyLimit)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 10, cfg.Report.TopN)
	assert.Empty(t, cfg.Report.ExcludedStatuses)
	assert.Empty(t, cfg.Fetch.AllowedHosts)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IDEABANK_SERVER_ADDR", ":9090")
	t.Setenv("IDEABANK_LOG_LEVEL", "debug")
	t.Setenv("IDEABANK_FETCH_TIMEOUT", "5s")
	t.Setenv("IDEABANK_REPORT_TOP_N", "3")
	t.Setenv("IDEABANK_REPORT_EXCLUDED_STATUSES", "Rejected,Duplicate")
	t.Setenv("IDEABANK_FETCH_ALLOWED_HOSTS", "docs.example.com,10.0.0.5:8080")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 3, cfg.Report.TopN)
	assert.Equal(t, []string{"Rejected", "Duplicate"}, cfg.Report.ExcludedStatuses)
	assert.Equal(t, []string{"docs.example.com", "10.0.0.5:8080"}, cfg.Fetch.AllowedHosts)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("IDEABANK_REPORT_TOP_N=7\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("IDEABANK_REPORT_TOP_N") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Report.TopN)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"log level", "IDEABANK_LOG_LEVEL", "verbose"},
		{"log format", "IDEABANK_LOG_FORMAT", "xml"},
		{"negative top n", "IDEABANK_REPORT_TOP_N", "-1"},
		{"zero body limit", "IDEABANK_SERVER_BODY_LIMIT", "0"},
		{"not a duration", "IDEABANK_FETCH_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(noEnvFile(t))
			assert.Error(t, err)
		})
	}
}
