package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "postgres://localhost/ledger", cfg.DatabaseURL)
	assert.Equal(t, "dev-secret-change-in-production", cfg.JWTSecret)
	assert.Equal(t, 4, cfg.Automation.MaxParallelRules)
	assert.Equal(t, 2*time.Second, cfg.Automation.SlowExecutionThreshold)
	assert.InDelta(t, 0.95, cfg.Reconciliation.DuplicateThreshold, 1e-9)
	assert.InDelta(t, 0.001, cfg.Reconciliation.Epsilon, 1e-9)
	assert.False(t, cfg.Reconciliation.AutoFixUnbalanced)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_PrefixedOverrides(t *testing.T) {
	t.Setenv("FINTERA_DATABASE_URL", "postgres://db/prefixed")
	t.Setenv("DATABASE_URL", "postgres://db/legacy")
	t.Setenv("FINTERA_AUTOMATION_MAX_PARALLEL_RULES", "1")
	t.Setenv("FINTERA_RECONCILIATION_AUTO_FIX_UNBALANCED", "true")
	t.Setenv("FINTERA_SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://db/prefixed", cfg.DatabaseURL)
	assert.Equal(t, 1, cfg.Automation.MaxParallelRules)
	assert.True(t, cfg.Reconciliation.AutoFixUnbalanced)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{}},
		{"production without jwt secret", map[string]string{
			"DATABASE_URL":               "postgres://x",
			"FINTERA_SERVER_ENVIRONMENT": "production",
		}},
		{"threshold out of range", map[string]string{
			"DATABASE_URL":                               "postgres://x",
			"FINTERA_RECONCILIATION_DUPLICATE_THRESHOLD": "1.5",
		}},
		{"epsilon too loose", map[string]string{
			"DATABASE_URL":                   "postgres://x",
			"FINTERA_RECONCILIATION_EPSILON": "0.5",
		}},
		{"s3 without bucket", map[string]string{
			"DATABASE_URL":           "postgres://x",
			"FINTERA_STORAGE_DRIVER": "s3",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv("FINTERA_DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
