package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SERVER_HOST", "SERVER_PORT", "DATASET_PATHS", "FOREST_TREES", "FOREST_SEED", "FORM_ENABLED", "PREDICTION_LOG_ENABLED", "JWT_EXPIRY_HOURS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
	assert.Nil(t, cfg.DatasetPaths)
	assert.Equal(t, 50, cfg.ForestTrees)
	assert.Equal(t, int64(42), cfg.ForestSeed)
	assert.True(t, cfg.FormEnabled)
	assert.False(t, cfg.PredictionLogEnabled)
	assert.Equal(t, 12*time.Hour, cfg.JWTExpiry)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("DATASET_PATHS", " a.csv, ,b.csv ")
	t.Setenv("FOREST_TREES", "10")
	t.Setenv("FOREST_SEED", "not-a-number")
	t.Setenv("FORM_ENABLED", "false")
	t.Setenv("PREDICTION_LOG_ENABLED", "yes")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := Load()
	assert.Equal(t, "8081", cfg.ServerPort)
	assert.Equal(t, []string{"a.csv", "b.csv"}, cfg.DatasetPaths)
	assert.Equal(t, 10, cfg.ForestTrees)
	assert.Equal(t, int64(42), cfg.ForestSeed)
	assert.False(t, cfg.FormEnabled)
	// ParseBool does not accept "yes"; the default wins.
	assert.False(t, cfg.PredictionLogEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
