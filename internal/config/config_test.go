package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(New())

	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, "postgres", cfg.DatastoreEngine)
	assert.Equal(t, 10*time.Second, cfg.MutationTimeout)
	assert.Equal(t, 4, cfg.EffectsWorkers)
	assert.Equal(t, 256, cfg.EffectsQueue)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.InsecureJWTSecret())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TASKFLOW_DATASTORE_ENGINE", "sqlite")
	t.Setenv("TASKFLOW_MUTATION_TIMEOUT", "250ms")
	t.Setenv("TASKFLOW_EFFECTS_WORKERS", "9")
	t.Setenv("TASKFLOW_LOG_LEVEL", "debug")
	t.Setenv("TASKFLOW_JWT_SECRET", "a-long-random-secret")

	cfg := Load(New())

	assert.Equal(t, "sqlite", cfg.DatastoreEngine)
	assert.Equal(t, 250*time.Millisecond, cfg.MutationTimeout)
	assert.Equal(t, 9, cfg.EffectsWorkers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.InsecureJWTSecret())
}

func TestBlankJWTSecretIsInsecure(t *testing.T) {
	assert.True(t, Config{JWTSecret: "  "}.InsecureJWTSecret())
}
