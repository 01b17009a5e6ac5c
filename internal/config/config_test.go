package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Engine.Authority = "0x00000000000000000000000000000000000000AA"
	cfg.Engine.Escrow = "0x00000000000000000000000000000000000000EE"
	return cfg
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	// Defaults alone fail: the engine identities are mandatory.
	bare := Defaults()
	require.Error(t, bare.Validate())
}

func TestValidateRejectsSharedIdentity(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.Escrow = cfg.Engine.Authority
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct")
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "turbo"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EASYBET_ENGINE_AUTHORITY", "0x00000000000000000000000000000000000000AA")
	t.Setenv("EASYBET_SERVER_PORT", "9100")
	t.Setenv("EASYBET_POSTGRES_ENABLED", "false")
	t.Setenv("EASYBET_REDIS_SNAPSHOT_TTL", "2m")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "0x00000000000000000000000000000000000000AA", cfg.Engine.Authority)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.False(t, cfg.Postgres.Enabled)
	assert.Equal(t, "2m0s", cfg.Redis.SnapshotTTL.String())
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "sekrit"
	cfg.Redis.Password = ""

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "", red.Redis.Password, "empty secrets stay empty")
	assert.Equal(t, "hunter2", cfg.Postgres.Password, "original untouched")
}
