package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadOverridesFromFlags(t *testing.T) {
	cfg, err := Load([]string{
		"--backend.driver", "leveldb",
		"--backend.path", "/tmp/statedb",
		"--execution.stack_limit", "64",
		"--pipeline.max_queue_size", "8",
	})
	require.NoError(t, err)
	require.Equal(t, DriverLevel, cfg.BackendDriver)
	require.Equal(t, "/tmp/statedb", cfg.BackendPath)
	require.Equal(t, 64, cfg.StackLimit)
	require.Equal(t, 8, cfg.MaxQueueSize)
}
