package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/binpack/xerrors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "binpack.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[solver]
max_iterations = 250
lp_backend = "gonum"

[rounding]
strategy = "spectrum"
seed = 7
trials = 5
repair = true

[batch]
workers = 4
heuristics = ["ffd", "hk"]

[server]
addr = ":9090"
read_timeout = "10s"
`)

	conf, v, err := Load(path, false)
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, 250, conf.Solver.MaxIterations)
	assert.Equal(t, "gonum", conf.Solver.LPBackend)
	assert.InDelta(t, 1e-6, conf.Solver.Epsilon, 1e-15)
	assert.Equal(t, "spectrum", conf.Rounding.Strategy)
	assert.Equal(t, uint64(7), conf.Rounding.Seed)
	assert.Equal(t, 5, conf.Rounding.Trials)
	assert.True(t, conf.Rounding.Repair)
	assert.Equal(t, 4, conf.Batch.Workers)
	assert.Equal(t, []string{"ffd", "hk"}, conf.Batch.Heuristics)
	assert.Equal(t, ":9090", conf.Server.Addr)
	assert.Equal(t, 10*time.Second, conf.Server.ReadTimeout)
	assert.Equal(t, "binpack", conf.Server.Name)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
[rounding]
strategy = "greedy"
`)
	_, _, err := Load(path, false)
	assert.ErrorContains(t, err, "validation")

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.toml"), false)
	assert.Error(t, err)
}

func TestValidateNormalizesStrategyAliases(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a", "glue"},
		{"discretize-glue", "glue"},
		{" GLUE ", "glue"},
		{"b", "spectrum"},
		{"Rebuild-Spectrum", "spectrum"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c := Default()
			c.Rounding.Strategy = tt.in
			require.NoError(t, Validate(c))
			assert.Equal(t, tt.want, c.Rounding.Strategy)
		})
	}

	c := Default()
	c.Rounding.Strategy = "c"
	assert.ErrorIs(t, Validate(c), xerrors.ErrInvalidConfig)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BINPACK_SOLVER_MAX_ITERATIONS", "33")
	path := writeConfig(t, `
[solver]
max_iterations = 250
`)

	conf, _, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, 33, conf.Solver.MaxIterations)
}

func TestMask(t *testing.T) {
	m := map[string]any{
		"tracing": map[string]any{"otlp_endpoint": "collector:4317", "enabled": true},
		"token":   "abc",
	}
	mask(m)
	assert.Equal(t, "******", m["token"])
	assert.Equal(t, "******", m["tracing"].(map[string]any)["otlp_endpoint"])
	assert.Equal(t, true, m["tracing"].(map[string]any)["enabled"])
}
