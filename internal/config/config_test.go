package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"waterflow/internal/opt"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefaultBoundsOpt1Repairs(t *testing.T) {
	n := Default().Search.MaxRepairs
	require.Positive(t, n)
	require.LessOrEqual(t, n, opt.RepairCeiling)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waterflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  maxCloud: 3
  maxPop: 7
  backoff: 250ms
  seed: 42
oracle:
  timeout: 2s
instance:
  sites: 5
logLevel: debug
`), 0o600))
	t.Setenv("WATERFLOW_MAX_POP", "9")
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Search.MaxCloud)
	require.Equal(t, 9, cfg.Search.MaxPop)
	require.Equal(t, 250*time.Millisecond, cfg.Search.Backoff)
	require.Equal(t, int64(42), cfg.Search.Seed)
	require.Equal(t, 2*time.Second, cfg.Oracle.Timeout)
	require.Equal(t, 5, cfg.Instance.Sites)
	require.Equal(t, 20, cfg.Instance.Points)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestEnvParseErrors(t *testing.T) {
	cfg := Default()
	env := map[string]string{"WATERFLOW_MAX_CLOUD": "many", "WATERFLOW_ORACLE_TIMEOUT": "soon"}
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.ErrorContains(t, err, "WATERFLOW_MAX_CLOUD")
	require.ErrorContains(t, err, "WATERFLOW_ORACLE_TIMEOUT")
}

func TestValidateRejectsNonPositive(t *testing.T) {
	cfg := Default()
	cfg.Search.MinEro = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg = Default()
	cfg.Instance.Vehicles = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg.Instance.Path = "instance.yaml"
	require.NoError(t, cfg.Validate())
}
