package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/matzehuels/autofuse/pkg/errors"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "generic", c.Policy)
	assert.Equal(t, CacheFile, c.Cache.Backend)
	assert.Equal(t, 24*time.Hour, c.Cache.TTL.Duration)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Zero(t, c.Fusion.MaxFuseRounds)
}

func TestLoadTOML(t *testing.T) {
	path := write(t, "autofuse.toml", `
policy = "permissive"

[fusion]
max_fuse_rounds = 3
max_fusion_size = 12
max_proximity = -4

[fusion.hints]
default = 64
values = { s0 = 128 }

[cache]
backend = "none"
ttl = "1h"
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "permissive", c.Policy)
	assert.Equal(t, uint(3), c.Fusion.MaxFuseRounds)
	assert.Equal(t, 12, c.Fusion.MaxFusionSize)
	assert.Zero(t, c.Fusion.MaxProximity, "negative caps clamp to unlimited")
	assert.Equal(t, int64(64), c.Fusion.Hints.Default)
	assert.Equal(t, int64(128), c.Fusion.Hints.Values["s0"])
	assert.Equal(t, CacheNone, c.Cache.Backend)
	assert.Equal(t, time.Hour, c.Cache.TTL.Duration)
}

func TestLoadShippedExample(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "examples", "autofuse.toml"))
	require.NoError(t, err)
	assert.Equal(t, "generic", c.Policy)
	assert.Equal(t, uint(8), c.Fusion.MaxFuseRounds)
	assert.Equal(t, int64(32), c.Fusion.Hints.Values["s0"])
	assert.Equal(t, 30*time.Second, c.Server.Timeout.Duration)
}

func TestLoadTOMLUnknownKey(t *testing.T) {
	path := write(t, "autofuse.toml", "polcy = \"generic\"\n")
	_, err := Load(path)
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidConfig), "got %v", err)
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "autofuse.yaml", `
policy: generic
fusion:
  max_peak_memory: 1048576
  max_input_nums_after_fuse: 6
server:
  addr: 127.0.0.1:9000
  timeout: 5s
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), c.Fusion.MaxPeakMemory)
	assert.Equal(t, 6, c.Fusion.MaxInputNumsAfterFuse)
	assert.Equal(t, "127.0.0.1:9000", c.Server.Addr)
	assert.Equal(t, 5*time.Second, c.Server.Timeout.Duration)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errs.Is(err, errs.ErrCodeFileNotFound), "got %v", err)

	_, err = Load(write(t, "autofuse.ini", "x=1"))
	assert.True(t, errs.Is(err, errs.ErrCodeUnsupported), "got %v", err)

	_, err = Load(write(t, "bad.toml", "[cache]\nbackend = \"memcached\"\n"))
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidConfig), "got %v", err)

	_, err = Load(write(t, "redis.toml", "[cache]\nbackend = \"redis\"\n"))
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidConfig), "got %v", err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"AUTOFUSE_POLICY":          "permissive",
		"AUTOFUSE_MAX_FUSE_ROUNDS": "2",
		"AUTOFUSE_MAX_FUSION_SIZE": "5",
		"AUTOFUSE_MAX_PEAK_MEMORY": "4096",
		"AUTOFUSE_CACHE_TTL":       "10m",
		"AUTOFUSE_CACHE_BACKEND":   "redis",
		"REDIS_URL":                "redis://localhost:6379/0",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	c := Default()
	require.NoError(t, c.applyEnv(lookup))
	c, err := c.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "permissive", c.Policy)
	assert.Equal(t, uint(2), c.Fusion.MaxFuseRounds)
	assert.Equal(t, 5, c.Fusion.MaxFusionSize)
	assert.Equal(t, int64(4096), c.Fusion.MaxPeakMemory)
	assert.Equal(t, 10*time.Minute, c.Cache.TTL.Duration)
	assert.Equal(t, CacheRedis, c.Cache.Backend)
	assert.Equal(t, "redis://localhost:6379/0", c.Cache.RedisURL)
}

func TestApplyEnvBadNumber(t *testing.T) {
	c := Default()
	err := c.applyEnv(func(k string) (string, bool) {
		if k == "AUTOFUSE_MAX_FUSION_SIZE" {
			return "lots", true
		}
		return "", false
	})
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidConfig))
}

func TestLoadDotEnv(t *testing.T) {
	path := write(t, ".env", "AUTOFUSE_TEST_DOTENV=from-file\n")
	t.Setenv("AUTOFUSE_TEST_DOTENV_KEEP", "set")
	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	t.Cleanup(func() { os.Unsetenv("AUTOFUSE_TEST_DOTENV") })

	assert.Equal(t, "from-file", os.Getenv("AUTOFUSE_TEST_DOTENV"))
	assert.Equal(t, "set", os.Getenv("AUTOFUSE_TEST_DOTENV_KEEP"))
}
