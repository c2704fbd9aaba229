package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	errs "github.com/matzehuels/autofuse/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AUTOFUSE_"

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
// With no arguments it tries ./.env.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidConfig, err, "load %s", strings.Join(present, ", "))
	}
	return nil
}

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

var envVars = []envVar{
	{"POLICY", func(c *Config, v string) error { c.Policy = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{"MAX_FUSE_ROUNDS", func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		c.Fusion.MaxFuseRounds = uint(n)
		return err
	}},
	{"MAX_PROXIMITY", intVar(func(c *Config) *int { return &c.Fusion.MaxProximity })},
	{"MAX_FUSION_SIZE", intVar(func(c *Config) *int { return &c.Fusion.MaxFusionSize })},
	{"MAX_INPUT_NUMS_AFTER_FUSE", intVar(func(c *Config) *int { return &c.Fusion.MaxInputNumsAfterFuse })},
	{"MAX_PEAK_MEMORY", int64Var(func(c *Config) *int64 { return &c.Fusion.MaxPeakMemory })},
	{"MAX_WRITE_MEMORY", int64Var(func(c *Config) *int64 { return &c.Fusion.MaxWriteMemory })},
	{"SYMBOL_HINT", int64Var(func(c *Config) *int64 { return &c.Fusion.Hints.Default })},
	{"CACHE_BACKEND", func(c *Config, v string) error { c.Cache.Backend = v; return nil }},
	{"CACHE_DIR", func(c *Config, v string) error { c.Cache.Dir = v; return nil }},
	{"CACHE_TTL", durationVar(func(c *Config) *Duration { return &c.Cache.TTL })},
	{"REDIS_URL", func(c *Config, v string) error { c.Cache.RedisURL = v; return nil }},
	{"ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"SERVER_TIMEOUT", durationVar(func(c *Config) *Duration { return &c.Server.Timeout })},
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		*field(c) = n
		return err
	}
}

func int64Var(field func(*Config) *int64) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		*field(c) = n
		return err
	}
}

func durationVar(field func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		field(c).Duration = d
		return err
	}
}

// applyEnv overrides fields from AUTOFUSE_* variables. It falls back to a
// plain REDIS_URL when AUTOFUSE_REDIS_URL is unset.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(EnvPrefix + ev.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := ev.set(c, strings.TrimSpace(v)); err != nil {
			return errs.Wrap(errs.ErrCodeInvalidConfig, err, "%s%s=%q", EnvPrefix, ev.name, v)
		}
	}
	if c.Cache.RedisURL == "" {
		if v, ok := lookup("REDIS_URL"); ok {
			c.Cache.RedisURL = v
		}
	}
	return nil
}
