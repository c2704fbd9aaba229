// Package config loads autofuse settings from TOML or YAML files, .env
// files and AUTOFUSE_* environment variables.
//
// Precedence, lowest first: [Default], the config file, the environment.
// Out-of-range limits are clamped rather than rejected; only values that
// cannot mean anything (an unknown cache backend, an unparsable number)
// are errors.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	errs "github.com/matzehuels/autofuse/pkg/errors"
	"github.com/matzehuels/autofuse/pkg/fusion"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config is the complete driver configuration.
type Config struct {
	Policy   string        `toml:"policy" yaml:"policy"`
	LogLevel string        `toml:"log_level" yaml:"log_level"`
	Fusion   fusion.Config `toml:"fusion" yaml:"fusion"`
	Cache    Cache         `toml:"cache" yaml:"cache"`
	Server   Server        `toml:"server" yaml:"server"`
}

// Cache selects and configures the result cache.
type Cache struct {
	Backend  string   `toml:"backend" yaml:"backend"`
	Dir      string   `toml:"dir" yaml:"dir"`
	RedisURL string   `toml:"redis_url" yaml:"redis_url"`
	TTL      Duration `toml:"ttl" yaml:"ttl"`
}

// Server configures the HTTP service.
type Server struct {
	Addr         string   `toml:"addr" yaml:"addr"`
	MaxBodyBytes int64    `toml:"max_body_bytes" yaml:"max_body_bytes"`
	Timeout      Duration `toml:"timeout" yaml:"timeout"`
}

// Duration is a time.Duration written as "90s" or "24h" in config files.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Policy:   "generic",
		LogLevel: "info",
		Cache: Cache{
			Backend: CacheFile,
			TTL:     Duration{24 * time.Hour},
		},
		Server: Server{
			Addr:         ":8080",
			MaxBodyBytes: 16 << 20,
			Timeout:      Duration{30 * time.Second},
		},
	}
}

// Load reads path on top of [Default], applies the environment and
// normalizes the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg.Normalize()
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errs.Wrap(errs.ErrCodeFileNotFound, err, "config file %s", path)
		}
		return errs.Wrap(errs.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return errs.Wrap(errs.ErrCodeInvalidConfig, err, "parse %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return errs.New(errs.ErrCodeInvalidConfig, "%s: unknown key %q", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errs.Wrap(errs.ErrCodeInvalidConfig, err, "parse %s", path)
		}
	default:
		return errs.New(errs.ErrCodeUnsupported, "unsupported config format %q", ext)
	}
	return nil
}

// Normalize clamps limits and checks enumerated values.
func (c Config) Normalize() (Config, error) {
	c.Fusion.MaxProximity = max(c.Fusion.MaxProximity, 0)
	c.Fusion.MaxFusionSize = max(c.Fusion.MaxFusionSize, 0)
	c.Fusion.MaxInputNumsAfterFuse = max(c.Fusion.MaxInputNumsAfterFuse, 0)
	c.Fusion.MaxPeakMemory = max(c.Fusion.MaxPeakMemory, 0)
	c.Fusion.MaxWriteMemory = max(c.Fusion.MaxWriteMemory, 0)
	c.Fusion.Hints.Default = max(c.Fusion.Hints.Default, 0)
	if c.Cache.TTL.Duration < 0 {
		c.Cache.TTL.Duration = 0
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = Default().Server.MaxBodyBytes
	}
	if c.Server.Timeout.Duration <= 0 {
		c.Server.Timeout = Default().Server.Timeout
	}

	c.Policy = strings.ToLower(strings.TrimSpace(c.Policy))
	if c.Policy != "" {
		if err := errs.ValidatePolicyName(c.Policy); err != nil {
			return Config{}, errs.Wrap(errs.ErrCodeInvalidConfig, err, "policy")
		}
	}
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = CacheFile
	case CacheFile, CacheNone:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return Config{}, errs.New(errs.ErrCodeInvalidConfig, "cache backend redis needs redis_url")
		}
	default:
		return Config{}, errs.New(errs.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	return c, nil
}
