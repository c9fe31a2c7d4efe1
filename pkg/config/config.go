// Package config loads d2site.toml.
//
// Every setting is optional; a missing file yields [Default]. Command-line
// flags are applied on top of the loaded values by the CLI.
//
//	[d2]
//	binary = "d2"
//	theme = 0
//	pad = 0
//	timeout = "30s"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//
//	[build]
//	content_dir = "src/content"
//	out_dir = "dist"
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/d2site/pkg/d2"
	"github.com/matzehuels/d2site/pkg/errors"
)

// FileName is the config file looked up in the working directory.
const FileName = "d2site.toml"

// Cache backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the full configuration.
type Config struct {
	D2    D2Config    `toml:"d2"`
	Cache CacheConfig `toml:"cache"`
	Build BuildConfig `toml:"build"`
	Serve ServeConfig `toml:"serve"`
}

// D2Config configures the diagram renderer.
type D2Config struct {
	Language   string   `toml:"language"`
	Binary     string   `toml:"binary"`
	Theme      int      `toml:"theme"`
	Pad        int      `toml:"pad"`
	ScratchDir string   `toml:"scratch_dir"`
	ExtraPath  string   `toml:"extra_path"`
	Timeout    Duration `toml:"timeout"`
	Args       []string `toml:"args"`
}

// CacheConfig configures the artifact cache.
type CacheConfig struct {
	Backend     string   `toml:"backend"`
	Dir         string   `toml:"dir"`
	RedisAddr   string   `toml:"redis_addr"`
	RedisDB     int      `toml:"redis_db"`
	RedisPrefix string   `toml:"redis_prefix"`
	TTL         Duration `toml:"ttl"`
}

// BuildConfig configures the site build.
type BuildConfig struct {
	ContentDir    string `toml:"content_dir"`
	OutDir        string `toml:"out_dir"`
	Workers       int    `toml:"workers"`
	IncludeDrafts bool   `toml:"include_drafts"`
}

// ServeConfig configures the preview server.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		D2: D2Config{
			Language: d2.DefaultLanguage,
			Binary:   d2.DefaultBinary,
			Theme:    d2.DefaultTheme,
			Pad:      d2.DefaultPad,
			Timeout:  Duration{d2.DefaultTimeout},
		},
		Cache: CacheConfig{
			Backend: BackendMemory,
		},
		Build: BuildConfig{
			ContentDir: "content",
			OutDir:     "dist",
			Workers:    4,
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:4321",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error unless
// required is set, which the CLI does when --config is given explicitly.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) && !required {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.New(errors.ErrCodeInvalidConfig, "unknown key %q in %s", undecoded[0].String(), path)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the build cannot use.
func (c Config) Validate() error {
	if err := errors.ValidateLanguageTag(c.D2.Language); err != nil {
		return err
	}
	if err := errors.ValidateBinary(c.D2.Binary); err != nil {
		return err
	}
	if c.D2.Pad < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "d2.pad must not be negative")
	}
	if c.D2.Timeout.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "d2.timeout must not be negative")
	}

	switch c.Cache.Backend {
	case BackendNone, BackendMemory, BackendFile:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q (must be none, memory, file or redis)", c.Cache.Backend)
	}

	if c.Build.Workers < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "build.workers must be at least 1")
	}
	if c.Build.ContentDir == "" || c.Build.OutDir == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "build.content_dir and build.out_dir are required")
	}
	return nil
}

// CommandOptions converts the [d2] section into renderer options.
func (c Config) CommandOptions() d2.CommandOptions {
	timeout := c.D2.Timeout.Duration
	if timeout == 0 {
		timeout = -1 // explicit zero in the file disables the deadline
	}
	return d2.CommandOptions{
		Binary:     c.D2.Binary,
		Theme:      c.D2.Theme,
		Pad:        c.D2.Pad,
		ScratchDir: c.D2.ScratchDir,
		ExtraPath:  c.D2.ExtraPath,
		Timeout:    timeout,
		Args:       c.D2.Args,
	}
}
