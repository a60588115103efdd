// Package config loads repograph settings from defaults, an optional
// .repograph.yaml file, a .env file and REPOGRAPH_* environment variables,
// in increasing order of precedence. Command-line flags are applied last by
// the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the optional per-repository config file.
const FileName = ".repograph.yaml"

// Config holds every tunable setting.
type Config struct {
	DBPath       string   `yaml:"db"`
	IndexPath    string   `yaml:"index"`
	WorkDir      string   `yaml:"workdir"`
	CloneDepth   int      `yaml:"clone_depth"`
	Excludes     []string `yaml:"exclude"`
	Languages    []string `yaml:"languages"`
	Parallel     bool     `yaml:"parallel"`
	Workers      int      `yaml:"workers"`
	LogLevel     string   `yaml:"log_level"`
	JobRetention int      `yaml:"job_retention"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DBPath:       filepath.Join(".repograph", "graph.db"),
		IndexPath:    filepath.Join(".repograph", "docs.bleve"),
		WorkDir:      filepath.Join(".repograph", "repos"),
		CloneDepth:   1,
		Parallel:     true,
		Workers:      runtime.NumCPU(),
		LogLevel:     "info",
		JobRetention: 100,
	}
}

// Load builds a Config for the working directory dir.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if err := cfg.LoadFile(filepath.Join(dir, FileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// leave the current values untouched.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays REPOGRAPH_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("REPOGRAPH_DB", &c.DBPath)
	str("REPOGRAPH_INDEX", &c.IndexPath)
	str("REPOGRAPH_WORKDIR", &c.WorkDir)
	str("REPOGRAPH_LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("REPOGRAPH_WORKERS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: REPOGRAPH_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v, ok := lookup("REPOGRAPH_CLONE_DEPTH"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: REPOGRAPH_CLONE_DEPTH: %w", err)
		}
		c.CloneDepth = n
	}
	if v, ok := lookup("REPOGRAPH_PARALLEL"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: REPOGRAPH_PARALLEL: %w", err)
		}
		c.Parallel = b
	}
	if v, ok := lookup("REPOGRAPH_EXCLUDE"); ok && strings.TrimSpace(v) != "" {
		c.Excludes = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// Logger returns a text logger on stderr at the configured level.
func (c *Config) Logger() (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
