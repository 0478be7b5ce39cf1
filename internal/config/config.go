// Package config loads run settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoPrimaryDir is returned by Validate when no application directory is set.
var ErrNoPrimaryDir = errors.New("a primary directory is required (-vam-dir or VAMDEPS_VAM_DIR)")

var logLevels = map[string]struct{}{
	"": {}, "info": {}, "i": {},
	"debug": {}, "d": {}, "verbose": {}, "v": {},
	"warn": {}, "warning": {}, "w": {},
	"error": {}, "e": {},
	"disabled": {}, "quiet": {}, "q": {},
}

// Config holds one run's settings. Command-line flags override the values
// Load reads from the environment.
type Config struct {
	// Content roots
	VamDir  string
	RepoDir string

	// Scan cache
	CachePath string

	// Logging
	LogLevel  string
	LogPretty bool

	// Resolution
	Workers int
	Select  []string
	Ignored []string

	// Metrics in text exposition format, written after the run
	MetricsFile string
}

// Load reads configuration from the environment through getenv, usually
// os.Getenv.
func Load(getenv func(string) string) *Config {
	e := env(getenv)
	return &Config{
		VamDir:      e.or("VAMDEPS_VAM_DIR", ""),
		RepoDir:     e.or("VAMDEPS_REPO_DIR", ""),
		CachePath:   e.or("VAMDEPS_CACHE", ""),
		LogLevel:    e.or("VAMDEPS_LOG_LEVEL", "info"),
		LogPretty:   e.bool("VAMDEPS_LOG_PRETTY", false),
		Workers:     e.int("VAMDEPS_WORKERS", 0), // 0 = GOMAXPROCS
		Select:      SplitList(e.or("VAMDEPS_SELECT", "")),
		Ignored:     SplitList(e.or("VAMDEPS_IGNORED_MORPHS", "")),
		MetricsFile: e.or("VAMDEPS_METRICS_FILE", ""),
	}
}

// Validate reports the first setting that makes a run impossible.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.VamDir) == "" {
		return ErrNoPrimaryDir
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, ok := logLevels[strings.ToLower(strings.TrimSpace(c.LogLevel))]; !ok {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// SplitList splits a comma-separated value, dropping blank items.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

type env func(string) string

func (e env) or(key, fallback string) string {
	if v := e(key); v != "" {
		return v
	}
	return fallback
}

func (e env) bool(key string, fallback bool) bool {
	v := e(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func (e env) int(key string, fallback int) int {
	v := e(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
