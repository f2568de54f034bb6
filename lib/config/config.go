// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Duration is a time.Duration written in YAML as a Go duration string.
type Duration time.Duration

// UnmarshalYAML accepts "1500ms", "2m" and similar.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the master configuration for proctor.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Root is the base directory for proctor state. Available to other
	// fields as ${PROCTOR_ROOT}.
	Root string `yaml:"root"`

	Cache      CacheConfig      `yaml:"cache"`
	Upload     UploadConfig     `yaml:"upload"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Capture    CaptureConfig    `yaml:"capture"`
	Log        LogConfig        `yaml:"log"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields an environment section may replace.
// Zero values leave the base value in place.
type Overrides struct {
	Cache      *CacheConfig      `yaml:"cache,omitempty"`
	Upload     *UploadConfig     `yaml:"upload,omitempty"`
	Monitoring *MonitoringConfig `yaml:"monitoring,omitempty"`
	Capture    *CaptureConfig    `yaml:"capture,omitempty"`
	Log        *LogConfig        `yaml:"log,omitempty"`
}

// CacheConfig configures the durable local recording cache.
type CacheConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// KeyFile holds a hex-encoded 32-byte key. When set, cache entries
	// are sealed at rest.
	KeyFile string `yaml:"key_file"`
}

// UploadConfig configures delivery to remote storage.
type UploadConfig struct {
	Endpoint string `yaml:"endpoint"`
	Preset   string `yaml:"preset"`

	// Recipients are reviewer age public keys. When non-empty, the
	// recording is sealed before it leaves the machine.
	Recipients []string `yaml:"recipients"`

	MinSizeBytes   int64    `yaml:"min_size_bytes"`
	MaxAttempts    int      `yaml:"max_attempts"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	WaitBound      Duration `yaml:"wait_bound"`
}

// MonitoringConfig configures the violation machine and its
// detectors.
type MonitoringConfig struct {
	GracePeriod    Duration `yaml:"grace_period"`
	DebounceWindow Duration `yaml:"debounce_window"`
	MaxViolations  int      `yaml:"max_violations"`

	// DevtoolsThreshold is the outer/inner window gap in pixels above
	// which developer tools are considered open.
	DevtoolsThreshold int      `yaml:"devtools_threshold"`
	DevtoolsInterval  Duration `yaml:"devtools_interval"`

	DisplayInterval Duration `yaml:"display_interval"`
	NoticeInterval  Duration `yaml:"notice_interval"`
}

// CaptureConfig configures the capture session manager.
type CaptureConfig struct {
	RequireCamera bool     `yaml:"require_camera"`
	MimeHint      string   `yaml:"mime_hint"`
	Timeslice     Duration `yaml:"timeslice"`
	MaxDuration   Duration `yaml:"max_duration"`
}

// LogConfig configures the slog handler the CLI installs.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text, json, or auto (text on a terminal, JSON
	// otherwise).
	Format string `yaml:"format"`
}

// Default returns the configuration values applied before the file is
// read.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".cache", "proctor")

	return &Config{
		Environment: Development,
		Root:        root,
		Cache: CacheConfig{
			Path: filepath.Join(root, "cache.db"),
		},
		Upload: UploadConfig{
			MinSizeBytes:   1024,
			MaxAttempts:    5,
			AttemptTimeout: Duration(2 * time.Minute),
			InitialBackoff: Duration(2 * time.Second),
			WaitBound:      Duration(3 * time.Minute),
		},
		Monitoring: MonitoringConfig{
			GracePeriod:       Duration(5 * time.Second),
			DebounceWindow:    Duration(time.Second),
			MaxViolations:     3,
			DevtoolsThreshold: 160,
			DevtoolsInterval:  Duration(time.Second),
			DisplayInterval:   Duration(10 * time.Second),
			NoticeInterval:    Duration(30 * time.Second),
		},
		Capture: CaptureConfig{
			RequireCamera: false,
			MimeHint:      "video/webm;codecs=vp8,opus",
			Timeslice:     Duration(5 * time.Second),
			MaxDuration:   Duration(25 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by PROCTOR_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("PROCTOR_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PROCTOR_CONFIG environment variable not set; " +
			"set it to the path of your proctor.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over Default, applies the
// matching environment section, and expands variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &Overrides{
				Capture: &CaptureConfig{RequireCamera: true},
				Log:     &LogConfig{Format: "json"},
			}
		}
	}
	if overrides == nil {
		return
	}

	if o := overrides.Cache; o != nil {
		override(&c.Cache.Path, o.Path)
		override(&c.Cache.KeyFile, o.KeyFile)
	}
	if o := overrides.Upload; o != nil {
		override(&c.Upload.Endpoint, o.Endpoint)
		override(&c.Upload.Preset, o.Preset)
		if len(o.Recipients) > 0 {
			c.Upload.Recipients = slices.Clone(o.Recipients)
		}
		override(&c.Upload.MinSizeBytes, o.MinSizeBytes)
		override(&c.Upload.MaxAttempts, o.MaxAttempts)
		override(&c.Upload.AttemptTimeout, o.AttemptTimeout)
		override(&c.Upload.InitialBackoff, o.InitialBackoff)
		override(&c.Upload.WaitBound, o.WaitBound)
	}
	if o := overrides.Monitoring; o != nil {
		override(&c.Monitoring.GracePeriod, o.GracePeriod)
		override(&c.Monitoring.DebounceWindow, o.DebounceWindow)
		override(&c.Monitoring.MaxViolations, o.MaxViolations)
		override(&c.Monitoring.DevtoolsThreshold, o.DevtoolsThreshold)
		override(&c.Monitoring.DevtoolsInterval, o.DevtoolsInterval)
		override(&c.Monitoring.DisplayInterval, o.DisplayInterval)
		override(&c.Monitoring.NoticeInterval, o.NoticeInterval)
	}
	if o := overrides.Capture; o != nil {
		// RequireCamera is a bool, so an override section always sets it.
		c.Capture.RequireCamera = o.RequireCamera
		override(&c.Capture.MimeHint, o.MimeHint)
		override(&c.Capture.Timeslice, o.Timeslice)
		override(&c.Capture.MaxDuration, o.MaxDuration)
	}
	if o := overrides.Log; o != nil {
		override(&c.Log.Level, o.Level)
		override(&c.Log.Format, o.Format)
	}
}

// override replaces *target with value unless value is the zero value.
func override[T comparable](target *T, value T) {
	var zero T
	if value != zero {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"PROCTOR_ROOT": c.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Root = expandVars(c.Root, vars)
	vars["PROCTOR_ROOT"] = c.Root

	c.Cache.Path = expandVars(c.Cache.Path, vars)
	c.Cache.KeyFile = expandVars(c.Cache.KeyFile, vars)
	c.Upload.Endpoint = expandVars(c.Upload.Endpoint, vars)
	c.Upload.Preset = expandVars(c.Upload.Preset, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. vars take precedence
// over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]Environment{Development, Staging, Production}, c.Environment) {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Cache.Path == "" {
		errs = append(errs, fmt.Errorf("cache.path is required"))
	}

	if c.Upload.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("upload.max_attempts must be at least 1"))
	}
	if c.Upload.MinSizeBytes < 0 {
		errs = append(errs, fmt.Errorf("upload.min_size_bytes must not be negative"))
	}
	if c.Upload.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("upload.attempt_timeout must be positive"))
	}
	if c.Environment == Production && len(c.Upload.Recipients) == 0 {
		errs = append(errs, fmt.Errorf("upload.recipients is required in production"))
	}

	if c.Monitoring.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("monitoring.grace_period must not be negative"))
	}
	if c.Monitoring.DebounceWindow < 0 {
		errs = append(errs, fmt.Errorf("monitoring.debounce_window must not be negative"))
	}
	if c.Monitoring.MaxViolations < 1 {
		errs = append(errs, fmt.Errorf("monitoring.max_violations must be at least 1"))
	}

	if c.Capture.Timeslice <= 0 {
		errs = append(errs, fmt.Errorf("capture.timeslice must be positive"))
	}
	if c.Capture.MaxDuration < c.Capture.Timeslice {
		errs = append(errs, fmt.Errorf("capture.max_duration must be at least capture.timeslice"))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error"))
	}
	if !slices.Contains([]string{"auto", "text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: auto, text, json"))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the directories configured paths live in.
func (c *Config) EnsurePaths() error {
	for _, dir := range []string{c.Root, filepath.Dir(c.Cache.Path)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
