// Package config loads and saves bw configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/bw/config.yaml
//
// A project may also carry its own .beads/bw.yaml, which takes precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/ordering"
)

// Environment overrides applied by ApplyEnv.
const (
	EnvBeadsDir   = "BEADS_DIR"
	EnvForcePoll  = "BW_FORCE_POLL"
	EnvDebounceMS = "BW_DEBOUNCE_MS"
	EnvLogLevel   = "BW_LOG_LEVEL"
)

// ProjectFileName is the per-project config looked up in the beads directory.
const ProjectFileName = "bw.yaml"

// SortConfig selects the initial card order.
type SortConfig struct {
	Preset ordering.Preset `yaml:"preset"`
}

// WatchConfig tunes change detection on the project directory.
type WatchConfig struct {
	DebounceMS     int  `yaml:"debounce_ms"`
	PollIntervalMS int  `yaml:"poll_interval_ms"`
	ForcePoll      bool `yaml:"force_poll,omitempty"`
}

// Debounce returns DebounceMS as a duration.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// PollInterval returns PollIntervalMS as a duration.
func (w WatchConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMS) * time.Millisecond
}

// SessionConfig sizes the event loop buffers.
type SessionConfig struct {
	QueueSize   int `yaml:"queue_size"`
	FrameBuffer int `yaml:"frame_buffer"`
}

// PushConfig configures the redis notification channel.
type PushConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisAddr string `yaml:"redis_addr"`
	Channel   string `yaml:"channel"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format,omitempty"` // text or json
}

// Config is the top-level configuration.
type Config struct {
	BeadsDir string            `yaml:"beads_dir,omitempty"`
	Board    model.BoardConfig `yaml:"board"`
	Sort     SortConfig        `yaml:"sort"`
	Watch    WatchConfig       `yaml:"watch"`
	Session  SessionConfig     `yaml:"session"`
	Push     PushConfig        `yaml:"push"`
	Log      LogConfig         `yaml:"log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Board: model.DefaultBoardConfig(),
		Sort:  SortConfig{Preset: ordering.Default},
		Watch: WatchConfig{
			DebounceMS:     200,
			PollIntervalMS: 2000,
		},
		Session: SessionConfig{
			QueueSize:   64,
			FrameBuffer: 1,
		},
		Push: PushConfig{
			RedisAddr: "localhost:6379",
			Channel:   "beads:updates",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// ConfigDir returns the XDG config directory for bw.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "bw")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bw")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the user config, then the project file in beadsDir when present.
// Missing files are not errors.
func Load(beadsDir string) (Config, error) {
	cfg := DefaultConfig()
	if path := ConfigPath(); path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if beadsDir != "" {
		if err := mergeFile(&cfg, filepath.Join(beadsDir, ProjectFileName)); err != nil {
			return cfg, err
		}
	}
	cfg.BeadsDir = expandHome(cfg.BeadsDir)
	return cfg, nil
}

// LoadFrom reads config from a specific path over the defaults.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := mergeFile(&cfg, path); err != nil {
		return cfg, err
	}
	cfg.BeadsDir = expandHome(cfg.BeadsDir)
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnv overlays the environment overrides. Malformed numeric values are
// reported and leave the field unchanged.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvBeadsDir); v != "" {
		c.BeadsDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvForcePoll)); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y", "on":
			c.Watch.ForcePoll = true
		default:
			c.Watch.ForcePoll = false
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDebounceMS)); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebounceMS, err)
		}
		c.Watch.DebounceMS = ms
	}
	return nil
}

// Validate checks the values that cannot fall back silently. An unknown sort
// preset is not an error; it is replaced with the default.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Board.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("board: %w", err))
	}
	if !c.Sort.Preset.Valid() {
		c.Sort.Preset = ordering.PresetOrDefault(string(c.Sort.Preset))
	}
	if c.Watch.DebounceMS < 0 {
		errs = append(errs, errors.New("watch.debounce_ms must not be negative"))
	}
	if c.Watch.PollIntervalMS <= 0 {
		errs = append(errs, errors.New("watch.poll_interval_ms must be positive"))
	}
	if c.Session.QueueSize <= 0 {
		errs = append(errs, errors.New("session.queue_size must be positive"))
	}
	if c.Session.FrameBuffer <= 0 {
		errs = append(errs, errors.New("session.frame_buffer must be positive"))
	}
	if c.Push.Enabled && (c.Push.RedisAddr == "" || c.Push.Channel == "") {
		errs = append(errs, errors.New("push requires redis_addr and channel"))
	}
	return errors.Join(errs...)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
