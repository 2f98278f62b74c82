package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/multierr"
)

const appName = "noticed"

type Config struct {
	General GeneralConfig `koanf:"general"`
	Popups  PopupsConfig  `koanf:"popups"`
	History HistoryConfig `koanf:"history"`
	Sound   SoundConfig   `koanf:"sound"`
	Trial   TrialConfig   `koanf:"trial"`
	Metrics MetricsConfig `koanf:"metrics"`

	// Rules are applied in order; later matches override earlier effects.
	Rules []RuleConfig `koanf:"rules"`

	// Path is the last file that was loaded, empty when running on defaults.
	Path string `koanf:"-"`
}

type GeneralConfig struct {
	DndDefault bool   `koanf:"dnd_default"`
	LogLevel   string `koanf:"log_level"`  // default: "info"
	LogFormat  string `koanf:"log_format"` // "console" or "json" (default: "console")
}

type PopupsConfig struct {
	DefaultTimeoutMs  *int64 `koanf:"default_timeout_ms"`  // default: 5000
	CriticalTimeoutMs *int64 `koanf:"critical_timeout_ms"` // unset: critical never expires
}

type HistoryConfig struct {
	MaxEntries         *int `koanf:"max_entries"` // default: 200
	MaxActive          *int `koanf:"max_active"`  // default: 500, 0 = unbounded
	TransientToHistory bool `koanf:"transient_to_history"`
}

// SoundConfig holds notification sound settings. Relative paths are
// resolved against the directory of the config file.
type SoundConfig struct {
	Enabled       *bool   `koanf:"enabled"`      // default: true
	Backend       string  `koanf:"backend"`      // auto, beep, canberra, pw-play, paplay, none
	DefaultName   *string `koanf:"default_name"` // default: "message-new-instant"
	DefaultFile   string  `koanf:"default_file"`
	DefaultDir    string  `koanf:"default_dir"`
	MinIntervalMs *int64  `koanf:"min_interval_ms"` // default: 150
	Volume        float64 `koanf:"volume"`          // base-2 gain, beep backend only
}

type TrialConfig struct {
	Restore       string         `koanf:"restore"`         // auto, none, systemd, process
	RestoreWaitMs *int64         `koanf:"restore_wait_ms"` // default: 2000
	ExtraDaemons  []DaemonConfig `koanf:"extra_daemons"`
}

// DaemonConfig names a competing notification daemon and its user unit.
type DaemonConfig struct {
	Name string `koanf:"name"`
	Unit string `koanf:"unit"`
}

type MetricsConfig struct {
	Listen string `koanf:"listen"` // e.g. "127.0.0.1:9465", empty disables
}

// RuleConfig is one [[rules]] entry. Unset predicates match anything,
// unset effects leave the notification alone.
type RuleConfig struct {
	Name     string  `koanf:"name"`
	App      *string `koanf:"app"`
	Summary  *string `koanf:"summary"`
	Body     *string `koanf:"body"`
	Category *string `koanf:"category"`
	Urgency  *int    `koanf:"urgency"`

	NoPopup         *bool  `koanf:"no_popup"`
	Silent          *bool  `koanf:"silent"`
	ForceUrgency    *int   `koanf:"force_urgency"`
	ExpireTimeoutMs *int64 `koanf:"expire_timeout_ms"`
	Resident        *bool  `koanf:"resident"`
	Transient       *bool  `koanf:"transient"`
}

// Load reads the default config file, then explicit when non-empty. A
// missing default file is ignored; a missing explicit file is an error.
func Load(explicit string) (*Config, error) {
	paths := getConfigPaths()
	if explicit != "" {
		explicit = expandPath(explicit)
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		paths = append(paths, explicit)
	}
	return load(paths)
}

func load(paths []string) (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	var loaded string
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
			loaded = path
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Path = loaded

	base := configDir()
	if loaded != "" {
		base = filepath.Dir(loaded)
	}
	cfg.Sound.DefaultFile = resolvePath(base, cfg.Sound.DefaultFile)
	cfg.Sound.DefaultDir = resolvePath(base, cfg.Sound.DefaultDir)

	return cfg, nil
}

func configDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

func getConfigPaths() []string {
	return []string{filepath.Join(configDir(), "config.toml")}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// resolvePath expands ~ and anchors relative paths at base.
func resolvePath(base, path string) string {
	if path == "" {
		return ""
	}
	path = expandPath(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

var (
	soundBackends = []string{"auto", "beep", "canberra", "pw-play", "paplay", "none"}
	restoreModes  = []string{"auto", "none", "systemd", "process"}
	logFormats    = []string{"console", "json"}
)

// Validate rejects unknown enum values and out of range urgencies.
func (c *Config) Validate() error {
	var err error
	if !oneOf(c.General.LogFormat, logFormats) {
		err = multierr.Append(err, fmt.Errorf("general.log_format: unknown value %q", c.General.LogFormat))
	}
	if !oneOf(c.Sound.Backend, soundBackends) {
		err = multierr.Append(err, fmt.Errorf("sound.backend: unknown value %q", c.Sound.Backend))
	}
	if !oneOf(c.Trial.Restore, restoreModes) {
		err = multierr.Append(err, fmt.Errorf("trial.restore: unknown value %q", c.Trial.Restore))
	}
	for i, r := range c.Rules {
		if !validUrgency(r.Urgency) {
			err = multierr.Append(err, fmt.Errorf("rules[%d].urgency: %d out of range", i, *r.Urgency))
		}
		if !validUrgency(r.ForceUrgency) {
			err = multierr.Append(err, fmt.Errorf("rules[%d].force_urgency: %d out of range", i, *r.ForceUrgency))
		}
	}
	for i, d := range c.Trial.ExtraDaemons {
		if strings.TrimSpace(d.Name) == "" {
			err = multierr.Append(err, fmt.Errorf("trial.extra_daemons[%d]: %w", i, errors.New("name is required")))
		}
	}
	return err
}

// oneOf treats the empty string as "use the default".
func oneOf(v string, allowed []string) bool {
	if v == "" {
		return true
	}
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func validUrgency(u *int) bool {
	return u == nil || (*u >= 0 && *u <= 2)
}

// LogLevel returns the configured level (default: "info").
func (c *Config) LogLevel() string {
	if c.General.LogLevel == "" {
		return "info"
	}
	return c.General.LogLevel
}

// LogFormat returns "console" or "json".
func (c *Config) LogFormat() string {
	if strings.EqualFold(c.General.LogFormat, "json") {
		return "json"
	}
	return "console"
}

// DefaultTimeout returns the popup timeout used when clients ask for the
// server default.
func (c *Config) DefaultTimeout() time.Duration {
	if c.Popups.DefaultTimeoutMs == nil || *c.Popups.DefaultTimeoutMs < 0 {
		return 5 * time.Second
	}
	return time.Duration(*c.Popups.DefaultTimeoutMs) * time.Millisecond
}

// CriticalTimeout returns nil when critical notifications never expire.
func (c *Config) CriticalTimeout() *time.Duration {
	if c.Popups.CriticalTimeoutMs == nil || *c.Popups.CriticalTimeoutMs < 0 {
		return nil
	}
	d := time.Duration(*c.Popups.CriticalTimeoutMs) * time.Millisecond
	return &d
}

// MaxHistory returns the history capacity (default: 200).
func (c *Config) MaxHistory() int {
	if c.History.MaxEntries == nil || *c.History.MaxEntries < 0 {
		return 200
	}
	return *c.History.MaxEntries
}

// MaxActive returns the active cap, 0 meaning unbounded (default: 500).
func (c *Config) MaxActive() int {
	if c.History.MaxActive == nil || *c.History.MaxActive < 0 {
		return 500
	}
	return *c.History.MaxActive
}

// GetSoundConfig returns the sound configuration with defaults applied.
func (c *Config) GetSoundConfig() SoundConfig {
	cfg := c.Sound

	if cfg.Enabled == nil {
		enabled := true
		cfg.Enabled = &enabled
	}
	if cfg.Backend == "" {
		cfg.Backend = "auto"
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.DefaultName == nil {
		name := "message-new-instant"
		cfg.DefaultName = &name
	}
	if cfg.MinIntervalMs == nil || *cfg.MinIntervalMs < 0 {
		interval := int64(150)
		cfg.MinIntervalMs = &interval
	}

	return cfg
}

// RestoreStrategy returns the trial restore strategy (default: "auto").
func (c *Config) RestoreStrategy() string {
	if c.Trial.Restore == "" {
		return "auto"
	}
	return c.Trial.Restore
}

// RestoreWait bounds the wait for another daemon after a trial ends.
func (c *Config) RestoreWait() time.Duration {
	if c.Trial.RestoreWaitMs == nil || *c.Trial.RestoreWaitMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(*c.Trial.RestoreWaitMs) * time.Millisecond
}
