// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Input         InputConfig         `yaml:"input"`
	Recording     RecordingConfig     `yaml:"recording"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Display       DisplayConfig       `yaml:"display"`
	Render        RenderConfig        `yaml:"render"`
	Checklist     ChecklistConfig     `yaml:"checklist"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings for the remote control.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// InputConfig describes the physical buttons and the shared cooldown.
type InputConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Chip         string        `yaml:"chip"`
	Pins         PinsConfig    `yaml:"pins"`
	Cooldown     time.Duration `yaml:"cooldown"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ReleasePoll  time.Duration `yaml:"release_poll"`
	MaxHold      time.Duration `yaml:"max_hold"`
}

// PinsConfig maps each button to a GPIO line offset.
type PinsConfig struct {
	Next int `yaml:"next"`
	Prev int `yaml:"prev"`
	Fail int `yaml:"fail"`
	Pass int `yaml:"pass"`
}

// RecordingConfig describes the camera and the encoded session file.
type RecordingConfig struct {
	Device         string        `yaml:"device"`
	OutputDir      string        `yaml:"output_dir"`
	FilePrefix     string        `yaml:"file_prefix"`
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
	FPS            float64       `yaml:"fps"`
	StopTimeout    time.Duration `yaml:"stop_timeout"`
	StallTimeout   time.Duration `yaml:"stall_timeout"`
	ReadRetryPause time.Duration `yaml:"read_retry_pause"`

	// After RestartThreshold consecutive camera failures, restarts are held
	// off for RestartBackoff.
	RestartThreshold int           `yaml:"restart_threshold"`
	RestartBackoff   time.Duration `yaml:"restart_backoff"`
}

// ArchiveConfig describes the secondary copy of the session file.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Dir       string `yaml:"dir"`
	ProbeFile string `yaml:"probe_file"`
}

// DisplayConfig describes the local screen.
type DisplayConfig struct {
	Driver       string        `yaml:"driver"`
	Device       string        `yaml:"device"`
	SnapshotPath string        `yaml:"snapshot_path"`
	Width        int           `yaml:"width"`
	Height       int           `yaml:"height"`
	Rotate       int           `yaml:"rotate"`
	Mirror       bool          `yaml:"mirror"`
	ShutdownHold time.Duration `yaml:"shutdown_hold"`
	BlankHold    time.Duration `yaml:"blank_hold"`
}

// RenderConfig describes fonts. An empty FontPath selects the built-in
// bitmap face.
type RenderConfig struct {
	FontPath  string    `yaml:"font_path"`
	FontSizes FontSizes `yaml:"font_sizes"`
}

// FontSizes are point sizes at 72 DPI.
type FontSizes struct {
	Header float64 `yaml:"header"`
	Large  float64 `yaml:"large"`
	Body   float64 `yaml:"body"`
	Label  float64 `yaml:"label"`
}

// ChecklistConfig points at the checklist content. An empty Path selects the
// embedded default.
type ChecklistConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig describes the optional MQTT feed of kiosk events. Topics are
// TopicPrefix/<kind>; an empty ClientID means the host name.
type EventsConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	TopicPrefix string        `yaml:"topic_prefix"`
	QoS         byte          `yaml:"qos"`
	Encoding    string        `yaml:"encoding"`
	Buffer      int           `yaml:"buffer"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Event payload encodings.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Display drivers.
const (
	DisplayFramebuffer = "framebuffer"
	DisplaySnapshot    = "snapshot"
	DisplayNone        = "none"
)

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Input: InputConfig{
			Enabled:      true,
			Chip:         "gpiochip0",
			Pins:         PinsConfig{Next: 5, Prev: 6, Fail: 13, Pass: 19},
			Cooldown:     time.Second,
			PollInterval: 10 * time.Millisecond,
			ReleasePoll:  10 * time.Millisecond,
			MaxHold:      10 * time.Second,
		},
		Recording: RecordingConfig{
			Device:           "/dev/video0",
			OutputDir:        ".",
			FilePrefix:       "inspection_",
			Width:            640,
			Height:           480,
			FPS:              20,
			StopTimeout:      5 * time.Second,
			StallTimeout:     2 * time.Second,
			ReadRetryPause:   time.Second,
			RestartThreshold: 5,
			RestartBackoff:   30 * time.Second,
		},
		Archive: ArchiveConfig{
			Enabled:   true,
			Dir:       "/media/pi/HP_USB/Videos",
			ProbeFile: "test_write.txt",
		},
		Display: DisplayConfig{
			Driver:       DisplayFramebuffer,
			Device:       "/dev/fb1",
			SnapshotPath: "screen.png",
			Width:        320,
			Height:       240,
			Mirror:       true,
			ShutdownHold: 1500 * time.Millisecond,
			BlankHold:    300 * time.Millisecond,
		},
		Render: RenderConfig{
			FontSizes: FontSizes{Header: 28, Large: 26, Body: 22, Label: 20},
		},
		Events: EventsConfig{
			Broker:      "localhost:1883",
			TopicPrefix: "inspector",
			Encoding:    EncodingJSON,
			Buffer:      64,
			Timeout:     2 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all fields are present and within range. Camera
// width, height and fps are not checked here: out-of-range values fall back
// to safe defaults when the pipeline is built.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if c.Input.Cooldown < 0 {
		errs = append(errs, "input.cooldown must not be negative")
	}
	if c.Input.Enabled {
		if c.Input.Chip == "" {
			errs = append(errs, "input.chip is required when input is enabled")
		}
		if c.Input.PollInterval <= 0 {
			errs = append(errs, "input.poll_interval must be positive")
		}
		if c.Input.ReleasePoll <= 0 {
			errs = append(errs, "input.release_poll must be positive")
		}
		if c.Input.MaxHold <= 0 {
			errs = append(errs, "input.max_hold must be positive")
		}
		if !distinct(c.Input.Pins.Next, c.Input.Pins.Prev, c.Input.Pins.Fail, c.Input.Pins.Pass) {
			errs = append(errs, "input.pins must be distinct")
		}
	}

	if c.Recording.Device == "" {
		errs = append(errs, "recording.device is required")
	}
	if c.Recording.StopTimeout <= 0 {
		errs = append(errs, "recording.stop_timeout must be positive")
	}
	if c.Recording.StallTimeout <= 0 {
		errs = append(errs, "recording.stall_timeout must be positive")
	}
	if c.Recording.RestartThreshold < 1 || c.Recording.RestartBackoff <= 0 {
		errs = append(errs, "recording.restart_threshold and recording.restart_backoff must be positive")
	}

	if c.Archive.Enabled && c.Archive.Dir == "" {
		errs = append(errs, "archive.dir is required when archive is enabled")
	}

	switch c.Display.Driver {
	case DisplayFramebuffer:
		if c.Display.Device == "" {
			errs = append(errs, "display.device is required for the framebuffer driver")
		}
	case DisplaySnapshot:
		if c.Display.SnapshotPath == "" {
			errs = append(errs, "display.snapshot_path is required for the snapshot driver")
		}
	case DisplayNone:
	default:
		errs = append(errs, fmt.Sprintf("display.driver %q is not one of framebuffer, snapshot, none", c.Display.Driver))
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		errs = append(errs, "display.width and display.height must be positive")
	}
	switch c.Display.Rotate {
	case 0, 90, 180, 270:
	default:
		errs = append(errs, "display.rotate must be 0, 90, 180 or 270")
	}

	if c.Events.Enabled {
		if c.Events.Broker == "" {
			errs = append(errs, "events.broker is required when events are enabled")
		}
		if c.Events.QoS > 2 {
			errs = append(errs, "events.qos must be 0, 1 or 2")
		}
		if c.Events.Encoding != EncodingJSON && c.Events.Encoding != EncodingMsgpack {
			errs = append(errs, fmt.Sprintf("events.encoding %q is not one of json, msgpack", c.Events.Encoding))
		}
		if c.Events.Buffer < 1 || c.Events.Timeout <= 0 {
			errs = append(errs, "events.buffer and events.timeout must be positive")
		}
	}

	s := c.Render.FontSizes
	if s.Header <= 0 || s.Large <= 0 || s.Body <= 0 || s.Label <= 0 {
		errs = append(errs, "render.font_sizes must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func distinct(vals ...int) bool {
	seen := make(map[int]bool, len(vals))
	for _, v := range vals {
		if seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// applyEnvOverrides reads INSPECTOR_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INSPECTOR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INSPECTOR_INPUT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Input.Enabled = b
		}
	}
	if v := os.Getenv("INSPECTOR_INPUT_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Input.Cooldown = d
		}
	}
	if v := os.Getenv("INSPECTOR_RECORDING_DEVICE"); v != "" {
		cfg.Recording.Device = v
	}
	if v := os.Getenv("INSPECTOR_RECORDING_OUTPUT_DIR"); v != "" {
		cfg.Recording.OutputDir = v
	}
	if v := os.Getenv("INSPECTOR_ARCHIVE_DIR"); v != "" {
		cfg.Archive.Dir = v
	}
	if v := os.Getenv("INSPECTOR_DISPLAY_DRIVER"); v != "" {
		cfg.Display.Driver = v
	}
	if v := os.Getenv("INSPECTOR_CHECKLIST_PATH"); v != "" {
		cfg.Checklist.Path = v
	}
	if v := os.Getenv("INSPECTOR_EVENTS_BROKER"); v != "" {
		cfg.Events.Broker = v
	}
	if v := os.Getenv("INSPECTOR_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
