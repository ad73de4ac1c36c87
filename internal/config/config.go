// Package config provides configuration management for snapbooth using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8090
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultFrameStaleAfter  = 2 * time.Second
	defaultFrameReadTimeout = 5 * time.Second
	defaultProbeTimeout     = 5 * time.Second
	defaultMaxReadFailures  = 3

	defaultCaptureTimeout = 10 * time.Second
	defaultStorageRetries = 3

	defaultContrast    = 1.1
	defaultBrightness  = 10
	defaultQuality     = 95
	defaultMinFreeByte = 256 * 1024 * 1024

	defaultRetentionAge = 30 * 24 * time.Hour
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Tone      ToneConfig      `mapstructure:"tone"`
	Output    OutputConfig    `mapstructure:"output"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// ServerConfig holds HTTP control-surface configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds capture-history database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// DeviceConfig describes one camera candidate. The list is ordered:
// the first entry is the primary device, the rest are fallbacks.
type DeviceConfig struct {
	Index  int `mapstructure:"index"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	FPS    int `mapstructure:"fps"`
}

// ID returns the device identifier used in logs and events.
func (d DeviceConfig) ID() string {
	return fmt.Sprintf("video%d", d.Index)
}

// CameraConfig holds camera acquisition configuration.
type CameraConfig struct {
	Devices []DeviceConfig `mapstructure:"devices"`
	// FrameStaleAfter is the age past which the latest frame is considered
	// stale and the connection degraded.
	FrameStaleAfter time.Duration `mapstructure:"frame_stale_after"`
	// ReadTimeout bounds a single frame read before it counts as a failure.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// ProbeTimeout bounds a device open attempt during enumeration.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// MaxReadFailures is the number of consecutive read failures on a device
	// before the supervisor advances to the next candidate.
	MaxReadFailures int `mapstructure:"max_read_failures"`
}

// ToneConfig holds tone-adjustment parameters applied before encoding.
type ToneConfig struct {
	Contrast   float64 `mapstructure:"contrast"`   // multiplier, 1.0 = neutral
	Brightness int     `mapstructure:"brightness"` // additive offset
	Denoise    bool    `mapstructure:"denoise"`
}

// OutputConfig holds photo output configuration.
type OutputConfig struct {
	Directory string `mapstructure:"directory"`
	Format    string `mapstructure:"format"`  // jpg, png
	Quality   int    `mapstructure:"quality"` // 1-100, jpg only
	Prefix    string `mapstructure:"prefix"`
	// MinFreeBytes is the free-space floor on the output filesystem below
	// which saves are refused instead of failing mid-write.
	MinFreeBytes uint64 `mapstructure:"min_free_bytes"`
}

// CaptureConfig holds capture-path configuration.
type CaptureConfig struct {
	// Timeout is the end-to-end wall-clock budget for one trigger.
	Timeout time.Duration `mapstructure:"timeout"`
	// StorageRetries is the number of automatic retries after a failed save.
	StorageRetries int `mapstructure:"storage_retries"`
}

// TemplatesConfig holds template selection and variable configuration.
type TemplatesConfig struct {
	Directory string `mapstructure:"directory"`
	Default   string `mapstructure:"default"`
	// Variables are substituted into template text placeholders, e.g.
	// event_name, event_date, organization.
	Variables map[string]string `mapstructure:"variables"`
}

// RetentionConfig holds scheduled pruning configuration.
type RetentionConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"` // 6-field cron expression
	// MaxAge is the age past which saved photos and their records are pruned.
	MaxAge time.Duration `mapstructure:"max_age"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with SNAPBOOTH_ and use underscores
// for nesting. Example: SNAPBOOTH_SERVER_PORT=8090.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/snapbooth")
		v.AddConfigPath("$HOME/.snapbooth")
	}

	v.SetEnvPrefix("SNAPBOOTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so the file only
// has to override what it changes.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Database defaults
	v.SetDefault("database.path", "snapbooth.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Camera defaults: primary capture device plus two webcam fallbacks.
	v.SetDefault("camera.devices", []map[string]any{
		{"index": 0, "width": 1920, "height": 1080, "fps": 30},
		{"index": 1, "width": 1280, "height": 720, "fps": 30},
		{"index": 2, "width": 1280, "height": 720, "fps": 30},
	})
	v.SetDefault("camera.frame_stale_after", defaultFrameStaleAfter)
	v.SetDefault("camera.read_timeout", defaultFrameReadTimeout)
	v.SetDefault("camera.probe_timeout", defaultProbeTimeout)
	v.SetDefault("camera.max_read_failures", defaultMaxReadFailures)

	// Tone defaults
	v.SetDefault("tone.contrast", defaultContrast)
	v.SetDefault("tone.brightness", defaultBrightness)
	v.SetDefault("tone.denoise", true)

	// Output defaults
	v.SetDefault("output.directory", "output")
	v.SetDefault("output.format", "jpg")
	v.SetDefault("output.quality", defaultQuality)
	v.SetDefault("output.prefix", "Mugshot")
	v.SetDefault("output.min_free_bytes", defaultMinFreeByte)

	// Capture defaults
	v.SetDefault("capture.timeout", defaultCaptureTimeout)
	v.SetDefault("capture.storage_retries", defaultStorageRetries)

	// Template defaults
	v.SetDefault("templates.directory", "templates")
	v.SetDefault("templates.default", "default")
	v.SetDefault("templates.variables", map[string]string{
		"event_name": "Photo Booth Event",
		"event_date": time.Now().Format("2006-01-02"),
	})

	// Retention defaults
	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.cron", "0 0 3 * * *") // daily at 3 AM (6-field cron)
	v.SetDefault("retention.max_age", defaultRetentionAge)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if err := c.Camera.Validate(); err != nil {
		return err
	}

	if c.Tone.Contrast <= 0 {
		return fmt.Errorf("tone.contrast must be greater than 0")
	}

	if c.Output.Directory == "" {
		return fmt.Errorf("output.directory is required")
	}
	validOutputs := map[string]bool{"jpg": true, "jpeg": true, "png": true}
	if !validOutputs[strings.ToLower(c.Output.Format)] {
		return fmt.Errorf("output.format must be one of: jpg, jpeg, png")
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}
	if c.Output.Prefix == "" {
		return fmt.Errorf("output.prefix is required")
	}

	if c.Capture.Timeout <= 0 {
		return fmt.Errorf("capture.timeout must be greater than 0")
	}
	if c.Capture.StorageRetries < 0 {
		return fmt.Errorf("capture.storage_retries must not be negative")
	}

	if c.Templates.Directory == "" {
		return fmt.Errorf("templates.directory is required")
	}
	if c.Templates.Default == "" {
		return fmt.Errorf("templates.default is required")
	}

	if c.Retention.Enabled && c.Retention.MaxAge <= 0 {
		return fmt.Errorf("retention.max_age must be greater than 0 when retention is enabled")
	}

	return nil
}

// Validate checks the camera candidate list.
func (c *CameraConfig) Validate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("camera.devices must list at least one device")
	}

	seen := make(map[int]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.Index < 0 {
			return fmt.Errorf("camera.devices[%d].index must not be negative", i)
		}
		if d.Width < 1 || d.Height < 1 {
			return fmt.Errorf("camera.devices[%d] resolution must be positive", i)
		}
		if d.FPS < 1 {
			return fmt.Errorf("camera.devices[%d].fps must be at least 1", i)
		}
		// A duplicate index would make fallback retry the same dead device.
		if seen[d.Index] {
			return fmt.Errorf("camera.devices[%d] duplicates device index %d", i, d.Index)
		}
		seen[d.Index] = true
	}

	if c.FrameStaleAfter <= 0 {
		return fmt.Errorf("camera.frame_stale_after must be greater than 0")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("camera.read_timeout must be greater than 0")
	}
	if c.MaxReadFailures < 1 {
		return fmt.Errorf("camera.max_read_failures must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Extension returns the output file extension without the dot.
func (c *OutputConfig) Extension() string {
	f := strings.ToLower(c.Format)
	if f == "jpeg" {
		return "jpg"
	}
	return f
}
