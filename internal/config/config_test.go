package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	// A missing explicit config file is an error; no file at all is not.
	require.Error(t, err)

	cfg, err = Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "snapbooth.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.Len(t, cfg.Camera.Devices, 3)
	assert.Equal(t, DeviceConfig{Index: 0, Width: 1920, Height: 1080, FPS: 30}, cfg.Camera.Devices[0])
	assert.Equal(t, 1280, cfg.Camera.Devices[1].Width)
	assert.Equal(t, 3, cfg.Camera.MaxReadFailures)

	assert.Equal(t, 1.1, cfg.Tone.Contrast)
	assert.Equal(t, 10, cfg.Tone.Brightness)
	assert.True(t, cfg.Tone.Denoise)

	assert.Equal(t, "Mugshot", cfg.Output.Prefix)
	assert.Equal(t, 95, cfg.Output.Quality)
	assert.Equal(t, "jpg", cfg.Output.Extension())

	assert.Equal(t, 10*time.Second, cfg.Capture.Timeout)
	assert.Equal(t, 3, cfg.Capture.StorageRetries)

	assert.Equal(t, "default", cfg.Templates.Default)
	assert.False(t, cfg.Retention.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
camera:
  devices:
    - index: 4
      width: 640
      height: 480
      fps: 15
output:
  prefix: EventPix
  format: png
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	require.Len(t, cfg.Camera.Devices, 1)
	assert.Equal(t, "video4", cfg.Camera.Devices[0].ID())
	assert.Equal(t, "EventPix", cfg.Output.Prefix)
	assert.Equal(t, "png", cfg.Output.Extension())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SNAPBOOTH_SERVER_PORT", "9999")
	t.Setenv("SNAPBOOTH_OUTPUT_PREFIX", "Env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "Env", cfg.Output.Prefix)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("duplicate device index", func(t *testing.T) {
		cfg := valid(t)
		cfg.Camera.Devices = []DeviceConfig{
			{Index: 0, Width: 1920, Height: 1080, FPS: 30},
			{Index: 0, Width: 1280, Height: 720, FPS: 30},
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicates device index")
	})

	t.Run("empty device list", func(t *testing.T) {
		cfg := valid(t)
		cfg.Camera.Devices = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative device index", func(t *testing.T) {
		cfg := valid(t)
		cfg.Camera.Devices[0].Index = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero contrast", func(t *testing.T) {
		cfg := valid(t)
		cfg.Tone.Contrast = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad output format", func(t *testing.T) {
		cfg := valid(t)
		cfg.Output.Format = "gif"
		assert.Error(t, cfg.Validate())
	})

	t.Run("quality out of range", func(t *testing.T) {
		cfg := valid(t)
		cfg.Output.Quality = 101
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := valid(t)
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("retention enabled without max age", func(t *testing.T) {
		cfg := valid(t)
		cfg.Retention.Enabled = true
		cfg.Retention.MaxAge = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestDeviceConfigID(t *testing.T) {
	d := DeviceConfig{Index: 2}
	assert.Equal(t, "video2", d.ID())
}

func TestOutputConfigExtension(t *testing.T) {
	assert.Equal(t, "jpg", (&OutputConfig{Format: "jpeg"}).Extension())
	assert.Equal(t, "jpg", (&OutputConfig{Format: "JPG"}).Extension())
	assert.Equal(t, "png", (&OutputConfig{Format: "png"}).Extension())
}
