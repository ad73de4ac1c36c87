package finisher

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/snapbooth/snapbooth/internal/config"
	"github.com/snapbooth/snapbooth/internal/events"
	"github.com/snapbooth/snapbooth/internal/observability"
	"github.com/snapbooth/snapbooth/internal/storage"
)

// ErrInsufficientSpace is returned when the output filesystem is below the
// configured free-space floor. The check runs before encoding so a full
// disk is refused cleanly instead of failing mid-write.
var ErrInsufficientSpace = fmt.Errorf("insufficient free space on output filesystem")

// SavedPhoto describes one photo written to the output directory.
type SavedPhoto struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Sequence  uint64    `json:"sequence"`
	SizeBytes int64     `json:"size_bytes"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	SavedAt   time.Time `json:"saved_at"`
}

// Finisher applies tone adjustments, encodes and atomically persists
// composed images. Safe for use from one capture at a time; the
// coordinator serializes triggers.
type Finisher struct {
	sandbox *storage.Sandbox
	tone    config.ToneConfig
	output  config.OutputConfig
	namer   *Namer
	bus     *events.Bus
	logger  *slog.Logger

	// diskFree reports free bytes on the filesystem holding path.
	// Swappable in tests.
	diskFree func(path string) (uint64, error)
}

// New creates a finisher writing into the sandboxed output directory.
func New(sandbox *storage.Sandbox, tone config.ToneConfig, output config.OutputConfig, bus *events.Bus, logger *slog.Logger) *Finisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finisher{
		sandbox:  sandbox,
		tone:     tone,
		output:   output,
		namer:    NewNamer(output.Prefix, output.Extension()),
		bus:      bus,
		logger:   observability.WithComponent(logger, "finisher"),
		diskFree: diskFree,
	}
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// CheckSpace verifies the output filesystem is above the free-space floor.
func (f *Finisher) CheckSpace() error {
	if f.output.MinFreeBytes == 0 {
		return nil
	}
	free, err := f.diskFree(f.sandbox.BaseDir())
	if err != nil {
		return fmt.Errorf("querying free space: %w", err)
	}
	if free < f.output.MinFreeBytes {
		return fmt.Errorf("%w: %d bytes free, floor is %d", ErrInsufficientSpace, free, f.output.MinFreeBytes)
	}
	return nil
}

// DiskUsage returns usage stats for the output filesystem.
func (f *Finisher) DiskUsage() (*disk.UsageStat, error) {
	return disk.Usage(f.sandbox.BaseDir())
}

// Finish tone-adjusts, encodes and saves one composed image. The write is
// atomic: an interrupted save leaves no partial file under the final name.
func (f *Finisher) Finish(ctx context.Context, img *image.RGBA) (*SavedPhoto, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.CheckSpace(); err != nil {
		return nil, err
	}

	adjusted := ApplyTone(img, f.tone)

	var buf bytes.Buffer
	switch f.output.Extension() {
	case "png":
		if err := png.Encode(&buf, adjusted); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, adjusted, &jpeg.Options{Quality: f.output.Quality}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
	}

	now := time.Now()
	name, seq := f.namer.Next(now)
	if err := f.sandbox.AtomicWrite(name, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}

	bounds := adjusted.Bounds()
	saved := &SavedPhoto{
		Filename:  name,
		Path:      filepath.Join(f.sandbox.BaseDir(), name),
		Sequence:  seq,
		SizeBytes: int64(buf.Len()),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		SavedAt:   now,
	}

	f.logger.Info("photo saved",
		"filename", saved.Filename,
		"size_bytes", saved.SizeBytes,
		"sequence", saved.Sequence)
	if f.bus != nil {
		f.bus.Publish(events.TypePhotoSaved, map[string]any{
			"filename":   saved.Filename,
			"size_bytes": saved.SizeBytes,
			"sequence":   saved.Sequence,
		})
	}
	return saved, nil
}
