package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/snapbooth/snapbooth/internal/camera"
	"github.com/snapbooth/snapbooth/internal/config"
	"github.com/snapbooth/snapbooth/internal/events"
	"github.com/snapbooth/snapbooth/internal/finisher"
	"github.com/snapbooth/snapbooth/internal/models"
	"github.com/snapbooth/snapbooth/internal/observability"
	"github.com/snapbooth/snapbooth/internal/repository"
	"github.com/snapbooth/snapbooth/internal/template"
)

// FrameProvider supplies the most recent camera frame and connection state.
type FrameProvider interface {
	CurrentFrame() (*camera.Frame, camera.ConnectionState)
}

// TemplateSource supplies the active layout and substitution variables.
type TemplateSource interface {
	Active() (*template.Layout, string)
	Variables() map[string]string
}

// Composer renders one or two frames into a layout.
type Composer interface {
	Compose(photo image.Image, layout *template.Layout, vars map[string]string) (*image.RGBA, error)
	ComposeDual(front, side image.Image, layout *template.Layout, vars map[string]string) (*image.RGBA, error)
}

// Saver tone-adjusts, encodes and persists a composed image.
type Saver interface {
	Finish(ctx context.Context, img *image.RGBA) (*finisher.SavedPhoto, error)
}

// Result describes one completed capture. For a dual-photo template the
// first trigger holds the front shot and returns with AwaitingSecond set and
// no saved photo; the second trigger composes both shots and saves.
type Result struct {
	AttemptID      string               `json:"attempt_id"`
	Template       string               `json:"template"`
	DeviceID       string               `json:"device_id"`
	Saved          *finisher.SavedPhoto `json:"photo,omitempty"`
	AwaitingSecond bool                 `json:"awaiting_second,omitempty"`
	Elapsed        time.Duration        `json:"-"`
	ElapsedMs      int64                `json:"elapsed_ms"`
}

// Coordinator serializes capture triggers. At most one capture is in
// flight at any time; concurrent triggers are rejected with
// ErrCaptureBusy instead of queued, matching what a booth operator
// expects from mashing the button.
type Coordinator struct {
	frames    FrameProvider
	templates TemplateSource
	composer  Composer
	saver     Saver
	records   repository.CaptureRepository
	bus       *events.Bus
	logger    *slog.Logger
	cfg       config.CaptureConfig

	inFlight atomic.Bool

	// held is the front shot of a dual-photo capture waiting for its
	// second trigger. Guarded by heldMu; a template switch between the
	// two triggers discards it.
	heldMu sync.Mutex
	held   *heldShot
}

type heldShot struct {
	frame    *camera.Frame
	template string
}

// NewCoordinator wires the capture path. records may be nil when history
// persistence is disabled.
func NewCoordinator(
	frames FrameProvider,
	templates TemplateSource,
	composer Composer,
	saver Saver,
	records repository.CaptureRepository,
	bus *events.Bus,
	cfg config.CaptureConfig,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		frames:    frames,
		templates: templates,
		composer:  composer,
		saver:     saver,
		records:   records,
		bus:       bus,
		cfg:       cfg,
		logger:    observability.WithComponent(logger, "capture"),
	}
}

// InFlight reports whether a capture is currently running.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// AwaitingSecond reports whether a dual-photo capture is holding its first
// shot for template. An empty template matches any held shot.
func (c *Coordinator) AwaitingSecond(template string) bool {
	c.heldMu.Lock()
	defer c.heldMu.Unlock()
	return c.held != nil && (template == "" || c.held.template == template)
}

// takeHeld consumes the held front shot when it belongs to template. A held
// shot for a different template is stale and gets discarded.
func (c *Coordinator) takeHeld(template string) *camera.Frame {
	c.heldMu.Lock()
	defer c.heldMu.Unlock()
	if c.held == nil {
		return nil
	}
	held := c.held
	c.held = nil
	if held.template != template {
		c.logger.Info("discarding held shot after template switch",
			"held_template", held.template, "template", template)
		return nil
	}
	return held.frame
}

func (c *Coordinator) hold(frame *camera.Frame, template string) {
	c.heldMu.Lock()
	defer c.heldMu.Unlock()
	c.held = &heldShot{frame: frame, template: template}
}

// Trigger runs one capture end to end: grab the freshest frame, compose it
// into the active template, finish and save. The whole path shares one
// wall-clock budget; a save that completes after the budget is kept and the
// trigger still reports ErrCaptureTimeout alongside the result.
func (c *Coordinator) Trigger(ctx context.Context) (*Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCaptureBusy
	}
	defer c.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	attemptID := uuid.NewString()
	start := time.Now()
	logger := c.logger.With("attempt_id", attemptID)
	c.publish(events.TypeCaptureStarted, map[string]any{"attempt_id": attemptID})

	result, err := c.run(ctx, attemptID, start, logger)
	if err != nil && result == nil {
		logger.Error("capture failed", "error", err, "elapsed", time.Since(start))
		c.publish(events.TypeCaptureFailed, map[string]any{
			"attempt_id": attemptID,
			"error":      err.Error(),
		})
		return nil, err
	}

	if result.AwaitingSecond {
		logger.Info("first shot held, waiting for second trigger", "template", result.Template)
		c.publish(events.TypeCaptureHeld, map[string]any{
			"attempt_id": attemptID,
			"template":   result.Template,
		})
		return result, nil
	}

	data := map[string]any{
		"attempt_id": attemptID,
		"filename":   result.Saved.Filename,
		"template":   result.Template,
		"elapsed_ms": result.ElapsedMs,
	}
	if err != nil {
		// Saved but over budget.
		logger.Warn("capture completed past budget", "filename", result.Saved.Filename, "elapsed", result.Elapsed)
		data["late"] = true
	} else {
		logger.Info("capture completed", "filename", result.Saved.Filename, "elapsed", result.Elapsed)
	}
	c.publish(events.TypeCaptureCompleted, data)
	return result, err
}

func (c *Coordinator) run(ctx context.Context, attemptID string, start time.Time, logger *slog.Logger) (*Result, error) {
	frame, state := c.frames.CurrentFrame()
	if state != camera.StateConnected || frame == nil {
		return nil, fmt.Errorf("%w: camera state %s", ErrCameraUnavailable, state)
	}

	layout, templateName := c.templates.Active()
	if layout == nil {
		return nil, fmt.Errorf("%w: no active template", ErrComposition)
	}

	front := c.takeHeld(templateName)
	if layout.DualPhoto && front == nil {
		c.hold(frame, templateName)
		elapsed := time.Since(start)
		return &Result{
			AttemptID:      attemptID,
			Template:       templateName,
			DeviceID:       frame.DeviceID,
			AwaitingSecond: true,
			Elapsed:        elapsed,
			ElapsedMs:      elapsed.Milliseconds(),
		}, nil
	}

	var composed *image.RGBA
	var err error
	if layout.DualPhoto {
		composed, err = c.composer.ComposeDual(front.Image, frame.Image, layout, c.templates.Variables())
	} else {
		composed, err = c.composer.Compose(frame.Image, layout, c.templates.Variables())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: template %q: %v", ErrComposition, templateName, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: after composition: %v", ErrCaptureTimeout, err)
	}

	saved, err := c.save(ctx, composed, logger)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	result := &Result{
		AttemptID: attemptID,
		Template:  templateName,
		DeviceID:  frame.DeviceID,
		Saved:     saved,
		Elapsed:   elapsed,
		ElapsedMs: elapsed.Milliseconds(),
	}

	c.record(attemptID, templateName, frame.DeviceID, saved, elapsed, logger)

	if ctx.Err() != nil {
		return result, fmt.Errorf("%w: photo saved as %s after budget", ErrCaptureTimeout, saved.Filename)
	}
	return result, nil
}

// save attempts the finish step with bounded retries. Transient write
// failures are retried; a free-space refusal or an expired budget is not.
func (c *Coordinator) save(ctx context.Context, img *image.RGBA, logger *slog.Logger) (*finisher.SavedPhoto, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.StorageRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w: budget expired retrying save: %v", ErrCaptureTimeout, lastErr)
			}
			return nil, fmt.Errorf("%w: before save: %v", ErrCaptureTimeout, err)
		}

		saved, err := c.saver.Finish(ctx, img)
		if err == nil {
			return saved, nil
		}
		lastErr = err
		if errors.Is(err, finisher.ErrInsufficientSpace) {
			break
		}
		logger.Warn("save attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrStorage, lastErr)
}

// record persists the history row. Persistence is best effort: a history
// failure never fails a capture whose photo already exists on disk.
func (c *Coordinator) record(attemptID, templateName, deviceID string, saved *finisher.SavedPhoto, elapsed time.Duration, logger *slog.Logger) {
	if c.records == nil {
		return
	}
	rec := &models.CaptureRecord{
		AttemptID:    attemptID,
		Filename:     saved.Filename,
		TemplateName: templateName,
		DeviceID:     deviceID,
		Width:        saved.Width,
		Height:       saved.Height,
		SizeBytes:    saved.SizeBytes,
		Sequence:     saved.Sequence,
		DurationMs:   elapsed.Milliseconds(),
	}
	recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.records.Create(recCtx, rec); err != nil {
		logger.Warn("recording capture history failed", "error", err)
	}
}

func (c *Coordinator) publish(typ events.Type, data map[string]any) {
	if c.bus != nil {
		c.bus.Publish(typ, data)
	}
}
