package handlers

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/snapbooth/snapbooth/internal/camera"
	"github.com/snapbooth/snapbooth/internal/capture"
	"github.com/snapbooth/snapbooth/internal/config"
	"github.com/snapbooth/snapbooth/internal/finisher"
	"github.com/snapbooth/snapbooth/internal/template"
)

// Shared stubs for handler tests.

type stubCamera struct {
	info camera.Info
	err  error
}

func (s *stubCamera) Snapshot() camera.Info { return s.info }
func (s *stubCamera) Reinitialize() error   { return s.err }

type stubCatalog struct {
	summaries []template.Summary
	layout    *template.Layout
	active    string
	selectErr error
	selected  string
}

func (s *stubCatalog) List() []template.Summary           { return s.summaries }
func (s *stubCatalog) Active() (*template.Layout, string) { return s.layout, s.active }
func (s *stubCatalog) Variables() map[string]string       { return nil }

func (s *stubCatalog) Select(name string) error {
	if s.selectErr != nil {
		return s.selectErr
	}
	s.selected = name
	s.active = name
	return nil
}

type stubFrames struct {
	frame *camera.Frame
	state camera.ConnectionState
}

func (s *stubFrames) CurrentFrame() (*camera.Frame, camera.ConnectionState) {
	return s.frame, s.state
}

type stubComposer struct {
	err error
}

func (s *stubComposer) Compose(photo image.Image, layout *template.Layout, vars map[string]string) (*image.RGBA, error) {
	if s.err != nil {
		return nil, s.err
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (s *stubComposer) ComposeDual(front, side image.Image, layout *template.Layout, vars map[string]string) (*image.RGBA, error) {
	return s.Compose(front, layout, vars)
}

type stubSaver struct {
	err   error
	block chan struct{}
}

func (s *stubSaver) Finish(ctx context.Context, img *image.RGBA) (*finisher.SavedPhoto, error) {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return &finisher.SavedPhoto{
		Filename:  "Mugshot_20260829_120000_001.jpg",
		Sequence:  1,
		SizeBytes: 1024,
		Width:     4,
		Height:    4,
		SavedAt:   time.Now(),
	}, nil
}

func liveFrame() *camera.Frame {
	return &camera.Frame{
		Image:     image.NewRGBA(image.Rect(0, 0, 8, 8)),
		Width:     8,
		Height:    8,
		Timestamp: time.Now(),
		DeviceID:  "video0",
	}
}

func connectedCatalog() *stubCatalog {
	return &stubCatalog{
		layout: &template.Layout{
			Name:      "default",
			PhotoSlot: template.Rect{X: 0, Y: 0, Width: 4, Height: 4},
			FinalSize: template.Size{Width: 4, Height: 4},
		},
		active: "default",
	}
}

func newTestCoordinator(frames *stubFrames, catalog *stubCatalog, composer *stubComposer, saver *stubSaver) *capture.Coordinator {
	return capture.NewCoordinator(frames, catalog, composer, saver, nil, nil, config.CaptureConfig{
		Timeout:        time.Second,
		StorageRetries: 0,
	}, nil)
}

var errStub = errors.New("stub failure")
