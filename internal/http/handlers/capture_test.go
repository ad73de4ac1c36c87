package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapbooth/snapbooth/internal/camera"
	"github.com/snapbooth/snapbooth/internal/capture"
	"github.com/snapbooth/snapbooth/internal/config"
	"github.com/snapbooth/snapbooth/internal/finisher"
	"github.com/snapbooth/snapbooth/internal/template"
)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	return se.GetStatus()
}

func TestCaptureHandlerTriggerCreated(t *testing.T) {
	frames := &stubFrames{frame: liveFrame(), state: camera.StateConnected}
	coord := newTestCoordinator(frames, connectedCatalog(), &stubComposer{}, &stubSaver{})
	h := NewCaptureHandler(coord)

	out, err := h.Trigger(context.Background(), &TriggerInput{})
	require.NoError(t, err)

	assert.Equal(t, 201, out.Status)
	assert.Equal(t, "default", out.Body.Template)
	assert.Equal(t, "video0", out.Body.DeviceID)
	require.NotNil(t, out.Body.Saved)
	assert.Equal(t, "Mugshot_20260829_120000_001.jpg", out.Body.Saved.Filename)
}

func TestCaptureHandlerDualPhotoFirstShotAccepted(t *testing.T) {
	frames := &stubFrames{frame: liveFrame(), state: camera.StateConnected}
	catalog := &stubCatalog{
		layout: &template.Layout{
			Name:      "dual_photo",
			DualPhoto: true,
			PhotoSlots: []template.NamedSlot{
				{Name: "front_view", Rect: template.Rect{X: 0, Y: 0, Width: 2, Height: 4}},
				{Name: template.SideViewSlot, Rect: template.Rect{X: 2, Y: 0, Width: 2, Height: 4}},
			},
			FinalSize: template.Size{Width: 4, Height: 4},
		},
		active: "dual_photo",
	}
	saver := &stubSaver{}
	coord := newTestCoordinator(frames, catalog, &stubComposer{}, saver)
	h := NewCaptureHandler(coord)

	out, err := h.Trigger(context.Background(), &TriggerInput{})
	require.NoError(t, err)
	assert.Equal(t, 202, out.Status)
	assert.True(t, out.Body.AwaitingSecond)
	assert.Nil(t, out.Body.Saved)

	out, err = h.Trigger(context.Background(), &TriggerInput{})
	require.NoError(t, err)
	assert.Equal(t, 201, out.Status)
	require.NotNil(t, out.Body.Saved)
}

func TestCaptureHandlerCameraUnavailable(t *testing.T) {
	frames := &stubFrames{frame: nil, state: camera.StateFailed}
	coord := newTestCoordinator(frames, connectedCatalog(), &stubComposer{}, &stubSaver{})
	h := NewCaptureHandler(coord)

	_, err := h.Trigger(context.Background(), &TriggerInput{})
	require.Error(t, err)
	assert.Equal(t, 503, statusOf(t, err))
}

func TestCaptureHandlerCompositionFailure(t *testing.T) {
	frames := &stubFrames{frame: liveFrame(), state: camera.StateConnected}
	coord := newTestCoordinator(frames, connectedCatalog(), &stubComposer{err: errStub}, &stubSaver{})
	h := NewCaptureHandler(coord)

	_, err := h.Trigger(context.Background(), &TriggerInput{})
	require.Error(t, err)
	assert.Equal(t, 500, statusOf(t, err))
}

func TestCaptureHandlerStorageFailure(t *testing.T) {
	frames := &stubFrames{frame: liveFrame(), state: camera.StateConnected}
	coord := newTestCoordinator(frames, connectedCatalog(), &stubComposer{}, &stubSaver{err: errStub})
	h := NewCaptureHandler(coord)

	_, err := h.Trigger(context.Background(), &TriggerInput{})
	require.Error(t, err)
	assert.Equal(t, 500, statusOf(t, err))
}

func TestCaptureHandlerInsufficientSpace(t *testing.T) {
	frames := &stubFrames{frame: liveFrame(), state: camera.StateConnected}
	coord := newTestCoordinator(frames, connectedCatalog(), &stubComposer{}, &stubSaver{err: finisher.ErrInsufficientSpace})
	h := NewCaptureHandler(coord)

	_, err := h.Trigger(context.Background(), &TriggerInput{})
	require.Error(t, err)
	assert.Equal(t, 500, statusOf(t, err))
}

func TestCaptureHandlerBusyConflict(t *testing.T) {
	frames := &stubFrames{frame: liveFrame(), state: camera.StateConnected}
	saver := &stubSaver{block: make(chan struct{})}
	coord := capture.NewCoordinator(frames, connectedCatalog(), &stubComposer{}, saver, nil, nil, config.CaptureConfig{
		Timeout:        5 * time.Second,
		StorageRetries: 0,
	}, nil)
	h := NewCaptureHandler(coord)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = h.Trigger(context.Background(), &TriggerInput{})
	}()

	// Wait for the first trigger to take the in-flight latch.
	require.Eventually(t, coord.InFlight, time.Second, 5*time.Millisecond)

	_, err := h.Trigger(context.Background(), &TriggerInput{})
	require.Error(t, err)
	assert.Equal(t, 409, statusOf(t, err))

	close(saver.block)
	wg.Wait()
}

func TestCaptureHandlerSlowSaveKept(t *testing.T) {
	frames := &stubFrames{frame: liveFrame(), state: camera.StateConnected}
	saver := &stubSaver{block: make(chan struct{})}
	coord := capture.NewCoordinator(frames, connectedCatalog(), &stubComposer{}, saver, nil, nil, config.CaptureConfig{
		Timeout:        50 * time.Millisecond,
		StorageRetries: 0,
	}, nil)
	h := NewCaptureHandler(coord)

	go func() {
		// Release the save after the budget has expired.
		time.Sleep(100 * time.Millisecond)
		close(saver.block)
	}()

	out, err := h.Trigger(context.Background(), &TriggerInput{})
	require.NoError(t, err)
	assert.Equal(t, 200, out.Status)
	require.NotNil(t, out.Body.Saved)
}
