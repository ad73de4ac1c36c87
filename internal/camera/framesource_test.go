package camera

import (
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSourceLatest_NilBeforeFirstFrame(t *testing.T) {
	dev := newFakeDevice(oneFrameThenBlock)
	fs := newFrameSource(dev, testCandidates()[0], 1, 5*time.Second, nil, nil)

	assert.Nil(t, fs.Latest())

	fs.Start()
	defer fs.Stop()

	require.Eventually(t, func() bool {
		return fs.Latest() != nil
	}, time.Second, time.Millisecond)

	frame := fs.Latest()
	assert.Equal(t, "video0", frame.DeviceID)
	assert.False(t, frame.Timestamp.IsZero())
}

func TestFrameSourceLatest_NewestFrameWins(t *testing.T) {
	dev := newFakeDevice(streamingRead)
	fs := newFrameSource(dev, testCandidates()[0], 1, 5*time.Second, nil, nil)
	fs.Start()
	defer fs.Stop()

	require.Eventually(t, func() bool {
		return fs.Latest() != nil
	}, time.Second, time.Millisecond)

	first := fs.Latest()
	require.Eventually(t, func() bool {
		return fs.Latest() != first
	}, time.Second, time.Millisecond)

	// A slow consumer never sees frames in between, only the newest.
	second := fs.Latest()
	assert.True(t, !second.Timestamp.Before(first.Timestamp))
}

func TestFrameSourceStop_ReleasesDevice(t *testing.T) {
	dev := newFakeDevice(streamingRead)
	fs := newFrameSource(dev, testCandidates()[0], 1, 5*time.Second, nil, nil)
	fs.Start()

	fs.Stop()
	assert.True(t, dev.closed.Load())

	// Stop is idempotent.
	fs.Stop()
}

func TestFrameSourceReadFailure_ReportsOnceAndStops(t *testing.T) {
	dev := newFakeDevice(failingRead)

	var gotGeneration atomic.Uint64
	var reports atomic.Int64
	failed := make(chan error, 4)
	fs := newFrameSource(dev, testCandidates()[0], 7, 5*time.Second, func(gen uint64, err error) {
		gotGeneration.Store(gen)
		reports.Add(1)
		failed <- err
	}, nil)
	fs.Start()

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, ErrEmptyFrame)
	case <-time.After(time.Second):
		t.Fatal("failure was never reported")
	}

	assert.Equal(t, uint64(7), gotGeneration.Load())
	assert.True(t, dev.closed.Load())

	// The source stopped itself; Stop must not hang afterwards.
	fs.Stop()
	assert.Equal(t, int64(1), reports.Load())
}

// serializedDevice mirrors the production device contract: every call
// takes one lock, so Close waits for an in-flight Read to return and a
// Read after Close fails instead of touching a released handle.
type serializedDevice struct {
	mu      sync.Mutex
	closed  atomic.Bool
	release chan struct{}
}

func newSerializedDevice() *serializedDevice {
	return &serializedDevice{release: make(chan struct{})}
}

func (d *serializedDevice) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed.Load() {
		return nil, ErrDeviceUnavailable
	}
	<-d.release
	return testImage(), nil
}

func (d *serializedDevice) Resolution() (int, int) { return 640, 480 }
func (d *serializedDevice) FPS() float64           { return 30 }

func (d *serializedDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed.Store(true)
	return nil
}

func TestFrameSourceClose_WaitsForInFlightRead(t *testing.T) {
	dev := newSerializedDevice()

	failed := make(chan error, 1)
	fs := newFrameSource(dev, testCandidates()[0], 1, 20*time.Millisecond, func(gen uint64, err error) {
		failed <- err
	}, nil)
	fs.Start()

	// The loop times out while the reader is wedged inside Read. The close
	// must not complete while that read still holds the device.
	time.Sleep(80 * time.Millisecond)
	assert.False(t, dev.closed.Load(), "device closed while a read was in flight")

	select {
	case err := <-failed:
		t.Fatalf("failure reported before the device was released: %v", err)
	default:
	}

	// Releasing the wedged read lets the close and the failure report
	// through.
	close(dev.release)
	select {
	case err := <-failed:
		assert.ErrorIs(t, err, ErrFrameReadTimeout)
	case <-time.After(time.Second):
		t.Fatal("timeout was never reported")
	}
	assert.True(t, dev.closed.Load())

	fs.Stop()

	// A straggler read against the closed device fails cleanly.
	_, err := dev.Read()
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestFrameSourceReadTimeout(t *testing.T) {
	blockForever := func(d *fakeDevice) (image.Image, error) {
		<-d.closeCh
		return nil, ErrDeviceUnavailable
	}
	dev := newFakeDevice(blockForever)

	failed := make(chan error, 1)
	fs := newFrameSource(dev, testCandidates()[0], 1, 30*time.Millisecond, func(gen uint64, err error) {
		failed <- err
	}, nil)
	fs.Start()

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, ErrFrameReadTimeout)
	case <-time.After(time.Second):
		t.Fatal("timeout was never reported")
	}
	assert.True(t, dev.closed.Load())
}
