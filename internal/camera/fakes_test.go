package camera

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// fakeDevice is a scriptable Device. readFn drives each Read call; closing
// the device unblocks a blocked reader.
type fakeDevice struct {
	readFn func(d *fakeDevice) (image.Image, error)
	width  int
	height int
	fps    float64

	closed  atomic.Bool
	closeCh chan struct{}
	reads   atomic.Int64
}

func newFakeDevice(readFn func(d *fakeDevice) (image.Image, error)) *fakeDevice {
	return &fakeDevice{
		readFn:  readFn,
		width:   640,
		height:  480,
		fps:     30,
		closeCh: make(chan struct{}),
	}
}

func (d *fakeDevice) Read() (image.Image, error) {
	d.reads.Add(1)
	return d.readFn(d)
}

func (d *fakeDevice) Resolution() (int, int) { return d.width, d.height }
func (d *fakeDevice) FPS() float64           { return d.fps }

func (d *fakeDevice) Close() error {
	if d.closed.CompareAndSwap(false, true) {
		close(d.closeCh)
	}
	return nil
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 64, 48))
}

// streamingRead returns a fresh frame on every call.
func streamingRead(d *fakeDevice) (image.Image, error) {
	if d.closed.Load() {
		return nil, ErrDeviceUnavailable
	}
	time.Sleep(time.Millisecond)
	return testImage(), nil
}

// oneFrameThenBlock returns one frame, then blocks until the device is
// closed.
func oneFrameThenBlock(d *fakeDevice) (image.Image, error) {
	if d.reads.Load() == 1 {
		return testImage(), nil
	}
	<-d.closeCh
	return nil, ErrDeviceUnavailable
}

// failingRead fails every read immediately.
func failingRead(d *fakeDevice) (image.Image, error) {
	return nil, ErrEmptyFrame
}

// fakeBackend scripts Open outcomes per device index. Each Open consumes
// the next entry in that index's script; a nil entry means success with a
// streaming device.
type fakeBackend struct {
	mu      sync.Mutex
	scripts map[int][]func() (Device, error)
	opens   map[int]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		scripts: make(map[int][]func() (Device, error)),
		opens:   make(map[int]int),
	}
}

func (b *fakeBackend) script(index int, fn func() (Device, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[index] = append(b.scripts[index], fn)
}

func (b *fakeBackend) openCount(index int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens[index]
}

func (b *fakeBackend) Open(candidate DeviceCandidate) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens[candidate.Index]++

	script := b.scripts[candidate.Index]
	if len(script) == 0 {
		return nil, fmt.Errorf("%w: no scripted outcome for index %d", ErrDeviceUnavailable, candidate.Index)
	}
	fn := script[0]
	b.scripts[candidate.Index] = script[1:]
	return fn()
}

func opens(dev Device) func() (Device, error) {
	return func() (Device, error) { return dev, nil }
}

func fails() func() (Device, error) {
	return func() (Device, error) { return nil, ErrDeviceUnavailable }
}
