package camera

import (
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// readResult is one outcome of a device read.
type readResult struct {
	img image.Image
	err error
}

// FrameSource owns one open device and pulls frames continuously on its own
// goroutine. The newest frame always wins: frames are published to a
// single-slot atomic holder with overwrite semantics, never queued, because
// the booth only ever cares about "now".
//
// On a read failure or timeout the source reports once to its supervisor via
// the failure callback and stops itself. The device handle is released on
// every exit path.
type FrameSource struct {
	device      Device
	candidate   DeviceCandidate
	readTimeout time.Duration

	// generation lets the supervisor discard failure reports from a source
	// it has already replaced.
	generation uint64
	onFailure  func(generation uint64, err error)

	latest atomic.Pointer[Frame]

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger *slog.Logger
}

// newFrameSource creates a FrameSource for an already-open device.
// Call Start to begin acquisition.
func newFrameSource(device Device, candidate DeviceCandidate, generation uint64, readTimeout time.Duration, onFailure func(uint64, error), logger *slog.Logger) *FrameSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameSource{
		device:      device,
		candidate:   candidate,
		readTimeout: readTimeout,
		generation:  generation,
		onFailure:   onFailure,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.With(slog.String("device", candidate.ID())),
	}
}

// Start launches the acquisition loop.
func (fs *FrameSource) Start() {
	go fs.run()
}

// Latest returns the most recently published frame, or nil if no frame has
// been published yet. Never blocks; readers see either the previous or the
// next frame, never a partial one.
func (fs *FrameSource) Latest() *Frame {
	return fs.latest.Load()
}

// Candidate returns the device candidate this source was opened from.
func (fs *FrameSource) Candidate() DeviceCandidate {
	return fs.candidate
}

// Stop signals the acquisition loop to exit and waits until the device
// handle has been released. Safe to call concurrently and after the loop
// stopped itself.
func (fs *FrameSource) Stop() {
	fs.stopOnce.Do(func() { close(fs.stop) })
	<-fs.done
}

// run drives the acquisition loop and guarantees the device is released
// before any failure is reported, so the supervisor may immediately reopen
// the same device.
func (fs *FrameSource) run() {
	err := fs.loop()

	// The device serializes Close against Read, so this waits for any
	// in-flight read to return before the handle is released. A reader
	// goroutine that calls Read afterwards gets a closed-device error and
	// exits through the results channel.
	if cerr := fs.device.Close(); cerr != nil {
		fs.logger.Warn("closing device", slog.String("error", cerr.Error()))
	}
	close(fs.done)

	if err != nil && fs.onFailure != nil {
		fs.onFailure(fs.generation, err)
	}
}

// loop reads until stopped or failed. Returns nil on a requested stop and
// the read error otherwise.
func (fs *FrameSource) loop() error {
	results := make(chan readResult, 1)
	go fs.readAhead(results)

	for {
		select {
		case <-fs.stop:
			return nil
		case res := <-results:
			if res.err != nil {
				fs.logger.Warn("frame read failed", slog.String("error", res.err.Error()))
				return res.err
			}
			fs.publish(res.img)
		case <-time.After(fs.readTimeout):
			fs.logger.Warn("frame read timed out",
				slog.Duration("timeout", fs.readTimeout),
			)
			return ErrFrameReadTimeout
		}
	}
}

// readAhead reads frames from the device and forwards them to the loop.
// It exits when a read fails or when the loop has gone away.
func (fs *FrameSource) readAhead(results chan<- readResult) {
	for {
		img, err := fs.device.Read()
		select {
		case results <- readResult{img: img, err: err}:
			if err != nil {
				return
			}
		case <-fs.stop:
			return
		case <-fs.done:
			return
		}
	}
}

// publish stores the frame in the single-slot holder, overwriting any
// unconsumed previous frame.
func (fs *FrameSource) publish(img image.Image) {
	bounds := img.Bounds()
	frame := &Frame{
		Image:     img,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Timestamp: time.Now(),
		DeviceID:  fs.candidate.ID(),
	}
	fs.latest.Store(frame)
}
