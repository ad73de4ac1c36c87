package camera

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// OpenCVBackend opens capture devices through OpenCV's VideoCapture API.
// This is the production backend; it handles USB cameras, HDMI capture
// cards and anything else OpenCV can address by ordinal.
type OpenCVBackend struct{}

// NewOpenCVBackend creates a new OpenCV-based capture backend.
func NewOpenCVBackend() *OpenCVBackend {
	return &OpenCVBackend{}
}

// Open opens the candidate device and applies its requested capture mode.
// The device is verified with a test read before being returned, so a
// present-but-dead device fails here instead of in the acquisition loop.
func (b *OpenCVBackend) Open(candidate DeviceCandidate) (Device, error) {
	vc, err := gocv.OpenVideoCapture(candidate.Index)
	if err != nil {
		return nil, fmt.Errorf("opening device %s: %w", candidate.ID(), err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("device %s: %w", candidate.ID(), ErrDeviceUnavailable)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(candidate.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(candidate.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(candidate.FPS))

	dev := &openCVDevice{vc: vc, mat: gocv.NewMat()}

	// Test read: some devices report open but never deliver a frame.
	if _, err := dev.Read(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("test read on device %s: %w", candidate.ID(), err)
	}

	return dev, nil
}

// openCVDevice wraps a gocv.VideoCapture as a Device. VideoCapture is not
// safe for concurrent use, so every call on the handle is serialized with
// mu: Close waits for an in-flight Read to return before releasing the
// native handle, and a Read arriving after Close fails instead of touching
// freed memory.
type openCVDevice struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool

	closeErr error
}

// Read reads the next frame and converts it to an image.Image.
func (d *openCVDevice) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("device closed: %w", ErrDeviceUnavailable)
	}

	if ok := d.vc.Read(&d.mat); !ok {
		return nil, fmt.Errorf("reading frame: %w", ErrDeviceUnavailable)
	}
	if d.mat.Empty() {
		return nil, ErrEmptyFrame
	}

	img, err := d.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	return img, nil
}

// Resolution returns the actual capture resolution reported by the device.
func (d *openCVDevice) Resolution() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, 0
	}
	w := int(d.vc.Get(gocv.VideoCaptureFrameWidth))
	h := int(d.vc.Get(gocv.VideoCaptureFrameHeight))
	return w, h
}

// FPS returns the actual frame rate reported by the device.
func (d *openCVDevice) FPS() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	return d.vc.Get(gocv.VideoCaptureFPS)
}

// Close releases the capture handle and the reusable frame matrix. It
// blocks until any in-flight Read has returned. Safe to call more than
// once.
func (d *openCVDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return d.closeErr
	}
	d.closed = true

	matErr := d.mat.Close()
	vcErr := d.vc.Close()
	if vcErr != nil {
		d.closeErr = fmt.Errorf("closing capture: %w", vcErr)
	} else if matErr != nil {
		d.closeErr = fmt.Errorf("closing frame matrix: %w", matErr)
	}
	return d.closeErr
}
