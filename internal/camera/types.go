// Package camera provides camera device probing, continuous frame
// acquisition, and supervised fallback across an ordered candidate list.
package camera

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// DeviceCandidate describes one camera device to try, with its requested
// capture mode. Candidates are immutable once read from configuration and
// tried in list order: the first is the primary, the rest are fallbacks.
type DeviceCandidate struct {
	// Index is the OS-level capture device ordinal.
	Index int
	// Width and Height are the requested capture resolution.
	Width  int
	Height int
	// FPS is the requested frame rate.
	FPS int
}

// ID returns the identifier used in logs, events and frame metadata.
func (c DeviceCandidate) ID() string {
	return fmt.Sprintf("video%d", c.Index)
}

// Frame is one immutable captured image plus metadata. It is published by a
// FrameSource and handed to consumers by pointer; nothing mutates it after
// creation.
type Frame struct {
	Image     image.Image
	Width     int
	Height    int
	Timestamp time.Time
	DeviceID  string
}

// Age returns how old the frame is.
func (f *Frame) Age() time.Duration {
	return time.Since(f.Timestamp)
}

// ConnectionState is the camera subsystem state as seen by consumers.
// It is owned exclusively by the Supervisor.
type ConnectionState int

const (
	// StateUninitialized means the supervisor has not been started.
	StateUninitialized ConnectionState = iota
	// StateProbing means a device open attempt is in progress.
	StateProbing
	// StateConnected means frames are flowing from the current device.
	StateConnected
	// StateDegraded means the current device is failing or stale and
	// recovery is being attempted.
	StateDegraded
	// StateFailed means every candidate was tried and none is usable.
	// Terminal until an explicit Reinitialize.
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateProbing:
		return "probing"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Device is one open capture device handle. Implementations are not safe
// for concurrent use; a Device is owned by exactly one FrameSource.
type Device interface {
	// Read blocks until the next frame is available and returns it.
	Read() (image.Image, error)
	// Resolution returns the actual capture resolution reported by the device.
	Resolution() (width, height int)
	// FPS returns the actual frame rate reported by the device.
	FPS() float64
	// Close releases the device handle.
	Close() error
}

// Backend opens capture devices. The production backend wraps OpenCV;
// tests substitute fakes.
type Backend interface {
	// Open opens the candidate at its requested mode. It must return an
	// error rather than a dead handle when the device is not usable.
	Open(candidate DeviceCandidate) (Device, error)
}

// Sentinel errors for the acquisition path.
var (
	// ErrDeviceUnavailable indicates no candidate device could be opened.
	ErrDeviceUnavailable = errors.New("no camera device available")

	// ErrFrameReadTimeout indicates a frame read exceeded the read timeout.
	ErrFrameReadTimeout = errors.New("frame read timed out")

	// ErrEmptyFrame indicates the device returned an empty frame.
	ErrEmptyFrame = errors.New("device returned empty frame")

	// ErrSupervisorFailed indicates the supervisor is in the terminal
	// failed state and needs an explicit reinitialize.
	ErrSupervisorFailed = errors.New("camera supervisor in failed state")
)
