// Package capture coordinates the single-flight capture path from frame
// acquisition through composition to finished photo.
package capture

import "errors"

var (
	// ErrCaptureBusy is returned when a trigger arrives while a capture is
	// already in flight. The caller should retry after the current capture
	// resolves.
	ErrCaptureBusy = errors.New("capture already in progress")

	// ErrCameraUnavailable is returned when no connected camera can supply
	// a frame. Triggers fail fast rather than waiting for a reconnect.
	ErrCameraUnavailable = errors.New("camera unavailable")

	// ErrCaptureTimeout is returned when the capture exceeded its
	// wall-clock budget. The photo may still have been saved if the write
	// completed before the budget ran out.
	ErrCaptureTimeout = errors.New("capture timed out")

	// ErrComposition is returned when rendering the frame into the active
	// template fails.
	ErrComposition = errors.New("composition failed")

	// ErrStorage is returned when the finished photo could not be written
	// after exhausting retries.
	ErrStorage = errors.New("photo storage failed")
)
