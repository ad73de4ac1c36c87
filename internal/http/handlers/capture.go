package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/snapbooth/snapbooth/internal/capture"
)

// CaptureHandler triggers captures.
type CaptureHandler struct {
	coordinator *capture.Coordinator
}

// NewCaptureHandler creates a capture handler.
func NewCaptureHandler(coordinator *capture.Coordinator) *CaptureHandler {
	return &CaptureHandler{coordinator: coordinator}
}

// TriggerInput is the input for the capture trigger endpoint.
type TriggerInput struct{}

// TriggerOutput is the output for the capture trigger endpoint.
type TriggerOutput struct {
	Status int
	Body   capture.Result
}

// Register registers the capture routes with the API.
func (h *CaptureHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "triggerCapture",
		Method:        "POST",
		Path:          "/api/v1/capture",
		Summary:       "Trigger a capture",
		Description:   "Captures the freshest frame, composes it into the active template and saves the finished photo",
		Tags:          []string{"Capture"},
		DefaultStatus: 201,
	}, h.Trigger)
}

// Trigger runs one capture and maps the failure taxonomy onto HTTP status
// codes. A capture that saved past its budget still returns the photo,
// flagged with 200 instead of 201. A dual-photo first shot returns 202 with
// awaiting_second set; the next trigger produces the finished photo.
func (h *CaptureHandler) Trigger(ctx context.Context, input *TriggerInput) (*TriggerOutput, error) {
	result, err := h.coordinator.Trigger(ctx)
	if err != nil {
		if result != nil && errors.Is(err, capture.ErrCaptureTimeout) {
			// Saved, but slow.
			return &TriggerOutput{Status: 200, Body: *result}, nil
		}
		switch {
		case errors.Is(err, capture.ErrCaptureBusy):
			return nil, huma.Error409Conflict("capture already in progress", err)
		case errors.Is(err, capture.ErrCameraUnavailable):
			return nil, huma.Error503ServiceUnavailable("camera unavailable", err)
		case errors.Is(err, capture.ErrCaptureTimeout):
			return nil, huma.Error504GatewayTimeout("capture timed out", err)
		default:
			return nil, huma.Error500InternalServerError("capture failed", err)
		}
	}
	if result.AwaitingSecond {
		return &TriggerOutput{Status: 202, Body: *result}, nil
	}
	return &TriggerOutput{Status: 201, Body: *result}, nil
}
