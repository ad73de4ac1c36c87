package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/snapbooth/snapbooth/internal/camera"
)

// CameraControl supervises the acquisition chain.
type CameraControl interface {
	Snapshot() camera.Info
	Reinitialize() error
}

// CameraHandler exposes camera state, recovery and the startup probe
// report.
type CameraHandler struct {
	supervisor CameraControl
	probe      []camera.ProbeReport
	probedAt   time.Time
}

// NewCameraHandler creates a camera handler. probe is the device report
// taken at startup before the supervisor claimed a device; it may be empty
// when no candidates are configured.
func NewCameraHandler(supervisor CameraControl, probe []camera.ProbeReport, probedAt time.Time) *CameraHandler {
	return &CameraHandler{supervisor: supervisor, probe: probe, probedAt: probedAt}
}

// CameraInfoInput is the input for the camera info endpoint.
type CameraInfoInput struct{}

// CameraInfoOutput is the output for the camera info endpoint.
type CameraInfoOutput struct {
	Body camera.Info
}

// ReinitializeInput is the input for the camera reinitialize endpoint.
type ReinitializeInput struct{}

// ReinitializeOutput is the output for the camera reinitialize endpoint.
type ReinitializeOutput struct {
	Body camera.Info
}

// ProbeInput is the input for the camera probe report endpoint.
type ProbeInput struct{}

// ProbeResponse is the startup device probe report.
type ProbeResponse struct {
	ProbedAt time.Time            `json:"probed_at"`
	Devices  []camera.ProbeReport `json:"devices"`
}

// ProbeOutput is the output for the camera probe report endpoint.
type ProbeOutput struct {
	Body ProbeResponse
}

// Register registers the camera routes with the API.
func (h *CameraHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getCamera",
		Method:      "GET",
		Path:        "/api/v1/camera",
		Summary:     "Camera state",
		Description: "Returns the acquisition state, active device and negotiated capture parameters",
		Tags:        []string{"Camera"},
	}, h.GetCamera)

	huma.Register(api, huma.Operation{
		OperationID: "getCameraProbe",
		Method:      "GET",
		Path:        "/api/v1/camera/probe",
		Summary:     "Device probe report",
		Description: "Returns the device enumeration taken at startup, showing every candidate and whether it was openable",
		Tags:        []string{"Camera"},
	}, h.GetProbe)

	huma.Register(api, huma.Operation{
		OperationID: "reinitializeCamera",
		Method:      "POST",
		Path:        "/api/v1/camera/reinitialize",
		Summary:     "Reinitialize the camera",
		Description: "Restarts device selection from the top of the candidate list",
		Tags:        []string{"Camera"},
	}, h.Reinitialize)
}

// GetCamera returns the camera state snapshot.
func (h *CameraHandler) GetCamera(ctx context.Context, input *CameraInfoInput) (*CameraInfoOutput, error) {
	return &CameraInfoOutput{Body: h.supervisor.Snapshot()}, nil
}

// GetProbe returns the startup probe report. Probing opens devices, so it
// only runs before the supervisor claims one; this endpoint serves that
// stored report rather than re-probing live hardware.
func (h *CameraHandler) GetProbe(ctx context.Context, input *ProbeInput) (*ProbeOutput, error) {
	return &ProbeOutput{Body: ProbeResponse{ProbedAt: h.probedAt, Devices: h.probe}}, nil
}

// Reinitialize restarts device selection. A booth stuck in the failed
// state after an unplugged camera is recovered through this endpoint.
func (h *CameraHandler) Reinitialize(ctx context.Context, input *ReinitializeInput) (*ReinitializeOutput, error) {
	if err := h.supervisor.Reinitialize(); err != nil {
		return nil, huma.Error503ServiceUnavailable("camera reinitialization failed", err)
	}
	return &ReinitializeOutput{Body: h.supervisor.Snapshot()}, nil
}
