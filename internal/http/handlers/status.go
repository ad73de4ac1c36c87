// Package handlers provides HTTP API handlers for the booth daemon.
package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/snapbooth/snapbooth/internal/camera"
	"github.com/snapbooth/snapbooth/internal/capture"
	"github.com/snapbooth/snapbooth/internal/template"
)

// CameraInfo supplies a camera state snapshot.
type CameraInfo interface {
	Snapshot() camera.Info
}

// TemplateCatalog supplies the template listing and active selection.
type TemplateCatalog interface {
	List() []template.Summary
	Active() (*template.Layout, string)
	Select(name string) error
}

// StatusHandler reports the booth's operational state.
type StatusHandler struct {
	version   string
	startTime time.Time
	camera    CameraInfo
	templates TemplateCatalog
	capture   *capture.Coordinator
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(version string, cam CameraInfo, templates TemplateCatalog, coord *capture.Coordinator) *StatusHandler {
	return &StatusHandler{
		version:   version,
		startTime: time.Now(),
		camera:    cam,
		templates: templates,
		capture:   coord,
	}
}

// StatusResponse is the booth status document.
type StatusResponse struct {
	Version         string      `json:"version"`
	UptimeSeconds   int64       `json:"uptime_seconds"`
	Camera          camera.Info `json:"camera"`
	ActiveTemplate  string      `json:"active_template"`
	CaptureInFlight bool        `json:"capture_in_flight"`
	AwaitingSecond  bool        `json:"awaiting_second"`
}

// StatusInput is the input for the status endpoint.
type StatusInput struct{}

// StatusOutput is the output for the status endpoint.
type StatusOutput struct {
	Body StatusResponse
}

// Register registers the status route with the API.
func (h *StatusHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      "GET",
		Path:        "/api/v1/status",
		Summary:     "Booth status",
		Description: "Returns camera state, active template and capture status",
		Tags:        []string{"System"},
	}, h.GetStatus)
}

// GetStatus returns the current booth status.
func (h *StatusHandler) GetStatus(ctx context.Context, input *StatusInput) (*StatusOutput, error) {
	_, active := h.templates.Active()
	return &StatusOutput{
		Body: StatusResponse{
			Version:         h.version,
			UptimeSeconds:   int64(time.Since(h.startTime).Seconds()),
			Camera:          h.camera.Snapshot(),
			ActiveTemplate:  active,
			CaptureInFlight: h.capture.InFlight(),
			AwaitingSecond:  h.capture.AwaitingSecond(active),
		},
	}, nil
}
