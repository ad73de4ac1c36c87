package handlers

import (
	"bytes"
	"encoding/json"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/snapbooth/snapbooth/internal/camera"
)

// previewQuality keeps preview encoding cheap; finished photos use the
// configured output quality instead.
const previewQuality = 80

// FrameProvider supplies the most recent camera frame.
type FrameProvider interface {
	CurrentFrame() (*camera.Frame, camera.ConnectionState)
}

// PreviewHandler serves the latest camera frame as a JPEG snapshot.
type PreviewHandler struct {
	frames FrameProvider
	logger *slog.Logger
}

// NewPreviewHandler creates a preview handler.
func NewPreviewHandler(frames FrameProvider, logger *slog.Logger) *PreviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewHandler{frames: frames, logger: logger}
}

// ServeHTTP writes the freshest frame as image/jpeg, or a JSON 503 when no
// frame is available.
func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	frame, state := h.frames.CurrentFrame()
	if frame == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "no frame available",
			"state": state.String(),
		})
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: previewQuality}); err != nil {
		h.logger.Error("encoding preview failed", "error", err)
		http.Error(w, "preview encoding failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Camera-State", state.String())
	_, _ = w.Write(buf.Bytes())
}
