package handlers

import (
	"encoding/json"
	"image/jpeg"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapbooth/snapbooth/internal/camera"
)

func TestPreviewHandlerServesJPEG(t *testing.T) {
	frames := &stubFrames{frame: liveFrame(), state: camera.StateConnected}
	h := NewPreviewHandler(frames, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/preview.jpg", nil))

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "connected", rec.Header().Get("X-Camera-State"))

	img, err := jpeg.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestPreviewHandlerNoFrame(t *testing.T) {
	frames := &stubFrames{frame: nil, state: camera.StateProbing}
	h := NewPreviewHandler(frames, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/preview.jpg", nil))

	require.Equal(t, 503, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "probing", body["state"])
	assert.NotEmpty(t, body["error"])
}
