package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDisk struct {
	usage *disk.UsageStat
	err   error
}

func (s *stubDisk) DiskUsage() (*disk.UsageStat, error) { return s.usage, s.err }

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(ctx context.Context) error { return s.err }

func TestHealthHandlerOK(t *testing.T) {
	h := NewHealthHandler("1.0.0", &stubDisk{usage: &disk.UsageStat{
		Path:        "/photos",
		Total:       100 << 30,
		Free:        60 << 30,
		UsedPercent: 40,
	}}, &stubPinger{})

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "ok", out.Body.Status)
	assert.Equal(t, "1.0.0", out.Body.Version)
	assert.Equal(t, "ok", out.Body.Database)
	require.NotNil(t, out.Body.Disk)
	assert.Equal(t, "/photos", out.Body.Disk.Path)
	assert.Equal(t, uint64(60<<30), out.Body.Disk.FreeBytes)
	assert.Greater(t, out.Body.Goroutines, 0)
}

func TestHealthHandlerDegradedDisk(t *testing.T) {
	h := NewHealthHandler("1.0.0", &stubDisk{err: errors.New("statfs failed")}, &stubPinger{})

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "degraded", out.Body.Status)
	assert.Nil(t, out.Body.Disk)
}

func TestHealthHandlerDegradedDatabase(t *testing.T) {
	h := NewHealthHandler("1.0.0", nil, &stubPinger{err: errors.New("connection closed")})

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "degraded", out.Body.Status)
	assert.Equal(t, "unreachable", out.Body.Database)
}

func TestHealthHandlerNoOptionalDeps(t *testing.T) {
	h := NewHealthHandler("1.0.0", nil, nil)

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "ok", out.Body.Status)
	assert.Nil(t, out.Body.Disk)
	assert.Empty(t, out.Body.Database)
}
