package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// DiskStats reports usage of the photo output filesystem.
type DiskStats interface {
	DiskUsage() (*disk.UsageStat, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	disk      DiskStats
	db        interface {
		Ping(ctx context.Context) error
	}
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string, diskStats DiskStats, db interface {
	Ping(ctx context.Context) error
}) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		disk:      diskStats,
		db:        db,
	}
}

// DiskStatus reports free space on the output filesystem.
type DiskStatus struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// HealthResponse is the health check document.
type HealthResponse struct {
	Status        string      `json:"status"`
	Version       string      `json:"version"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Goroutines    int         `json:"goroutines"`
	MemoryMB      uint64      `json:"memory_mb"`
	Disk          *DiskStatus `json:"disk,omitempty"`
	Database      string      `json:"database,omitempty"`
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the daemon including disk and memory metrics",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the daemon. Degraded disk or
// database state is reported in the body; the endpoint itself always
// answers 200 so probes distinguish "unhealthy" from "down".
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryMB = vm.Used / 1024 / 1024
	}

	if h.disk != nil {
		if usage, err := h.disk.DiskUsage(); err == nil {
			resp.Disk = &DiskStatus{
				Path:        usage.Path,
				TotalBytes:  usage.Total,
				FreeBytes:   usage.Free,
				UsedPercent: usage.UsedPercent,
			}
		} else {
			resp.Status = "degraded"
		}
	}

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			resp.Database = "unreachable"
			resp.Status = "degraded"
		} else {
			resp.Database = "ok"
		}
	}

	return &HealthOutput{Body: resp}, nil
}
