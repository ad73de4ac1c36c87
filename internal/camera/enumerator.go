package camera

import (
	"fmt"
	"log/slog"
	"time"
)

// ProbeReport is the result of probing one device candidate.
type ProbeReport struct {
	Candidate DeviceCandidate `json:"candidate"`
	Openable  bool            `json:"openable"`
	// ActualWidth/ActualHeight/ActualFPS are the mode the device actually
	// delivered, which may differ from the requested mode.
	ActualWidth  int           `json:"actual_width,omitempty"`
	ActualHeight int           `json:"actual_height,omitempty"`
	ActualFPS    float64       `json:"actual_fps,omitempty"`
	Error        string        `json:"error,omitempty"`
	ProbeTime    time.Duration `json:"probe_time"`
}

// Enumerator probes device candidates and reports which are openable.
// Probing opens and immediately closes each device, so it must not run
// while a FrameSource holds one of the probed devices.
type Enumerator struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
}

// NewEnumerator creates a new Enumerator using the given backend. timeout
// bounds the open attempt per candidate; zero or negative disables it.
func NewEnumerator(backend Backend, timeout time.Duration, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enumerator{backend: backend, timeout: timeout, logger: logger}
}

// Probe tries to open each candidate in order and reports the outcome.
// It never stops early: the full list is probed so the report shows every
// usable fallback.
func (e *Enumerator) Probe(candidates []DeviceCandidate) []ProbeReport {
	reports := make([]ProbeReport, 0, len(candidates))

	for _, candidate := range candidates {
		start := time.Now()
		report := ProbeReport{Candidate: candidate}

		dev, err := e.open(candidate)
		report.ProbeTime = time.Since(start)
		if err != nil {
			report.Error = err.Error()
			e.logger.Debug("device probe failed",
				slog.String("device", candidate.ID()),
				slog.String("error", err.Error()),
			)
			reports = append(reports, report)
			continue
		}

		report.Openable = true
		report.ActualWidth, report.ActualHeight = dev.Resolution()
		report.ActualFPS = dev.FPS()

		if err := dev.Close(); err != nil {
			e.logger.Warn("closing probed device",
				slog.String("device", candidate.ID()),
				slog.String("error", err.Error()),
			)
		}

		e.logger.Info("device probe succeeded",
			slog.String("device", candidate.ID()),
			slog.Int("actual_width", report.ActualWidth),
			slog.Int("actual_height", report.ActualHeight),
			slog.Float64("actual_fps", report.ActualFPS),
		)
		reports = append(reports, report)
	}

	return reports
}

// open bounds the backend open call with the probe timeout. A device that
// arrives after the deadline is closed by the drain goroutine so a wedged
// driver cannot leak a handle.
func (e *Enumerator) open(candidate DeviceCandidate) (Device, error) {
	if e.timeout <= 0 {
		return e.backend.Open(candidate)
	}

	type openResult struct {
		dev Device
		err error
	}
	ch := make(chan openResult, 1)
	go func() {
		dev, err := e.backend.Open(candidate)
		ch <- openResult{dev: dev, err: err}
	}()

	select {
	case res := <-ch:
		return res.dev, res.err
	case <-time.After(e.timeout):
		go func() {
			if res := <-ch; res.dev != nil {
				_ = res.dev.Close()
			}
		}()
		return nil, fmt.Errorf("%w: probe timed out after %s", ErrDeviceUnavailable, e.timeout)
	}
}
