package camera

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/snapbooth/snapbooth/internal/events"
)

// SupervisorConfig holds configuration for the camera supervisor.
type SupervisorConfig struct {
	// Candidates is the ordered device list: primary first, then fallbacks.
	Candidates []DeviceCandidate
	// FrameStaleAfter is the frame age past which the connection is
	// considered degraded.
	FrameStaleAfter time.Duration
	// ReadTimeout bounds a single frame read.
	ReadTimeout time.Duration
	// MaxReadFailures is the consecutive-failure limit on one device before
	// the supervisor advances to the next candidate.
	MaxReadFailures int
}

// Info is a point-in-time snapshot of the camera subsystem for status
// reporting.
type Info struct {
	State        string   `json:"state"`
	DeviceID     string   `json:"device_id,omitempty"`
	ActualWidth  int      `json:"actual_width,omitempty"`
	ActualHeight int      `json:"actual_height,omitempty"`
	ActualFPS    float64  `json:"actual_fps,omitempty"`
	FrameAgeMs   int64    `json:"frame_age_ms,omitempty"`
	HasFrame     bool     `json:"has_frame"`
	Tried        []string `json:"tried,omitempty"`
}

// Supervisor orchestrates FrameSource lifecycle: it selects a candidate,
// detects failure, falls back to the next candidate, and exposes a stable
// current-frame and connection-state interface to everything above it.
//
// Device selection is serialized: concurrent failure reports from a dying
// FrameSource can never race into two simultaneous fallback attempts.
type Supervisor struct {
	cfg     SupervisorConfig
	backend Backend
	bus     *events.Bus
	logger  *slog.Logger

	// selMu serializes device selection and recovery. Slow device opens
	// happen under selMu only, never under mu.
	selMu sync.Mutex

	// mu guards the fields below; critical sections are cheap so state
	// queries never block behind a device open.
	mu         sync.Mutex
	state      ConnectionState
	source     *FrameSource
	generation uint64
	currentIdx int
	nextIdx    int
	failures   int
	tried      []string

	actualWidth  int
	actualHeight int
	actualFPS    float64
}

// NewSupervisor creates a camera supervisor. The bus may be nil, in which
// case state transitions are only logged.
func NewSupervisor(cfg SupervisorConfig, backend Backend, bus *events.Bus, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:        cfg,
		backend:    backend,
		bus:        bus,
		logger:     logger,
		state:      StateUninitialized,
		currentIdx: -1,
	}
}

// Start probes candidates in order and connects to the first usable device.
// On total failure the supervisor ends in the failed state and the returned
// error lists every candidate tried; the process is expected to stay up.
func (s *Supervisor) Start() error {
	s.selMu.Lock()
	defer s.selMu.Unlock()

	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already started (state %s)", s.state)
	}
	s.transitionLocked(StateProbing, "initializing")
	s.mu.Unlock()

	return s.selectNext()
}

// Reinitialize resets the candidate cursor and probes again from the top of
// the list. This is the only way out of the terminal failed state.
func (s *Supervisor) Reinitialize() error {
	s.selMu.Lock()
	defer s.selMu.Unlock()

	s.mu.Lock()
	src := s.source
	s.source = nil
	s.generation++ // discard any in-flight failure reports
	s.nextIdx = 0
	s.currentIdx = -1
	s.failures = 0
	s.tried = nil
	s.transitionLocked(StateProbing, "reinitialize requested")
	s.mu.Unlock()

	if src != nil {
		src.Stop()
	}

	return s.selectNext()
}

// Stop shuts down the active frame source and releases its device. The
// stop is cooperative: it returns only once the device handle is released.
func (s *Supervisor) Stop() {
	s.selMu.Lock()
	defer s.selMu.Unlock()

	s.mu.Lock()
	src := s.source
	s.source = nil
	s.generation++ // discard any in-flight failure reports
	s.transitionLocked(StateUninitialized, "shutdown requested")
	s.mu.Unlock()

	if src != nil {
		src.Stop()
	}
}

// CurrentFrame returns the latest frame and the connection state without
// blocking. A nil frame with a connected state means no frame has arrived
// yet; a frame older than the staleness threshold flips the state to
// degraded at read time, even with no new failure reports.
func (s *Supervisor) CurrentFrame() (*Frame, ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == nil {
		return nil, s.state
	}

	frame := s.source.Latest()
	if frame == nil {
		return nil, s.state
	}

	if frame.Age() > s.cfg.FrameStaleAfter {
		if s.state == StateConnected {
			s.transitionLocked(StateDegraded, "frame stale beyond threshold")
		}
	} else if s.state == StateDegraded {
		s.transitionLocked(StateConnected, "fresh frames flowing")
	}

	return frame, s.state
}

// State returns the current connection state.
func (s *Supervisor) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns camera info for status reporting.
func (s *Supervisor) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		State: s.state.String(),
		Tried: append([]string(nil), s.tried...),
	}
	if s.currentIdx >= 0 && s.currentIdx < len(s.cfg.Candidates) {
		info.DeviceID = s.cfg.Candidates[s.currentIdx].ID()
		info.ActualWidth = s.actualWidth
		info.ActualHeight = s.actualHeight
		info.ActualFPS = s.actualFPS
	}
	if s.source != nil {
		if frame := s.source.Latest(); frame != nil {
			info.HasFrame = true
			info.FrameAgeMs = frame.Age().Milliseconds()
		}
	}
	return info
}

// selectNext tries each untried candidate in order until one opens. Ends
// connected, or failed once the list is exhausted. Caller must hold selMu.
func (s *Supervisor) selectNext() error {
	for {
		s.mu.Lock()
		if s.nextIdx >= len(s.cfg.Candidates) {
			tried := strings.Join(s.tried, ", ")
			s.transitionLocked(StateFailed, "all candidates exhausted: "+tried)
			s.mu.Unlock()
			return fmt.Errorf("%w: tried %s", ErrDeviceUnavailable, tried)
		}
		idx := s.nextIdx
		s.nextIdx++
		candidate := s.cfg.Candidates[idx]
		s.tried = append(s.tried, candidate.ID())
		s.mu.Unlock()

		s.logger.Info("probing device",
			slog.String("device", candidate.ID()),
			slog.Int("width", candidate.Width),
			slog.Int("height", candidate.Height),
			slog.Int("fps", candidate.FPS),
		)

		dev, err := s.backend.Open(candidate)
		if err != nil {
			s.logger.Warn("device open failed",
				slog.String("device", candidate.ID()),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.installSource(idx, dev)
		return nil
	}
}

// installSource wires an open device into a fresh FrameSource and starts
// acquisition. Caller must hold selMu.
func (s *Supervisor) installSource(idx int, dev Device) {
	candidate := s.cfg.Candidates[idx]

	s.mu.Lock()
	s.generation++
	src := newFrameSource(dev, candidate, s.generation, s.cfg.ReadTimeout, s.handleFailure, s.logger)
	s.source = src
	s.currentIdx = idx
	s.failures = 0
	s.actualWidth, s.actualHeight = dev.Resolution()
	s.actualFPS = dev.FPS()
	s.transitionLocked(StateConnected, "device opened")
	s.mu.Unlock()

	src.Start()
}

// handleFailure is the FrameSource failure callback. The source has already
// stopped itself and released its device when this runs.
func (s *Supervisor) handleFailure(generation uint64, err error) {
	s.selMu.Lock()
	defer s.selMu.Unlock()

	s.mu.Lock()
	if generation != s.generation || s.state == StateFailed {
		// Report from an already-replaced source.
		s.mu.Unlock()
		return
	}
	s.source = nil
	s.failures++
	failures := s.failures
	idx := s.currentIdx
	s.transitionLocked(StateDegraded, err.Error())
	s.mu.Unlock()

	// Retry the current device until its consecutive-failure limit, then
	// advance to the next candidate. A failed reopen counts toward the
	// limit so a dead device cannot hold the supervisor forever.
	for failures < s.cfg.MaxReadFailures {
		s.setState(StateProbing, "retrying current device")

		dev, openErr := s.backend.Open(s.cfg.Candidates[idx])
		if openErr == nil {
			s.installSource(idx, dev)
			return
		}
		failures++
		s.mu.Lock()
		s.failures = failures
		s.mu.Unlock()

		s.logger.Warn("device reopen failed",
			slog.String("device", s.cfg.Candidates[idx].ID()),
			slog.String("error", openErr.Error()),
		)
	}

	s.setState(StateProbing, "device failure limit reached, advancing")
	// exhaustion is reported through the failed-state transition
	_ = s.selectNext()
}

// setState performs a transition while only briefly holding mu.
func (s *Supervisor) setState(to ConnectionState, reason string) {
	s.mu.Lock()
	s.transitionLocked(to, reason)
	s.mu.Unlock()
}

// transitionLocked changes state, logs it, and emits a structured event.
// No-op when the state is unchanged. Caller must hold mu.
func (s *Supervisor) transitionLocked(to ConnectionState, reason string) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to

	deviceID := ""
	if s.currentIdx >= 0 && s.currentIdx < len(s.cfg.Candidates) {
		deviceID = s.cfg.Candidates[s.currentIdx].ID()
	}

	s.logger.Info("camera state transition",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.String("device", deviceID),
		slog.String("reason", reason),
	)

	if s.bus != nil {
		s.bus.Publish(events.TypeCameraState, map[string]any{
			"from":   from.String(),
			"to":     to.String(),
			"device": deviceID,
			"reason": reason,
		})
	}
}
