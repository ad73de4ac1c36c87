package camera

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumeratorProbe_ReportsFullList(t *testing.T) {
	dev := newFakeDevice(streamingRead)
	backend := newFakeBackend()
	backend.script(0, fails())
	backend.script(1, opens(dev))
	backend.script(2, fails())

	e := NewEnumerator(backend, 0, nil)
	reports := e.Probe(testCandidates())

	// Probing never stops at the first failure.
	require.Len(t, reports, 3)

	assert.False(t, reports[0].Openable)
	assert.NotEmpty(t, reports[0].Error)

	assert.True(t, reports[1].Openable)
	assert.Equal(t, 640, reports[1].ActualWidth)
	assert.Equal(t, 480, reports[1].ActualHeight)
	assert.Equal(t, float64(30), reports[1].ActualFPS)

	assert.False(t, reports[2].Openable)

	// Probed devices are released immediately.
	assert.True(t, dev.closed.Load())
}

func TestEnumeratorProbe_TimesOutWedgedOpen(t *testing.T) {
	wedged := newFakeDevice(streamingRead)
	release := make(chan struct{})
	backend := newFakeBackend()
	backend.script(0, func() (Device, error) {
		<-release
		return wedged, nil
	})

	e := NewEnumerator(backend, 20*time.Millisecond, nil)
	reports := e.Probe(testCandidates()[:1])

	require.Len(t, reports, 1)
	assert.False(t, reports[0].Openable)
	assert.Contains(t, reports[0].Error, "timed out")
	assert.GreaterOrEqual(t, reports[0].ProbeTime, 20*time.Millisecond)

	// The device that finally arrives is closed, not leaked.
	close(release)
	assert.Eventually(t, wedged.closed.Load, time.Second, 5*time.Millisecond)
}
