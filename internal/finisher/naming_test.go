package finisher

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamerFormat(t *testing.T) {
	n := NewNamer("Mugshot", "jpg")
	at := time.Date(2026, 8, 29, 14, 5, 9, 0, time.Local)

	name, seq := n.Next(at)
	assert.Equal(t, "Mugshot_20260829_140509_001.jpg", name)
	assert.Equal(t, uint64(1), seq)
}

func TestNamerSameSecondIsCollisionFree(t *testing.T) {
	n := NewNamer("Mugshot", "jpg")
	at := time.Date(2026, 8, 29, 14, 5, 9, 0, time.Local)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		name, _ := n.Next(at)
		require.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
}

func TestNamerSequenceWidensPastThreeDigits(t *testing.T) {
	n := NewNamer("Mugshot", "jpg")
	n.seq.Store(998)
	at := time.Date(2026, 8, 29, 14, 5, 9, 0, time.Local)

	name, seq := n.Next(at)
	assert.Equal(t, "Mugshot_20260829_140509_999.jpg", name)
	assert.Equal(t, uint64(999), seq)

	// Past 999 the field widens instead of wrapping onto earlier names.
	name, seq = n.Next(at)
	assert.Equal(t, "Mugshot_20260829_140509_1000.jpg", name)
	assert.Equal(t, uint64(1000), seq)
}

func TestNamerSequenceIsMonotonic(t *testing.T) {
	n := NewNamer("Photo", "png")
	pattern := regexp.MustCompile(`^Photo_\d{8}_\d{6}_(\d{3})\.png$`)

	var last uint64
	for i := 0; i < 5; i++ {
		name, seq := n.Next(time.Now())
		require.Regexp(t, pattern, name)
		assert.Greater(t, seq, last)
		last = seq
	}
}
