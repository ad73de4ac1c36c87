package finisher

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Namer generates output filenames of the form
// {prefix}_{YYYYMMDD}_{HHMMSS}_{NNN}.{ext}. The sequence counter is
// process-wide and monotonic, so two captures in the same wall-clock
// second still get distinct names. The sequence field is zero-padded to
// three digits and widens past 999: uniqueness wins over fixed width, so
// capture 1000 becomes {prefix}_..._1000.{ext} rather than wrapping onto
// an earlier name.
type Namer struct {
	prefix string
	ext    string
	seq    atomic.Uint64
}

// NewNamer creates a namer for the given prefix and extension (without dot).
func NewNamer(prefix, ext string) *Namer {
	return &Namer{prefix: prefix, ext: ext}
}

// Next returns the filename for a photo captured at t and the sequence
// number used.
func (n *Namer) Next(t time.Time) (string, uint64) {
	seq := n.seq.Add(1)
	name := fmt.Sprintf("%s_%s_%s_%03d.%s",
		n.prefix, t.Format("20060102"), t.Format("150405"), seq, n.ext)
	return name, seq
}
