package dispatch

import (
	"strings"
	"sync"
)

// Sequencer issues per-board monotonic command sequence numbers.
//
// Counters are keyed by MAC address, case-insensitively: "A4:CF..." and
// "a4:cf..." share one counter. The first sequence for a board is 1.
//
// Counters live in memory only. After a restart numbering begins again at 1;
// firmware treats a lower-than-last sequence as a fresh controller session
// rather than a replay, so this is acceptable.
type Sequencer struct {
	mu   sync.Mutex
	seqs map[string]uint64
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{seqs: make(map[string]uint64)}
}

// Next returns the next sequence number for the given MAC address.
func (s *Sequencer) Next(mac string) uint64 {
	key := strings.ToLower(mac)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqs[key]++
	return s.seqs[key]
}

// Current returns the last issued sequence for a MAC, zero if none yet.
func (s *Sequencer) Current(mac string) uint64 {
	key := strings.ToLower(mac)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.seqs[key]
}
