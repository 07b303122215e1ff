// Package netlo provides network substrates standing in for the "unreliable
// network service" STCP assumes: a deterministic in-memory one for tests
// that can drop, reorder, and duplicate segments on demand, and a real
// UDP-backed one for the demo command.
package netlo

import (
	"math/rand"
	"sync"
)

// Lossy is an in-memory, single-direction segment channel between two
// endpoints that can be configured to drop, duplicate, or reorder segments,
// mirroring the spec's description of network_send/network_recv: "possible
// loss, reordering, and duplication but no corruption."
type Lossy struct {
	mu   sync.Mutex
	peer *Lossy
	buf  [][]byte

	// DropRate, DupRate are probabilities in [0,1) applied independently to
	// each segment handed to Send; Reorder, when true, delays delivery of
	// every other segment by one slot.
	DropRate float64
	DupRate  float64
	Reorder  bool

	rng     *rand.Rand
	pending []byte
}

// NewLoopbackPair returns two endpoints wired to each other: a.Send delivers
// to b.Recv and vice versa.
func NewLoopbackPair(seed int64) (a, b *Lossy) {
	a = &Lossy{rng: rand.New(rand.NewSource(seed))}
	b = &Lossy{rng: rand.New(rand.NewSource(seed + 1))}
	a.peer, b.peer = b, a
	return a, b
}

// Send hands segment to the peer endpoint's inbound queue, subject to
// DropRate/DupRate/Reorder.
func (l *Lossy) Send(segment []byte) error {
	if l.rng != nil && l.DropRate > 0 && l.rng.Float64() < l.DropRate {
		return nil
	}
	cp := append([]byte(nil), segment...)

	l.peer.mu.Lock()
	defer l.peer.mu.Unlock()

	if l.Reorder && l.peer.pending != nil {
		held := l.peer.pending
		l.peer.pending = nil
		l.peer.buf = append(l.peer.buf, cp, held)
	} else if l.Reorder {
		l.peer.pending = cp
	} else {
		l.peer.buf = append(l.peer.buf, cp)
	}

	if l.rng != nil && l.DupRate > 0 && l.rng.Float64() < l.DupRate {
		l.peer.buf = append(l.peer.buf, append([]byte(nil), cp...))
	}
	return nil
}

// Recv returns the next queued segment for this endpoint, or nil if none is
// queued. It is meant to be called from the owning ChanFacade's goroutine
// that feeds PushSegment.
func (l *Lossy) Recv() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) == 0 {
		return nil
	}
	seg := l.buf[0]
	l.buf = l.buf[1:]
	return seg
}
