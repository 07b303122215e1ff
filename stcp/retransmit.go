package stcp

import "time"

// maxRetries is the number of retransmissions attempted before an entry is
// abandoned (see Engine.onTimeout).
const maxRetries = 6

// retransmitTimeout is the fixed per-entry deadline used for every (re)send.
const retransmitTimeout = 1 * time.Second

// RetransmitEntry represents one segment sent but not yet cumulatively acknowledged.
type RetransmitEntry struct {
	Seq         Value
	AckExpected Value
	Length      Size
	Deadline    time.Time
	Retries     int
	Acked       bool
	Flags       Flags // flags of the originating segment, so FIN-bearing entries can be recognized on sweep.
	Bytes       []byte
}

// RetransmitQueue is the ordered set of unacknowledged segments, kept sorted
// by Seq. No two live entries share an AckExpected value.
type RetransmitQueue struct {
	entries []*RetransmitEntry
}

// Insert adds entry to the queue unless an entry with the same AckExpected
// already exists, in which case Insert is a no-op: the caller is still
// expected to have transmitted entry.Bytes regardless, per the idempotent
// insert contract.
func (q *RetransmitQueue) Insert(entry *RetransmitEntry) {
	if q.LookupByAck(entry.AckExpected) != nil {
		return
	}
	i := 0
	for ; i < len(q.entries); i++ {
		if entry.Seq.LessThan(q.entries[i].Seq) {
			break
		}
	}
	q.entries = append(q.entries, nil)
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = entry
}

// LookupByAck returns the entry whose AckExpected equals ack, or nil.
func (q *RetransmitQueue) LookupByAck(ack Value) *RetransmitEntry {
	for _, e := range q.entries {
		if e.AckExpected == ack {
			return e
		}
	}
	return nil
}

// MarkAcked finds the entry matching ack and latches Acked on it and on
// every entry with a strictly smaller Seq (cumulative ACK semantics).
// It reports whether any entry matched.
func (q *RetransmitQueue) MarkAcked(ack Value) bool {
	target := q.LookupByAck(ack)
	if target == nil {
		return false
	}
	for _, e := range q.entries {
		if e.Seq.LessThan(target.Seq) || e == target {
			e.Acked = true
		}
	}
	return true
}

// Sweep removes all acked entries and returns them in their former seq
// order, so the caller can react to any removed FIN (state transitions live
// in the engine, not here, to keep the queue state-machine agnostic).
func (q *RetransmitQueue) Sweep() []*RetransmitEntry {
	if len(q.entries) == 0 {
		return nil
	}
	var removed []*RetransmitEntry
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.Acked {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	return removed
}

// EarliestDeadline returns the entry with the smallest Deadline, or nil if the queue is empty.
func (q *RetransmitQueue) EarliestDeadline() *RetransmitEntry {
	if len(q.entries) == 0 {
		return nil
	}
	earliest := q.entries[0]
	for _, e := range q.entries[1:] {
		if e.Deadline.Before(earliest.Deadline) {
			earliest = e
		}
	}
	return earliest
}

// FromSeq returns every live entry with Seq >= seq, in seq order, used by the
// control loop's go-back-N retransmission: the triggering entry plus every
// entry queued after it.
func (q *RetransmitQueue) FromSeq(seq Value) []*RetransmitEntry {
	var out []*RetransmitEntry
	for _, e := range q.entries {
		if !e.Seq.LessThan(seq) {
			out = append(out, e)
		}
	}
	return out
}

// Drop removes entry from the queue unconditionally, used when retries are exhausted.
func (q *RetransmitQueue) Drop(entry *RetransmitEntry) {
	for i, e := range q.entries {
		if e == entry {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of live (unacked) entries, exposed for metrics and tests.
func (q *RetransmitQueue) Len() int { return len(q.entries) }

// Reset discards all entries, used when an engine is reused for a new connection.
func (q *RetransmitQueue) Reset() { q.entries = nil }
