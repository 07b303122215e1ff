package stcp

// ReassemblyEntry is a segment received above rcv_nxt, held until the
// sequence space in front of it has been filled in.
type ReassemblyEntry struct {
	Seq         Value
	AckExpected Value
	Flags       Flags
	Payload     []byte
}

// ReassemblyQueue is the ordered set of out-of-order received segments, kept
// sorted by Seq with no duplicate Seq values.
type ReassemblyQueue struct {
	entries []*ReassemblyEntry
}

// Contains reports whether a segment whose AckExpected equals ackExpected is
// already queued, the duplicate-detection check used by the receive pipeline.
func (q *ReassemblyQueue) Contains(ackExpected Value) bool {
	for _, e := range q.entries {
		if e.AckExpected == ackExpected {
			return true
		}
	}
	return false
}

// Insert places an out-of-order segment, maintaining sort order by Seq.
// A duplicate Seq is ignored: the first copy queued wins.
func (q *ReassemblyQueue) Insert(entry *ReassemblyEntry) {
	i := 0
	for ; i < len(q.entries); i++ {
		if q.entries[i].Seq == entry.Seq {
			return
		}
		if entry.Seq.LessThan(q.entries[i].Seq) {
			break
		}
	}
	q.entries = append(q.entries, nil)
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = entry
}

// DrainContiguous repeatedly pops the queue's minimum-Seq entry while it
// equals rcvNxt, advancing rcvNxt by each entry's sequence-space length, and
// returns the drained entries in delivery order along with the new rcv_nxt.
// Delivery to the application (or the FIN state transition) is the caller's
// responsibility; this queue only tracks ordering.
func (q *ReassemblyQueue) DrainContiguous(rcvNxt Value) (Value, []*ReassemblyEntry) {
	var drained []*ReassemblyEntry
	for len(q.entries) > 0 && q.entries[0].Seq == rcvNxt {
		entry := q.entries[0]
		q.entries = q.entries[1:]
		drained = append(drained, entry)
		length := Size(len(entry.Payload))
		if entry.Flags.HasAny(FlagSYN) || entry.Flags.HasAny(FlagFIN) {
			length++
		}
		rcvNxt = Add(rcvNxt, length)
	}
	return rcvNxt, drained
}

// Len returns the number of queued out-of-order entries, exposed for metrics and tests.
func (q *ReassemblyQueue) Len() int { return len(q.entries) }

// Reset discards all entries, used when an engine is reused for a new connection.
func (q *ReassemblyQueue) Reset() { q.entries = nil }
