package stcp

import "testing"

func TestReassemblyInsertSortedNoDuplicateSeq(t *testing.T) {
	var q ReassemblyQueue
	q.Insert(&ReassemblyEntry{Seq: 20, AckExpected: 25, Payload: []byte("c")})
	q.Insert(&ReassemblyEntry{Seq: 10, AckExpected: 15, Payload: []byte("b")})
	q.Insert(&ReassemblyEntry{Seq: 10, AckExpected: 15, Payload: []byte("dup")})

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (duplicate Seq must be ignored)", q.Len())
	}
	if q.entries[0].Seq != 10 || q.entries[1].Seq != 20 {
		t.Fatalf("entries not sorted by Seq: %+v", q.entries)
	}
}

func TestReassemblyContains(t *testing.T) {
	var q ReassemblyQueue
	q.Insert(&ReassemblyEntry{Seq: 10, AckExpected: 15})
	if !q.Contains(15) {
		t.Error("Contains(15) should be true")
	}
	if q.Contains(999) {
		t.Error("Contains(999) should be false")
	}
}

func TestDrainContiguous(t *testing.T) {
	var q ReassemblyQueue
	q.Insert(&ReassemblyEntry{Seq: 5, AckExpected: 10, Flags: FlagSYN, Payload: []byte("1234")})
	q.Insert(&ReassemblyEntry{Seq: 10, AckExpected: 14, Flags: FlagSYN, Payload: []byte("abc")})
	q.Insert(&ReassemblyEntry{Seq: 20, AckExpected: 21, Flags: FlagFIN}) // not contiguous yet

	rcvNxt, drained := q.DrainContiguous(5)
	if len(drained) != 2 {
		t.Fatalf("DrainContiguous drained %d entries, want 2", len(drained))
	}
	if drained[0].Seq != 5 || drained[1].Seq != 10 {
		t.Fatalf("drained out of order: %+v", drained)
	}
	if rcvNxt != 14 {
		t.Fatalf("rcvNxt = %d, want 14", rcvNxt)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d after drain, want 1 (the still-out-of-order FIN entry)", q.Len())
	}
}

func TestDrainContiguousStopsAtGap(t *testing.T) {
	var q ReassemblyQueue
	q.Insert(&ReassemblyEntry{Seq: 10, AckExpected: 14, Payload: []byte("abc")})

	rcvNxt, drained := q.DrainContiguous(0)
	if len(drained) != 0 {
		t.Fatalf("DrainContiguous drained %d entries, want 0 when there's a gap", len(drained))
	}
	if rcvNxt != 0 {
		t.Fatalf("rcvNxt = %d, want unchanged 0", rcvNxt)
	}
}
