package stcp

import "testing"

func TestValueLessThan(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{0, 1, true},
		{1, 0, false},
		{5, 5, false},
		{0xfffffffe, 0xffffffff, true},
	}
	for _, tt := range tests {
		if got := tt.a.LessThan(tt.b); got != tt.want {
			t.Errorf("%d.LessThan(%d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestValueWrapIsNotModular(t *testing.T) {
	// Plain integer comparison does not treat the 32-bit ring as circular:
	// after Add overflows, the wrapped value compares as "less than" the
	// preceding one, which is wrong in modular sequence-number arithmetic
	// but matches the behavior this package intentionally preserves.
	max := Value(0xffffffff)
	wrapped := Add(max, 1)
	if wrapped != 0 {
		t.Fatalf("Add wrapped to %d, want 0 from uint32 overflow", wrapped)
	}
	if !wrapped.LessThan(max) {
		t.Fatalf("plain comparison should treat post-wrap 0 as less than max")
	}
}

func TestAddAndSizeof(t *testing.T) {
	v := Add(10, 5)
	if v != 15 {
		t.Fatalf("Add(10,5) = %d, want 15", v)
	}
	if got := Sizeof(10, 15); got != 5 {
		t.Fatalf("Sizeof(10,15) = %d, want 5", got)
	}
}
