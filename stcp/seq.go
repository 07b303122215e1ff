package stcp

// Value is a sequence number. Comparisons between Values use plain integer
// order, not signed-modular arithmetic over the 32-bit ring: this mirrors
// the source's behavior and does not special-case wraparound. A connection
// that stays open long enough to wrap snd_nxt/rcv_nxt past 2^32-1 will
// misbehave, same as the program this was ported from.
type Value uint32

// Size is a length in the sequence-number space (bytes, plus one for each of SYN/FIN).
type Size uint32

// Add returns v advanced by n, wrapping silently on 32-bit overflow (see Value doc).
func Add(v Value, n Size) Value { return v + Value(n) }

// Sizeof returns b-a as a Size, the number of octets between two sequence numbers.
// Callers must ensure b >= a; this package never wraps the subtraction.
func Sizeof(a, b Value) Size { return Size(b - a) }

// LessThan reports whether v precedes other in plain integer order.
func (v Value) LessThan(other Value) bool { return v < other }

// LessThanEq reports whether v precedes or equals other in plain integer order.
func (v Value) LessThanEq(other Value) bool { return v <= other }
