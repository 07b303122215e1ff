package stcp

import (
	"encoding/binary"
	"math/bits"
)

// Wire-format constants. The header mirrors the fields of a BSD struct tcphdr
// with data offset fixed at 5 words (20 bytes); the codec never emits options.
const (
	// HeaderSize is the fixed size in octets of an encoded Segment header.
	HeaderSize = 20
	// MaxSegmentLen is the maximum length in octets of a full segment, header included.
	MaxSegmentLen = 536
	// MaxPayloadLen is the maximum payload an Encode call will accept.
	MaxPayloadLen = MaxSegmentLen - HeaderSize

	dataOffsetWords = 5
)

// Flags is the subset of TCP control bits STCP uses: SYN, ACK, FIN.
// SYN additionally doubles as the "this segment carries data" marker on every
// non-handshake data segment, not only the initial one — see Segment.IsControlOrData.
type Flags uint8

const (
	FlagFIN Flags = 1 << iota
	FlagSYN
	FlagACK
)

// HasAny reports whether any bit of mask is set in flags.
func (f Flags) HasAny(mask Flags) bool { return f&mask != 0 }

// HasAll reports whether every bit of mask is set in flags.
func (f Flags) HasAll(mask Flags) bool { return f&mask == mask }

func (f Flags) String() string {
	if f == 0 {
		return "[]"
	}
	const names = "FINSYNACK"
	buf := make([]byte, 0, 2+4*bits.OnesCount8(uint8(f)))
	buf = append(buf, '[')
	first := true
	for i := 0; i < 3; i++ {
		if f&(1<<i) == 0 {
			continue
		}
		if !first {
			buf = append(buf, ',')
		}
		first = false
		buf = append(buf, names[i*3:i*3+3]...)
	}
	buf = append(buf, ']')
	return string(buf)
}

// Segment is a decoded STCP segment: header fields plus a view of its payload.
// Payload aliases the buffer passed to Decode; callers that retain a Segment
// past the lifetime of that buffer must copy it themselves.
type Segment struct {
	Seq     Value
	Ack     Value
	Window  Size
	Flags   Flags
	Payload []byte
}

// Len returns the length of the segment in sequence-number space: the
// payload length plus one for SYN and one for FIN, matching LEN() semantics
// used throughout the retransmission and reassembly queues.
func (s Segment) Len() Size {
	n := Size(len(s.Payload))
	if s.Flags.HasAny(FlagSYN) {
		n++
	}
	if s.Flags.HasAny(FlagFIN) {
		n++
	}
	return n
}

// AckExpected returns the sequence number the peer will cumulatively ACK
// once it has accepted this segment: Seq + Len().
func (s Segment) AckExpected() Value { return Add(s.Seq, s.Len()) }

// IsControlOrData reports whether the segment needs to flow through the
// reassembly/in-order pipeline: it carries payload under the data marker, or
// it is a FIN.
func (s Segment) IsControlOrData() bool {
	return (s.Flags.HasAny(FlagSYN) && len(s.Payload) > 0) || s.Flags.HasAny(FlagFIN)
}

// IsPureACK reports whether the segment is solely an acknowledgment, with no
// data and no SYN/FIN bit.
func (s Segment) IsPureACK() bool {
	return s.Flags == FlagACK && len(s.Payload) == 0
}

// Encode writes the wire image of seg into b, which must have capacity for
// at least HeaderSize+len(seg.Payload) bytes, and returns the number of
// bytes written. Source and destination ports are always zero: the facade
// already owns per-descriptor demultiplexing, so STCP segments never need to
// carry them.
func Encode(seg Segment, b []byte) (int, error) {
	total := HeaderSize + len(seg.Payload)
	if len(seg.Payload) > MaxPayloadLen {
		return 0, errBufferTooSmall
	}
	if len(b) < total {
		return 0, errBufferTooSmall
	}
	if seg.Window > 0xffff {
		return 0, errWindowTooLarge
	}
	binary.BigEndian.PutUint16(b[0:2], 0) // source port, unused
	binary.BigEndian.PutUint16(b[2:4], 0) // destination port, unused
	binary.BigEndian.PutUint32(b[4:8], uint32(seg.Seq))
	binary.BigEndian.PutUint32(b[8:12], uint32(seg.Ack))
	b[12] = dataOffsetWords << 4
	b[13] = byte(seg.Flags)
	binary.BigEndian.PutUint16(b[14:16], uint16(seg.Window))
	binary.BigEndian.PutUint16(b[16:18], 0) // checksum, not computed: network layer delivers uncorrupted segments
	binary.BigEndian.PutUint16(b[18:20], 0) // urgent pointer, unused
	copy(b[HeaderSize:total], seg.Payload)
	return total, nil
}

// Decode parses a wire image produced by Encode. The returned Segment's
// Payload aliases b.
func Decode(b []byte) (Segment, error) {
	if len(b) < HeaderSize {
		return Segment{}, errBufferTooSmall
	}
	seg := Segment{
		Seq:    Value(binary.BigEndian.Uint32(b[4:8])),
		Ack:    Value(binary.BigEndian.Uint32(b[8:12])),
		Flags:  Flags(b[13]),
		Window: Size(binary.BigEndian.Uint16(b[14:16])),
	}
	if len(b) > HeaderSize {
		seg.Payload = b[HeaderSize:]
	}
	return seg, nil
}
