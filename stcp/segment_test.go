package stcp

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	seg := Segment{
		Seq:     1000,
		Ack:     2000,
		Window:  3072,
		Flags:   FlagSYN | FlagACK,
		Payload: []byte("hello world"),
	}
	var buf [MaxSegmentLen]byte
	n, err := Encode(seg, buf[:])
	if err != nil {
		t.Fatal(err)
	}
	if n != HeaderSize+len(seg.Payload) {
		t.Fatalf("Encode wrote %d bytes, want %d", n, HeaderSize+len(seg.Payload))
	}

	got, err := Decode(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if got.Seq != seg.Seq || got.Ack != seg.Ack || got.Window != seg.Window || got.Flags != seg.Flags {
		t.Fatalf("Decode mismatch: got %+v, want %+v", got, seg)
	}
	if !bytes.Equal(got.Payload, seg.Payload) {
		t.Fatalf("Decode payload mismatch: got %q, want %q", got.Payload, seg.Payload)
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	seg := Segment{Payload: make([]byte, MaxPayloadLen+1)}
	var buf [MaxSegmentLen + 1]byte
	_, err := Encode(seg, buf[:])
	if err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestSegmentLenAndAckExpected(t *testing.T) {
	tests := []struct {
		name string
		seg  Segment
		want Size
	}{
		{"pure ack", Segment{Flags: FlagACK}, 0},
		{"fin", Segment{Flags: FlagFIN}, 1},
		{"data", Segment{Flags: FlagSYN, Payload: []byte("abc")}, 4},
	}
	for _, tt := range tests {
		if got := tt.seg.Len(); got != tt.want {
			t.Errorf("%s: Len() = %d, want %d", tt.name, got, tt.want)
		}
	}

	seg := Segment{Seq: 100, Flags: FlagSYN, Payload: []byte("abcd")}
	if want, got := Value(105), seg.AckExpected(); got != want {
		t.Errorf("AckExpected() = %d, want %d", got, want)
	}
}

func TestIsControlOrDataAndPureACK(t *testing.T) {
	data := Segment{Flags: FlagSYN, Payload: []byte("x")}
	if !data.IsControlOrData() {
		t.Error("data segment should be control-or-data")
	}
	fin := Segment{Flags: FlagFIN}
	if !fin.IsControlOrData() {
		t.Error("FIN segment should be control-or-data")
	}
	ack := Segment{Flags: FlagACK}
	if ack.IsControlOrData() {
		t.Error("pure ACK should not be control-or-data")
	}
	if !ack.IsPureACK() {
		t.Error("expected IsPureACK true for bare ACK flag with no payload")
	}
	if data.IsPureACK() {
		t.Error("data segment should not be IsPureACK")
	}
}
