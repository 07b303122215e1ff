package stcp

import "time"

// sendApplicationData implements §4.7: segment buf into MaxPayloadLen
// chunks, enqueue each as a retransmit entry, and transmit it.
func (e *Engine) sendApplicationData(buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > MaxPayloadLen {
			n = MaxPayloadLen
		}
		chunk := buf[:n]
		buf = buf[n:]

		seg := Segment{Seq: e.sndNxt, Flags: FlagSYN, Window: e.localWindow, Payload: chunk}
		if err := e.enqueueAndSend(seg); err != nil {
			return err
		}
		e.sndNxt = Add(e.sndNxt, seg.Len())
	}
	return nil
}

// sendFin builds and transmits a FIN segment, enqueuing it for retransmission.
func (e *Engine) sendFin() error {
	seg := Segment{Seq: e.sndNxt, Flags: FlagFIN, Window: e.localWindow}
	if err := e.enqueueAndSend(seg); err != nil {
		return err
	}
	e.sndNxt = Add(e.sndNxt, seg.Len())
	return nil
}

// enqueueAndSend encodes seg once, stores the wire image in a fresh
// retransmit entry with a deadline one retransmitTimeout out, and transmits it.
func (e *Engine) enqueueAndSend(seg Segment) error {
	var scratch [MaxSegmentLen]byte
	n, err := Encode(seg, scratch[:])
	if err != nil {
		return err
	}
	wire := append([]byte(nil), scratch[:n]...)

	entry := &RetransmitEntry{
		Seq:         seg.Seq,
		AckExpected: seg.AckExpected(),
		Length:      Size(n),
		Deadline:    time.Now().Add(retransmitTimeout),
		Flags:       seg.Flags,
		Bytes:       wire,
	}
	e.retransmit.Insert(entry)

	e.traceSeg("tx", seg)
	if err := e.facade.NetworkSend(wire); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.SegmentSent()
	}
	return nil
}
