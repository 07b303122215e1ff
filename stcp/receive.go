package stcp

import "log/slog"

// handleHandshake processes one received segment while the connection has
// not yet reached ESTABLISHED, implementing the LISTEN/SYN_SENT/SYN_RECEIVED
// rows of the state table. The caller stops waiting on network input once
// the state leaves the pre-established states; a non-nil error is fatal.
func (e *Engine) handleHandshake(seg Segment) error {
	e.peerWindow = minSize(congestionCeiling, seg.Window)

	switch e.state {
	case StateListen:
		if !seg.Flags.HasAny(FlagSYN) {
			return nil // not a SYN, ignore while listening
		}
		return e.acceptSyn(seg)

	case StateSynSent:
		switch {
		case seg.Flags.HasAll(FlagSYN | FlagACK):
			if seg.Ack != e.sndNxt {
				e.state = StateClosed
				e.done = true
				return ErrConnectionRefused
			}
			e.irs = seg.Seq
			e.rcvNxt = Add(seg.Seq, 1)
			e.state = StateEstablished
			e.info("handshake complete", slog.String("role", "active"))
			if err := e.transmit(Segment{Seq: e.sndNxt, Ack: e.rcvNxt, Flags: FlagACK, Window: e.localWindow}); err != nil {
				return err
			}
			e.facade.UnblockApplication()
			return nil
		case seg.Flags.HasAny(FlagSYN):
			// simultaneous open: peer's SYN crossed ours.
			return e.acceptSyn(seg)
		default:
			return nil // unrelated segment, ignore
		}

	case StateSynReceived:
		if seg.Flags.HasAny(FlagACK) {
			if seg.Ack != e.sndNxt {
				e.state = StateClosed
				e.done = true
				return ErrConnectionRefused
			}
			e.state = StateEstablished
			e.info("handshake complete", slog.String("role", "passive"))
			e.facade.UnblockApplication()
			return nil
		}
		if seg.Flags.HasAny(FlagSYN) && seg.Seq == e.irs {
			// duplicate SYN: idempotent re-emission, no state change.
			return e.transmit(Segment{Seq: e.iss, Ack: e.rcvNxt, Flags: FlagSYN | FlagACK, Window: e.localWindow})
		}
		return nil
	}
	return nil
}

// acceptSyn handles receipt of a peer SYN from LISTEN or SYN_SENT (the
// latter being a simultaneous-open race), transitioning to SYN_RECEIVED and
// emitting SYN+ACK.
func (e *Engine) acceptSyn(seg Segment) error {
	e.irs = seg.Seq
	e.rcvNxt = Add(seg.Seq, 1)
	e.state = StateSynReceived
	synAck := Segment{Seq: e.iss, Ack: e.rcvNxt, Flags: FlagSYN | FlagACK, Window: e.localWindow}
	if err := e.transmit(synAck); err != nil {
		return err
	}
	// Set rather than accumulate: acceptSyn may run after Init already sent
	// our SYN at the same e.iss (simultaneous open), so sndNxt must land at
	// iss+synAck.Len() regardless of how many times that one SYN was (re)sent.
	e.sndNxt = Add(e.iss, synAck.Len())
	return nil
}

// handleSegment processes one received segment once the connection is past
// the handshake, implementing the receive pipeline of §4.6: refresh the
// peer window, route control-or-data segments through reassembly/ordering,
// route pure ACKs to the retransmit queue.
func (e *Engine) handleSegment(seg Segment) error {
	e.peerWindow = minSize(congestionCeiling, seg.Window)
	if e.metrics != nil {
		e.metrics.SegmentReceived()
	}

	if seg.IsControlOrData() {
		return e.handleDataOrFin(seg)
	}
	if seg.Flags.HasAny(FlagACK) {
		if !e.retransmit.MarkAcked(seg.Ack) && e.metrics != nil {
			e.metrics.DuplicateAck()
		}
		e.creditLocalWindow(seg.Len())
	}
	return nil
}

// creditLocalWindow restores n octets of local_window capacity, capped at
// the fixed buffer size: consumed/delivered data frees the space it
// occupied, per §5's "ACKing the consumed data credits it back."
func (e *Engine) creditLocalWindow(n Size) {
	e.localWindow = minSize(localBufferSize, e.localWindow+n)
}

// handleDataOrFin implements §4.6 step 2: duplicate suppression, ordered
// insertion, and in-order delivery with contiguous drain.
func (e *Engine) handleDataOrFin(seg Segment) error {
	ackExpected := seg.AckExpected()

	if seg.Seq.LessThan(e.rcvNxt) || e.reassembly.Contains(ackExpected) {
		if e.metrics != nil {
			e.metrics.Dropped("duplicate")
		}
		return e.ackCurrent()
	}

	if seg.Seq != e.rcvNxt {
		if e.localWindow == 0 {
			// §7.4: out-of-window receipt while the local buffer has no free
			// space left to hold it pending reassembly; drop and ack current.
			if e.metrics != nil {
				e.metrics.Dropped(errSeqNotInWindow.Error())
			}
			return e.ackCurrent()
		}
		cp := append([]byte(nil), seg.Payload...)
		e.reassembly.Insert(&ReassemblyEntry{Seq: seg.Seq, AckExpected: ackExpected, Flags: seg.Flags, Payload: cp})
		return e.ackCurrent()
	}

	if err := e.deliver(seg); err != nil {
		return err
	}
	e.creditLocalWindow(seg.Len())
	e.rcvNxt = ackExpected

	newNxt, drained := e.reassembly.DrainContiguous(e.rcvNxt)
	for _, entry := range drained {
		drainedSeg := Segment{Seq: entry.Seq, Flags: entry.Flags, Payload: entry.Payload}
		if err := e.deliver(drainedSeg); err != nil {
			return err
		}
		e.creditLocalWindow(drainedSeg.Len())
	}
	e.rcvNxt = newNxt

	return e.ackCurrent()
}

// deliver applies one in-order segment: FIN triggers the relevant state
// transition, otherwise the payload (if data-bearing, i.e. SYN-flagged with
// a nonzero payload) is handed to the application.
func (e *Engine) deliver(seg Segment) error {
	if seg.Flags.HasAny(FlagFIN) {
		return e.applyFin()
	}
	if len(seg.Payload) > 0 {
		return e.facade.AppSend(seg.Payload)
	}
	return nil
}

// applyFin performs the state transition for an in-order FIN per §4.5.
func (e *Engine) applyFin() error {
	e.facade.FinReceived()
	switch e.state {
	case StateEstablished:
		e.state = StateCloseWait
	case StateFinWait1, StateFinWait2:
		e.state = StateClosed
		e.done = true
	}
	return nil
}

// ackCurrent sends one pure ACK carrying rcv_nxt and the current local window.
func (e *Engine) ackCurrent() error {
	return e.transmit(Segment{Seq: e.sndNxt, Ack: e.rcvNxt, Flags: FlagACK, Window: e.localWindow})
}

func minSize(a, b Size) Size {
	if a < b {
		return a
	}
	return b
}
