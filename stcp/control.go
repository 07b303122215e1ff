package stcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/macaddino/stcp/mysock"
)

// Run drives the connection to completion: it first blocks through the
// handshake (LISTEN/SYN_SENT/SYN_RECEIVED, per §4.5), then runs the
// steady-state control loop of §4.8 until the connection reaches CLOSED.
//
// Cancelling ctx is treated exactly like an APP_CLOSE_REQUESTED event: the
// engine sends its FIN and continues draining the retransmit queue normally,
// so callers get the same graceful teardown as a local app-initiated close.
// Run returns ctx.Err() only if cancellation arrives before the handshake
// completes, since there is no connection yet to tear down gracefully.
// Cancellation is noticed only when the loop next wakes (on an event or a
// retransmit deadline); it does not by itself interrupt a blocked wait.
func (e *Engine) Run(ctx context.Context) error {
	if e.state == StateClosed {
		return ErrClosed
	}
	if err := e.runHandshake(ctx); err != nil {
		return err
	}
	if e.done {
		return nil
	}
	return e.runSteadyState(ctx)
}

func (e *Engine) runHandshake(ctx context.Context) error {
	for e.state.IsPreestablished() {
		if err := ctx.Err(); err != nil {
			e.state = StateClosed
			e.done = true
			return err
		}
		ev, err := e.facade.WaitForEvent(mysock.EventNetworkData, time.Time{})
		if err != nil {
			return err
		}
		if !ev.HasAny(mysock.EventNetworkData) {
			continue
		}
		seg, err := e.recvOne()
		if err == errDropSegment {
			continue
		}
		if err != nil {
			return err
		}
		if err := e.handleHandshake(seg); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runSteadyState(ctx context.Context) error {
	closeRequested := false
	for !e.done {
		for _, entry := range e.retransmit.Sweep() {
			e.onEntryAcked(entry)
		}
		if e.done {
			break
		}

		if !closeRequested && ctx.Err() != nil {
			closeRequested = true
			if err := e.onCloseRequested(); err != nil {
				return err
			}
			continue
		}

		var deadline time.Time
		if earliest := e.retransmit.EarliestDeadline(); earliest != nil {
			deadline = earliest.Deadline
		}

		ev, err := e.facade.WaitForEvent(mysock.EventAny, deadline)
		if err != nil {
			return err
		}

		switch {
		case ev.HasAny(mysock.EventNetworkData):
			if err := e.onNetworkData(); err != nil {
				return err
			}
		case ev.HasAny(mysock.EventTimeout):
			if err := e.onTimeout(); err != nil {
				return err
			}
		case ev.HasAny(mysock.EventAppData):
			if err := e.onAppData(); err != nil {
				return err
			}
		}
		// A close request is reported only once, so it is handled even when
		// another event was dispatched in the same wakeup.
		if ev.HasAny(mysock.EventCloseRequested) && !closeRequested && !e.done {
			closeRequested = true
			if err := e.onCloseRequested(); err != nil {
				return err
			}
		}
	}
	return nil
}

// onEntryAcked reacts to a retransmit entry removed by Sweep because it was
// cumulatively acknowledged: a FIN entry being acked drives the remaining
// half of the teardown state machine (§4.5's "ACK for our FIN" rows).
func (e *Engine) onEntryAcked(entry *RetransmitEntry) {
	if !entry.Flags.HasAny(FlagFIN) {
		return
	}
	switch e.state {
	case StateFinWait1:
		e.state = StateFinWait2
	case StateLastAck:
		e.state = StateClosed
		e.done = true
	}
}

// onNetworkData implements the NETWORK_DATA branch of §4.8: read one
// segment, debit local_window by what was read, and feed the receive pipeline.
func (e *Engine) onNetworkData() error {
	seg, err := e.recvOne()
	if err == errDropSegment {
		return nil
	}
	if err != nil {
		return err
	}
	debit := Size(len(seg.Payload))
	if debit > e.localWindow {
		debit = e.localWindow
	}
	e.localWindow -= debit
	return e.handleSegment(seg)
}

// onTimeout implements the TIMEOUT branch of §4.8: abandon the earliest
// entry once its retries are exhausted (or the connection is closing),
// otherwise retransmit it and every later entry in seq order (go-back-N).
func (e *Engine) onTimeout() error {
	entry := e.retransmit.EarliestDeadline()
	if entry == nil {
		return nil
	}
	if entry.Retries >= maxRetries || e.state.IsClosing() {
		e.retransmit.Drop(entry)
		e.warn("retransmit abandoned", slog.Uint64("seq", uint64(entry.Seq)))
		if entry.Flags.HasAny(FlagFIN) && e.state.IsClosing() {
			e.state = StateClosed
			e.done = true
		}
		return nil
	}

	batch := e.retransmit.FromSeq(entry.Seq)
	entry.Retries++
	entry.Deadline = time.Now().Add(retransmitTimeout)
	for _, e2 := range batch {
		if e2 != entry {
			e2.Deadline = time.Now().Add(retransmitTimeout)
		}
		if err := e.facade.NetworkSend(e2.Bytes); err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.Retransmitted()
		}
	}
	return nil
}

// onAppData implements the APP_DATA branch of §4.8: pull up to peer_window
// octets from the application and run the send pipeline over them.
func (e *Engine) onAppData() error {
	limit := e.peerWindow
	if limit == 0 || limit > localBufferSize {
		limit = localBufferSize
	}
	buf := make([]byte, limit)
	n, err := e.facade.AppRecv(buf)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return e.sendApplicationData(buf[:n])
}

// onCloseRequested implements the APP_CLOSE_REQUESTED branch of §4.8.
func (e *Engine) onCloseRequested() error {
	if err := e.sendFin(); err != nil {
		return err
	}
	switch e.state {
	case StateEstablished:
		e.state = StateFinWait1
	case StateCloseWait:
		e.state = StateLastAck
	}
	return nil
}

// recvOne reads one raw segment from the facade and decodes it, copying its
// payload so it outlives the shared receive buffer. It returns
// errDropSegment when the facade had nothing queued (a spurious wakeup).
func (e *Engine) recvOne() (Segment, error) {
	n, err := e.facade.NetworkRecv(e.netBuf[:])
	if err != nil {
		return Segment{}, err
	}
	if n == 0 {
		return Segment{}, errDropSegment
	}
	seg, err := Decode(e.netBuf[:n])
	if err != nil {
		return Segment{}, err
	}
	seg.Payload = append([]byte(nil), seg.Payload...)
	e.traceSeg("rx", seg)
	return seg, nil
}
