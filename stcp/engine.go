// Package stcp implements the core of a simplified reliable transport: a
// single-connection engine that runs connection establishment/teardown,
// sequence-number bookkeeping, ordered receive reassembly, a go-back-N
// retransmission queue, and a single-threaded event-driven control loop atop
// an externally supplied socket facade (see package mysock).
package stcp

import (
	"crypto/rand"
	"log/slog"
	"math/big"

	"github.com/macaddino/stcp/mysock"
)

// Fixed resource limits. These mirror the source program's hardcoded
// buffer/window sizes; the design does not negotiate them.
const (
	// localBufferSize is the size in octets of the fixed local receive window.
	localBufferSize = 3072
	// congestionCeiling caps the peer's advertised window at a fixed value:
	// this design has no dynamic congestion control.
	congestionCeiling = 3072
)

// Metrics is the optional observability hook an Engine reports through. A
// nil Metrics (the zero value of Engine) disables all reporting; see package
// stcpmetrics for a prometheus.Collector implementation.
type Metrics interface {
	SegmentSent()
	SegmentReceived()
	Retransmitted()
	DuplicateAck()
	Dropped(reason string)
}

// Role distinguishes the two ways a connection may begin its handshake.
type Role uint8

const (
	// RoleListen starts the engine in StateListen, waiting for an incoming SYN.
	RoleListen Role = iota
	// RoleActive starts the engine in StateSynSent, having sent a SYN.
	RoleActive
)

// Engine is one STCP connection. The zero value is not ready for use; build
// one with New and call Init before Run.
type Engine struct {
	logger
	id      string
	facade  mysock.Facade
	metrics Metrics

	state State
	done  bool

	iss Value // initial send sequence number
	irs Value // initial receive sequence number, latched once known

	sndNxt Value
	rcvNxt Value

	peerWindow  Size
	localWindow Size

	retransmit RetransmitQueue
	reassembly ReassemblyQueue

	// fixedISN forces iss=1 instead of a random pick in [0,256), mirroring the
	// source's FIXED_INITNUM debug switch.
	fixedISN bool

	netBuf [MaxSegmentLen]byte
	encBuf [MaxSegmentLen]byte
}

// New constructs an Engine identified by id (see package mysock for Facade
// and the xid package for a suitable id generator) driving facade.
func New(id string, facade mysock.Facade) *Engine {
	return &Engine{id: id, facade: facade, localWindow: localBufferSize}
}

// SetLogger attaches a structured logger. Never forced at construction time;
// a nil Engine logger discards everything.
func (e *Engine) SetLogger(log *slog.Logger) {
	e.logger = newLogger(log, e.id)
}

// SetMetrics attaches the observability hook. Call before Run.
func (e *Engine) SetMetrics(m Metrics) { e.metrics = m }

// SetFixedISN forces the initial sequence number to 1 instead of drawing one
// at random, for reproducible traces; see transport_init's FIXED_INITNUM.
func (e *Engine) SetFixedISN(fixed bool) { e.fixedISN = fixed }

// ID returns the connection's identifier, as set by New.
func (e *Engine) ID() string { return e.id }

// State returns the current connection state.
func (e *Engine) State() State { return e.state }

// Done reports whether the control loop has reached CLOSED and exited.
func (e *Engine) Done() bool { return e.done }

// RetransmitQueueLen exposes the number of unacknowledged segments, used by
// package stcpmetrics for the queue-depth gauge.
func (e *Engine) RetransmitQueueLen() int { return e.retransmit.Len() }

// Init resets the engine to the given role's initial state, drawing a fresh
// ISN. It must be called once before the first call to Run.
func (e *Engine) Init(role Role) error {
	iss, err := e.newISN()
	if err != nil {
		return err
	}
	e.iss = iss
	e.sndNxt = iss
	e.rcvNxt = 0
	e.irs = 0
	e.peerWindow = 0
	e.localWindow = localBufferSize
	e.done = false
	e.retransmit.Reset()
	e.reassembly.Reset()

	switch role {
	case RoleListen:
		e.state = StateListen
		e.debug("init", slog.String("role", "listen"), slog.Uint64("iss", uint64(e.iss)))
	case RoleActive:
		e.state = StateSynSent
		e.debug("init", slog.String("role", "active"), slog.Uint64("iss", uint64(e.iss)))
		seg := Segment{Seq: e.iss, Flags: FlagSYN, Window: e.localWindow}
		if err := e.transmit(seg); err != nil {
			return err
		}
		e.sndNxt = Add(e.iss, seg.Len())
		return nil
	}
	return nil
}

// newISN draws the initial sequence number: uniformly in [0,256) normally,
// or the fixed value 1 when SetFixedISN(true) was called, mirroring the
// source's debug switch used to produce reproducible traces.
func (e *Engine) newISN() (Value, error) {
	if e.fixedISN {
		return 1, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(256))
	if err != nil {
		return 0, err
	}
	return Value(n.Int64()), nil
}

// transmit encodes seg and hands it to the facade, bumping metrics.
func (e *Engine) transmit(seg Segment) error {
	n, err := Encode(seg, e.encBuf[:])
	if err != nil {
		return err
	}
	e.traceSeg("tx", seg)
	if err := e.facade.NetworkSend(e.encBuf[:n]); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.SegmentSent()
	}
	return nil
}
