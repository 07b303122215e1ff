package mysock

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/macaddino/stcp/internal"
)

// localBufferSize bounds the ChanFacade's app-facing buffers to the same
// fixed 3072-octet capacity the engine enforces for its receive window; see
// stcp.localBufferSize.
const localBufferSize = 3072

// Sender is the minimal network-side collaborator a ChanFacade needs: a
// place to hand outgoing segments to. netlo.UDPConn and netlo.Lossy satisfy this.
type Sender interface {
	Send(segment []byte) error
}

// ChanFacade is a Facade backed by in-process queues, suitable for wiring
// two engines together in a test or for sitting in front of a real network
// substrate (see the netlo package) in a demo binary.
type ChanFacade struct {
	sender Sender

	mu        sync.Mutex
	netQueue  [][]byte // segments pushed by the network substrate, awaiting NetworkRecv.
	writeBuf  internal.Ring
	readBuf   internal.Ring
	closeReq  bool
	fin       bool
	unblocked bool
	wake      chan struct{}
}

// NewChanFacade constructs a facade that transmits outgoing segments via sender.
func NewChanFacade(sender Sender) *ChanFacade {
	return &ChanFacade{
		sender:   sender,
		wake:     make(chan struct{}, 1),
		writeBuf: internal.Ring{Buf: make([]byte, localBufferSize)},
		readBuf:  internal.Ring{Buf: make([]byte, localBufferSize)},
	}
}

func (f *ChanFacade) notify() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// PushSegment is called by the network substrate to deliver one received
// segment. It does not block.
func (f *ChanFacade) PushSegment(segment []byte) {
	cp := append([]byte(nil), segment...)
	f.mu.Lock()
	f.netQueue = append(f.netQueue, cp)
	f.mu.Unlock()
	f.notify()
}

// Write stages application bytes for transmission, the application-facing
// counterpart of AppRecv. It returns the number of bytes accepted.
func (f *ChanFacade) Write(b []byte) (int, error) {
	f.mu.Lock()
	n := writeTruncated(&f.writeBuf, b)
	f.mu.Unlock()
	f.notify()
	return n, nil
}

// Read drains bytes the engine has delivered via AppSend, the
// application-facing counterpart of AppSend.
func (f *ChanFacade) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readBuf.Buffered() == 0 {
		if f.fin {
			return 0, io.EOF
		}
		return 0, nil
	}
	return f.readBuf.Read(b)
}

// writeTruncated writes as much of b as fits in r's free space, silently
// dropping the remainder: a ChanFacade buffer is a fixed-size window, not an
// unbounded queue, so a caller that outruns it loses the excess rather than
// blocking.
func writeTruncated(r *internal.Ring, b []byte) int {
	if len(b) == 0 {
		return 0
	}
	free := r.Free()
	if free <= 0 {
		return 0
	}
	if len(b) > free {
		b = b[:free]
	}
	n, err := r.Write(b)
	if err != nil {
		return 0
	}
	return n
}

// RequestClose signals APP_CLOSE_REQUESTED to the control loop.
func (f *ChanFacade) RequestClose() {
	f.mu.Lock()
	f.closeReq = true
	f.mu.Unlock()
	f.notify()
}

// FinSeen reports whether FinReceived has fired, useful for tests that poll
// connection lifecycle from outside the loop.
func (f *ChanFacade) FinSeen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fin
}

// Unblocked reports whether UnblockApplication has been called.
func (f *ChanFacade) Unblocked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unblocked
}

func (f *ChanFacade) NetworkSend(segment []byte) error {
	if f.sender == nil {
		return errors.New("mysock: nil sender")
	}
	return f.sender.Send(segment)
}

func (f *ChanFacade) NetworkRecv(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.netQueue) == 0 {
		return 0, nil
	}
	seg := f.netQueue[0]
	f.netQueue = f.netQueue[1:]
	n := copy(buf, seg)
	return n, nil
}

func (f *ChanFacade) AppSend(payload []byte) error {
	f.mu.Lock()
	writeTruncated(&f.readBuf, payload)
	f.mu.Unlock()
	return nil
}

func (f *ChanFacade) AppRecv(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeBuf.Buffered() == 0 {
		return 0, nil
	}
	return f.writeBuf.Read(buf)
}

func (f *ChanFacade) WaitForEvent(mask Event, deadline time.Time) (Event, error) {
	for {
		if ev := f.ready(mask); ev != 0 {
			return ev, nil
		}
		var timer *time.Timer
		var timeout <-chan time.Time
		if !deadline.IsZero() {
			d := time.Until(deadline)
			if d <= 0 {
				return EventTimeout, nil
			}
			timer = time.NewTimer(d)
			timeout = timer.C
		}
		select {
		case <-f.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timeout:
			return EventTimeout, nil
		}
	}
}

func (f *ChanFacade) ready(mask Event) Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ev Event
	if mask.HasAny(EventNetworkData) && len(f.netQueue) > 0 {
		ev |= EventNetworkData
	}
	if mask.HasAny(EventAppData) && f.writeBuf.Buffered() > 0 {
		ev |= EventAppData
	}
	if mask.HasAny(EventCloseRequested) && f.closeReq {
		ev |= EventCloseRequested
		f.closeReq = false
	}
	return ev
}

func (f *ChanFacade) FinReceived() {
	f.mu.Lock()
	f.fin = true
	f.mu.Unlock()
}

func (f *ChanFacade) UnblockApplication() {
	f.mu.Lock()
	f.unblocked = true
	f.mu.Unlock()
}
