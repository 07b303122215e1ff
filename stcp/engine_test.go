package stcp

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/macaddino/stcp/mysock"
)

// pipeSender wires one ChanFacade's outgoing segments directly into a peer
// ChanFacade's inbound queue, optionally dropping segments, without
// needing a real network substrate for these in-process tests.
type pipeSender struct {
	mu   sync.Mutex
	peer *mysock.ChanFacade
	drop func(n int) bool
	n    int
}

func (s *pipeSender) Send(segment []byte) error {
	s.mu.Lock()
	n := s.n
	s.n++
	s.mu.Unlock()
	if s.drop != nil && s.drop(n) {
		return nil
	}
	cp := append([]byte(nil), segment...)
	s.peer.PushSegment(cp)
	return nil
}

func newPair(t *testing.T, fixedISN bool) (ea, eb *Engine, fa, fb *mysock.ChanFacade) {
	t.Helper()
	sa := &pipeSender{}
	sb := &pipeSender{}
	fa = mysock.NewChanFacade(sa)
	fb = mysock.NewChanFacade(sb)
	sa.peer, sb.peer = fb, fa

	ea = New("a", fa)
	eb = New("b", fb)
	ea.SetFixedISN(fixedISN)
	eb.SetFixedISN(fixedISN)
	return ea, eb, fa, fb
}

func runEngines(t *testing.T, ctx context.Context, engines ...*Engine) <-chan error {
	t.Helper()
	errs := make(chan error, len(engines))
	for _, e := range engines {
		e := e
		go func() { errs <- e.Run(ctx) }()
	}
	return errs
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestHandshakeActiveAndPassive(t *testing.T) {
	ea, eb, _, _ := newPair(t, true)
	if err := eb.Init(RoleListen); err != nil {
		t.Fatal(err)
	}
	if err := ea.Init(RoleActive); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runEngines(t, ctx, ea, eb)

	waitFor(t, time.Second, func() bool {
		return ea.State() == StateEstablished && eb.State() == StateEstablished
	})
}

func TestSingleSegmentTransfer(t *testing.T) {
	ea, eb, fa, fb := newPair(t, true)
	eb.Init(RoleListen)
	ea.Init(RoleActive)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runEngines(t, ctx, ea, eb)
	waitFor(t, time.Second, func() bool { return ea.State() == StateEstablished })

	payload := []byte("hello stcp")
	fa.Write(payload)

	var got []byte
	waitFor(t, time.Second, func() bool {
		buf := make([]byte, 64)
		n, _ := fb.Read(buf)
		got = append(got, buf[:n]...)
		return len(got) >= len(payload)
	})
	if !bytes.Equal(got, payload) {
		t.Fatalf("received %q, want %q", got, payload)
	}
}

func TestSimultaneousClose(t *testing.T) {
	ea, eb, fa, fb := newPair(t, true)
	eb.Init(RoleListen)
	ea.Init(RoleActive)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := runEngines(t, ctx, ea, eb)
	waitFor(t, time.Second, func() bool { return ea.State() == StateEstablished && eb.State() == StateEstablished })

	fa.RequestClose()
	fb.RequestClose()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("engines did not finish closing in time")
		}
	}
	if ea.State() != StateClosed || eb.State() != StateClosed {
		t.Fatalf("states after close: a=%v b=%v, want both CLOSED", ea.State(), eb.State())
	}
}

func TestReorderedReceiveDeliversInOrder(t *testing.T) {
	// White-box: drive the receive pipeline directly with a deliberately
	// reordered pair of segments, rather than racing a live control loop.
	_, eb, _, fb := newPair(t, true)
	eb.state = StateEstablished
	eb.rcvNxt = 100

	second := Segment{Seq: 102, Flags: FlagSYN, Payload: []byte("B")}
	first := Segment{Seq: 100, Flags: FlagSYN, Payload: []byte("A")}

	if err := eb.handleSegment(second); err != nil {
		t.Fatal(err)
	}
	if eb.reassembly.Len() != 1 {
		t.Fatalf("out-of-order segment should be queued, reassembly.Len() = %d", eb.reassembly.Len())
	}
	if err := eb.handleSegment(first); err != nil {
		t.Fatal(err)
	}
	if eb.reassembly.Len() != 0 {
		t.Fatalf("reassembly queue should have drained, Len() = %d", eb.reassembly.Len())
	}

	buf := make([]byte, 8)
	n, _ := fb.Read(buf)
	if got := string(buf[:n]); got != "AB" {
		t.Fatalf("delivered %q, want %q (in-order despite reordering)", got, "AB")
	}
}

func TestGoBackNRetransmission(t *testing.T) {
	// White-box: exercise the retransmit queue and onTimeout directly rather
	// than waiting out the real 1-second deadline.
	ea, _, _, _ := newPair(t, true)
	ea.state = StateEstablished
	ea.sndNxt = 100
	ea.localWindow = localBufferSize
	ea.peerWindow = localBufferSize

	if err := ea.sendApplicationData([]byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := ea.sendApplicationData([]byte("second")); err != nil {
		t.Fatal(err)
	}
	if ea.retransmit.Len() != 2 {
		t.Fatalf("retransmit queue has %d entries, want 2", ea.retransmit.Len())
	}

	// Force the earliest entry's deadline into the past and retransmit.
	triggering := ea.retransmit.EarliestDeadline()
	triggering.Deadline = time.Now().Add(-time.Millisecond)
	if err := ea.onTimeout(); err != nil {
		t.Fatal(err)
	}
	if triggering.Retries != 1 {
		t.Fatalf("triggering entry should have Retries=1, got %d", triggering.Retries)
	}
}

func TestRetryExhaustionDropsEntryWithoutClosingEstablished(t *testing.T) {
	ea, _, _, _ := newPair(t, true)
	ea.state = StateEstablished
	ea.sndNxt = 100
	ea.localWindow = localBufferSize
	ea.peerWindow = localBufferSize

	if err := ea.sendApplicationData([]byte("x")); err != nil {
		t.Fatal(err)
	}
	entry := ea.retransmit.EarliestDeadline()
	entry.Retries = maxRetries

	if err := ea.onTimeout(); err != nil {
		t.Fatal(err)
	}
	if ea.retransmit.Len() != 0 {
		t.Fatalf("retransmit queue has %d entries after exhaustion, want 0", ea.retransmit.Len())
	}
	if ea.state != StateEstablished || ea.done {
		t.Fatalf("an exhausted data retransmission should not close the connection: state=%v done=%v", ea.state, ea.done)
	}
}
