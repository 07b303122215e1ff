package mysock

import (
	"testing"
	"time"
)

type recordingSender struct{ sent [][]byte }

func (s *recordingSender) Send(segment []byte) error {
	s.sent = append(s.sent, append([]byte(nil), segment...))
	return nil
}

func TestChanFacadeNetworkSendUsesSender(t *testing.T) {
	sender := &recordingSender{}
	f := NewChanFacade(sender)
	if err := f.NetworkSend([]byte("segment")); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 || string(sender.sent[0]) != "segment" {
		t.Fatalf("sender.sent = %v, want one entry \"segment\"", sender.sent)
	}
}

func TestChanFacadePushAndRecv(t *testing.T) {
	f := NewChanFacade(nil)
	f.PushSegment([]byte("abc"))

	ev, err := f.WaitForEvent(EventNetworkData, time.Now().Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if !ev.HasAny(EventNetworkData) {
		t.Fatalf("WaitForEvent returned %v, want EventNetworkData set", ev)
	}

	buf := make([]byte, 16)
	n, err := f.NetworkRecv(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "abc" {
		t.Fatalf("NetworkRecv got %q, want %q", buf[:n], "abc")
	}
}

func TestChanFacadeWaitForEventTimesOut(t *testing.T) {
	f := NewChanFacade(nil)
	ev, err := f.WaitForEvent(EventNetworkData, time.Now().Add(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if ev != EventTimeout {
		t.Fatalf("WaitForEvent = %v, want EventTimeout with nothing queued", ev)
	}
}

func TestChanFacadeAppWriteAndRecv(t *testing.T) {
	f := NewChanFacade(nil)
	n, err := f.Write([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if n != len("payload") {
		t.Fatalf("Write returned %d, want %d", n, len("payload"))
	}

	buf := make([]byte, 16)
	n, err = f.AppRecv(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "payload" {
		t.Fatalf("AppRecv got %q, want %q", buf[:n], "payload")
	}
}

func TestChanFacadeCloseRequestConsumedOnce(t *testing.T) {
	f := NewChanFacade(nil)
	f.RequestClose()

	ev, _ := f.WaitForEvent(EventCloseRequested, time.Now().Add(time.Second))
	if !ev.HasAny(EventCloseRequested) {
		t.Fatal("expected EventCloseRequested on first wait")
	}
	ev, _ = f.WaitForEvent(EventCloseRequested, time.Now().Add(10*time.Millisecond))
	if ev.HasAny(EventCloseRequested) {
		t.Fatal("a close request should only be reported once")
	}
}
