package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"serpentine.network/internal/board"
	"serpentine.network/internal/proto"
)

type countingRecorder struct {
	mu    sync.Mutex
	count int
}

func (c *countingRecorder) DecodeError() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *countingRecorder) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestUnicastRoundTrip(t *testing.T) {
	a, err := Open("239.192.0.4", 19192, "", nil)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	defer a.Close()

	b, err := Open("239.192.0.4", 19192, "", nil)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	defer b.Close()

	msg := proto.Message{Seq: 1, Kind: proto.KindSteer, Payload: proto.Steer{Direction: board.Up}}
	if err := a.SendUcast(b.LocalAddr(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case in := <-b.UcastIn:
		if in.Message.Seq != 1 {
			t.Fatalf("got seq %d want 1", in.Message.Seq)
		}
		steer, ok := in.Message.Payload.(*proto.Steer)
		if !ok || steer.Direction != board.Up {
			t.Fatalf("got payload %+v", in.Message.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unicast delivery")
	}
}

func TestMulticastRoundTrip(t *testing.T) {
	a, err := Open("239.192.0.4", 19193, "", nil)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	defer a.Close()

	b, err := Open("239.192.0.4", 19193, "", nil)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	defer b.Close()

	msg := proto.Message{Seq: 2, Kind: proto.KindAnnouncement, Payload: proto.Announcement{}}
	a.SendMcast(msg)

	select {
	case in := <-b.McastIn:
		if in.Message.Seq != 2 {
			t.Fatalf("got seq %d want 2", in.Message.Seq)
		}
	case <-time.After(2 * time.Second):
		t.Skip("multicast loopback delivery not observed in this environment")
	}
}

func TestRecorderCountsDecodeErrors(t *testing.T) {
	rec := &countingRecorder{}
	b, err := Open("239.192.0.4", 19194, "", rec)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	defer b.Close()

	conn, err := net.DialUDP("udp4", nil, b.LocalAddr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{0xff, 0xff}); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec.get() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected DecodeError to be recorded for a malformed frame")
}
