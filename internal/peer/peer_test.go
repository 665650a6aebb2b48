package peer

import (
	"net"
	"testing"
	"time"
)

func addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestTouchAndDeadPeers(t *testing.T) {
	tr := NewTracker()
	a, b := addr(1001), addr(1002)

	tr.TouchRecv(a)
	tr.TouchRecv(b)

	if dead := tr.DeadPeers(time.Hour); len(dead) != 0 {
		t.Fatalf("expected no dead peers, got %v", dead)
	}

	if dead := tr.DeadPeers(-time.Second); len(dead) != 2 {
		t.Fatalf("expected both peers dead under a negative threshold, got %v", dead)
	}
}

func TestSilentPeers(t *testing.T) {
	tr := NewTracker()
	a := addr(2001)
	tr.TouchSend(a)

	if silent := tr.SilentPeers(time.Hour); len(silent) != 0 {
		t.Fatalf("expected no silent peers, got %v", silent)
	}
	if silent := tr.SilentPeers(-time.Second); len(silent) != 1 {
		t.Fatalf("expected peer to be silent, got %v", silent)
	}
}

func TestRemove(t *testing.T) {
	tr := NewTracker()
	a := addr(3001)
	tr.TouchRecv(a)
	if tr.Len() != 1 {
		t.Fatalf("expected 1 tracked peer, got %d", tr.Len())
	}
	tr.Remove(a)
	if tr.Len() != 0 {
		t.Fatalf("expected 0 tracked peers after remove, got %d", tr.Len())
	}
}

func TestStateClassification(t *testing.T) {
	tr := NewTracker()
	a := addr(4001)

	if got := tr.State(a.String(), time.Second); got != Dead {
		t.Fatalf("expected unseen peer to be Dead, got %v", got)
	}

	tr.TouchRecv(a)
	if got := tr.State(a.String(), time.Hour); got != Alive {
		t.Fatalf("expected fresh peer to be Alive, got %v", got)
	}
}
