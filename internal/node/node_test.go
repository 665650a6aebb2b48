package node

import (
	"testing"
	"time"

	"serpentine.network/internal/board"
	"serpentine.network/internal/config"
	"serpentine.network/internal/directory"
	"serpentine.network/internal/peer"
	"serpentine.network/internal/proto"
	"serpentine.network/internal/transport"
)

func newTestNode(t *testing.T, mcastPort int, tickDelayMs int) (*Node, *transport.Transport) {
	t.Helper()
	tr, err := transport.Open("239.192.0.4", mcastPort, "", nil)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	cfg := config.Config{Width: 10, Height: 10, FoodStatic: 0, TickDelayMs: tickDelayMs, Name: "arena", Nickname: "tester"}
	n := New(cfg, tr, directory.New(), peer.NewTracker(), nil)
	return n, tr
}

func TestBecomeMasterCreatesGame(t *testing.T) {
	n, tr := newTestNode(t, 19201, 1000)
	defer tr.Close()

	n.becomeMaster()

	snap := n.Snapshot()
	if snap.LocalRole != board.RoleMaster {
		t.Fatalf("expected Master role, got %v", snap.LocalRole)
	}
	if snap.Game == nil || len(snap.Game.Snakes) != 1 {
		t.Fatalf("expected a spawned snake, got %+v", snap.Game)
	}
}

func TestJoinFlowAssignsID(t *testing.T) {
	master, masterTr := newTestNode(t, 19202, 50)
	defer masterTr.Close()
	joiner, joinerTr := newTestNode(t, 19202, 50)
	defer joinerTr.Close()

	stop := make(chan struct{})
	defer close(stop)
	go master.Run(stop)
	go joiner.Run(stop)

	master.Intents <- Intent{Kind: IntentNewGame}
	time.Sleep(20 * time.Millisecond)

	// Seed the joiner's directory directly instead of waiting out the
	// 1-second announcement cadence.
	joiner.directory.Insert(masterTr.LocalAddr().String(), proto.Announcement{
		Games: []proto.GameInfo{{Name: "arena", CanJoin: true}},
	})

	joiner.Intents <- Intent{Kind: IntentJoin, Idx: 0}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if joiner.Snapshot().LocalID != 0 || joiner.Snapshot().LocalRole != board.RoleViewer {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap := joiner.Snapshot()
	if snap.LocalRole != board.RoleNormal && snap.LocalRole != board.RoleDeputy {
		t.Fatalf("expected joiner to become Normal or Deputy, got %v (id=%d)", snap.LocalRole, snap.LocalID)
	}
}

func TestTurnRejectsInvalidReversalThroughIntent(t *testing.T) {
	n, tr := newTestNode(t, 19203, 1000)
	defer tr.Close()

	n.becomeMaster()
	snap := n.Snapshot()
	original := snap.Game.SnakeByID(0).Direction

	n.handleIntent(Intent{Kind: IntentTurn, Dir: original.Opposite()})

	snap = n.Snapshot()
	if snap.Game.SnakeByID(0).Direction != original {
		t.Fatalf("expected reversal to be rejected, direction changed to %v", snap.Game.SnakeByID(0).Direction)
	}
}
