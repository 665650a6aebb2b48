package board

import (
	"math/rand"
	"testing"
)

func newTestGame(w, h, foodStatic int) *Game {
	return NewGame("test", Config{Width: w, Height: h, FoodStatic: foodStatic, TickDelayMs: 1000}, rand.New(rand.NewSource(1)))
}

func TestStepMoveNoEat(t *testing.T) {
	g := newTestGame(10, 10, 0)
	g.Snakes = []*Snake{{OwnerID: 0, Body: []Point{{5, 5}, {4, 5}}, Direction: Right}}
	g.Players[0] = &Player{ID: 0}

	g.Step()

	want := []Point{{6, 5}, {5, 5}}
	if len(g.Snakes) != 1 {
		t.Fatalf("expected 1 live snake, got %d", len(g.Snakes))
	}
	if !pointsEqual(g.Snakes[0].Body, want) {
		t.Fatalf("got body %v want %v", g.Snakes[0].Body, want)
	}
	if g.Turn != 1 {
		t.Fatalf("got turn %d want 1", g.Turn)
	}
}

func TestStepWraps(t *testing.T) {
	g := newTestGame(4, 4, 0)
	g.Snakes = []*Snake{{OwnerID: 0, Body: []Point{{3, 1}, {2, 1}}, Direction: Right}}
	g.Players[0] = &Player{ID: 0}

	g.Step()

	want := []Point{{0, 1}, {3, 1}}
	if !pointsEqual(g.Snakes[0].Body, want) {
		t.Fatalf("got body %v want %v", g.Snakes[0].Body, want)
	}
	if g.Turn != 1 {
		t.Fatalf("got turn %d want 1", g.Turn)
	}
}

func TestStepEatsFoodAndGrows(t *testing.T) {
	g := newTestGame(5, 5, 0)
	g.Food[Point{2, 2}] = struct{}{}
	g.Snakes = []*Snake{{OwnerID: 0, Body: []Point{{1, 2}, {0, 2}}, Direction: Right}}
	g.Players[0] = &Player{ID: 0}

	g.Step()

	want := []Point{{2, 2}, {1, 2}, {0, 2}}
	if !pointsEqual(g.Snakes[0].Body, want) {
		t.Fatalf("got body %v want %v", g.Snakes[0].Body, want)
	}
	if len(g.Food) != 1 {
		t.Fatalf("expected food respawned to target 1, got %d", len(g.Food))
	}
	if _, stillThere := g.Food[Point{2, 2}]; stillThere {
		t.Fatalf("eaten food cell should have been removed (the head now occupies it, so it cannot be re-chosen)")
	}
}

func TestStepHeadOnHeadKillsBothNoScore(t *testing.T) {
	g := newTestGame(5, 1, 0)
	a := &Snake{OwnerID: 0, Body: []Point{{1, 0}, {0, 0}}, Direction: Right}
	b := &Snake{OwnerID: 1, Body: []Point{{3, 0}, {4, 0}}, Direction: Left}
	g.Snakes = []*Snake{a, b}
	g.Players[0] = &Player{ID: 0}
	g.Players[1] = &Player{ID: 1}

	g.Step()

	if len(g.Snakes) != 0 {
		t.Fatalf("expected both snakes dead, got %d alive", len(g.Snakes))
	}
	if g.Players[0].Score != 0 || g.Players[1].Score != 0 {
		t.Fatalf("expected no score change, got %d/%d", g.Players[0].Score, g.Players[1].Score)
	}
}

func TestStepBodyCollisionAwardsKillerPoint(t *testing.T) {
	g := newTestGame(10, 10, 0)
	// a moves right into b's stationary body (b points away, doesn't move into a).
	a := &Snake{OwnerID: 0, Body: []Point{{4, 5}, {3, 5}}, Direction: Right}
	b := &Snake{OwnerID: 1, Body: []Point{{6, 5}, {5, 5}, {5, 5}}, Direction: Up}
	// give b a body cell at (5,5) that a's next head (5,5) will hit.
	b.Body = []Point{{6, 5}, {5, 5}, {5, 4}}
	g.Snakes = []*Snake{a, b}
	g.Players[0] = &Player{ID: 0}
	g.Players[1] = &Player{ID: 1}

	g.Step()

	if len(g.Snakes) != 1 || g.Snakes[0].OwnerID != 1 {
		t.Fatalf("expected only b alive, got %+v", g.Snakes)
	}
	if g.Players[1].Score != 1 {
		t.Fatalf("expected killer to score, got %d", g.Players[1].Score)
	}
}

func TestStepSelfCollisionKills(t *testing.T) {
	g := newTestGame(10, 10, 0)
	// A 5-cell snake curled so that moving Right drives the head onto its own
	// body at (6,5), a cell that is not the tail being popped this tick.
	s := &Snake{OwnerID: 0, Body: []Point{{5, 5}, {5, 6}, {6, 6}, {6, 5}, {6, 4}}, Direction: Right}
	g.Snakes = []*Snake{s}
	g.Players[0] = &Player{ID: 0}

	g.Step()

	if len(g.Snakes) != 0 {
		t.Fatalf("expected snake to die from self-collision, got %+v", g.Snakes)
	}
}

func TestFoodCountInvariant(t *testing.T) {
	g := newTestGame(6, 6, 2)
	g.Snakes = []*Snake{
		{OwnerID: 0, Body: []Point{{0, 0}, {0, 1}}, Direction: Down},
		{OwnerID: 1, Body: []Point{{3, 3}, {3, 4}}, Direction: Down},
	}
	g.Players[0] = &Player{ID: 0}
	g.Players[1] = &Player{ID: 1}

	g.Step()

	want := 2 + len(g.Snakes)
	if len(g.Food) != want {
		t.Fatalf("expected %d food cells, got %d", want, len(g.Food))
	}
	seen := make(map[Point]bool)
	for p := range g.Food {
		if seen[p] {
			t.Fatalf("duplicate food cell %v", p)
		}
		seen[p] = true
		if g.HasSnakeAt(p) {
			t.Fatalf("food cell %v overlaps a snake", p)
		}
	}
}

func TestSpawnSnakeProducesValidPlacement(t *testing.T) {
	g := newTestGame(20, 20, 0)
	if !g.SpawnSnake(0) {
		t.Fatal("expected spawn to succeed on an empty board")
	}
	s := g.SnakeByID(0)
	if s == nil || len(s.Body) != 2 {
		t.Fatalf("expected a 2-cell snake, got %+v", s)
	}
	if g.HasFoodAt(s.Head()) || g.HasFoodAt(s.Tail()) {
		t.Fatal("spawned snake must not sit on food")
	}
}

func TestSpawnSnakeFailsWhenBoardFull(t *testing.T) {
	g := newTestGame(5, 5, 0)
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			g.Food[Point{x, y}] = struct{}{}
		}
	}
	if g.SpawnSnake(0) {
		t.Fatal("expected spawn to fail when every cell is food")
	}
}

func TestTurnRejectsReversal(t *testing.T) {
	s := &Snake{OwnerID: 0, Body: []Point{{1, 1}, {0, 1}}, Direction: Right}
	if s.Turn(Left) {
		t.Fatal("expected reversal to be rejected")
	}
	if s.Direction != Right {
		t.Fatalf("direction should be unchanged, got %v", s.Direction)
	}
	if !s.Turn(Up) {
		t.Fatal("expected a valid 90-degree turn to be accepted")
	}
	if s.Direction != Up {
		t.Fatalf("expected direction Up, got %v", s.Direction)
	}
}

func pointsEqual(a, b []Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
