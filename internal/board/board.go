// Package board implements the grid simulation: the toroidal board, snake
// bodies, food, players and the per-tick transition.
package board

import (
	"fmt"
	"math/rand"
	"net"
)

// Direction is a snake's heading.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "Up"
	case Down:
		return "Down"
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return "Unknown"
	}
}

// DxDy returns the unit offset for one step in direction d.
func (d Direction) DxDy() (int, int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	default:
		return 0, 0
	}
}

// Opposite returns the reverse heading.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	default:
		return d
	}
}

// Point is a grid coordinate.
type Point struct {
	X, Y int
}

// Role is a player's role in the game.
type Role int

const (
	RoleMaster Role = iota
	RoleDeputy
	RoleNormal
	RoleViewer
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "Master"
	case RoleDeputy:
		return "Deputy"
	case RoleNormal:
		return "Normal"
	case RoleViewer:
		return "Viewer"
	default:
		return "Unknown"
	}
}

// Snake is an owned, ordered body with a head direction. Body[0] is the head.
type Snake struct {
	OwnerID   int32
	Body      []Point
	Direction Direction
}

// Head returns the snake's head cell.
func (s *Snake) Head() Point {
	return s.Body[0]
}

// Tail returns the snake's tail cell.
func (s *Snake) Tail() Point {
	return s.Body[len(s.Body)-1]
}

// Contains reports whether pos is any cell of the snake's body.
func (s *Snake) Contains(pos Point) bool {
	for _, c := range s.Body {
		if c == pos {
			return true
		}
	}
	return false
}

// Turn sets the snake's direction, rejecting an exact 180-degree reversal.
func (s *Snake) Turn(d Direction) bool {
	if d == s.Direction.Opposite() {
		return false
	}
	s.Direction = d
	return true
}

// Player is a participant in a Game.
type Player struct {
	ID    int32
	Name  string
	Addr  *net.UDPAddr
	Score int
	Role  Role
}

// Config holds the board dimensions and tuning knobs for a Game.
type Config struct {
	Width, Height int
	FoodStatic    int
	TickDelayMs   int
}

// Game is the full mutable state of one running match.
type Game struct {
	Name    string
	Config  Config
	Turn    int
	Food    map[Point]struct{}
	Snakes  []*Snake
	Players map[int32]*Player

	rng *rand.Rand
}

// NewGame creates an empty game from cfg. rng may be nil, in which case each
// random draw uses a fresh source seeded from the package-level math/rand
// source.
func NewGame(name string, cfg Config, rng *rand.Rand) *Game {
	return &Game{
		Name:    name,
		Config:  cfg,
		Food:    make(map[Point]struct{}),
		Players: make(map[int32]*Player),
		rng:     rng,
	}
}

func (g *Game) rand() *rand.Rand {
	if g.rng != nil {
		return g.rng
	}
	return rand.New(rand.NewSource(rand.Int63()))
}

// Offset wraps (x+dx, y+dy) onto the torus.
func (g *Game) Offset(p Point, dx, dy int) Point {
	w, h := g.Config.Width, g.Config.Height
	nx := ((p.X+dx)%w + w) % w
	ny := ((p.Y+dy)%h + h) % h
	return Point{nx, ny}
}

// HasSnakeAt reports whether any live snake occupies pos.
func (g *Game) HasSnakeAt(pos Point) bool {
	for _, s := range g.Snakes {
		if s.Contains(pos) {
			return true
		}
	}
	return false
}

// HasFoodAt reports whether pos holds a food item.
func (g *Game) HasFoodAt(pos Point) bool {
	_, ok := g.Food[pos]
	return ok
}

// FreeCells returns every cell with neither food nor a snake.
func (g *Game) FreeCells() []Point {
	var free []Point
	for x := 0; x < g.Config.Width; x++ {
		for y := 0; y < g.Config.Height; y++ {
			p := Point{x, y}
			if !g.HasFoodAt(p) && !g.HasSnakeAt(p) {
				free = append(free, p)
			}
		}
	}
	return free
}

// SnakeByID returns the live snake owned by id, if any.
func (g *Game) SnakeByID(id int32) *Snake {
	for _, s := range g.Snakes {
		if s.OwnerID == id {
			return s
		}
	}
	return nil
}

// PlayerByAddr finds the player registered at addr.
func (g *Game) PlayerByAddr(addr *net.UDPAddr) *Player {
	for _, p := range g.Players {
		if p.Addr != nil && addr != nil && p.Addr.String() == addr.String() {
			return p
		}
	}
	return nil
}

// FreeID returns the lowest non-negative id not already in use by a player
// or a live snake.
func (g *Game) FreeID() int32 {
	for id := int32(0); ; id++ {
		if _, ok := g.Players[id]; ok {
			continue
		}
		if g.SnakeByID(id) != nil {
			continue
		}
		return id
	}
}

// Master returns the current authoritative player, if one exists.
func (g *Game) Master() *Player {
	for _, p := range g.Players {
		if p.Role == RoleMaster {
			return p
		}
	}
	return nil
}

// Deputy returns the current designated successor, if one exists.
func (g *Game) Deputy() *Player {
	for _, p := range g.Players {
		if p.Role == RoleDeputy {
			return p
		}
	}
	return nil
}

// SpawnSnake places a new two-cell snake for id, following §4.1's spawn
// rule: a 5x5 block centred on the head free of any snake cell, the head
// cell itself food-free, and a tail cell that is also food-free. Returns
// false if no such placement exists.
func (g *Game) SpawnSnake(id int32) bool {
	type candidate struct {
		pos Point
		dir Direction
	}
	var candidates []candidate

	w, h := g.Config.Width, g.Config.Height
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			pos := Point{x, y}
			if g.HasFoodAt(pos) {
				continue
			}
			if g.blockHasSnake(pos) {
				continue
			}
			for _, dir := range []Direction{Up, Down, Left, Right} {
				dx, dy := dir.Opposite().DxDy()
				tail := g.Offset(pos, dx, dy)
				if g.HasFoodAt(tail) {
					continue
				}
				candidates = append(candidates, candidate{pos, dir})
			}
		}
	}

	if len(candidates) == 0 {
		return false
	}

	c := candidates[g.rand().Intn(len(candidates))]
	dx, dy := c.dir.Opposite().DxDy()
	tail := g.Offset(c.pos, dx, dy)

	g.Snakes = append(g.Snakes, &Snake{
		OwnerID:   id,
		Body:      []Point{c.pos, tail},
		Direction: c.dir,
	})
	return true
}

// blockHasSnake reports whether any cell in the 5x5 block centred on pos
// (torus-wrapped) holds a snake.
func (g *Game) blockHasSnake(pos Point) bool {
	for dx := -2; dx <= 2; dx++ {
		for dy := -2; dy <= 2; dy++ {
			if g.HasSnakeAt(g.Offset(pos, dx, dy)) {
				return true
			}
		}
	}
	return false
}

// killRecord tracks one death for scoring in Step.
type killRecord struct {
	victim *Snake
	killer *Snake // nil for a tie or self-inflicted kill
}

// Step advances the game by one tick per spec.md §4.1.
func (g *Game) Step() {
	heads := make(map[*Snake]Point, len(g.Snakes))
	ate := make(map[*Snake]bool, len(g.Snakes))

	for _, s := range g.Snakes {
		dx, dy := s.Direction.DxDy()
		next := g.Offset(s.Head(), dx, dy)
		heads[s] = next

		s.Body = append([]Point{next}, s.Body...)
		if g.HasFoodAt(next) {
			ate[s] = true
		} else {
			s.Body = s.Body[:len(s.Body)-1]
		}
	}

	dead := make(map[*Snake]bool)
	var kills []killRecord

	for i, a := range g.Snakes {
		if dead[a] {
			continue
		}
		ah := heads[a]

		// Self-collision: head matches another cell of its own body.
		for _, c := range a.Body[1:] {
			if c == ah {
				dead[a] = true
				kills = append(kills, killRecord{victim: a})
				break
			}
		}

		for j, b := range g.Snakes {
			if i == j {
				continue
			}
			bh := heads[b]
			if ah == bh {
				if !dead[a] {
					dead[a] = true
					kills = append(kills, killRecord{victim: a})
				}
				if !dead[b] {
					dead[b] = true
					kills = append(kills, killRecord{victim: b})
				}
				continue
			}
			for _, c := range b.Body[1:] {
				if c == ah && !dead[a] {
					dead[a] = true
					kills = append(kills, killRecord{victim: a, killer: b})
					break
				}
			}
		}
	}

	for _, k := range kills {
		if k.killer != nil && k.killer.OwnerID != k.victim.OwnerID {
			if p, ok := g.Players[k.killer.OwnerID]; ok {
				p.Score++
			}
		}
	}

	for _, k := range kills {
		// Every body cell except the head becomes food with p=0.5.
		for _, c := range k.victim.Body[1:] {
			if g.rand().Float64() < 0.5 {
				g.Food[c] = struct{}{}
			}
		}
	}

	for s, did := range ate {
		if did {
			delete(g.Food, s.Head())
		}
	}

	var alive []*Snake
	for _, s := range g.Snakes {
		if !dead[s] {
			alive = append(alive, s)
		}
	}
	g.Snakes = alive

	target := g.Config.FoodStatic + len(g.Snakes)
	free := g.FreeCells()
	g.rand().Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	for i := 0; len(g.Food) < target && i < len(free); i++ {
		g.Food[free[i]] = struct{}{}
	}

	g.Turn++
}

// FoodList returns the food set as a slice for wire encoding.
func (g *Game) FoodList() []Point {
	out := make([]Point, 0, len(g.Food))
	for p := range g.Food {
		out = append(out, p)
	}
	return out
}

// String renders minimal debug info for a Game.
func (g *Game) String() string {
	return fmt.Sprintf("Game(%s %dx%d turn=%d snakes=%d food=%d players=%d)",
		g.Name, g.Config.Width, g.Config.Height, g.Turn, len(g.Snakes), len(g.Food), len(g.Players))
}
