// Package proto implements the wire codec: a length-delimited binary frame
// carrying a sequence number, optional sender/receiver ids and exactly one
// payload variant (§4.2). Encoding mirrors the teacher's own hand-rolled
// encoding/binary scheme (engine/network.go's serializeState) rather than
// a generated protobuf codec — see DESIGN.md for why protobuf codegen was
// dropped.
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"serpentine.network/internal/board"
)

// Kind tags the payload variant carried by a Message.
type Kind uint8

const (
	KindPing Kind = iota + 1
	KindSteer
	KindAck
	KindState
	KindAnnouncement
	KindJoin
	KindError
	KindRoleChange
	KindDiscover
)

// ErrMalformed is returned (wrapped) when a frame cannot be decoded.
var ErrMalformed = errors.New("proto: malformed frame")

// PlayerType distinguishes human from AI/bot joiners; only Human is used by
// the core but the field round-trips so future bot clients can set it.
type PlayerType uint8

const (
	PlayerHuman PlayerType = iota
	PlayerBot
)

// RequestedRole is the role a Join asks for.
type RequestedRole uint8

const (
	RequestNormal RequestedRole = iota
	RequestViewer
)

// Message is one frame: a sequence number, optional sender/receiver ids and
// exactly one payload.
type Message struct {
	Seq        int64
	SenderID   *int32
	ReceiverID *int32
	Kind       Kind
	Payload    Payload
}

// Payload is implemented by every message body type, both as a value and
// as a pointer. Decode always yields pointer payloads (*Steer, *State, ...).
type Payload interface {
	kind() Kind
	encode(*cursor)
}

// decodable is a Payload that can fill itself from a cursor; every pointer
// payload type implements it.
type decodable interface {
	Payload
	decode(*cursor) error
}

// --- Ping / Ack / Discover: empty bodies ---

type Ping struct{}

func (Ping) kind() Kind             { return KindPing }
func (Ping) encode(*cursor)         {}
func (*Ping) decode(*cursor) error  { return nil }

type Ack struct{}

func (Ack) kind() Kind            { return KindAck }
func (Ack) encode(*cursor)        {}
func (*Ack) decode(*cursor) error { return nil }

type Discover struct{}

func (Discover) kind() Kind            { return KindDiscover }
func (Discover) encode(*cursor)        {}
func (*Discover) decode(*cursor) error { return nil }

// --- Steer ---

type Steer struct {
	Direction board.Direction
}

func (Steer) kind() Kind { return KindSteer }

func (s Steer) encode(c *cursor) {
	c.putUint8(uint8(s.Direction))
}

func (s *Steer) decode(c *cursor) error {
	v, err := c.uint8()
	if err != nil {
		return err
	}
	s.Direction = board.Direction(v)
	return nil
}

// --- Error ---

type Error struct {
	Message string
}

func (Error) kind() Kind { return KindError }

func (e Error) encode(c *cursor) {
	c.putString(e.Message)
}

func (e *Error) decode(c *cursor) error {
	s, err := c.string()
	if err != nil {
		return err
	}
	e.Message = s
	return nil
}

// --- Join ---

type Join struct {
	PlayerName    string
	GameName      string
	RequestedRole RequestedRole
	PlayerType    PlayerType
}

func (Join) kind() Kind { return KindJoin }

func (j Join) encode(c *cursor) {
	c.putString(j.PlayerName)
	c.putString(j.GameName)
	c.putUint8(uint8(j.RequestedRole))
	c.putUint8(uint8(j.PlayerType))
}

func (j *Join) decode(c *cursor) error {
	var err error
	if j.PlayerName, err = c.string(); err != nil {
		return err
	}
	if j.GameName, err = c.string(); err != nil {
		return err
	}
	v, err := c.uint8()
	if err != nil {
		return err
	}
	j.RequestedRole = RequestedRole(v)
	v, err = c.uint8()
	if err != nil {
		return err
	}
	j.PlayerType = PlayerType(v)
	return nil
}

// --- RoleChange ---

type RoleChange struct {
	SenderRole   *board.Role
	ReceiverRole *board.Role
}

func (RoleChange) kind() Kind { return KindRoleChange }

func (r RoleChange) encode(c *cursor) {
	c.putOptionalRole(r.SenderRole)
	c.putOptionalRole(r.ReceiverRole)
}

func (r *RoleChange) decode(c *cursor) error {
	var err error
	if r.SenderRole, err = c.optionalRole(); err != nil {
		return err
	}
	if r.ReceiverRole, err = c.optionalRole(); err != nil {
		return err
	}
	return nil
}

// --- State ---

// SnakeState is the wire form of a board.Snake: owner, direction and body
// cells. Body is written to and read from the wire as anchors (§4.2).
type SnakeState struct {
	OwnerID   int32
	Direction board.Direction
	Body      []board.Point
}

// PlayerState is the wire form of a board.Player.
type PlayerState struct {
	ID    int32
	Name  string
	Addr  string
	Score int32
	Role  board.Role
}

type State struct {
	Width, Height int32
	Turn          int32
	Snakes        []SnakeState
	Food          []board.Point
	Players       []PlayerState
}

func (State) kind() Kind { return KindState }

func (s State) encode(c *cursor) {
	c.putUint16(uint16(s.Width))
	c.putUint16(uint16(s.Height))
	c.putUint32(uint32(s.Turn))

	c.putUint16(uint16(len(s.Snakes)))
	for _, sn := range s.Snakes {
		c.putInt32(sn.OwnerID)
		c.putUint8(uint8(sn.Direction))
		anchors := EncodeAnchors(sn.Body, int(s.Width), int(s.Height))
		c.putUint16(uint16(len(anchors)))
		for _, a := range anchors {
			c.putInt32(int32(a.DX))
			c.putInt32(int32(a.DY))
		}
	}

	c.putUint16(uint16(len(s.Food)))
	for _, f := range s.Food {
		c.putUint16(uint16(f.X))
		c.putUint16(uint16(f.Y))
	}

	c.putUint16(uint16(len(s.Players)))
	for _, p := range s.Players {
		c.putInt32(p.ID)
		c.putString(p.Name)
		c.putString(p.Addr)
		c.putInt32(p.Score)
		c.putUint8(uint8(p.Role))
	}
}

func (s *State) decode(c *cursor) error {
	w, err := c.uint16()
	if err != nil {
		return err
	}
	h, err := c.uint16()
	if err != nil {
		return err
	}
	s.Width, s.Height = int32(w), int32(h)

	turn, err := c.uint32()
	if err != nil {
		return err
	}
	s.Turn = int32(turn)

	nSnakes, err := c.uint16()
	if err != nil {
		return err
	}
	s.Snakes = make([]SnakeState, 0, nSnakes)
	for i := 0; i < int(nSnakes); i++ {
		owner, err := c.int32()
		if err != nil {
			return err
		}
		dirRaw, err := c.uint8()
		if err != nil {
			return err
		}
		nAnchors, err := c.uint16()
		if err != nil {
			return err
		}
		anchors := make([]Anchor, nAnchors)
		for k := range anchors {
			dx, err := c.int32()
			if err != nil {
				return err
			}
			dy, err := c.int32()
			if err != nil {
				return err
			}
			anchors[k] = Anchor{DX: int(dx), DY: int(dy)}
		}
		body, err := DecodeAnchors(anchors, int(s.Width), int(s.Height))
		if err != nil {
			return fmt.Errorf("decode snake %d body: %w", owner, err)
		}
		s.Snakes = append(s.Snakes, SnakeState{
			OwnerID:   owner,
			Direction: board.Direction(dirRaw),
			Body:      body,
		})
	}

	nFood, err := c.uint16()
	if err != nil {
		return err
	}
	s.Food = make([]board.Point, nFood)
	for i := range s.Food {
		x, err := c.uint16()
		if err != nil {
			return err
		}
		y, err := c.uint16()
		if err != nil {
			return err
		}
		s.Food[i] = board.Point{X: int(x), Y: int(y)}
	}

	nPlayers, err := c.uint16()
	if err != nil {
		return err
	}
	s.Players = make([]PlayerState, nPlayers)
	for i := range s.Players {
		id, err := c.int32()
		if err != nil {
			return err
		}
		name, err := c.string()
		if err != nil {
			return err
		}
		addr, err := c.string()
		if err != nil {
			return err
		}
		score, err := c.int32()
		if err != nil {
			return err
		}
		roleRaw, err := c.uint8()
		if err != nil {
			return err
		}
		s.Players[i] = PlayerState{ID: id, Name: name, Addr: addr, Score: score, Role: board.Role(roleRaw)}
	}

	return nil
}

// --- Announcement ---

type GameConfigInfo struct {
	Width, Height int32
	FoodStatic    int32
	TickDelayMs   int32
}

type GameInfo struct {
	Name     string
	CanJoin  bool
	Config   GameConfigInfo
	Players  []PlayerState
}

type Announcement struct {
	Games []GameInfo
}

func (Announcement) kind() Kind { return KindAnnouncement }

func (a Announcement) encode(c *cursor) {
	c.putUint16(uint16(len(a.Games)))
	for _, g := range a.Games {
		c.putString(g.Name)
		c.putBool(g.CanJoin)
		c.putInt32(g.Config.Width)
		c.putInt32(g.Config.Height)
		c.putInt32(g.Config.FoodStatic)
		c.putInt32(g.Config.TickDelayMs)
		c.putUint16(uint16(len(g.Players)))
		for _, p := range g.Players {
			c.putInt32(p.ID)
			c.putString(p.Name)
			c.putString(p.Addr)
			c.putInt32(p.Score)
			c.putUint8(uint8(p.Role))
		}
	}
}

func (a *Announcement) decode(c *cursor) error {
	n, err := c.uint16()
	if err != nil {
		return err
	}
	a.Games = make([]GameInfo, n)
	for i := range a.Games {
		name, err := c.string()
		if err != nil {
			return err
		}
		canJoin, err := c.boolVal()
		if err != nil {
			return err
		}
		w, err := c.int32()
		if err != nil {
			return err
		}
		h, err := c.int32()
		if err != nil {
			return err
		}
		food, err := c.int32()
		if err != nil {
			return err
		}
		delay, err := c.int32()
		if err != nil {
			return err
		}
		nPlayers, err := c.uint16()
		if err != nil {
			return err
		}
		players := make([]PlayerState, nPlayers)
		for j := range players {
			id, err := c.int32()
			if err != nil {
				return err
			}
			pname, err := c.string()
			if err != nil {
				return err
			}
			addr, err := c.string()
			if err != nil {
				return err
			}
			score, err := c.int32()
			if err != nil {
				return err
			}
			roleRaw, err := c.uint8()
			if err != nil {
				return err
			}
			players[j] = PlayerState{ID: id, Name: pname, Addr: addr, Score: score, Role: board.Role(roleRaw)}
		}
		a.Games[i] = GameInfo{
			Name:    name,
			CanJoin: canJoin,
			Config: GameConfigInfo{
				Width: w, Height: h, FoodStatic: food, TickDelayMs: delay,
			},
			Players: players,
		}
	}
	return nil
}

// --- Frame encode/decode ---

// Encode writes m as a length-delimited frame: a 4-byte big-endian length
// prefix followed by the frame body.
func Encode(m Message) []byte {
	c := newCursor(nil)
	c.putInt64(m.Seq)
	c.putOptionalInt32(m.SenderID)
	c.putOptionalInt32(m.ReceiverID)
	c.putUint8(uint8(m.Kind))
	m.Payload.encode(c)

	framed := make([]byte, 4+len(c.buf))
	binary.BigEndian.PutUint32(framed, uint32(len(c.buf)))
	copy(framed[4:], c.buf)
	return framed
}

// Decode parses a frame body (without the length prefix; the transport
// layer strips it) into a Message.
func Decode(body []byte) (Message, error) {
	c := newCursor(body)
	var m Message
	var err error

	if m.Seq, err = c.int64(); err != nil {
		return Message{}, fmt.Errorf("%w: seq: %v", ErrMalformed, err)
	}
	if m.SenderID, err = c.optionalInt32(); err != nil {
		return Message{}, fmt.Errorf("%w: sender: %v", ErrMalformed, err)
	}
	if m.ReceiverID, err = c.optionalInt32(); err != nil {
		return Message{}, fmt.Errorf("%w: receiver: %v", ErrMalformed, err)
	}
	kindRaw, err := c.uint8()
	if err != nil {
		return Message{}, fmt.Errorf("%w: kind: %v", ErrMalformed, err)
	}
	m.Kind = Kind(kindRaw)

	payload, err := newPayload(m.Kind)
	if err != nil {
		return Message{}, err
	}
	if err := payload.decode(c); err != nil {
		return Message{}, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	m.Payload = payload
	return m, nil
}

func newPayload(k Kind) (decodable, error) {
	switch k {
	case KindPing:
		return &Ping{}, nil
	case KindSteer:
		return &Steer{}, nil
	case KindAck:
		return &Ack{}, nil
	case KindState:
		return &State{}, nil
	case KindAnnouncement:
		return &Announcement{}, nil
	case KindJoin:
		return &Join{}, nil
	case KindError:
		return &Error{}, nil
	case KindRoleChange:
		return &RoleChange{}, nil
	case KindDiscover:
		return &Discover{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, k)
	}
}
