// Package node implements the Node Controller (§4.4): the role state
// machine and the single goroutine that owns all mutable game state,
// dispatching every inbound message and local intent through one
// blocking multi-way select — generalizing the teacher's Game.Run/
// drainMessages event loop (server/game.go) to the four event streams
// §4.4 and §5 require: inbound unicast, user intent, turn-tick and
// interval-tick.
package node

import (
	"log"
	"net"
	"sync"
	"time"

	"serpentine.network/internal/board"
	"serpentine.network/internal/config"
	"serpentine.network/internal/directory"
	"serpentine.network/internal/peer"
	"serpentine.network/internal/proto"
	"serpentine.network/internal/transport"
)

// Intent is a local user action fed into the Controller's select loop
// (§6's "user intents (from the TUI collaborator)").
type Intent struct {
	Kind IntentKind
	Dir  board.Direction // for IntentTurn
	Idx  int             // for IntentJoin / IntentView: announcement index
}

type IntentKind int

const (
	IntentNewGame IntentKind = iota
	IntentJoin
	IntentView
	IntentTurn
	IntentEscape
)

type pendingMsg struct {
	seq       int64
	addr      *net.UDPAddr
	msg       proto.Message
	firstSent time.Time
}

// Snapshot is a read-only view of the node's current state, used by the
// dashboard (§7) and by the renderer (§6).
type Snapshot struct {
	Game           *board.Game
	LocalID        int32
	LocalRole      board.Role
	MasterAddr     string
	PeerCount      int
	OutstandingLen int
	Announcements  int
}

// Recorder receives observability events from the Controller — retransmits
// and dead-peer drops (§7) — without the node package importing the
// dashboard (which itself imports node). A nil Recorder passed to New is
// replaced with a no-op implementation.
type Recorder interface {
	Retransmit()
	DeadPeer()
}

type noopRecorder struct{}

func (noopRecorder) Retransmit() {}
func (noopRecorder) DeadPeer()   {}

// Node owns the game, the role FSM and the outbound reliability queues.
// mu guards the game, the role state and the outbound queues; the
// Announcement Directory and the peer Tracker carry their own mutexes.
// The dashboard takes a read lock for snapshot reads.
type Node struct {
	mu sync.RWMutex

	cfg       config.Config
	transport *transport.Transport
	directory *directory.Directory
	peers     *peer.Tracker
	recorder  Recorder

	game       *board.Game
	localID    int32
	localIDSet bool
	localRole  board.Role
	masterAddr *net.UDPAddr

	seqGen int64

	peerQueue   map[int64]*pendingMsg // awaiting ack from an arbitrary peer
	masterQueue map[int64]*pendingMsg // awaiting ack from the current Master

	lastAnnounce time.Time

	Intents chan Intent
}

// New builds a Node in the Viewer role with no game yet; the first intent
// (NewGame or Join/View) puts it into Master, Normal or Viewer proper.
// recorder may be nil, in which case retransmit/dead-peer events are
// simply not counted.
func New(cfg config.Config, t *transport.Transport, dir *directory.Directory, peers *peer.Tracker, recorder Recorder) *Node {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Node{
		cfg:         cfg,
		transport:   t,
		directory:   dir,
		peers:       peers,
		recorder:    recorder,
		localRole:   board.RoleViewer,
		peerQueue:   make(map[int64]*pendingMsg),
		masterQueue: make(map[int64]*pendingMsg),
		Intents:     make(chan Intent, 16),
	}
}

func (n *Node) nextSeq() int64 {
	n.seqGen++
	return n.seqGen
}

func (n *Node) tickDelay() time.Duration {
	return time.Duration(n.cfg.TickDelayMs) * time.Millisecond
}

// Run blocks, processing events until stop is closed. It spawns the
// multicast/announcement-directory listener as a side goroutine (§4.6)
// and then runs the Controller's own four-way select (§4.4, §5).
func (n *Node) Run(stop <-chan struct{}) {
	go n.directoryLoop(stop)

	turnTicker := time.NewTicker(n.tickDelay())
	defer turnTicker.Stop()
	intervalTicker := time.NewTicker(n.tickDelay() / 10)
	defer intervalTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case in := <-n.transport.UcastIn:
			n.handleInbound(in)
		case intent := <-n.Intents:
			n.handleIntent(intent)
		case <-turnTicker.C:
			n.handleTurnTick()
		case <-intervalTicker.C:
			n.handleIntervalTick()
		}
	}
}

// directoryLoop feeds inbound multicast Announcements into the directory
// and reaps stale entries every directory.ReapInterval (§4.6).
func (n *Node) directoryLoop(stop <-chan struct{}) {
	reaper := time.NewTicker(directory.ReapInterval)
	defer reaper.Stop()
	for {
		select {
		case <-stop:
			return
		case in := <-n.transport.McastIn:
			if ann, ok := in.Message.Payload.(*proto.Announcement); ok {
				n.directory.Insert(in.Addr.String(), *ann)
			}
		case <-reaper.C:
			n.directory.Reap()
		}
	}
}

// --- Intent handling (role FSM entry points, §4.4) ---

func (n *Node) handleIntent(it Intent) {
	switch it.Kind {
	case IntentNewGame:
		n.becomeMaster()
	case IntentJoin:
		n.requestRole(it.Idx, proto.RequestNormal)
	case IntentView:
		n.requestRole(it.Idx, proto.RequestViewer)
	case IntentTurn:
		n.mu.Lock()
		isMaster := n.localRole == board.RoleMaster
		if isMaster && n.game != nil {
			if s := n.game.SnakeByID(n.localID); s != nil {
				s.Turn(it.Dir)
			}
		}
		master := n.masterAddr
		n.mu.Unlock()

		// Non-Master nodes don't own the authoritative simulation; their
		// steering intent is submitted to the Master and applied once it
		// broadcasts the resulting State (§4.4 "Steer").
		if !isMaster && master != nil {
			n.send(master, proto.Message{Seq: n.nextSeq(), Kind: proto.KindSteer, Payload: proto.Steer{Direction: it.Dir}}, true)
		}
	case IntentEscape:
		// Handled by the caller closing stop; nothing to do here.
	}
}

// becomeMaster implements "any -> Master: local new-game intent" (§4.4).
func (n *Node) becomeMaster() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.game = board.NewGame(n.cfg.Name, board.Config{
		Width:       n.cfg.Width,
		Height:      n.cfg.Height,
		FoodStatic:  n.cfg.FoodStatic,
		TickDelayMs: n.cfg.TickDelayMs,
	}, nil)
	n.localID = 0
	n.localIDSet = true
	n.localRole = board.RoleMaster
	n.game.SpawnSnake(0)
	n.game.Players[0] = &board.Player{ID: 0, Name: n.cfg.Nickname, Role: board.RoleMaster}
	log.Printf("[SPAWN] local node became Master of %q", n.cfg.Name)
}

// requestRole implements "any -> Normal|Viewer": sends Join to the
// announcer at directory index idx and waits for the Ack asynchronously
// (the Ack arrives through the normal inbound channel and is handled by
// handleAck).
func (n *Node) requestRole(idx int, role proto.RequestedRole) {
	addrStr, _, ok := n.directory.Nth(idx)
	if !ok {
		log.Printf("[JOIN] no announcement at index %d", idx)
		return
	}
	addr, err := net.ResolveUDPAddr("udp4", addrStr)
	if err != nil {
		log.Printf("[JOIN] bad announcer address %q: %v", addrStr, err)
		return
	}

	n.mu.Lock()
	n.masterAddr = addr
	n.mu.Unlock()

	msg := proto.Message{
		Seq:  n.nextSeq(),
		Kind: proto.KindJoin,
		Payload: proto.Join{
			PlayerName:    n.cfg.Nickname,
			GameName:      n.cfg.Name,
			RequestedRole: role,
			PlayerType:    proto.PlayerHuman,
		},
	}
	n.send(addr, msg, true)
}

// --- Inbound message dispatch (§4.4 "Message handling, by role") ---

func (n *Node) handleInbound(in transport.Inbound) {
	n.peers.TouchRecv(in.Addr)

	switch p := in.Message.Payload.(type) {
	case *proto.Steer:
		n.handleSteer(in, p)
	case *proto.Join:
		n.handleJoin(in, p)
	case *proto.State:
		n.handleState(in, p)
	case *proto.RoleChange:
		n.handleRoleChange(in, p)
	case *proto.Ack:
		n.handleAck(in)
	case *proto.Ping, *proto.Announcement, *proto.Error, *proto.Discover:
		// liveness already touched above; no further action required (§4.4).
	}
}

func (n *Node) handleSteer(in transport.Inbound, p *proto.Steer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.localRole != board.RoleMaster || n.game == nil {
		return
	}
	player := n.game.PlayerByAddr(in.Addr)
	if player == nil {
		return
	}
	if s := n.game.SnakeByID(player.ID); s != nil {
		s.Turn(p.Direction)
	}
	n.sendLocked(in.Addr, proto.Message{Seq: n.nextSeq(), Kind: proto.KindAck, Payload: proto.Ack{}}, false)
}

func (n *Node) handleJoin(in transport.Inbound, p *proto.Join) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.localRole != board.RoleMaster || n.game == nil {
		return
	}

	id := n.game.FreeID()

	if p.RequestedRole == proto.RequestViewer {
		n.game.Players[id] = &board.Player{ID: id, Name: p.PlayerName, Addr: in.Addr, Role: board.RoleViewer}
		n.ackJoin(in.Addr, id)
		log.Printf("[JOIN] %s joined %q as Viewer (id=%d)", p.PlayerName, p.GameName, id)
		return
	}

	if !n.game.SpawnSnake(id) {
		n.sendLocked(in.Addr, proto.Message{
			Seq:  n.nextSeq(),
			Kind: proto.KindError,
			Payload: proto.Error{
				Message: "no free space",
			},
		}, false)
		log.Printf("[JOIN] refused %s: no free space", p.PlayerName)
		return
	}

	role := board.RoleNormal
	if n.game.Deputy() == nil {
		role = board.RoleDeputy
	}
	n.game.Players[id] = &board.Player{ID: id, Name: p.PlayerName, Addr: in.Addr, Role: role}
	n.ackJoin(in.Addr, id)
	log.Printf("[JOIN] %s joined %q as %s (id=%d)", p.PlayerName, p.GameName, role, id)
}

func (n *Node) ackJoin(addr *net.UDPAddr, id int32) {
	receiverID := id
	n.sendLocked(addr, proto.Message{
		Seq:        n.nextSeq(),
		ReceiverID: &receiverID,
		Kind:       proto.KindAck,
		Payload:    proto.Ack{},
	}, false)
}

func (n *Node) handleState(in transport.Inbound, p *proto.State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.localRole == board.RoleMaster {
		return // non-Master only (§4.4)
	}

	g := board.NewGame(n.cfg.Name, board.Config{
		Width:       int(p.Width),
		Height:      int(p.Height),
		FoodStatic:  n.cfg.FoodStatic,
		TickDelayMs: n.cfg.TickDelayMs,
	}, nil)
	g.Turn = int(p.Turn)
	for _, f := range p.Food {
		g.Food[f] = struct{}{}
	}
	for _, sn := range p.Snakes {
		g.Snakes = append(g.Snakes, &board.Snake{OwnerID: sn.OwnerID, Body: sn.Body, Direction: sn.Direction})
	}
	for _, ps := range p.Players {
		g.Players[ps.ID] = &board.Player{ID: ps.ID, Name: ps.Name, Score: int(ps.Score), Role: ps.Role}
		localAddr := n.transport.LocalAddr()
		if ps.Addr == localAddr.String() {
			n.localRole = ps.Role
			n.localID = ps.ID
		}
	}
	n.game = g
	n.masterAddr = in.Addr
}

func (n *Node) handleRoleChange(in transport.Inbound, p *proto.RoleChange) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.localRole == board.RoleMaster {
		// "accepted by Master when sender role is Viewer -> requests
		// promotion to Normal (re-spawn)"
		if p.SenderRole != nil && *p.SenderRole == board.RoleViewer && n.game != nil {
			player := n.game.PlayerByAddr(in.Addr)
			if player != nil && n.game.SpawnSnake(player.ID) {
				player.Role = board.RoleNormal
			}
		}
		return
	}

	if p.ReceiverRole != nil {
		n.localRole = *p.ReceiverRole
		log.Printf("[FAILOVER] local role changed to %s", n.localRole)
	}
}

func (n *Node) handleAck(in transport.Inbound) {
	n.mu.Lock()
	defer n.mu.Unlock()

	seq := in.Message.Seq
	delete(n.peerQueue, seq)
	delete(n.masterQueue, seq)

	if in.Message.ReceiverID != nil {
		n.localID = *in.Message.ReceiverID
		n.localIDSet = true
		if n.localRole == board.RoleViewer {
			n.localRole = board.RoleNormal
		}
		log.Printf("[JOIN] local id assigned: %d", n.localID)
	}
}

// --- Ticks ---

// handleTurnTick implements "Master tick" (§4.4): advance Simulation on
// turn-tick while Master, elect a Deputy if none exists, and broadcast
// State. The once-a-second Announcement multicast is sent from
// handleIntervalTick.
func (n *Node) handleTurnTick() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.localRole != board.RoleMaster || n.game == nil {
		return
	}

	n.game.Step()
	n.electDeputyLocked()
	n.broadcastStateLocked()
}

// handleIntervalTick implements the retransmit + liveness walk (§4.4).
func (n *Node) handleIntervalTick() {
	n.mu.Lock()
	defer n.mu.Unlock()

	delay := n.tickDelay()
	now := time.Now()

	for _, q := range []map[int64]*pendingMsg{n.peerQueue, n.masterQueue} {
		for seq, pm := range q {
			age := now.Sub(pm.firstSent)
			switch {
			case age > 8*delay:
				delete(q, seq)
				n.peers.Remove(pm.addr)
				n.recorder.DeadPeer()
				log.Printf("[DEAD-PEER] dropping pending seq=%d to %s", seq, pm.addr)
			case age > delay:
				n.transport.SendUcast(pm.addr, pm.msg)
				n.peers.TouchSend(pm.addr)
				n.recorder.Retransmit()
			}
		}
	}

	for _, addrStr := range n.peers.SilentPeers(delay / 10) {
		addr, err := net.ResolveUDPAddr("udp4", addrStr)
		if err != nil {
			continue
		}
		n.sendLocked(addr, proto.Message{Seq: n.nextSeq(), Kind: proto.KindPing, Payload: proto.Ping{}}, false)
	}

	if n.localRole == board.RoleMaster && n.game != nil && now.Sub(n.lastAnnounce) >= time.Second {
		n.lastAnnounce = now
		ann := proto.Message{
			Seq:  n.nextSeq(),
			Kind: proto.KindAnnouncement,
			Payload: proto.Announcement{
				Games: []proto.GameInfo{n.localGameInfoLocked()},
			},
		}
		n.stampSenderLocked(&ann)
		n.transport.SendMcast(ann)
	}

	if n.localRole == board.RoleDeputy && n.masterAddr != nil {
		for _, dead := range n.peers.DeadPeers(8 * delay) {
			if dead == n.masterAddr.String() {
				n.promoteSelfLocked()
				break
			}
		}
	}
}

// promoteSelfLocked implements "Deputy -> Master: on detecting the
// current Master is dead" (§4.4).
func (n *Node) promoteSelfLocked() {
	n.localRole = board.RoleMaster
	if n.game != nil {
		if p, ok := n.game.Players[n.localID]; ok {
			p.Role = board.RoleMaster
		}
	}
	log.Printf("[FAILOVER] promoted self to Master after master silence")
}

// electDeputyLocked implements "Deputy election" (§4.4): when Master
// observes no Deputy, pick any Normal or Viewer and promote them.
func (n *Node) electDeputyLocked() {
	if n.game.Deputy() != nil {
		return
	}
	for _, p := range n.game.Players {
		if p.Role == board.RoleNormal || p.Role == board.RoleViewer {
			p.Role = board.RoleDeputy
			receiver := board.RoleDeputy
			n.sendLocked(p.Addr, proto.Message{
				Seq:        n.nextSeq(),
				ReceiverID: &p.ID,
				Kind:       proto.KindRoleChange,
				Payload:    proto.RoleChange{ReceiverRole: &receiver},
			}, true)
			return
		}
	}
}

func (n *Node) broadcastStateLocked() {
	state := n.stateMessageLocked()
	for _, p := range n.game.Players {
		if p.Role == board.RoleMaster || p.Addr == nil {
			continue
		}
		n.sendLocked(p.Addr, proto.Message{Seq: n.nextSeq(), Kind: proto.KindState, Payload: state}, false)
	}
}

func (n *Node) stateMessageLocked() proto.State {
	snakes := make([]proto.SnakeState, len(n.game.Snakes))
	for i, s := range n.game.Snakes {
		snakes[i] = proto.SnakeState{OwnerID: s.OwnerID, Direction: s.Direction, Body: s.Body}
	}
	players := make([]proto.PlayerState, 0, len(n.game.Players))
	for _, p := range n.game.Players {
		addr := ""
		if p.Addr != nil {
			addr = p.Addr.String()
		}
		players = append(players, proto.PlayerState{ID: p.ID, Name: p.Name, Addr: addr, Score: int32(p.Score), Role: p.Role})
	}
	return proto.State{
		Width:   int32(n.game.Config.Width),
		Height:  int32(n.game.Config.Height),
		Turn:    int32(n.game.Turn),
		Snakes:  snakes,
		Food:    n.game.FoodList(),
		Players: players,
	}
}

func (n *Node) localGameInfoLocked() proto.GameInfo {
	players := make([]proto.PlayerState, 0, len(n.game.Players))
	for _, p := range n.game.Players {
		players = append(players, proto.PlayerState{ID: p.ID, Name: p.Name, Score: int32(p.Score), Role: p.Role})
	}
	return proto.GameInfo{
		Name:    n.game.Name,
		CanJoin: true,
		Config: proto.GameConfigInfo{
			Width: int32(n.game.Config.Width), Height: int32(n.game.Config.Height),
			FoodStatic: int32(n.game.Config.FoodStatic), TickDelayMs: int32(n.game.Config.TickDelayMs),
		},
		Players: players,
	}
}

// --- Outbound helpers ---

// send transmits msg and, if track is true, enqueues it on the peer
// queue awaiting an Ack (§3 "Outbound tracking").
func (n *Node) send(addr *net.UDPAddr, msg proto.Message, track bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendLocked(addr, msg, track)
}

func (n *Node) sendLocked(addr *net.UDPAddr, msg proto.Message, track bool) {
	if addr == nil {
		return
	}
	n.stampSenderLocked(&msg)
	n.transport.SendUcast(addr, msg)
	n.peers.TouchSend(addr)
	if track {
		q := n.peerQueue
		if n.masterAddr != nil && addr.String() == n.masterAddr.String() {
			q = n.masterQueue
		}
		q[msg.Seq] = &pendingMsg{seq: msg.Seq, addr: addr, msg: msg, firstSent: time.Now()}
	}
}

// stampSenderLocked sets msg.SenderID to the locally adopted id, once one
// has been assigned by a Join-Ack (or by becoming Master). Per §4.4
// "Sequencing", a freshly adopted id replaces the sender_id field on every
// subsequently-tagged outbound message. Callers must hold n.mu.
func (n *Node) stampSenderLocked(msg *proto.Message) {
	if !n.localIDSet {
		return
	}
	id := n.localID
	msg.SenderID = &id
}

// Snapshot returns a read-only view for the dashboard (§7), taking a
// read lock for the duration of the copy.
func (n *Node) Snapshot() Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()

	masterAddr := ""
	if n.masterAddr != nil {
		masterAddr = n.masterAddr.String()
	}
	outstanding := len(n.peerQueue) + len(n.masterQueue)

	return Snapshot{
		Game:           n.game,
		LocalID:        n.localID,
		LocalRole:      n.localRole,
		MasterAddr:     masterAddr,
		PeerCount:      n.peers.Len(),
		OutstandingLen: outstanding,
		Announcements:  n.directory.Len(),
	}
}
