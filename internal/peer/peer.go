// Package peer tracks per-address liveness: the last time a unicast
// datagram was sent to, or received from, each known peer. Naming of the
// tri-state liveness model (alive/suspect/dead) below is borrowed from
// the SWIM-style membership code in the pack (swim.go's nodeState,
// memberlist's NodeState) but collapsed to the two boolean-threshold
// predicates the core actually needs: no gossip, no incarnation numbers,
// no indirect probing.
package peer

import (
	"net"
	"sync"
	"time"
)

// State is a coarse liveness classification derived from the thresholds
// below; it exists for observability (the dashboard, §7) and is not
// itself consulted by the Node Controller, which calls DeadPeers/
// SilentPeers directly.
type State int

const (
	Alive State = iota
	Suspect
	Dead
)

type entry struct {
	lastSent     time.Time
	lastReceived time.Time
}

// Tracker is the (last_sent, last_received) map of §4.5, guarded by its
// own mutex since it is read from both the Controller goroutine and the
// dashboard's snapshot reads.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

func key(addr *net.UDPAddr) string { return addr.String() }

func (t *Tracker) get(addr *net.UDPAddr) *entry {
	k := key(addr)
	e, ok := t.entries[k]
	if !ok {
		e = &entry{}
		t.entries[k] = e
	}
	return e
}

// TouchRecv records that a unicast datagram was just received from addr.
func (t *Tracker) TouchRecv(addr *net.UDPAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(addr).lastReceived = time.Now()
}

// TouchSend records that a unicast datagram was just sent to addr.
func (t *Tracker) TouchSend(addr *net.UDPAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(addr).lastSent = time.Now()
}

// DeadPeers returns every tracked address whose last_received age exceeds
// threshold (candidates for teardown, §4.5/§7).
func (t *Tracker) DeadPeers(threshold time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	var out []string
	for addr, e := range t.entries {
		if e.lastReceived.IsZero() || now.Sub(e.lastReceived) > threshold {
			out = append(out, addr)
		}
	}
	return out
}

// SilentPeers returns every tracked address whose last_sent age exceeds
// threshold (candidates for a warm-up Ping, §4.4).
func (t *Tracker) SilentPeers(threshold time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	var out []string
	for addr, e := range t.entries {
		if e.lastSent.IsZero() || now.Sub(e.lastSent) > threshold {
			out = append(out, addr)
		}
	}
	return out
}

// State classifies addr for observability: Alive if seen within threshold,
// Suspect if stale but within 2x threshold, Dead beyond that.
func (t *Tracker) State(addr string, threshold time.Duration) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[addr]
	if !ok || e.lastReceived.IsZero() {
		return Dead
	}
	age := time.Since(e.lastReceived)
	switch {
	case age <= threshold:
		return Alive
	case age <= 2*threshold:
		return Suspect
	default:
		return Dead
	}
}

// Remove drops addr from both maps. The Controller calls this once it has
// torn down all queued messages for the peer (§4.5).
func (t *Tracker) Remove(addr *net.UDPAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key(addr))
}

// Len reports the number of tracked peers, used by the dashboard snapshot.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
