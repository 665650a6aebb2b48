// Package directory implements the Announcement Directory (§4.6): a
// freshness-tracked table of known games keyed by the announcing peer's
// address, fed by inbound multicast Announcement frames and reaped on a
// timer the way the teacher's stats/cleanup goroutines run alongside the
// main game loop.
package directory

import (
	"sync"
	"time"

	"serpentine.network/internal/proto"
)

// TTL is how long an entry survives without a refresh (§3: "valid while
// last-seen <= 3*SECOND").
const TTL = 3 * time.Second

// ReapInterval is how often stale entries are swept (§4.6).
const ReapInterval = 3 * time.Second

type entry struct {
	addr     string
	payload  proto.Announcement
	lastSeen time.Time
}

// Directory is the mapping from peer address to (announcement payload,
// last-seen timestamp). Entries are indexed for Nth(i) and ordered by
// first-insertion so the UI can address announcements stably by index.
type Directory struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
}

func New() *Directory {
	return &Directory{entries: make(map[string]*entry)}
}

// Insert refreshes the existing record for addr, or inserts a new one
// with the current timestamp (§4.6).
func (d *Directory) Insert(addr string, payload proto.Announcement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[addr]
	if !ok {
		e = &entry{addr: addr}
		d.entries[addr] = e
		d.order = append(d.order, addr)
	}
	e.payload = payload
	e.lastSeen = time.Now()
}

// Nth returns the address and payload at index i in insertion order,
// skipping any entries that have already expired. Ok is false if i is
// out of range.
func (d *Directory) Nth(i int) (addr string, payload proto.Announcement, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	live := d.liveOrder()
	if i < 0 || i >= len(live) {
		return "", proto.Announcement{}, false
	}
	e := d.entries[live[i]]
	return e.addr, e.payload, true
}

// Iter returns every live entry for rendering, in stable insertion order.
func (d *Directory) Iter() []struct {
	Addr     string
	Payload  proto.Announcement
	LastSeen time.Time
} {
	d.mu.Lock()
	defer d.mu.Unlock()

	live := d.liveOrder()
	out := make([]struct {
		Addr     string
		Payload  proto.Announcement
		LastSeen time.Time
	}, 0, len(live))
	for _, addr := range live {
		e := d.entries[addr]
		out = append(out, struct {
			Addr     string
			Payload  proto.Announcement
			LastSeen time.Time
		}{Addr: e.addr, Payload: e.payload, LastSeen: e.lastSeen})
	}
	return out
}

// liveOrder returns d.order filtered to entries that have not expired.
// Callers must hold d.mu.
func (d *Directory) liveOrder() []string {
	now := time.Now()
	live := make([]string, 0, len(d.order))
	for _, addr := range d.order {
		if e, ok := d.entries[addr]; ok && now.Sub(e.lastSeen) <= TTL {
			live = append(live, addr)
		}
	}
	return live
}

// Reap removes every entry older than TTL, compacting the insertion
// order. Intended to be called from a ticker goroutine every
// ReapInterval (§4.6).
func (d *Directory) Reap() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	kept := d.order[:0]
	for _, addr := range d.order {
		e, ok := d.entries[addr]
		if !ok {
			continue
		}
		if now.Sub(e.lastSeen) > TTL {
			delete(d.entries, addr)
			continue
		}
		kept = append(kept, addr)
	}
	d.order = kept
}

// Len reports the number of live entries.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.liveOrder())
}
