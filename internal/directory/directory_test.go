package directory

import (
	"testing"
	"time"

	"serpentine.network/internal/proto"
)

func TestInsertAndNth(t *testing.T) {
	d := New()
	d.Insert("10.0.0.1:9000", proto.Announcement{Games: []proto.GameInfo{{Name: "a"}}})
	d.Insert("10.0.0.2:9000", proto.Announcement{Games: []proto.GameInfo{{Name: "b"}}})

	addr, payload, ok := d.Nth(0)
	if !ok || addr != "10.0.0.1:9000" || payload.Games[0].Name != "a" {
		t.Fatalf("got %s %+v", addr, payload)
	}
	addr, payload, ok = d.Nth(1)
	if !ok || addr != "10.0.0.2:9000" || payload.Games[0].Name != "b" {
		t.Fatalf("got %s %+v", addr, payload)
	}
	if _, _, ok := d.Nth(2); ok {
		t.Fatal("expected out-of-range index to fail")
	}
}

func TestInsertRefreshesExistingEntry(t *testing.T) {
	d := New()
	d.Insert("10.0.0.1:9000", proto.Announcement{Games: []proto.GameInfo{{Name: "a"}}})
	d.Insert("10.0.0.1:9000", proto.Announcement{Games: []proto.GameInfo{{Name: "a-v2"}}})

	if d.Len() != 1 {
		t.Fatalf("expected a single entry after refresh, got %d", d.Len())
	}
	_, payload, _ := d.Nth(0)
	if payload.Games[0].Name != "a-v2" {
		t.Fatalf("expected refreshed payload, got %+v", payload)
	}
}

func TestReapRemovesStaleEntries(t *testing.T) {
	d := New()
	d.Insert("10.0.0.1:9000", proto.Announcement{})
	// Force the entry to look stale without sleeping 3 seconds in a test.
	d.mu.Lock()
	d.entries["10.0.0.1:9000"].lastSeen = time.Now().Add(-TTL - time.Second)
	d.mu.Unlock()

	d.Reap()

	if d.Len() != 0 {
		t.Fatalf("expected stale entry reaped, got %d live entries", d.Len())
	}
	if _, _, ok := d.Nth(0); ok {
		t.Fatal("expected Nth(0) to fail after reap")
	}
}

func TestIterSkipsExpired(t *testing.T) {
	d := New()
	d.Insert("10.0.0.1:9000", proto.Announcement{})
	d.Insert("10.0.0.2:9000", proto.Announcement{})
	d.mu.Lock()
	d.entries["10.0.0.1:9000"].lastSeen = time.Now().Add(-TTL - time.Second)
	d.mu.Unlock()

	all := d.Iter()
	if len(all) != 1 || all[0].Addr != "10.0.0.2:9000" {
		t.Fatalf("got %+v", all)
	}
}
