package mobile

import (
	"net/http"
	"testing"
	"time"
)

func TestStartStopLifecycle(t *testing.T) {
	if IsRunning() {
		t.Fatal("expected no host running at test start")
	}

	err := Start("239.192.0.4", 19401, 19491, "arena", "alice")
	if err != nil {
		t.Skipf("networking unavailable in this environment: %v", err)
	}
	defer Stop()

	if !IsRunning() {
		t.Fatal("expected IsRunning to be true after Start")
	}

	if err := Start("239.192.0.4", 19402, 19492, "arena2", "bob"); err == nil {
		t.Fatal("expected a second Start to fail while one host is running")
	}

	time.Sleep(20 * time.Millisecond)
	resp, err := http.Get("http://127.0.0.1:19491/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	resp.Body.Close()

	stats := GetStats()
	if stats == "{}" {
		t.Fatal("expected non-empty stats while a host is running")
	}

	Stop()
	if IsRunning() {
		t.Fatal("expected IsRunning to be false after Stop")
	}
	if GetStats() != "{}" {
		t.Fatalf("expected empty stats after Stop, got %s", GetStats())
	}
}
