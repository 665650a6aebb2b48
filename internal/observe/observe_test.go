package observe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"serpentine.network/internal/config"
	"serpentine.network/internal/directory"
	"serpentine.network/internal/node"
	"serpentine.network/internal/peer"
	"serpentine.network/internal/transport"
)

func TestStatsEndpointReportsSnapshot(t *testing.T) {
	metrics, registry := NewMetrics()

	tr, err := transport.Open("239.192.0.4", 19301, "", metrics)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	defer tr.Close()

	cfg := config.Config{Width: 10, Height: 10, FoodStatic: 0, TickDelayMs: 1000, Name: "arena", Nickname: "host"}
	n := node.New(cfg, tr, directory.New(), peer.NewTracker(), metrics)

	dash := NewDashboard(n, metrics, registry)

	srv := httptest.NewServer(dash.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()

	var snap StatsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.LocalRole != "Viewer" {
		t.Fatalf("expected fresh node to report Viewer role, got %q", snap.LocalRole)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	metrics, registry := NewMetrics()

	tr, err := transport.Open("239.192.0.4", 19302, "", metrics)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	defer tr.Close()

	cfg := config.Config{Width: 10, Height: 10, FoodStatic: 0, TickDelayMs: 1000, Name: "arena", Nickname: "host"}
	n := node.New(cfg, tr, directory.New(), peer.NewTracker(), metrics)
	dash := NewDashboard(n, metrics, registry)

	srv := httptest.NewServer(dash.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
}
