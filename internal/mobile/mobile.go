// Package mobile provides gomobile-compatible bindings for embedding a
// serpentine host in iOS/tvOS/Android applications, adapted from the
// teacher's own mobile bindings (mobile/mobile.go): a package-level
// singleton guarded by a mutex, exposing only primitive types (int,
// string, bool, error) as gomobile requires.
package mobile

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"serpentine.network/internal/config"
	"serpentine.network/internal/directory"
	"serpentine.network/internal/node"
	"serpentine.network/internal/observe"
	"serpentine.network/internal/peer"
	"serpentine.network/internal/transport"
)

// Version can be set before starting a host, mirroring the teacher's
// exported mutable Version var.
var Version = "0.1.0"

type host struct {
	tr         *transport.Transport
	n          *node.Node
	httpServer *http.Server
	stop       chan struct{}
	dashPort   int
}

var (
	mu   sync.Mutex
	h    *host
	port int
)

// Start joins the multicast group, creates a new game as Master, and
// starts the dashboard HTTP server on dashPort. The node runs in the
// background; call Stop() to shut it down.
func Start(mcastGroup string, mcastPort int, dashPort int, gameName, nickname string) error {
	mu.Lock()
	defer mu.Unlock()

	if h != nil {
		return fmt.Errorf("mobile: server already running")
	}

	metrics, registry := observe.NewMetrics()

	tr, err := transport.Open(mcastGroup, mcastPort, "", metrics)
	if err != nil {
		return fmt.Errorf("mobile: open transport: %w", err)
	}

	cfg := config.Default()
	cfg.Name = gameName
	cfg.Nickname = nickname

	n := node.New(cfg, tr, directory.New(), peer.NewTracker(), metrics)
	stop := make(chan struct{})
	go n.Run(stop)
	n.Intents <- node.Intent{Kind: node.IntentNewGame}

	dash := observe.NewDashboard(n, metrics, registry)
	srv := &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", dashPort), Handler: dash.Router()}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		close(stop)
		tr.Close()
		return fmt.Errorf("mobile: listen dashboard: %w", err)
	}
	go srv.Serve(ln)

	h = &host{tr: tr, n: n, httpServer: srv, stop: stop, dashPort: dashPort}
	port = dashPort
	return nil
}

// Stop shuts down the running host.
func Stop() {
	mu.Lock()
	defer mu.Unlock()

	if h == nil {
		return
	}
	close(h.stop)
	h.httpServer.Close()
	h.tr.Close()
	h = nil
}

// IsRunning returns true if a host is currently running.
func IsRunning() bool {
	mu.Lock()
	defer mu.Unlock()
	return h != nil
}

// GetStats returns the current node stats as a JSON string.
func GetStats() string {
	mu.Lock()
	cur := h
	mu.Unlock()

	if cur == nil {
		return "{}"
	}
	snap := cur.n.Snapshot()
	return fmt.Sprintf(`{"turn":%d,"localRole":%q,"peerCount":%d}`,
		snapTurn(snap), snap.LocalRole.String(), snap.PeerCount)
}

func snapTurn(snap node.Snapshot) int {
	if snap.Game == nil {
		return 0
	}
	return snap.Game.Turn
}

// GetLocalIP returns the device's local network IP address.
func GetLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "unknown"
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return "unknown"
}

// GetConnectURL returns the URL a companion app should open to view the
// dashboard.
func GetConnectURL() string {
	mu.Lock()
	p := port
	mu.Unlock()
	return fmt.Sprintf("http://%s:%d/dashboard", GetLocalIP(), p)
}

// GetVersion returns the host's version string.
func GetVersion() string {
	return Version
}
