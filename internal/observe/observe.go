// Package observe is the ambient diagnostic dashboard that ships around
// the core: a JSON stats endpoint, a live-push WebSocket feed and a
// Prometheus metrics endpoint, adapted from the teacher's own
// HandleStats/HandleDashboard/dashboardHTML (engine/network.go) but
// routed through github.com/go-chi/chi/v5 instead of a bare
// http.ServeMux, and re-themed for this domain. It is diagnostic tooling
// only — never consulted by gameplay — so a node runs identically with
// it absent.
package observe

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serpentine.network/internal/node"
)

// Metrics are the Prometheus counters/gauges this dashboard exposes at
// /metrics, following NikeGunn-tutu's use of client_golang for its own
// daemon metrics.
type Metrics struct {
	DecodeErrors   prometheus.Counter
	Retransmits    prometheus.Counter
	DeadPeersTotal prometheus.Counter
	Role           *prometheus.GaugeVec
}

// NewMetrics registers a fresh metric set against its own registry so
// multiple Dashboards in the same test binary don't collide.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serpentine_decode_errors_total",
			Help: "Malformed frames dropped by the transport layer.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serpentine_retransmits_total",
			Help: "Outbound messages resent by the retransmit walk.",
		}),
		DeadPeersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "serpentine_dead_peers_total",
			Help: "Peers dropped after exceeding the dead-peer threshold.",
		}),
		Role: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "serpentine_local_role",
			Help: "1 if the local node currently holds the named role, else 0.",
		}, []string{"role"}),
	}
	reg.MustRegister(m.DecodeErrors, m.Retransmits, m.DeadPeersTotal, m.Role)
	return m, reg
}

// DecodeError satisfies transport.Recorder: one malformed frame dropped.
func (m *Metrics) DecodeError() { m.DecodeErrors.Inc() }

// Retransmit satisfies node.Recorder: one outbound message resent by the
// retransmit walk.
func (m *Metrics) Retransmit() { m.Retransmits.Inc() }

// DeadPeer satisfies node.Recorder: one peer dropped after exceeding the
// dead-peer threshold.
func (m *Metrics) DeadPeer() { m.DeadPeersTotal.Inc() }

// StatsSnapshot is the JSON shape served at /stats, mirroring the
// teacher's StatsSnapshot/buildSnapshot.
type StatsSnapshot struct {
	GameName       string `json:"gameName"`
	Turn           int    `json:"turn"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	LocalID        int32  `json:"localId"`
	LocalRole      string `json:"localRole"`
	MasterAddr     string `json:"masterAddr"`
	PlayerCount    int    `json:"playerCount"`
	FoodCount      int    `json:"foodCount"`
	PeerCount      int    `json:"peerCount"`
	OutstandingLen int    `json:"outstandingLen"`
	Announcements  int    `json:"announcements"`
	Uptime         string `json:"uptime"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Dashboard serves /stats, /dashboard, /ws and /metrics for one Node.
type Dashboard struct {
	n        *node.Node
	metrics  *Metrics
	registry *prometheus.Registry
	started  time.Time

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewDashboard(n *node.Node, metrics *Metrics, registry *prometheus.Registry) *Dashboard {
	return &Dashboard{
		n:        n,
		metrics:  metrics,
		registry: registry,
		started:  time.Now(),
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// Router builds the chi mux this dashboard listens on.
func (d *Dashboard) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/stats", d.handleStats)
	r.Get("/dashboard", d.handleDashboard)
	r.Get("/ws", d.handleWS)
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	return r
}

func (d *Dashboard) buildSnapshot() StatsSnapshot {
	snap := d.n.Snapshot()
	s := StatsSnapshot{
		LocalID:        snap.LocalID,
		LocalRole:      snap.LocalRole.String(),
		MasterAddr:     snap.MasterAddr,
		PeerCount:      snap.PeerCount,
		OutstandingLen: snap.OutstandingLen,
		Announcements:  snap.Announcements,
		Uptime:         time.Since(d.started).Round(time.Second).String(),
	}
	if snap.Game != nil {
		s.GameName = snap.Game.Name
		s.Turn = snap.Game.Turn
		s.Width = snap.Game.Config.Width
		s.Height = snap.Game.Config.Height
		s.PlayerCount = len(snap.Game.Players)
		s.FoodCount = len(snap.Game.Food)
	}

	for _, role := range []string{"Master", "Deputy", "Normal", "Viewer"} {
		v := 0.0
		if role == s.LocalRole {
			v = 1.0
		}
		d.metrics.Role.WithLabelValues(role).Set(v)
	}
	return s
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(d.buildSnapshot())
}

func (d *Dashboard) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

// handleWS upgrades to a WebSocket and pushes a fresh snapshot every
// second until the client disconnects, the repurposed use of the
// teacher's gorilla/websocket dependency now that the raw game protocol
// runs over UDP instead.
func (d *Dashboard) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade error: %v", err)
		return
	}
	d.mu.Lock()
	d.clients[conn] = struct{}{}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.clients, conn)
		d.mu.Unlock()
		conn.Close()
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.WriteJSON(d.buildSnapshot()); err != nil {
			return
		}
	}
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>serpentine node dashboard</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
         background: #0e1620; color: #e6e6e6; padding: 20px; }
  h1 { background: linear-gradient(135deg, #2e7d32, #1b5e20); padding: 14px 24px;
       border-radius: 10px; margin-bottom: 24px; color: white; font-size: 22px; }
  .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr));
          gap: 14px; }
  .card { background: #16213e; border-radius: 10px; padding: 18px; border-left: 4px solid #2e7d32; }
  .card .label { font-size: 11px; text-transform: uppercase; color: #888; }
  .card .value { font-size: 28px; font-weight: bold; margin-top: 4px; }
</style>
</head>
<body>
<h1>serpentine node dashboard</h1>
<div class="grid" id="cards"></div>
<script>
const defs = [
  ['gameName','Game'], ['turn','Turn'], ['localRole','Role'], ['localId','Local Id'],
  ['playerCount','Players'], ['foodCount','Food'], ['peerCount','Peers'],
  ['outstandingLen','Pending Acks'], ['announcements','Announcements'], ['uptime','Uptime'],
];
function render(d) {
  let html = '';
  for (const [k, label] of defs) {
    html += '<div class="card"><div class="label">'+label+'</div><div class="value">'+d[k]+'</div></div>';
  }
  document.getElementById('cards').innerHTML = html;
}
function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onmessage = (e) => render(JSON.parse(e.data));
  ws.onclose = () => setTimeout(connect, 1000);
}
connect();
</script>
</body>
</html>`
