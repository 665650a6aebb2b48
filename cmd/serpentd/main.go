// Command serpentd is the CLI entrypoint: it wires a Node Controller to
// the transport, directory and peer tracker and starts the ambient
// dashboard. Subcommands mirror the teacher's "defaults -> config file
// -> CLI overrides" precedence (server/main.go) but built on cobra
// instead of the bare flag package, following NikeGunn-tutu and
// moby-moby's command surfaces.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"serpentine.network/internal/config"
	"serpentine.network/internal/directory"
	"serpentine.network/internal/node"
	"serpentine.network/internal/observe"
	"serpentine.network/internal/peer"
	"serpentine.network/internal/transport"
)

var (
	flagWidth       int
	flagHeight      int
	flagFood        int
	flagTickDelayMs int
	flagMcastGroup  string
	flagMcastPort   int
	flagConfigPath  string
	flagDashPort    int
	flagNickname    string
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime)

	root := &cobra.Command{
		Use:   "serpentd",
		Short: "serpentine.network peer-to-peer snake node",
	}
	root.PersistentFlags().IntVar(&flagWidth, "width", 0, "board width (overrides config)")
	root.PersistentFlags().IntVar(&flagHeight, "height", 0, "board height (overrides config)")
	root.PersistentFlags().IntVar(&flagFood, "food", 0, "static food count (overrides config)")
	root.PersistentFlags().IntVar(&flagTickDelayMs, "tick-delay", 0, "tick delay in ms (overrides config)")
	root.PersistentFlags().StringVar(&flagMcastGroup, "mcast-group", "239.192.0.4", "multicast group address")
	root.PersistentFlags().IntVar(&flagMcastPort, "mcast-port", 9192, "multicast group port")
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().IntVar(&flagDashPort, "dash-port", 8080, "local dashboard HTTP port")
	root.PersistentFlags().StringVar(&flagNickname, "nickname", "player", "local player display name")

	root.AddCommand(hostCmd(), joinCmd(), viewCmd())

	if err := root.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func resolveConfig(name string) config.Config {
	cfg := config.Default()
	if flagConfigPath != "" {
		loaded, err := config.Load(flagConfigPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
		log.Printf("loaded config from %s", flagConfigPath)
	}

	if flagWidth > 0 {
		cfg.Width = flagWidth
	}
	if flagHeight > 0 {
		cfg.Height = flagHeight
	}
	if flagFood > 0 {
		cfg.FoodStatic = flagFood
	}
	if flagTickDelayMs > 0 {
		cfg.TickDelayMs = flagTickDelayMs
	}
	if name != "" {
		cfg.Name = name
	}
	cfg.Nickname = flagNickname
	return cfg
}

// startNode wires a Transport + Node + Dashboard, starts the node and the
// dashboard in background goroutines and returns the node. Exit codes
// follow §6: 0 on normal shutdown, non-zero on unrecoverable startup I/O
// failure.
func startNode(cfg config.Config) *node.Node {
	metrics, registry := observe.NewMetrics()

	tr, err := transport.Open(flagMcastGroup, flagMcastPort, "", metrics)
	if err != nil {
		log.Fatalf("transport: %v", err)
	}

	n := node.New(cfg, tr, directory.New(), peer.NewTracker(), metrics)
	stop := make(chan struct{})
	go n.Run(stop)

	dash := observe.NewDashboard(n, metrics, registry)
	addr := fmt.Sprintf("0.0.0.0:%d", flagDashPort)
	log.Printf("dashboard listening on http://%s/dashboard", addr)
	go func() {
		if err := http.ListenAndServe(addr, dash.Router()); err != nil {
			log.Printf("dashboard: %v", err)
		}
	}()

	return n
}

func hostCmd() *cobra.Command {
	var gameName string
	cmd := &cobra.Command{
		Use:   "host",
		Short: "create and host a new game as Master",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := resolveConfig(gameName)
			n := startNode(cfg)
			n.Intents <- node.Intent{Kind: node.IntentNewGame}
			log.Printf("hosting %q on %s:%d", cfg.Name, flagMcastGroup, flagMcastPort)
			select {}
		},
	}
	cmd.Flags().StringVar(&gameName, "name", "game", "game name to advertise")
	return cmd
}

func joinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join <announcement-index>",
		Short: "join an announced game as a Normal player",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			idx := mustAtoi(args[0])
			cfg := resolveConfig("")
			n := startNode(cfg)
			n.Intents <- node.Intent{Kind: node.IntentJoin, Idx: idx}
			select {}
		},
	}
	return cmd
}

func viewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <announcement-index>",
		Short: "join an announced game as a Viewer",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			idx := mustAtoi(args[0])
			cfg := resolveConfig("")
			n := startNode(cfg)
			n.Intents <- node.Intent{Kind: node.IntentView, Idx: idx}
			select {}
		},
	}
	return cmd
}

func mustAtoi(s string) int {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		log.Fatalf("expected an integer announcement index, got %q", s)
	}
	return v
}
