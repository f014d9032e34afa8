package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hulld/hulld/internal/config"
	"github.com/hulld/hulld/internal/graph"
	"github.com/hulld/hulld/internal/monitor"
	"github.com/hulld/hulld/internal/protocol"
	"github.com/hulld/hulld/internal/server"
	"github.com/hulld/hulld/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	mode := flag.String("mode", "", "Override concurrency mode (reactor, threads, proactor)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *mode != "" {
		cfg.Server.Mode = *mode
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	store := graph.NewStore()

	var broadcaster *ws.Broadcaster
	if cfg.Observer.Enabled {
		broadcaster = ws.NewBroadcaster(store, cfg.Observer.SnapshotInterval)
	}

	watcher := monitor.NewThresholdWatcher(cfg.Monitor.Threshold, func(c monitor.Crossing) {
		log.Println(c.Message())
		if broadcaster != nil {
			broadcaster.BroadcastThreshold(c)
		}
	})
	watcher.Start()

	sink := protocol.AreaSinkFunc(func(area float64) {
		watcher.Publish(area)
		if broadcaster != nil {
			broadcaster.BroadcastArea(area)
		}
	})

	srv, err := server.New(cfg.Server, server.Deps{Store: store, Sink: sink})
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Hull server listening on %s:%d (%s mode)", cfg.Server.Host, srv.Port(), cfg.Server.Mode)

	if cfg.Observer.Enabled {
		mux := http.NewServeMux()
		ws.NewServer(store, broadcaster).SetupRoutes(mux)
		go func() {
			if err := ws.ListenAndServe(cfg.Observer.Host, cfg.Observer.Port, mux); err != nil {
				log.Fatalf("Observer error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	srv.Shutdown()
	if broadcaster != nil {
		broadcaster.Close()
	}
	watcher.Close()
}
