package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/hulld/hulld/internal/geometry"
	"github.com/hulld/hulld/internal/graph"
)

// Server exposes the observer surface: a websocket event feed plus a
// small JSON API over the current graph.
type Server struct {
	store       *graph.Store
	broadcaster *Broadcaster
	startedAt   time.Time
	proc        *process.Process
}

func NewServer(store *graph.Store, broadcaster *Broadcaster) *Server {
	s := &Server{
		store:       store,
		broadcaster: broadcaster,
		startedAt:   time.Now(),
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = p
	}
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/graph", s.handleGraph)
	mux.HandleFunc("/api/health", s.handleHealth)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	points := s.store.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SnapshotPayload{
		Points: points,
		Area:   geometry.HullArea(points),
	})
}

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Points        int     `json:"points"`
	Observers     int     `json:"observers"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpuPercent"`
	RSSBytes      uint64  `json:"rssBytes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Points:        s.store.Len(),
		Observers:     s.broadcaster.ClientCount(),
		Goroutines:    runtime.NumGoroutine(),
	}

	if s.proc != nil {
		if cpu, err := s.proc.CPUPercent(); err == nil {
			resp.CPUPercent = cpu
		}
		if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil {
			resp.RSSBytes = mem.RSS
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// checkOrigin accepts same-host and loopback origins only. The observer
// feed is a local diagnostic surface, not a public API.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Observer listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
