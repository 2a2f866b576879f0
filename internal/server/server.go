package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/visiona/framecast/internal/broadcast"
	"github.com/visiona/framecast/internal/capture"
	"github.com/visiona/framecast/internal/config"
)

// SnapshotSource is the single-pull half of a capture source, enough for
// the snapshot endpoint. *capture.Source satisfies it.
type SnapshotSource interface {
	Frame() (capture.Frame, error)
	Stats() capture.SourceStats
}

// Server serves live frames over HTTP: a multipart MJPEG stream, single
// snapshots, WebSocket delivery, plus health and stats surfaces.
type Server struct {
	cfg  *config.Config
	src  SnapshotSource
	bus  *broadcast.Bus
	pump *broadcast.Pump

	snapshots *gocache.Cache
	httpSrv   *http.Server
}

// New wires a server over an already-open source and a started pump.
func New(cfg *config.Config, src SnapshotSource, bus *broadcast.Bus, pump *broadcast.Pump) *Server {
	s := &Server{
		cfg:       cfg,
		src:       src,
		bus:       bus,
		pump:      pump,
		snapshots: gocache.New(cfg.SnapshotCacheTTL(), time.Minute),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/video", s.handleVideo)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	s.httpSrv = &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: mux,
	}

	return s
}

// Handler exposes the route mux, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe blocks serving HTTP until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	slog.Info("server: listening", "addr", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>framecast</title></head>
<body style="margin:0;background:#111">
<img src="/video" style="display:block;margin:auto;max-width:100%" alt="live stream">
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

type healthResponse struct {
	Status      string `json:"status"`
	Streaming   bool   `json:"streaming"`
	Released    bool   `json:"released"`
	Subscribers int    `json:"subscribers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Streaming:   s.pump.Running(),
		Released:    s.src.Stats().Released,
		Subscribers: s.bus.SubscriberCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Streaming && !resp.Released {
		resp.Status = "ok"
	} else {
		resp.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}

type statsResponse struct {
	Source capture.SourceStats `json:"source"`
	Pump   broadcast.PumpStats `json:"pump"`
	Bus    broadcast.BusStats  `json:"bus"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		Source: s.src.Stats(),
		Pump:   s.pump.Stats(),
		Bus:    s.bus.Stats(),
	})
}
