package monstermac

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/flickpp/ppenc/internal/logging"
	"github.com/flickpp/ppenc/internal/metrics"
)

// maxBodySize bounds request bodies handled by the MAC endpoint.
const maxBodySize = 16 << 20 // 16MiB

// Server is the MonsterMac HTTP service: a single POST endpoint that
// returns HMAC-SHA256(secret, body) for a resolved secret (§6),
// grounded on monstermac/src/server.rs's handle_req.
type Server struct {
	resolver *Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
	server   *http.Server
	listener net.Listener
	running  atomic.Bool
}

// NewServer constructs a Server bound to addr, serving on "/".
func NewServer(addr string, resolver *Resolver, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if m == nil {
		m = metrics.Default()
	}

	s := &Server{resolver: resolver, logger: logger, metrics: m}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleMAC)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.running.Store(true)

	go s.server.Serve(ln)
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Address returns the server's bound listen address.
func (s *Server) Address() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// handleMAC implements handle_req/compute_mac: non-POST gets 400,
// internal failures get 500, success returns exactly 32 raw bytes with
// 200 (§6).
func (s *Server) handleMAC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.logger.Error("couldn't read request body", logging.KeyComponent, "monstermac")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	mac, err := s.resolver.ComputeMAC(body)
	if err != nil {
		s.metrics.RecordMonsterMacSecretError()
		s.metrics.RecordMonsterMacRequest(string(s.resolver.Mode()), "error", time.Since(start).Seconds())
		s.logger.Error("internal server error", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.metrics.RecordMonsterMacRequest(string(s.resolver.Mode()), "ok", time.Since(start).Seconds())
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(mac[:])
}
