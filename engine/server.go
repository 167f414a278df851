package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Version can be set before starting the server.
var Version = "1.0.0"

// FallbackResponse is the body served to plain HTTP requests.
const FallbackResponse = "Hello!"

const shutdownTimeout = 5 * time.Second

var (
	// ErrUpstreamDial means the simulation could not be reached at startup.
	ErrUpstreamDial = errors.New("connect to gameserver failed")
	// ErrListen means the viewer port could not be bound.
	ErrListen = errors.New("listen for viewers failed")
)

// Server wires a Relay to its upstream connection and the viewer HTTP server.
type Server struct {
	Relay *Relay

	cfg        Config
	logger     *log.Logger
	httpServer *http.Server
	listener   net.Listener
	upstream   net.Conn
	group      *errgroup.Group
	cancel     context.CancelFunc
}

// NewServer creates a new server with the given configuration.
func NewServer(cfg Config) *Server {
	logger := cfg.logger()
	return &Server{
		Relay:  NewRelay(logger),
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) setupMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			HandleWS(s.Relay, w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(FallbackResponse))
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		HandleStats(s.Relay, w, r)
	})

	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})

	return mux
}

func HandleStats(relay *Relay, w http.ResponseWriter, r *http.Request) {
	snap, ok := relay.Stats()
	if !ok {
		http.Error(w, "relay stopped", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) logStartup(addr string) {
	s.logger.Printf("Relay v%s connected to gameserver %s", Version, s.upstream.RemoteAddr())
	s.logger.Printf("Listening on http://%s", addr)
	s.logger.Printf("WebSocket: ws://%s/", addr)
	s.logger.Printf("Stats: http://%s/stats", addr)
}

// Start connects to the simulation, binds the viewer port and runs the relay
// and the HTTP server in the background (non-blocking). The upstream must be
// reachable: there is no retry.
func (s *Server) Start(ctx context.Context) error {
	upstreamAddr := net.JoinHostPort(s.cfg.UpstreamHost, s.cfg.UpstreamPort)
	s.logger.Printf("[UPSTREAM] connecting to gameserver on %s...", upstreamAddr)

	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", upstreamAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamDial, err)
	}
	s.upstream = conn

	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(s.cfg.ListenPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %w", ErrListen, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.setupMux()}
	s.logStartup(ln.Addr().String())

	ctx, s.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.group = g

	g.Go(func() error {
		return s.Relay.Run(gctx, conn)
	})
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		conn.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return nil
}

// Wait blocks until the relay and HTTP server have stopped. It returns nil
// after Stop and ErrUpstreamClosed when the simulation went away.
func (s *Server) Wait() error {
	if s.group == nil {
		return nil
	}
	err := s.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ListenAndServe starts the server and blocks until it stops.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}

// Stop shuts the server down and waits for it.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.Wait()
}

// Addr is the bound viewer address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GetStatsJSON returns the current relay stats as a JSON string.
func (s *Server) GetStatsJSON() string {
	snap, ok := s.Relay.Stats()
	if !ok {
		return "{}"
	}
	b, _ := json.Marshal(snap)
	return string(b)
}
