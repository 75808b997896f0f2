package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Server accepts websocket connections and hands each one to the dispatch
// service. Connection lifecycle runs through the register/unregister
// channels; room state never lives here.
type Server struct {
	upgrader   websocket.Upgrader
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	logger     zerolog.Logger
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	service    *Service
	httpSrv    *http.Server

	pruneInterval time.Duration
	pruneGrace    time.Duration
}

// NewServer creates a websocket server around the given service.
func NewServer(service *Service, cfg Config, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Clients are served from arbitrary origins.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		logger:        logger.With().Str("component", "server").Logger(),
		ctx:           ctx,
		cancel:        cancel,
		service:       service,
		pruneInterval: cfg.PruneInterval,
		pruneGrace:    cfg.PruneGrace,
	}
}

// Start runs the server until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpSrv = &http.Server{Addr: addr, Handler: mux}

	var g errgroup.Group
	g.Go(func() error {
		s.run()
		return nil
	})
	g.Go(func() error {
		s.janitor()
		return nil
	})
	g.Go(func() error {
		s.logger.Info().Str("addr", addr).Msg("starting websocket server")
		return s.httpSrv.ListenAndServe()
	})
	return g.Wait()
}

// Shutdown stops accepting connections and closes the live ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	for client := range s.clients {
		_ = client.Close()
	}
	s.mu.Unlock()

	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// run handles connection lifecycle
func (s *Server) run() {
	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			total := len(s.clients)
			s.mu.Unlock()
			s.logger.Info().Int("total", total).Msg("client connected")

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				_ = client.Close()
			}
			total := len(s.clients)
			s.mu.Unlock()
			s.logger.Info().Int("total", total).Msg("client disconnected")

		case <-s.ctx.Done():
			return
		}
	}
}

// janitor periodically reclaims rooms whose players are gone. Room teardown
// is policy layered above the engine, not part of its contract.
func (s *Server) janitor() {
	if s.pruneInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.service.Registry().PruneAbandoned(s.pruneGrace); removed > 0 {
				s.logger.Info().Int("removed", removed).Msg("pruned abandoned rooms")
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// handleWebSocket handles websocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(conn, s.service, s.logger)
	s.register <- client
	client.Start()

	go func() {
		<-client.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}
