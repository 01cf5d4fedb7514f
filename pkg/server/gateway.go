// Package server implements the collaboration gateway: the HTTP and
// WebSocket surface that multiplexes CRDT documents over per-document
// rooms.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docrelay-dev/docrelay/pkg/contents"
	"github.com/docrelay-dev/docrelay/pkg/fileid"
	"github.com/docrelay-dev/docrelay/pkg/loader"
	"github.com/docrelay-dev/docrelay/pkg/middleware"
	"github.com/docrelay-dev/docrelay/pkg/room"
)

// Gateway is the top-level coordinator. It owns the room registry, the
// loader registry, the file id index, the connected-users directory,
// and the process session token. Everything is injected; there are no
// ambient singletons.
type Gateway struct {
	config   *Config
	logger   *slog.Logger
	contents contents.Manager
	paths    *fileid.Manager
	loaders  *loader.Registry
	rooms    *room.Registry
	users    *Users
	events   Emitter
	registry *prometheus.Registry
	metrics  *Metrics

	// session is the per-process token. Clients connecting to document
	// rooms must present it; a mismatch means the server restarted
	// under them.
	session string

	upgrader   websocket.Upgrader
	httpServer *http.Server

	// Monitor window counters, reset each tick.
	relayedWindow atomic.Int64
	clientCount   atomic.Int64

	monitorStop chan struct{}
	monitorDone chan struct{}
	closed      atomic.Bool
}

// New creates a Gateway serving documents from cm.
func New(config *Config, cm contents.Manager) (*Gateway, error) {
	config = config.withDefaults()

	logger := slog.Default().With("component", "gateway")

	paths, err := fileid.NewManager(cm.Exists, config.FileIDPath)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()

	g := &Gateway{
		config:   config,
		logger:   logger,
		contents: cm,
		paths:    paths,
		rooms:    room.NewRegistry(),
		users:    NewUsers(),
		registry: registry,
		metrics:  NewMetrics(registry),
		session:  uuid.NewString(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		monitorStop: make(chan struct{}),
		monitorDone: make(chan struct{}),
	}
	g.events = NewLogEmitter(logger)
	g.loaders = loader.NewRegistry(paths, cm, loader.Options{
		SaveDelay:    config.SaveDelay,
		PollInterval: config.PollInterval,
	}, logger)

	go g.monitor()

	return g, nil
}

// SetEmitter replaces the default slog-backed event emitter.
func (g *Gateway) SetEmitter(e Emitter) {
	if e != nil {
		g.events = e
	}
}

// SetLogger sets the gateway logger.
func (g *Gateway) SetLogger(logger *slog.Logger) {
	g.logger = logger
}

// SessionID returns the per-process session token.
func (g *Gateway) SessionID() string {
	return g.session
}

// Users returns the connected-users directory.
func (g *Gateway) Users() *Users {
	return g.users
}

// Rooms returns the room registry.
func (g *Gateway) Rooms() *room.Registry {
	return g.rooms
}

// Handler returns the gateway's HTTP handler for mounting in external
// routers.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Tracing("docrelay"))
	r.Use(middleware.Metrics(middleware.WithRegistry(g.registry)))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(g.requireAuth)
		r.Get("/api/collaboration/room/{roomid}", g.handleRoom)
		r.Put("/api/collaboration/session/*", g.handleSession)
	})

	return r
}

// requireAuth rejects requests that do not carry the configured token,
// either as a bearer header or a token query parameter. WebSocket
// clients in browsers cannot set headers, so the query form is
// accepted everywhere.
func (g *Gateway) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.config.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.URL.Query().Get("token")
		if token == "" {
			const prefix = "Bearer "
			if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
				token = h[len(prefix):]
			}
		}
		if token != g.config.AuthToken {
			g.logger.Debug("request rejected",
				"path", r.URL.Path, "error", ErrNotAuthorized)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the gateway and blocks until shutdown.
func (g *Gateway) Run() error {
	g.httpServer = &http.Server{
		Addr:              g.config.Address,
		Handler:           g.Handler(),
		ReadHeaderTimeout: g.config.ReadHeaderTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("gateway starting",
			"address", g.config.Address,
			"session", g.session)
		errCh <- g.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		g.logger.Info("shutting down...")
		return g.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the gateway: the monitor loop ends, all
// rooms are torn down, pending saves are flushed, and the HTTP server
// drains.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if !g.closed.CompareAndSwap(false, true) {
		return ErrGatewayClosed
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	close(g.monitorStop)
	<-g.monitorDone

	g.rooms.CloseAll()
	g.loaders.Shutdown()

	if g.httpServer != nil {
		if err := g.httpServer.Shutdown(ctx); err != nil {
			g.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}
