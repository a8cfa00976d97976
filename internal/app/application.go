// Package app wires the relay hub, its optional gateways and the journal
// into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/SoCo-NP/SoCo/internal/api"
	"github.com/SoCo-NP/SoCo/internal/compilelock"
	"github.com/SoCo-NP/SoCo/internal/config"
	"github.com/SoCo-NP/SoCo/internal/database"
	"github.com/SoCo-NP/SoCo/internal/hub"
	"github.com/SoCo-NP/SoCo/internal/router"
	"github.com/SoCo-NP/SoCo/internal/session"
	"github.com/SoCo-NP/SoCo/internal/websocket"
	pkgdatabase "github.com/SoCo-NP/SoCo/pkg/database"
	"github.com/SoCo-NP/SoCo/pkg/interfaces"
)

// shutdownTimeout bounds the graceful part of Run's shutdown
const shutdownTimeout = 10 * time.Second

var ErrNotListening = errors.New("application is not listening")

// Application coordinates all system components
// ARCHITECTURAL DISCOVERY: Clean dependency injection with a strict initialization order:
// Journal → Metrics → Hub → WebSocket gateway → Admin API
type Application struct {
	config   *config.Config
	journal  *database.Manager // nil when disabled
	registry *prometheus.Registry
	hub      *hub.Hub

	wsServer    *http.Server // nil when disabled
	adminServer *http.Server // nil when disabled

	relayLn net.Listener
	wsLn    net.Listener
	adminLn net.Listener
}

// NewApplication builds every component; nothing listens until Listen
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("invalid configuration: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{config: cfg, registry: prometheus.NewRegistry()}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// STEP 1: Journal (optional foundation layer)
	var journal interfaces.Journal
	if cfg.Journal.Path != "" {
		dbConfig := pkgdatabase.DefaultConfig()
		dbConfig.DatabasePath = cfg.Journal.Path
		dbConfig.WriteTimeout = cfg.Journal.Timeout

		manager, err := database.NewManager(dbConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		app.journal = manager
		journal = manager
	}

	// STEP 2: Relay hub
	app.hub = hub.NewHub(session.NewRegistry(), compilelock.NewTable(), router.NewRouter(), hub.Options{
		Journal:      journal,
		Metrics:      hub.NewMetrics(app.registry),
		MaxLineBytes: cfg.Relay.MaxLineBytes,
		WriteTimeout: cfg.Relay.WriteTimeout,
	})

	// STEP 3: WebSocket gateway
	if cfg.WebSocket.Addr != "" {
		wsHandler, err := websocket.NewHandler(app.hub, websocket.HandlerOptions{
			PingInterval: cfg.WebSocket.PingInterval,
			Connection: websocket.ConnectionOptions{
				BufferSize:   cfg.WebSocket.BufferSize,
				WriteTimeout: cfg.WebSocket.WriteTimeout,
				ReadTimeout:  cfg.WebSocket.ReadTimeout,
				MaxLineBytes: cfg.Relay.MaxLineBytes,
			},
		})
		if err != nil {
			app.closeJournal()
			return nil, fmt.Errorf("failed to create websocket gateway: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle(cfg.WebSocket.Path, wsHandler)
		// no read/write timeouts: sessions are long-lived and the heartbeat polices them
		app.wsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	// STEP 4: Admin API
	if cfg.Admin.Addr != "" {
		apiServer := api.NewServer(app.hub, app.hub, api.Options{
			Journal:  journal,
			RunID:    app.hub.RunID(),
			Gatherer: app.registry,
		})
		app.adminServer = &http.Server{
			Handler:      apiServer,
			ReadTimeout:  cfg.Admin.ReadTimeout,
			WriteTimeout: cfg.Admin.WriteTimeout,
		}
	}

	return app, nil
}

// Hub exposes the relay core
func (app *Application) Hub() *hub.Hub {
	return app.hub
}

// Listen binds every enabled listener. A bind failure releases the ones already bound.
func (app *Application) Listen() error {
	relayAddr := net.JoinHostPort(app.config.Relay.Host, strconv.Itoa(app.config.Relay.Port))

	var err error
	if app.relayLn, err = net.Listen("tcp", relayAddr); err != nil {
		return fmt.Errorf("relay listen on %s: %w", relayAddr, err)
	}
	if app.wsServer != nil {
		if app.wsLn, err = net.Listen("tcp", app.config.WebSocket.Addr); err != nil {
			app.closeListeners()
			return fmt.Errorf("websocket listen on %s: %w", app.config.WebSocket.Addr, err)
		}
	}
	if app.adminServer != nil {
		if app.adminLn, err = net.Listen("tcp", app.config.Admin.Addr); err != nil {
			app.closeListeners()
			return fmt.Errorf("admin listen on %s: %w", app.config.Admin.Addr, err)
		}
	}
	return nil
}

// RelayAddr is the bound relay address, nil before Listen
func (app *Application) RelayAddr() net.Addr {
	return addrOf(app.relayLn)
}

func (app *Application) WebSocketAddr() net.Addr {
	return addrOf(app.wsLn)
}

func (app *Application) AdminAddr() net.Addr {
	return addrOf(app.adminLn)
}

func addrOf(ln net.Listener) net.Addr {
	if ln == nil {
		return nil
	}
	return ln.Addr()
}

// Run serves until ctx is cancelled or a listener fails, then shuts everything
// down: HTTP servers stop accepting, the hub closes every session, the journal
// is flushed and closed.
func (app *Application) Run(ctx context.Context) error {
	if app.relayLn == nil {
		return ErrNotListening
	}
	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start relay hub: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.hub.Serve(gctx, app.relayLn)
	})
	if app.wsServer != nil {
		log.Printf("WebSocket gateway listening: addr=%s path=%s", app.wsLn.Addr(), app.config.WebSocket.Path)
		g.Go(func() error { return serveHTTP(app.wsServer, app.wsLn) })
	}
	if app.adminServer != nil {
		log.Printf("Admin API listening: addr=%s", app.adminLn.Addr())
		g.Go(func() error { return serveHTTP(app.adminServer, app.adminLn) })
	}

	// FUNCTIONAL DISCOVERY: Shutdown coordination runs in reverse dependency order: HTTP → Hub → Journal
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down SoCo relay")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, srv := range []*http.Server{app.wsServer, app.adminServer} {
			if srv == nil {
				continue
			}
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}
		}
		if err := app.hub.Stop(shutdownCtx); err != nil {
			log.Printf("Relay hub shutdown error: %v", err)
		}
		return nil
	})

	err := g.Wait()
	app.closeJournal()
	log.Println("SoCo relay shutdown complete")
	return err
}

func serveHTTP(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

func (app *Application) closeListeners() {
	for _, ln := range []net.Listener{app.relayLn, app.wsLn, app.adminLn} {
		if ln != nil {
			_ = ln.Close()
		}
	}
}

func (app *Application) closeJournal() {
	if app.journal == nil {
		return
	}
	if err := app.journal.Close(); err != nil {
		log.Printf("Journal shutdown error: %v", err)
	}
}
