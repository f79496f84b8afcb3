// Command jobclip runs the job clipper: a headless-or-headful Chrome the
// user captures job postings from, an HTTP API driving the capture popup,
// and an optional MCP tool surface on stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/jobclip/browser"
	"github.com/hazyhaar/jobclip/config"
	"github.com/hazyhaar/jobclip/popup"
	"github.com/hazyhaar/jobclip/relay"
	"github.com/hazyhaar/jobclip/selector"
	"github.com/hazyhaar/jobclip/server"
	"github.com/hazyhaar/jobclip/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch cfg.Log.Level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	if cfg.Auth.Password == "" {
		slog.Error("JOBCLIP_PASSWORD (or auth.password) is required")
		os.Exit(1)
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Store.
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	owner, err := st.EnsureUser(ctx, cfg.Auth.Username, cfg.Auth.Password)
	if err != nil {
		slog.Error("seed account", "error", err)
		os.Exit(1)
	}
	slog.Info("account ready", "username", owner.Username, "id", owner.ID)

	// Browser.
	mgr := browser.NewManager(browser.Config{
		RemoteURL:       cfg.Browser.Remote,
		Headful:         cfg.Browser.Headful,
		NavigateTimeout: cfg.Browser.NavigateTimeout,
		Logger:          logger,
	})
	if err := mgr.Start(ctx); err != nil {
		slog.Error("start browser", "error", err)
		os.Exit(1)
	}
	defer mgr.Close()

	// Relay.
	bus := relay.NewBus(logger)
	fwd := relay.NewForwarder(mgr, relay.WithLogger(logger))
	defer fwd.Close()

	tabs := &tabService{ctx: ctx, mgr: mgr, bus: bus, fwd: fwd, logger: logger}

	// Popup controller.
	ctrl := popup.NewController(popup.Config{
		Bus:    bus,
		Saver:  server.NewRecordSaver(st),
		Tabs:   mgr,
		Logger: logger,
	})
	bus.Subscribe(fwd)
	bus.Subscribe(ctrl)

	// HTTP surface.
	api := server.New(server.Config{
		Store:      st,
		Controller: ctrl,
		Tabs:       tabs,
		Logger:     logger,
	})
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.Router(),
	}

	// Optional MCP tools on stdio.
	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "jobclip",
			Version: "1.0.0",
		}, nil)
		api.RegisterMCP(mcpSrv, owner.ID)
		go func() {
			slog.Info("MCP serving on stdio")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP", "error", err)
			}
		}()
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	tabs.StopAll()
	slog.Info("server stopped")
}

// tabService opens tabs and wires each one up as a capture surface: picker
// session, selector engine, and a forwarder registration under the tab ID.
type tabService struct {
	ctx    context.Context
	mgr    *browser.Manager
	bus    *relay.Bus
	fwd    *relay.Forwarder
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*tabSession
}

type tabSession struct {
	session *browser.Session
	cancel  context.CancelFunc
}

func (t *tabService) OpenTab(ctx context.Context, url string) (string, error) {
	tab, err := t.mgr.OpenTab(ctx, url)
	if err != nil {
		return "", err
	}

	session := browser.NewSession(tab, t.logger)
	if err := session.Start(); err != nil {
		t.mgr.CloseTab(tab.ID)
		return "", err
	}

	eng := selector.NewEngine(selector.EngineConfig{
		Page:   session,
		Sink:   &selector.BusSink{Bus: t.bus, Logger: t.logger},
		Logger: t.logger,
	})
	engCtx, engCancel := context.WithCancel(t.ctx)
	go eng.Run(engCtx)

	t.fwd.RegisterContent(tab.ID, eng.Handle)
	t.mu.Lock()
	if t.sessions == nil {
		t.sessions = make(map[string]*tabSession)
	}
	t.sessions[tab.ID] = &tabSession{session: session, cancel: engCancel}
	t.mu.Unlock()
	return tab.ID, nil
}

func (t *tabService) CloseTab(id string) error {
	t.fwd.UnregisterContent(id)
	t.mu.Lock()
	ts, ok := t.sessions[id]
	if ok {
		delete(t.sessions, id)
	}
	t.mu.Unlock()
	if ok {
		ts.cancel()
		ts.session.Stop()
	}
	return t.mgr.CloseTab(id)
}

func (t *tabService) Activate(id string) error {
	return t.mgr.Activate(id)
}

// StopAll tears down every capture session on shutdown.
func (t *tabService) StopAll() {
	t.mu.Lock()
	sessions := t.sessions
	t.sessions = nil
	t.mu.Unlock()
	for id, ts := range sessions {
		t.fwd.UnregisterContent(id)
		ts.cancel()
		ts.session.Stop()
	}
}
