// Command pinmark runs the element feedback service: it opens the reviewed
// app in a browser, serves the overlay HTTP API that captures and manages
// feedback items, and optionally exposes the agent tools over MCP stdio.
//
// Usage:
//
//	PINMARK_ENABLED=1 pinmark -url http://localhost:3000
//	PINMARK_ENABLED=1 pinmark -config pinmark.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/pinmark/pinmark/capture"
	"github.com/pinmark/pinmark/dbopen"
	"github.com/pinmark/pinmark/kvstore"
	"github.com/pinmark/pinmark/session"
	"github.com/pinmark/pinmark/widget"
)

func main() {
	configPath := flag.String("config", "", "path to pinmark.yaml config file")
	pageURL := flag.String("url", "", "URL of the reviewed app")
	listen := flag.String("listen", "", "overlay API listen address (default :7333)")
	dbPath := flag.String("db", "", "SQLite path for session state (default pinmark.db)")
	remote := flag.String("remote", "", "WebSocket URL of a running Chrome (default: launch local)")
	serveMCP := flag.Bool("mcp", false, "serve the agent tools over MCP stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := &fileConfig{}
	if *configPath != "" {
		var err error
		cfg, err = loadConfigFile(*configPath)
		if err != nil {
			logger.Error("pinmark: config", "error", err)
			os.Exit(1)
		}
	}
	// Flags override file values.
	if *pageURL != "" {
		cfg.PageURL = *pageURL
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DB = *dbPath
	}
	if *remote != "" {
		cfg.Browser.Remote = *remote
	}
	if *serveMCP {
		cfg.MCP = true
	}
	cfg.applyDefaults()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("pinmark: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *fileConfig) error {
	db, err := dbopen.Open(cfg.DB, dbopen.WithMkdirAll())
	if err != nil {
		return err
	}
	defer db.Close()

	kv, err := kvstore.NewSQLite(db)
	if err != nil {
		return err
	}

	core, err := session.New(ctx, kv, pagePath(cfg.PageURL), session.WithLogger(logger))
	if err != nil {
		return err
	}
	defer core.Close()

	if !core.Active() {
		logger.Warn("pinmark: inactive, set " + session.EnvFlag + "=1 to enable capture")
	}

	var widgetOpts []widget.Option

	// Live capture needs a page. Without one the overlay still works; it
	// just captures client-side.
	if cfg.PageURL != "" && core.Active() {
		browser := capture.NewBrowser(capture.BrowserConfig{
			RemoteURL: cfg.Browser.Remote,
			Headless:  cfg.Browser.Headless,
			Stealth:   cfg.Browser.Stealth,
			Logger:    logger,
		})
		if err := browser.Start(ctx); err != nil {
			logger.Warn("pinmark: browser unavailable, live capture disabled", "error", err)
		} else {
			defer browser.Close()
			page, err := browser.OpenPage(ctx, cfg.PageURL)
			if err != nil {
				logger.Warn("pinmark: open page failed, live capture disabled", "error", err)
			} else {
				widgetOpts = append(widgetOpts, widget.WithCapturer(capture.NewCapturer(page, logger)))
			}
		}
	}

	w := widget.New(core, logger, widgetOpts...)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           w.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pinmark: overlay API listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.MCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "pinmark", Version: "1.0.0"}, nil)
		core.RegisterMCP(mcpSrv)
		go func() {
			logger.Info("pinmark: MCP serving on stdio")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("pinmark: mcp", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("pinmark: shutdown", "error", err)
	}
	return nil
}

// pagePath reduces the reviewed app URL to the path the session tracks.
func pagePath(raw string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
