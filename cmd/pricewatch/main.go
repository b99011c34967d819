// Command pricewatch watches a page's price input fields and serves the
// running total to verification panels.
//
// Usage:
//
//	pricewatch -config pricewatch.yaml      # watch the configured page
//	pricewatch -url https://example.com     # quick single-page watch
//	pricewatch -url https://example.com -mcp  # additionally serve MCP on stdio
package main

import (
	"context"
	"database/sql"
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

	"github.com/anowarzz/pricewatch/audit"
	"github.com/anowarzz/pricewatch/bridge"
	"github.com/anowarzz/pricewatch/config"
	"github.com/anowarzz/pricewatch/internal/browser"
	"github.com/anowarzz/pricewatch/lifecycle"
	"github.com/anowarzz/pricewatch/session"
)

func main() {
	configPath := flag.String("config", "", "path to pricewatch.yaml config file")
	pageURL := flag.String("url", "", "page to watch (overrides config)")
	panelAddr := flag.String("panel", "", "panel HTTP listen address (overrides config)")
	webhookURL := flag.String("webhook", "", "push every update to this URL")
	stdoutSink := flag.Bool("stdout", false, "additionally print updates as JSON lines")
	serveMCP := flag.Bool("mcp", false, "serve MCP tools on stdio")
	remote := flag.String("remote", "", "DevTools websocket URL of an existing Chrome")
	headful := flag.Bool("headful", false, "run Chrome with a visible window")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, options{
		configPath: *configPath,
		pageURL:    *pageURL,
		panelAddr:  *panelAddr,
		webhookURL: *webhookURL,
		stdout:     *stdoutSink,
		mcp:        *serveMCP,
		remote:     *remote,
		headful:    *headful,
	}); err != nil {
		logger.Error("pricewatch: fatal", "error", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	pageURL    string
	panelAddr  string
	webhookURL string
	stdout     bool
	mcp        bool
	remote     string
	headful    bool
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Page.URL == "" {
		fmt.Fprintln(os.Stderr, "usage: pricewatch -config <file> | -url <url>")
		os.Exit(1)
	}

	u, err := url.Parse(cfg.Page.URL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	platform, _ := cfg.PlatformFor(u.Hostname())

	// Optional audit store.
	var auditLog *audit.Logger
	if cfg.Audit.Path != "" {
		db, err := sql.Open("sqlite", cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("open audit db: %w", err)
		}
		defer db.Close()
		auditLog, err = audit.New(db)
		if err != nil {
			return err
		}
		if err := audit.Cleanup(ctx, db, cfg.Audit.RetentionDays); err != nil {
			logger.Warn("pricewatch: audit cleanup", "error", err)
		}
	}

	// Browser.
	mgr := browser.NewManager(browser.Config{
		Remote:  cfg.Browser.Remote,
		Stealth: cfg.Browser.Stealth,
		Headful: cfg.Browser.Headful,
		Logger:  logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	page, err := mgr.Open(ctx, cfg.Page.URL)
	if err != nil {
		return err
	}
	defer page.Close()

	// Panel bridge. The server shares the session guard so it refuses
	// requests once the session deactivates.
	guard := lifecycle.NewGuard(logger)
	srv := bridge.NewServer(guard, logger)

	sinks := []bridge.Sink{srv}
	if cfg.Panel.Webhook != "" {
		sinks = append(sinks, bridge.NewWebhook(cfg.Panel.Webhook, bridge.WithWebhookLogger(logger)))
	}
	if opts.stdout {
		sinks = append(sinks, bridge.NewStdout(nil))
	}

	sess := session.New(session.Config{
		PageURL:      cfg.Page.URL,
		Page:         page,
		Surface:      page.Surface(),
		ScanFrames:   platform.ScanFrames,
		ReinitDelays: config.Durations(platform.ReinitDelays),
		Sinks:        sinks,
		Audit:        auditLog,
		Guard:        guard,
		Logger:       logger,
	})

	httpSrv := &http.Server{Addr: cfg.Panel.Addr, Handler: srv.Routes()}
	go func() {
		logger.Info("pricewatch: panel listening", "addr", cfg.Panel.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("pricewatch: panel server", "error", err)
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutCtx)
	}()

	if opts.mcp {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "pricewatch",
			Version: "1.0.0",
		}, nil)
		srv.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("pricewatch: mcp", "error", err)
			}
		}()
	}

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	<-ctx.Done()
	sess.Deactivate("shutdown")
	return nil
}

func resolveConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	if opts.configPath != "" {
		var err error
		cfg, err = config.LoadFile(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}

	if opts.pageURL != "" {
		cfg.Page.URL = opts.pageURL
	}
	if opts.panelAddr != "" {
		cfg.Panel.Addr = opts.panelAddr
	}
	if opts.webhookURL != "" {
		cfg.Panel.Webhook = opts.webhookURL
	}
	if opts.remote != "" {
		cfg.Browser.Remote = opts.remote
	}
	if opts.headful {
		cfg.Browser.Headful = true
	}
	return cfg, nil
}
