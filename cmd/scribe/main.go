package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/portal_scribe/internal/api"
	"github.com/dgnsrekt/portal_scribe/internal/browser"
	"github.com/dgnsrekt/portal_scribe/internal/capture"
	"github.com/dgnsrekt/portal_scribe/internal/cdp"
	"github.com/dgnsrekt/portal_scribe/internal/config"
	"github.com/dgnsrekt/portal_scribe/internal/correlate"
	"github.com/dgnsrekt/portal_scribe/internal/msgchan"
	"github.com/dgnsrekt/portal_scribe/internal/netutil"
	"github.com/dgnsrekt/portal_scribe/internal/notify"
	"github.com/dgnsrekt/portal_scribe/internal/relay"
	"github.com/dgnsrekt/portal_scribe/internal/rules"
	"github.com/dgnsrekt/portal_scribe/internal/scripts"
	"github.com/dgnsrekt/portal_scribe/internal/session"
	"github.com/dgnsrekt/portal_scribe/internal/storage"
)

const bodyChannelTimeout = 3 * time.Second

func main() {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		slog.Debug("log directory creation failed", "error", err)
	}

	logWriter := &lumberjack.Logger{
		Filename:   "logs/scribe.log",
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting portal scribe")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Configuration loaded",
		"cdp_address", cfg.CDPAddress,
		"cdp_port", cfg.CDPPort,
		"api_bind", cfg.APIBindAddr,
		"data_dir", cfg.DataDir,
		"rules_path", cfg.RulesPath,
		"tab_url_filter", cfg.TabURLFilter,
		"reload_on_attach", cfg.ReloadOnAttach,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	table, err := rules.Load(cfg.RulesPath)
	if err != nil {
		slog.Error("Failed to load rule table", "error", err, "path", cfg.RulesPath)
		os.Exit(1)
	}
	slog.Info("Rule table loaded", "rules", table.Len())

	var launcher *browser.Launcher
	if cfg.LaunchBrowser {
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   cfg.StartURL,
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("Failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	store := capture.NewStore(capture.Config{MaxBodyBytes: cfg.MaxBodyBytes})
	defer store.Close()

	bodyChannel := msgchan.Pipe(capture.NewBodyHandler(store), bodyChannelTimeout)
	correlator := correlate.New(correlate.NewChannelBodySource(bodyChannel), table)

	broker := relay.NewBroker()

	writerRegistry := storage.NewWriterRegistry(cfg.DataDir, cfg.BufferSize, cfg.MaxFileSizeMB)
	defer func() {
		if err := writerRegistry.Close(); err != nil {
			slog.Warn("Writer close failed", "error", err)
		}
	}()

	exportStore, err := scripts.NewStore(cfg.ScriptsDir)
	if err != nil {
		slog.Error("Failed to open scripts store", "error", err, "dir", cfg.ScriptsDir)
		os.Exit(1)
	}

	tabRegistry := cdp.NewTabRegistry()
	svc := session.NewService(correlator, broker, writerRegistry, exportStore, table, tabRegistry, cfg.HistoryLimit)

	cdpClient := cdp.NewClient(cfg, store, svc, tabRegistry)
	if err := cdpClient.Connect(ctx); err != nil {
		slog.Error("Failed to connect to browser", "error", err)
		slog.Info("Make sure a browser is running with remote debugging enabled")
		slog.Info("Or set SCRIBE_LAUNCH_BROWSER=true to launch one")
		os.Exit(1)
	}
	defer func() {
		if err := cdpClient.Close(); err != nil {
			slog.Warn("CDP close failed", "error", err)
		}
	}()

	bindAddr, err := netutil.SelectBindAddr(cfg.APIBindAddr, cfg.APIBindFallbacks, true)
	if err != nil {
		slog.Error("Failed to select API bind address", "error", err)
		os.Exit(1)
	}

	apiServer := &http.Server{
		Addr:    bindAddr,
		Handler: api.NewServer(svc, broker),
	}
	go func() {
		slog.Info("API server listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
			sigCh <- syscall.SIGTERM
		}
	}()

	slog.Info("Scribe running", "tabs", cdpClient.GetTabCount(), "output_dir", cfg.DataDir)
	slog.Info("Press Ctrl+C to stop")

	<-sigCh
	slog.Info("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API server shutdown failed", "error", err)
	}

	if cfg.NotifyEndpoint != "" {
		total, matched := svc.Counts()
		if err := notify.SessionSummary(shutdownCtx, http.DefaultClient, cfg.NotifyEndpoint, total, matched); err != nil {
			slog.Warn("Session summary notification failed", "error", err)
		}
	}

	slog.Info("Scribe stopped")
}
