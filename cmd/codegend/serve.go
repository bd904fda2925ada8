package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"codegend/internal/cancel"
	"codegend/internal/common/fsutil"
	"codegend/internal/config"
	"codegend/internal/health"
	"codegend/internal/httpapi"
	"codegend/internal/llm"
	"codegend/internal/logging"
	"codegend/internal/manager"
	"codegend/internal/naming"
	"codegend/internal/registry"
	"codegend/internal/store"
)

var (
	serveAddr        string
	serveDB          string
	serveFrontend    string
	serveMaxSessions int
	serveCORS        string
	servePretty      bool
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE:  runServe,
	}
	addServeFlags(cmd)
	return cmd
}

func addServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&serveAddr, "addr", "", "HTTP listen address, e.g. :8000")
	f.StringVar(&serveDB, "db", "", "SQLite database path")
	f.StringVar(&serveFrontend, "frontend", "", "Directory with the web frontend (index.html)")
	f.IntVar(&serveMaxSessions, "max-sessions", 0, "Max concurrently streaming generations (0=unlimited)")
	f.StringVar(&serveCORS, "cors-origins", "", "Comma-separated allowed CORS origins")
	f.BoolVar(&servePretty, "pretty", false, "Human-readable console logs")
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Lookup("addr") == nil {
		return
	}
	if f.Changed("addr") {
		cfg.Addr = serveAddr
	}
	if f.Changed("db") {
		cfg.DBPath = serveDB
	}
	if f.Changed("frontend") {
		cfg.FrontendDir = serveFrontend
	}
	if f.Changed("max-sessions") {
		cfg.MaxSessions = serveMaxSessions
	}
	if f.Changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(serveCORS)
	}
	if f.Changed("pretty") {
		cfg.LogPretty = servePretty
	}
}

// app is the wired service.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	db      *store.DB
	client  *llm.Client
	manager *manager.Manager
	handler http.Handler
}

func buildApp(cfg config.Config, log zerolog.Logger) (*app, error) {
	dbPath, err := fsutil.DataFile(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := llm.NewClient(llm.Config{
		Host:           cfg.OllamaHost,
		ConnectTimeout: config.Seconds(cfg.ConnectTimeoutSec),
		ReadTimeout:    config.Seconds(cfg.ReadTimeoutSec),
	})
	models := registry.New(client, cfg.Model)
	gauge := &health.Gauge{}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Store:   db,
		Backend: client,
		Namer: naming.New(naming.Config{
			Backend: client,
			Model:   models.Current,
			Timeout: config.Seconds(cfg.NamingTimeoutSec),
			Logger:  log.With().Str("component", "naming").Logger(),
		}),
		Models:  models,
		Cancels: cancel.NewRegistry(),
		Gauge:   gauge,
		Health: health.NewMonitor(health.MonitorConfig{
			Gauge:   gauge,
			Backend: client.Ping,
			Store:   db.Ping,
			TTL:     config.Seconds(cfg.HealthTTLSec),
		}),
		Logger:        log.With().Str("component", "manager").Logger(),
		SendTimeout:   config.Seconds(cfg.SendTimeoutSec),
		ProgressEvery: cfg.ProgressEvery,
		MaxSessions:   cfg.MaxSessions,
		MaxWait:       config.Seconds(cfg.MaxWaitSec),
		HistoryLimit:  cfg.HistoryLimit,
	})

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetDefaultLogLevel(requestLevel(cfg.LogLevel))
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetWSWriteTimeout(config.Seconds(cfg.SendTimeoutSec))
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins,
		[]string{"GET", "POST", "DELETE", "OPTIONS"}, []string{"*"})
	if dir, ok, err := fsutil.StaticDir(cfg.FrontendDir); err != nil {
		log.Warn().Err(err).Msg("frontend dir")
	} else if ok {
		httpapi.SetFrontendDir(dir)
	} else if dir != "" {
		log.Warn().Str("dir", dir).Msg("frontend dir has no index.html; static serving disabled")
	}

	return &app{cfg: cfg, log: log, db: db, client: client, manager: mgr, handler: httpapi.NewMux(mgr)}, nil
}

// requestLevel maps the process log level onto the HTTP request log levels.
func requestLevel(level string) string {
	switch logging.ParseLevel(level) {
	case zerolog.DebugLevel:
		return "debug"
	case zerolog.WarnLevel, zerolog.ErrorLevel, zerolog.FatalLevel:
		return "error"
	case zerolog.Disabled:
		return "off"
	}
	return "info"
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := a.client.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("ollama_host", cfg.OllamaHost).Msg("ollama not reachable; generations will fail until it is")
	}
	cancelPing()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Addr, Handler: a.handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", cfg.Model).Str("ollama_host", cfg.OllamaHost).Msg("codegend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.ShutdownSec))
	defer cancel()
	// Sessions persist their partial output before connections are torn down.
	if err := a.manager.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("sessions still running at shutdown deadline")
	}
	cancelBase()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	log.Info().Msg("server stopped")
	return nil
}
