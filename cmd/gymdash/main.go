package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/ccugym/gymdash/internal/api"
	"github.com/ccugym/gymdash/internal/backend"
	"github.com/ccugym/gymdash/internal/config"
	"github.com/ccugym/gymdash/internal/metrics"
	"github.com/ccugym/gymdash/internal/session"
	"github.com/ccugym/gymdash/internal/views"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gymdash failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml")
	addr := flag.String("addr", "", "listen address (host:port)")
	apiURL := flag.String("api", "", "gym backend base URL")
	flag.Parse()

	// Create log buffer and install log capture
	logBuf := api.NewLogBuffer(500)
	api.InstallLogCapture(logBuf, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if *addr != "" {
		if err := cfg.SetAddr(*addr); err != nil {
			return err
		}
	}
	if *apiURL != "" {
		cfg.Backend.BaseURL = *apiURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := session.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	defer kv.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, m)
	store := session.NewStore(kv, client, m)
	bus := views.NewBus()
	history := api.NewUpdateHistory(100)

	shell := views.NewShell(views.Deps{
		Backend:  client,
		Store:    store,
		Config:   *cfg,
		Metrics:  m,
		Bus:      bus,
		OnUpdate: history.Add,
	})

	server := api.NewServer(api.Options{
		Shell:    shell,
		Bus:      bus,
		Logs:     logBuf,
		History:  history,
		Metrics:  m,
		Gatherer: reg,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("gymdash starting",
		"addr", httpServer.Addr,
		"backend", client.BaseURL(),
		"storage", cfg.Storage.Driver,
		"config", cfg.ConfigPath,
	)

	if err := shell.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		server.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		shell.Stop()
		return err
	})

	return g.Wait()
}

// loadConfig reads the explicit path, or the first config found on the
// search path, falling back to defaults when there is none.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config: %w", err)
		}
		slog.Info("no config file found, using defaults")
		cfg = config.Default()
	}
	return cfg, nil
}
