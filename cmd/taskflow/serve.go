package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskflow/api/internal/app"
	"taskflow/api/internal/config"
	"taskflow/api/internal/logger"
	"taskflow/api/internal/realtime"
	"taskflow/api/internal/search"
	"taskflow/api/internal/store"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	flags := cmd.Flags()
	flags.String("addr", "", "the address the HTTP server listens on")
	flags.String("cors-origin", "", "comma separated list of allowed CORS origins")
	flags.String("meili-url", "", "Meilisearch url; search falls back to the datastore when empty")
	flags.String("redis-url", "", "Redis url for presence and board notifications; disabled when empty")
	flags.Bool("migrate", true, "apply pending migrations before serving")

	mustBindPFlag(settings, "addr", flags.Lookup("addr"))
	mustBindPFlag(settings, "cors.origin", flags.Lookup("cors-origin"))
	mustBindPFlag(settings, "meili.url", flags.Lookup("meili-url"))
	mustBindPFlag(settings, "redis.url", flags.Lookup("redis-url"))
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load(settings)
	log, err := logger.NewLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if cfg.InsecureJWTSecret() {
		log.Warn("jwt.secret is unset or the development default; set TASKFLOW_JWT_SECRET before exposing this server")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatastoreEngine, cfg.DatastoreURI, cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		version, err := store.Migrate(ctx, db, cfg.DatastoreEngine, 0)
		if err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		log.Info("schema ready", zap.Int64("version", version))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewDBStatsCollector(db, "taskflow"))

	dataStore := store.New(db, cfg.DatastoreEngine, log)
	deps := app.Deps{Logger: log, Metrics: app.NewMetrics(registry)}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meili.Close()
	}
	deps.Search = search.NewService(meili, dataStore, log)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := realtime.Connect(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Presence = realtime.NewPresence(client, cfg.PresenceTTL)
		deps.Notifier = realtime.NewNotifier(client)
		log.Info("realtime enabled")
	}

	service := app.New(cfg, dataStore, deps)
	defer service.Close()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, cfg.CORSOrigin, registry, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("taskflow api listening", zap.String("addr", cfg.Addr), zap.String("engine", cfg.DatastoreEngine))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}
	log.Info("server stopped")
	return nil
}
