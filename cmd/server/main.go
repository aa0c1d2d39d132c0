package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/shelfd/shelfd/internal/api"
	"github.com/shelfd/shelfd/internal/auth"
	"github.com/shelfd/shelfd/internal/config"
	"github.com/shelfd/shelfd/internal/events"
	"github.com/shelfd/shelfd/internal/fsadapter/registry"
	"github.com/shelfd/shelfd/internal/logging"
	"github.com/shelfd/shelfd/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		os.Stderr.WriteString("logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logging.Sync()

	db, err := registry.Open(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	store := registry.NewBackendStore(db)
	if err := store.Migrate(cfg.MigrationsDir); err != nil {
		logging.Fatal("migrations failed", zap.Error(err))
	}
	manager := registry.NewManager(store)
	defer manager.Close()

	broadcaster := events.NewBroadcaster()

	server := api.NewServer(api.Options{
		Manager:       manager,
		Store:         store,
		Broadcaster:   broadcaster,
		Verifier:      auth.New(cfg.AuthSecret),
		MaxUploadSize: cfg.MaxUploadSize,
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  120 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}

	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logging.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Error("shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logging.Error("metrics shutdown failed", zap.Error(err))
	}
}
