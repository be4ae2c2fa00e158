package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/sound-archive/pkg/soundarchive"
	"github.com/tendant/sound-archive/pkg/soundarchive/api"
	"github.com/tendant/sound-archive/pkg/soundarchive/config"
	"github.com/tendant/sound-archive/pkg/soundarchive/metrics"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	ctx := context.Background()
	options := []soundarchive.Option{soundarchive.WithLogger(logger)}

	var collector *metrics.Collector
	if serverConfig.HTTP.EnableMetrics {
		collector = metrics.New()
		options = append(options, soundarchive.WithEventSink(collector))
	}

	svc, clients, err := serverConfig.BuildService(ctx, options...)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	routerConfig := api.RouterConfig{
		Service:        svc,
		Files:          serverConfig.FilesHandler(clients.Store),
		FilesRoot:      serverConfig.Storage.FilesRoot,
		MaxUploadBytes: serverConfig.MaxUploadBytes(),
		RequestTimeout: serverConfig.HTTP.RequestTimeout,
		AllowedOrigins: serverConfig.HTTP.AllowedOrigins,
		RateLimit: api.RateLimitConfig{
			RequestsPerMinute: serverConfig.HTTP.RateLimitPerMin,
			Burst:             serverConfig.HTTP.RateLimitBurst,
		},
	}
	if collector != nil {
		routerConfig.Instrument = collector.Middleware
		routerConfig.Metrics = collector.Handler()
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           api.NewRouter(routerConfig),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sound archive server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"identity", serverConfig.Backend.IdentityMode,
			"storage", serverConfig.Storage.Type,
			"postgres", serverConfig.UsesPostgres(),
			"admin_enabled", svc.AdminEnabled(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exiting")
	return nil
}
