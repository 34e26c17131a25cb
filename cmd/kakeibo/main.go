package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/cache"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	apphttp "kakeibo/internal/http"
	"kakeibo/internal/log"
	"kakeibo/internal/ports"
	"kakeibo/internal/services"
)

// waiter is implemented by tombstone recorders that keep writes in flight.
type waiter interface {
	ports.TombstoneRecorder
	Wait()
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting kakeibo server", log.FieldOperation, log.OpStartup, log.FieldBackend, cfg.DataBackend)

	backend := cli.InitBackend(context.Background(), logger, cfg)
	store := backend.Store

	recorder, amqpClient := newRecorder(cfg, store, logger)

	analytics := cli.NewAnalytics(cfg, store, logger)
	categories := services.NewCategoryService(store, store, recorder, logger)
	categories.OnChange(analytics.Invalidate)
	ledger := services.NewLedgerService(store, nil, logger)
	ledger.OnChange(analytics.Invalidate)
	seeder := services.NewSeeder(store, store, store, store, services.SeederConfig{
		Window:          cfg.NewUserWindow,
		HonorTombstones: cfg.SeedHonorTombstones,
	}, logger)

	cacheManager := cache.NewManager(logger)
	if c := analytics.Cache(); c != nil {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(time.Minute)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:       ":" + cfg.Port,
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow,
	}, apphttp.Services{
		Seeder:     seeder,
		Categories: categories,
		Analytics:  analytics,
		Ledger:     ledger,
		Store:      store,
	}, logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	shutdownDone := cli.ShutdownOnCancel(ctx, logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	logger.Info("Listening", "port", cfg.Port, "new_user_window", cfg.NewUserWindow.String(), "honor_tombstones", cfg.SeedHonorTombstones)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown starts; handlers may still
	// be running until shutdownDone closes.
	<-shutdownDone

	// Deletions already answered must still get their tombstones.
	recorder.Wait()
	cacheManager.Stop()
	if amqpClient != nil {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err.Error())
		}
	}
	if err := backend.Close(); err != nil {
		logger.Warn("Failed to close data backend", log.FieldError, err.Error())
	}
	logger.Info("Server stopped gracefully")
}

// newRecorder publishes tombstones to the broker when AMQP is configured and
// writes them in-process otherwise.
func newRecorder(cfg *config.Config, store ports.TombstoneStore, logger *log.Logger) (waiter, *amqp.Client) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled, recording tombstones in process")
		return services.NewAsyncRecorder(store, cfg.TombstoneTimeout, logger), nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		// The broker being down must not stop deletions, so fall back.
		logger.Warn("AMQP unavailable, recording tombstones in process",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeNetwork)
		return services.NewAsyncRecorder(store, cfg.TombstoneTimeout, logger), nil
	}
	logger.Info("Publishing tombstones to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return amqp.NewRecorder(client, cfg.TombstoneTimeout, logger), client
}
