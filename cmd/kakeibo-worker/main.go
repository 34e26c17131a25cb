package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/cli"
	"kakeibo/internal/log"
	"kakeibo/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Info("Starting kakeibo-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the tombstone worker", log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Worker is using the memory backend, tombstones will not be shared with the server")
	}

	backend := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close data backend", log.FieldError, err.Error())
		}
	}()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeNetwork)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	w := worker.NewTombstoneWorker(backend.Store, cfg.TombstoneTimeout, logger)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, client) }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err.Error(), log.FieldOperation, log.OpConsume)
		}
		cancel()
	case <-ctx.Done():
		cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) { <-done })
	}
}
