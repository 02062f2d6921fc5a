package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/venuebook/internal/config"
	"github.com/joshua-takyi/venuebook/internal/connect"
	"github.com/joshua-takyi/venuebook/internal/notify"
	"github.com/joshua-takyi/venuebook/internal/obs"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("Notification worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Notification worker exited")
}

func run(cfg *config.WorkerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, "venuebook-notifier", cfg.Environment, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			logger.Error("Error flushing traces", "error", err)
		}
	}()

	conn, err := connect.RabbitMQConnect(cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	mailer := notify.NewMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailFrom, logger)
	consumer, err := notify.NewConsumer(conn, mailer, notify.ConsumerOptions{
		Exchange:    cfg.NotifyExchange,
		Queue:       cfg.NotifyQueue,
		Prefetch:    cfg.NotifyPrefetch,
		MaxAttempts: cfg.NotifyMaxAttempts,
		RetryDelay:  cfg.NotifyRetryDelay,
	}, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	return consumer.Run(ctx)
}
