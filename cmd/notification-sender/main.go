package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/travel-compliance/internal/config"
	"github.com/magabrotheeeer/travel-compliance/internal/lib/sl"
	"github.com/magabrotheeeer/travel-compliance/internal/lib/smtp"
	"github.com/magabrotheeeer/travel-compliance/internal/models"
	"github.com/magabrotheeeer/travel-compliance/internal/rabbitmq"
	services "github.com/magabrotheeeer/travel-compliance/internal/services/sender"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting notification-sender", slog.String("env", cfg.Env))

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("success to connect to RabbitMQ", slog.String("URL", cfg.RabbitMQURL))
	defer func() {
		_ = conn.Close()
	}()

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		logger.Error("failed to setup RabbitMQ channel", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("success to setup RabbitMQ channel")
	defer func() {
		_ = ch.Close()
	}()

	transport := smtp.NewTransport(cfg, logger)
	senderService := services.NewSenderService(logger, transport)

	handler := func(body []byte) error {
		var message models.NotificationMessage
		if err := json.Unmarshal(body, &message); err != nil {
			return fmt.Errorf("error unmarshalling message: %w", err)
		}
		switch message.Kind {
		case models.NotifyPaymentFailed:
			return senderService.SendPaymentFailed(body)
		case models.NotifySubscriptionCanceled:
			return senderService.SendSubscriptionCanceled(body)
		default:
			logger.Info("ignoring unknown notification kind", slog.String("kind", message.Kind))
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, queue := range rabbitmq.GetNotificationQueues() {
		if err := rabbitmq.ConsumerMessage(ctx, ch, queue.QueueName, handler); err != nil {
			logger.Error("failed to start consumer", sl.Err(err))
			os.Exit(1)
		}
	}

	<-ctx.Done()

	logger.Info("notification sender shutting down gracefully")
}
