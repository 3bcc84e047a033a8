// Package app собирает приложение: хранилище, кеш, очередь сообщений,
// клиент платёжного шлюза, сервисы и HTTP-сервер.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/travel-compliance/internal/cache"
	"github.com/magabrotheeeer/travel-compliance/internal/config"
	"github.com/magabrotheeeer/travel-compliance/internal/lib/jwt"
	"github.com/magabrotheeeer/travel-compliance/internal/lib/sl"
	"github.com/magabrotheeeer/travel-compliance/internal/migrations"
	"github.com/magabrotheeeer/travel-compliance/internal/paymentprovider"
	"github.com/magabrotheeeer/travel-compliance/internal/rabbitmq"
	authservice "github.com/magabrotheeeer/travel-compliance/internal/services/auth"
	subservice "github.com/magabrotheeeer/travel-compliance/internal/services/subscription"
	webhookservice "github.com/magabrotheeeer/travel-compliance/internal/services/webhook"
	"github.com/magabrotheeeer/travel-compliance/internal/storage/repository"
)

// App объединяет HTTP-сервер и ресурсы, которые нужно закрыть при остановке.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *repository.Storage
	rabbitCh *amqp.Channel
	rabbit   *amqp.Connection
}

// New собирает приложение по конфигурации.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	rabbitCh, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(rabbitCh)

	gatewayClient := paymentprovider.NewClient(cfg.Billing.APIURL, cfg.Billing.AccessToken,
		cfg.Billing.LocationID, cfg.Billing.Timeout)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	subscriptionService := subservice.NewSubscriptionService(db, gatewayClient, cacheRedis, logger)
	authService := authservice.NewAuthService(db, subscriptionService, jwtMaker, cfg.TokenTTL, logger)
	webhookService := webhookservice.NewWebhookService(db, cacheRedis, publisher, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, authService, subscriptionService, webhookService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		rabbitCh: rabbitCh,
		rabbit:   rabbitConn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.rabbitCh.Close(); cerr != nil {
			a.logger.Warn("failed to close rabbitmq channel", sl.Err(cerr))
		}
		if cerr := a.rabbit.Close(); cerr != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(cerr))
		}
		if cerr := a.db.DB.Close(); cerr != nil {
			a.logger.Warn("failed to close database", sl.Err(cerr))
		}
		return err
	}
}
