package app

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/travel-compliance/internal/config"
	"github.com/magabrotheeeer/travel-compliance/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/travel-compliance/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/travel-compliance/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/travel-compliance/internal/http/handlers/auth/verify"
	"github.com/magabrotheeeer/travel-compliance/internal/http/handlers/health"
	"github.com/magabrotheeeer/travel-compliance/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/travel-compliance/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/travel-compliance/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/travel-compliance/internal/http/handlers/subscription/current"
	"github.com/magabrotheeeer/travel-compliance/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/travel-compliance/internal/services/auth"
	subservice "github.com/magabrotheeeer/travel-compliance/internal/services/subscription"
	webhookservice "github.com/magabrotheeeer/travel-compliance/internal/services/webhook"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	authService *authservice.AuthService,
	subscriptionService *subservice.SubscriptionService,
	webhookService *webhookservice.WebhookService) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)
		r.Get("/verify", verify.New(logger, authService).ServeHTTP)
		r.Post("/logout", logout.New(logger, authService).ServeHTTP)
		r.Post("/subscriptions", create.New(logger, subscriptionService).ServeHTTP)
		r.Get("/health", health.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/subscriptions/current", current.New(logger, subscriptionService).ServeHTTP)
			r.Get("/payments/list", paymentlist.New(logger, subscriptionService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, webhookService, cfg.Billing.WebhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
