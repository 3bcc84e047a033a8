// Package verify реализует HTTP-обработчик проверки JWT токена.
//
// Обработчик читает токен из заголовка Authorization, проверяет его через
// сервис аутентификации и возвращает актуальные данные пользователя из базы.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/travel-compliance/internal/http/response"
	"github.com/magabrotheeeer/travel-compliance/internal/lib/sl"
	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

// Service описывает интерфейс проверки токена.
type Service interface {
	Verify(ctx context.Context, token string) (*models.UserSummary, error)
}

// Handler управляет HTTP-запросами на проверку токена.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Проверить токен
// @Description Проверяет JWT из заголовка Authorization и возвращает данные пользователя.
// @Tags Auth
// @Produce  json
// @Param Authorization header string true "Bearer {token}"
// @Success 200 {object} response.Response "Токен валиден"
// @Failure 401 {object} response.ErrorResponse "Токен отсутствует, невалиден или истек"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /verify [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.verify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		log.Error("missing or invalid authorization header")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("missing or invalid authorization header"))
		return
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

	user, err := h.service.Verify(r.Context(), tokenStr)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidToken):
			log.Error("invalid or expired token")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid or expired token"))
		case errors.Is(err, models.ErrUserNotFound):
			log.Error("user not found")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("verification failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to verify token"))
		}
		return
	}

	log.Info("token verified", slog.String("uid", user.UID))
	render.JSON(w, r, response.OK(map[string]any{
		"user": user,
	}))
}
