// Package logout реализует HTTP-обработчик завершения серверной сессии.
package logout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/travel-compliance/internal/http/response"
	"github.com/magabrotheeeer/travel-compliance/internal/lib/sl"
	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

// Request — входные данные для завершения сессии
type Request struct {
	SessionToken string `json:"sessionToken" validate:"required"`
}

// Service описывает интерфейс завершения сессии.
type Service interface {
	Logout(ctx context.Context, sessionToken string) error
}

// Handler управляет HTTP-запросами на выход из системы.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выйти из системы
// @Description Завершает серверную сессию по её токену.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Токен сессии"
// @Success 200 {object} response.Response "Сессия завершена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Сессия не найдена или уже истекла"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.Logout(r.Context(), req.SessionToken); err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			log.Error("session not found or expired")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid or expired token"))
			return
		}
		log.Error("logout failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to logout"))
		return
	}

	log.Info("session closed")
	render.JSON(w, r, response.OK(map[string]any{
		"message": "logged out",
	}))
}
