// Package create реализует HTTP-обработчик оформления подписки.
//
// Handler принимает JSON-запрос с email, именем, планом и платёжным токеном,
// валидирует их, вызывает бизнес-логику оформления через сервис и возвращает
// данные созданной подписки в JSON-формате.
//
// В случае ошибок формируются соответствующие HTTP-ответы с описанием проблемы.
package create

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
	services "github.com/magabrotheeeer/travel-compliance/internal/services/subscription"
)

// Request — входные данные для оформления подписки
type Request struct {
	Email        string `json:"email" validate:"required,email"`
	FirstName    string `json:"firstName" validate:"required,max=100"`
	LastName     string `json:"lastName" validate:"required,max=100"`
	PlanType     string `json:"planType" validate:"required"`
	PaymentToken string `json:"paymentToken" validate:"required"`
}

// Service описывает интерфейс бизнес-логики оформления подписки.
type Service interface {
	Create(ctx context.Context, email, firstName, lastName,
		planID, paymentToken string) (*services.CreateResult, error)
}

// Handler управляет HTTP-запросами на оформление подписки.
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
// @Summary Оформить подписку
// @Description Создает подписку в платёжном шлюзе и сохраняет локальную запись.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные подписки"
// @Success 201 {object} response.Response "Подписка оформлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 404 {object} response.ErrorResponse "Неизвестный тарифный план"
// @Failure 409 {object} response.ErrorResponse "Активная подписка уже существует"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного шлюза"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"

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
	log.Info("all fields are validated")

	result, err := h.service.Create(r.Context(), req.Email, req.FirstName,
		req.LastName, req.PlanType, req.PaymentToken)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownPlan):
			log.Error("unknown plan", slog.String("plan", req.PlanType))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("unknown plan"))
		case errors.Is(err, models.ErrSubscriptionExists):
			log.Error("active subscription already exists")
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("active subscription already exists"))
		case errors.Is(err, models.ErrGateway):
			log.Error("billing gateway error", sl.Err(err))
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, response.Error("billing gateway error"))
		default:
			log.Error("failed to create subscription", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create subscription"))
		}
		return
	}

	log.Info("subscription created", slog.String("uid", result.User.UID),
		slog.String("plan", result.Subscription.PlanType))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OK(result))
}
