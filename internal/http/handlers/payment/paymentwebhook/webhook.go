// Package paymentwebhook реализует HTTP-обработчик вебхуков платёжного шлюза.
//
// Обработчик проверяет HMAC-подпись тела запроса, разбирает событие и передает
// его сервису сверки. Любой исход сверки подтверждается шлюзу статусом 200,
// чтобы не провоцировать шторм повторных доставок; 400 возвращается только
// при неверной подписи или некорректном JSON.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/travel-compliance/internal/lib/sl"
	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

// Service описывает интерфейс сверки событий шлюза.
type Service interface {
	Process(ctx context.Context, event *models.GatewayEvent) error
}

// Handler управляет HTTP-запросами вебхуков платёжного шлюза.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string
}

// New создает новый Handler с переданными логгером, сервисом и секретом подписи.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP godoc
// @Summary Вебхук платёжного шлюза
// @Description Принимает события шлюза, проверяет подпись и применяет их к локальному состоянию.
// @Tags Payments
// @Accept  json
// @Param X-Api-Signature header string true "HMAC-SHA256 подпись тела (base64)"
// @Success 200 "Событие принято"
// @Failure 400 "Неверная подпись или некорректный JSON"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Проверка подписи (в заголовке X-Api-Signature)
	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var event models.GatewayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Ошибки сверки логируются, но шлюзу всегда подтверждаем прием: повторную
	// доставку выполняет сам шлюз.
	if err := h.service.Process(r.Context(), &event); err != nil {
		log.Error("failed to process webhook event", sl.Err(err),
			slog.String("type", event.Type), slog.String("event_id", event.EventID))
	} else {
		log.Info("webhook processed",
			slog.String("type", event.Type), slog.String("event_id", event.EventID))
	}

	w.WriteHeader(http.StatusOK)
}
