package login

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/travel-compliance/internal/models"
	services "github.com/magabrotheeeer/travel-compliance/internal/services/auth"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Login(ctx context.Context, email, rawPassword string,
	meta models.SessionMeta) (*services.AuthResult, error) {
	args := m.Called(ctx, email, rawPassword, meta)
	resp, _ := args.Get(0).(*services.AuthResult)
	return resp, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	svcMock := new(ServiceMock)
	logger := newNoopLogger()

	handler := New(logger, svcMock)

	okResult := &services.AuthResult{
		User:         &models.UserSummary{UID: "uid-1", Email: "a@x.com", SubscriptionActive: true},
		Token:        "jwt-token",
		SessionToken: "session-token",
		Subscription: &models.SubscriptionSummary{PlanType: "pro-monthly", Status: "ACTIVE"},
	}

	tests := []struct {
		name           string
		requestBody    interface{}
		mockResp       *services.AuthResult
		mockErr        error
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "valid login",
			requestBody:    Request{Email: "a@x.com", Password: "password1"},
			mockResp:       okResult,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "validation error - missing password",
			requestBody:    Request{Email: "a@x.com"},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "field Password is a required field",
		},
		{
			name:           "invalid credentials",
			requestBody:    Request{Email: "a@x.com", Password: "wrong"},
			mockErr:        models.ErrInvalidCredentials,
			wantStatusCode: http.StatusUnauthorized,
			wantError:      "invalid email or password",
		},
		{
			name:           "service error",
			requestBody:    Request{Email: "a@x.com", Password: "password1"},
			mockErr:        errors.New("db down"),
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "failed to login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svcMock.ExpectedCalls = nil
			svcMock.Calls = nil

			if tt.mockResp != nil || tt.mockErr != nil {
				r := tt.requestBody.(Request)
				svcMock.On("Login", mock.Anything, r.Email, r.Password, mock.Anything).
					Return(tt.mockResp, tt.mockErr).Once()
			}

			var bodyBytes []byte
			var err error
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				bodyBytes, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))

			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			err = json.NewDecoder(rec.Body).Decode(&got)
			assert.NoError(t, err)

			if tt.wantError != "" {
				assert.Equal(t, false, got["success"])
				errStr, ok := got["error"].(string)
				assert.True(t, ok)
				assert.Equal(t, tt.wantError, errStr)
			} else {
				assert.Equal(t, true, got["success"])
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, "jwt-token", data["token"])
				sub, ok := data["subscription"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, "ACTIVE", sub["status"])
			}

			if tt.mockResp != nil || tt.mockErr != nil {
				svcMock.AssertExpectations(t)
			}
		})
	}
}
