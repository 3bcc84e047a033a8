// Package paymentprovider реализует клиент платёжного шлюза:
// создание клиентов и подписок, управление их статусами и чтение
// точек продаж. Все вызовы исходящие, аутентификация по bearer-токену.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

// Client инкапсулирует доступ к HTTP API платёжного шлюза.
type Client struct {
	apiURL      string
	accessToken string
	locationID  string
	httpClient  *http.Client
}

// NewClient создаёт новый клиент шлюза.
func NewClient(apiURL, accessToken, locationID string, timeout time.Duration) *Client {
	return &Client{
		apiURL:      strings.TrimRight(apiURL, "/"),
		accessToken: accessToken,
		locationID:  locationID,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// LocationID возвращает точку продаж, с которой работает клиент.
func (c *Client) LocationID() string {
	return c.locationID
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do выполняет запрос и декодирует ответ в out. Любой статус вне 2xx
// переводится в ошибку, обернутую в models.ErrGateway; текст ошибки шлюза
// передается дальше, токен авторизации — никогда.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrGateway, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var errResp errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && len(errResp.Errors) > 0 {
			return fmt.Errorf("%w: %s: %s", models.ErrGateway, errResp.Errors[0].Code, errResp.Errors[0].Detail)
		}
		return fmt.Errorf("%w: unexpected status %s", models.ErrGateway, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", models.ErrGateway, err)
	}
	return nil
}

// CreateCustomer создает клиента в шлюзе.
func (c *Client) CreateCustomer(ctx context.Context, reqParams CreateCustomerRequest) (*Customer, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/customers", reqParams)
	if err != nil {
		return nil, err
	}
	var resp customerResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Customer, nil
}

// CreateSubscription создает подписку в шлюзе с локальной ценой
// и переданным платёжным токеном.
func (c *Client) CreateSubscription(ctx context.Context, reqParams CreateSubscriptionRequest) (*Subscription, error) {
	if reqParams.LocationID == "" {
		reqParams.LocationID = c.locationID
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions", reqParams)
	if err != nil {
		return nil, err
	}
	var resp subscriptionResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Subscription, nil
}

// UpdateSubscription изменяет подписку в шлюзе.
func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID string, reqParams UpdateSubscriptionRequest) (*Subscription, error) {
	req, err := c.newRequest(ctx, http.MethodPut, "/subscriptions/"+subscriptionID, reqParams)
	if err != nil {
		return nil, err
	}
	var resp subscriptionResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Subscription, nil
}

// CancelSubscription отменяет подписку в шлюзе.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions/"+subscriptionID+"/cancel", nil)
	if err != nil {
		return nil, err
	}
	var resp subscriptionResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Subscription, nil
}

// PauseSubscription приостанавливает подписку в шлюзе.
func (c *Client) PauseSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions/"+subscriptionID+"/pause", nil)
	if err != nil {
		return nil, err
	}
	var resp subscriptionResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Subscription, nil
}

// ResumeSubscription возобновляет приостановленную подписку в шлюзе.
func (c *Client) ResumeSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions/"+subscriptionID+"/resume", nil)
	if err != nil {
		return nil, err
	}
	var resp subscriptionResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Subscription, nil
}

// GetLocation возвращает точку продаж по ID.
func (c *Client) GetLocation(ctx context.Context, locationID string) (*Location, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/locations/"+locationID, nil)
	if err != nil {
		return nil, err
	}
	var resp locationResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp.Location, nil
}
