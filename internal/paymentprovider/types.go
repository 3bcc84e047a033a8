package paymentprovider

import "time"

// Money представляет денежную сумму в минимальных единицах валюты.
type Money struct {
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
}

// CreateCustomerRequest представляет запрос на создание клиента в шлюзе.
// ReferenceID связывает клиента шлюза с локальным пользователем.
type CreateCustomerRequest struct {
	GivenName    string `json:"given_name"`
	FamilyName   string `json:"family_name"`
	EmailAddress string `json:"email_address"`
	ReferenceID  string `json:"reference_id"`
}

// Customer представляет клиента в платёжном шлюзе.
type Customer struct {
	ID           string    `json:"id"`
	GivenName    string    `json:"given_name"`
	FamilyName   string    `json:"family_name"`
	EmailAddress string    `json:"email_address"`
	ReferenceID  string    `json:"reference_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateSubscriptionRequest представляет запрос на создание подписки.
// PriceOverride задает локально-авторитетную цену: цена из каталога
// шлюза не используется.
type CreateSubscriptionRequest struct {
	LocationID    string `json:"location_id"`
	CustomerID    string `json:"customer_id"`
	PlanID        string `json:"plan_id"`
	PaymentToken  string `json:"payment_token"`
	PriceOverride Money  `json:"price_override_money"`
}

// UpdateSubscriptionRequest представляет запрос на изменение подписки.
type UpdateSubscriptionRequest struct {
	Status string `json:"status,omitempty"`
	PlanID string `json:"plan_id,omitempty"`
}

// Subscription представляет подписку в платёжном шлюзе.
type Subscription struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	PlanID     string    `json:"plan_id"`
	Status     string    `json:"status"`
	Price      Money     `json:"price_override_money"`
	CreatedAt  time.Time `json:"created_at"`
}

// Location представляет точку продаж в шлюзе.
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// customerResponse — обертки ответов шлюза: объект приходит
// вложенным в одноименное поле.
type customerResponse struct {
	Customer Customer `json:"customer"`
}

type subscriptionResponse struct {
	Subscription Subscription `json:"subscription"`
}

type locationResponse struct {
	Location Location `json:"location"`
}

// errorResponse — тело ошибки шлюза.
type errorResponse struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}
