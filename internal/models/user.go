// Package models содержит доменные структуры сервиса: пользователей, сессии,
// подписки и платежи. Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя сервиса.
//
// PasswordHash может быть пустым: пользователь, созданный при оформлении подписки,
// ещё не устанавливал пароль. BillingCustomerRef — ссылка на клиента в платёжном
// шлюзе, появляется после первого обращения к шлюзу.
type User struct {
	UID                string     // Уникальный идентификатор пользователя
	Email              string     // Электронная почта (хранится в нижнем регистре, уникальна)
	FirstName          string     // Имя
	LastName           string     // Фамилия
	PasswordHash       string     // bcrypt-хэш пароля, пустой до установки пароля
	BillingCustomerRef *string    // ID клиента в платёжном шлюзе (уникальный)
	SubscriptionActive bool       // Флаг активной подписки, отражает последний известный статус
	IsVerified         bool       // Подтверждена ли почта
	CreatedAt          time.Time  // Дата создания
	UpdatedAt          time.Time  // Дата последнего обновления
	LastLoginAt        *time.Time // Дата последнего входа
}

// UserSummary — представление пользователя, отдаваемое клиенту.
type UserSummary struct {
	UID                string `json:"uid"`
	Email              string `json:"email"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	SubscriptionActive bool   `json:"subscriptionActive"`
	IsVerified         bool   `json:"isVerified"`
}

// Summary возвращает клиентское представление пользователя.
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		UID:                u.UID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		SubscriptionActive: u.SubscriptionActive,
		IsVerified:         u.IsVerified,
	}
}
