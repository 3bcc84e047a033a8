package models

import "errors"

// Доменные ошибки сервиса. Обработчики сопоставляют их с HTTP-статусами
// через errors.Is; всё, что не входит в этот набор, отдается клиенту
// как общая внутренняя ошибка.
var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotFound           = errors.New("not found")
	ErrUnknownPlan        = errors.New("unknown plan")
	ErrSubscriptionExists = errors.New("active subscription already exists")
	ErrGateway            = errors.New("billing gateway error")
	ErrStorage            = errors.New("storage error")
)
