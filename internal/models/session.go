package models

import "time"

// Session представляет серверную сессию пользователя.
//
// Token — непрозрачный токен, выдаваемый вместе с JWT и хранящийся в базе.
// Истекшая сессия не удаляется, но перестает проходить проверку.
type Session struct {
	ID         int64     // Идентификатор записи
	Token      string    // Непрозрачный токен сессии (уникальный)
	UserUID    string    // Владелец сессии
	ExpiresAt  time.Time // Срок действия
	CreatedAt  time.Time // Дата создания
	LastUsedAt time.Time // Дата последнего использования
	UserAgent  string    // User-Agent клиента
	IP         string    // Адрес клиента
}

// SessionMeta — метаданные клиента, сохраняемые при создании сессии.
type SessionMeta struct {
	UserAgent string
	IP        string
}

// Expired сообщает, истекла ли сессия на момент now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
