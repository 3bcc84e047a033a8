// Package token генерирует непрозрачные токены сессий.
//
// Токен — 32 случайных байта в hex-представлении. В отличие от JWT,
// он не несет данных и проверяется только по записи сессии в базе.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New возвращает новый случайный токен сессии.
func New() (string, error) {
	const op = "token.New"
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return hex.EncodeToString(buf), nil
}
