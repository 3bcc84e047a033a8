package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

// CreateSession сохраняет новую сессию и возвращает её ID.
func (s *Storage) CreateSession(ctx context.Context, session models.Session) (int64, error) {
	const op = "storage.CreateSession"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID int64
	query := `INSERT INTO sessions (token, user_uid, expires_at, user_agent, ip)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query,
		session.Token, session.UserUID, session.ExpiresAt,
		session.UserAgent, session.IP).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetSessionByToken возвращает сессию по её токену. Истекшие сессии
// возвращаются как есть: проверка срока действия выполняется в сервисе.
func (s *Storage) GetSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	const op = "storage.GetSessionByToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, token, user_uid, expires_at, created_at, last_used_at, user_agent, ip
			  FROM sessions
			  WHERE token = $1`
	session := &models.Session{}
	row := s.DB.QueryRowContext(ctx, query, token)
	if err := row.Scan(&session.ID, &session.Token, &session.UserUID, &session.ExpiresAt,
		&session.CreatedAt, &session.LastUsedAt, &session.UserAgent, &session.IP); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// TouchSession обновляет дату последнего использования сессии.
func (s *Storage) TouchSession(ctx context.Context, token string) error {
	const op = "storage.TouchSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE sessions
			  SET last_used_at = NOW()
			  WHERE token = $1`
	_, err := s.DB.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ExpireSession делает сессию недействительной, не удаляя запись.
func (s *Storage) ExpireSession(ctx context.Context, token string) error {
	const op = "storage.ExpireSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE sessions
			  SET expires_at = NOW()
			  WHERE token = $1`
	res, err := s.DB.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}
