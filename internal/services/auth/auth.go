// Package services содержит логику бизнес-уровня для регистрации, входа и проверки токенов.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/travel-compliance/internal/lib/jwt"
	"github.com/magabrotheeeer/travel-compliance/internal/lib/password"
	"github.com/magabrotheeeer/travel-compliance/internal/lib/sl"
	"github.com/magabrotheeeer/travel-compliance/internal/lib/token"
	"github.com/magabrotheeeer/travel-compliance/internal/models"
)

// UserRepository описывает контракт для работы с пользователями и сессиями в базе данных.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его UID.
	CreateUser(ctx context.Context, user models.User) (string, error)

	// GetUserByEmail возвращает пользователя по email или ошибку, если не найден.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, uid string) (*models.User, error)

	// UpdateLastLogin фиксирует момент успешного входа.
	UpdateLastLogin(ctx context.Context, uid string) error

	// CreateSession сохраняет серверную сессию и возвращает её ID.
	CreateSession(ctx context.Context, session models.Session) (int64, error)

	// GetSessionByToken возвращает сессию по токену.
	GetSessionByToken(ctx context.Context, token string) (*models.Session, error)

	// ExpireSession принудительно завершает сессию по токену.
	ExpireSession(ctx context.Context, token string) error
}

// SubscriptionProvider возвращает сводку активной подписки пользователя.
type SubscriptionProvider interface {
	CurrentForUser(ctx context.Context, userUID string) (*models.SubscriptionSummary, error)
}

// AuthService отвечает за регистрацию, авторизацию, сессии и валидацию JWT.
type AuthService struct {
	users    UserRepository
	subs     SubscriptionProvider
	jwtMaker jwt.Maker
	tokenTTL time.Duration
	log      *slog.Logger
}

// AuthResult содержит данные, возвращаемые после регистрации или входа.
type AuthResult struct {
	User         *models.UserSummary         `json:"user"`
	Token        string                      `json:"token"`
	SessionToken string                      `json:"sessionToken"`
	Subscription *models.SubscriptionSummary `json:"subscription,omitempty"`
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, subs SubscriptionProvider,
	jwtMaker jwt.Maker, tokenTTL time.Duration, log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		subs:     subs,
		jwtMaker: jwtMaker,
		tokenTTL: tokenTTL,
		log:      log,
	}
}

// Register создает нового пользователя с хэшированием пароля и открывает первую сессию.
func (s *AuthService) Register(ctx context.Context, email, rawPassword, firstName, lastName string,
	meta models.SessionMeta) (*AuthResult, error) {
	const op = "services.auth.Register"

	email = strings.ToLower(strings.TrimSpace(email))

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: hashed,
	}
	uid, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.UID = uid

	s.log.Info("registered new user", slog.String("uid", uid))

	jwtToken, sessionToken, err := s.openSession(ctx, uid, email, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &AuthResult{
		User:         user.Summary(),
		Token:        jwtToken,
		SessionToken: sessionToken,
	}, nil
}

// Login проверяет пароль пользователя, открывает новую сессию и возвращает JWT.
// Неизвестный email и неверный пароль дают одинаковую ошибку.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string,
	meta models.SessionMeta) (*AuthResult, error) {
	const op = "services.auth.Login"

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.PasswordHash == "" {
		return nil, models.ErrInvalidCredentials
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.UID); err != nil {
		s.log.Warn("failed to update last login", slog.String("uid", user.UID), sl.Err(err))
	}
	user.LastLoginAt = &now

	jwtToken, sessionToken, err := s.openSession(ctx, user.UID, user.Email, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &AuthResult{
		User:         user.Summary(),
		Token:        jwtToken,
		SessionToken: sessionToken,
	}

	if user.SubscriptionActive && s.subs != nil {
		summary, err := s.subs.CurrentForUser(ctx, user.UID)
		if err != nil {
			s.log.Warn("failed to load active subscription", slog.String("uid", user.UID), sl.Err(err))
		} else {
			result.Subscription = summary
		}
	}

	return result, nil
}

// Verify проверяет JWT и возвращает актуальную сводку пользователя из базы.
func (s *AuthService) Verify(ctx context.Context, jwtToken string) (*models.UserSummary, error) {
	const op = "services.auth.Verify"

	claims, err := s.jwtMaker.ParseToken(jwtToken)
	if err != nil {
		return nil, models.ErrInvalidToken
	}

	user, err := s.users.GetUser(ctx, claims.UserUID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user.Summary(), nil
}

// Logout завершает серверную сессию по её токену.
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	const op = "services.auth.Logout"

	session, err := s.users.GetSessionByToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidToken
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if session.Expired(time.Now().UTC()) {
		return models.ErrInvalidToken
	}

	if err := s.users.ExpireSession(ctx, session.Token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("session closed", slog.String("uid", session.UserUID))
	return nil
}

// openSession выпускает JWT и сохраняет новую серверную сессию.
func (s *AuthService) openSession(ctx context.Context, uid, email string,
	meta models.SessionMeta) (jwtToken, sessionToken string, err error) {
	jwtToken, err = s.jwtMaker.GenerateToken(uid, email)
	if err != nil {
		return "", "", err
	}

	sessionToken, err = token.New()
	if err != nil {
		return "", "", err
	}

	now := time.Now().UTC()
	session := models.Session{
		Token:     sessionToken,
		UserUID:   uid,
		ExpiresAt: now.Add(s.tokenTTL),
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
	}
	if _, err := s.users.CreateSession(ctx, session); err != nil {
		return "", "", err
	}
	return jwtToken, sessionToken, nil
}
