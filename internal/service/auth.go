// Пакет service — бизнес-логика filegate.
// auth.go — вход по паре почта/пароль и выпуск сессионных токенов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dkrylov/filegate/internal/audit"
	"github.com/dkrylov/filegate/internal/auth"
	"github.com/dkrylov/filegate/internal/domain/model"
	"github.com/dkrylov/filegate/internal/repository"
)

// AuthService — вход, обновление токена, данные текущего пользователя.
type AuthService struct {
	users  UserStore
	tokens *auth.TokenService
	sink   AuditRecorder
	logger *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users UserStore, tokens *auth.TokenService, sink AuditRecorder, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		sink:   sink,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Login проверяет пару почта/пароль и выпускает токен.
// Несуществующая почта и неверный пароль неразличимы для клиента
// (обе — ErrInvalidCredentials). Успешный вход пишется в аудит.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (string, *model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("поиск пользователя: %w", err)
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		s.logger.Warn("Неудачная попытка входа",
			slog.String("email", email),
			slog.String("ip", ip),
		)
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("выпуск токена: %w", err)
	}

	s.sink.Record(audit.Entry{
		ActorUserID: user.ID,
		Action:      audit.ActionLogin,
		IPAddress:   ip,
	})

	s.logger.Info("Пользователь вошёл",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
	)
	return token, user, nil
}

// Refresh выпускает новый токен для действующего пользователя.
// Почта и роль берутся из БД, а не из старого токена.
func (s *AuthService) Refresh(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("поиск пользователя: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return "", fmt.Errorf("выпуск токена: %w", err)
	}
	return token, nil
}

// Logout пишет выход в аудит. Токены не отзываются — серверного
// состояния сессии нет, клиент просто забывает токен.
func (s *AuthService) Logout(userID, ip string) {
	s.sink.Record(audit.Entry{
		ActorUserID: userID,
		Action:      audit.ActionLogout,
		IPAddress:   ip,
	})
}
