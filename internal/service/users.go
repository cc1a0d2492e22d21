// users.go — управление учётными записями (только для ADMIN,
// что гарантирует policy.Engine на уровне API).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"unicode"

	"github.com/dkrylov/filegate/internal/audit"
	"github.com/dkrylov/filegate/internal/auth"
	"github.com/dkrylov/filegate/internal/domain/model"
	"github.com/dkrylov/filegate/internal/domain/policy"
	"github.com/dkrylov/filegate/internal/repository"
)

// TempPasswordLength — длина временного пароля при сбросе.
const TempPasswordLength = 16

// userDetailFilesCap — максимум файлов в карточке пользователя.
// Карточка отдаётся без пагинации; назначений на пользователя
// на практике десятки, при превышении лимита список усечётся.
const userDetailFilesCap = 1000

// UserService — создание, изменение и удаление пользователей.
type UserService struct {
	users      UserStore
	files      FileStore
	sink       AuditRecorder
	bcryptCost int
	logger     *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(users UserStore, files FileStore, sink AuditRecorder, bcryptCost int, logger *slog.Logger) *UserService {
	return &UserService{
		users:      users,
		files:      files,
		sink:       sink,
		bcryptCost: bcryptCost,
		logger:     logger.With(slog.String("component", "user_service")),
	}
}

// Create добавляет пользователя с заданным паролем и ролью.
func (s *UserService) Create(ctx context.Context, actor *policy.Identity, email, password, role, ip string) (*model.User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if !policy.IsValidRole(role) {
		return nil, fmt.Errorf("%w: роль %q не существует", ErrValidation, role)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("хэширование пароля: %w", err)
	}

	user := &model.User{Email: email, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("почта уже занята: %w", ErrConflict)
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}

	s.sink.Record(audit.Entry{
		ActorUserID: actor.UserID,
		Action:      audit.ActionCreateUser,
		TargetType:  audit.TargetUser,
		TargetID:    user.ID,
		IPAddress:   ip,
		Metadata:    map[string]any{"email": user.Email, "role": user.Role},
	})

	s.logger.Info("Пользователь создан",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
	)
	return user, nil
}

// List возвращает страницу пользователей и общее число.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]*model.User, int, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("список пользователей: %w", err)
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт пользователей: %w", err)
	}
	return users, total, nil
}

// Get возвращает пользователя и список назначенных ему файлов.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, []*model.File, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("получение пользователя: %w", err)
	}

	files, err := s.files.ListAssignedTo(ctx, id, userDetailFilesCap, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("назначенные файлы: %w", err)
	}
	return user, files, nil
}

// Update меняет почту и/или роль. nil — поле не трогается.
func (s *UserService) Update(ctx context.Context, id string, email, role *string) (*model.User, error) {
	if email != nil {
		if err := validateEmail(*email); err != nil {
			return nil, err
		}
	}
	if role != nil && !policy.IsValidRole(*role) {
		return nil, fmt.Errorf("%w: роль %q не существует", ErrValidation, *role)
	}

	user, err := s.users.Update(ctx, id, email, role)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("почта уже занята: %w", ErrConflict)
		}
		return nil, fmt.Errorf("обновление пользователя: %w", err)
	}
	return user, nil
}

// ResetPassword генерирует временный пароль и заменяет им текущий.
// Открытый текст возвращается один раз и нигде не сохраняется.
func (s *UserService) ResetPassword(ctx context.Context, actor *policy.Identity, id, ip string) (string, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("получение пользователя: %w", err)
	}

	tempPassword, err := auth.GenerateTempPassword(TempPasswordLength)
	if err != nil {
		return "", fmt.Errorf("генерация пароля: %w", err)
	}
	hash, err := auth.HashPassword(tempPassword, s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("хэширование пароля: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, id, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("смена пароля: %w", err)
	}

	s.sink.Record(audit.Entry{
		ActorUserID: actor.UserID,
		Action:      audit.ActionResetPassword,
		TargetType:  audit.TargetUser,
		TargetID:    id,
		IPAddress:   ip,
		Metadata:    map[string]any{"targetEmail": user.Email},
	})

	s.logger.Info("Пароль пользователя сброшен", slog.String("user_id", id))
	return tempPassword, nil
}

// Delete удаляет пользователя. Его назначения снимаются каскадом,
// записи аудита сохраняются без инициатора.
// Запрет самоудаления обеспечивает policy.Engine до вызова сервиса.
func (s *UserService) Delete(ctx context.Context, actor *policy.Identity, id, ip string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение пользователя: %w", err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление пользователя: %w", err)
	}

	s.sink.Record(audit.Entry{
		ActorUserID: actor.UserID,
		Action:      audit.ActionDeleteUser,
		TargetType:  audit.TargetUser,
		TargetID:    id,
		IPAddress:   ip,
		Metadata:    map[string]any{"email": user.Email},
	})

	s.logger.Info("Пользователь удалён", slog.String("user_id", id))
	return nil
}

// validateEmail проверяет синтаксис адреса почты.
func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: почта не задана", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: некорректная почта %q", ErrValidation, email)
	}
	return nil
}

// validatePassword проверяет минимальные требования к паролю:
// не короче 8 символов, содержит букву и цифру.
func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: пароль короче 8 символов", ErrValidation)
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: пароль должен содержать буквы и цифры", ErrValidation)
	}
	return nil
}
