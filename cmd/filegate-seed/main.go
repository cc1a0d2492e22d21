// filegate-seed — одноразовая инициализация первой учётной записи ADMIN.
// Запускается как init-задача перед стартом filegate: применяет миграции
// и создаёт администратора из FG_ADMIN_EMAIL/FG_ADMIN_PASSWORD, если его
// ещё нет. Повторный запуск безопасен.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/dkrylov/filegate/internal/audit"
	"github.com/dkrylov/filegate/internal/auth"
	"github.com/dkrylov/filegate/internal/config"
	"github.com/dkrylov/filegate/internal/database"
	"github.com/dkrylov/filegate/internal/domain/model"
	"github.com/dkrylov/filegate/internal/domain/policy"
	"github.com/dkrylov/filegate/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	adminEmail := os.Getenv("FG_ADMIN_EMAIL")
	adminPassword := os.Getenv("FG_ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		logger.Error("FG_ADMIN_EMAIL и FG_ADMIN_PASSWORD обязательны")
		os.Exit(1)
	}

	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	// Идемпотентность: существующий администратор не пересоздаётся
	// и его пароль не трогается
	if existing, err := userRepo.GetByEmail(ctx, adminEmail); err == nil {
		logger.Info("Администратор уже существует, изменений нет",
			slog.String("user_id", existing.ID),
		)
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		logger.Error("Ошибка проверки учётной записи", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hash, err := auth.HashPassword(adminPassword, cfg.BcryptCost)
	if err != nil {
		logger.Error("Ошибка хэширования пароля", slog.String("error", err.Error()))
		os.Exit(1)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: hash,
		Role:         policy.RoleAdmin,
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		logger.Error("Ошибка создания администратора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Синхронная запись в аудит: фоновый приёмник здесь не нужен
	entry := &model.AuditEntry{
		Action:     string(audit.ActionSeedAdmin),
		TargetType: strPtr(audit.TargetUser),
		TargetID:   strPtr(admin.ID),
	}
	if err := auditRepo.Append(ctx, entry); err != nil {
		logger.Warn("Ошибка записи события аудита", slog.String("error", err.Error()))
	}

	logger.Info("Администратор создан",
		slog.String("user_id", admin.ID),
		slog.String("email", admin.Email),
	)
}

func strPtr(s string) *string {
	return &s
}
