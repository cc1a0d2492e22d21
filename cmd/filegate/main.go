// Точка входа filegate — портал выдачи файлов по назначениям.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL
// и объектному хранилищу, собирает сервисный слой и API, запускает
// HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/dkrylov/filegate/internal/api/handlers"
	"github.com/dkrylov/filegate/internal/api/middleware"
	"github.com/dkrylov/filegate/internal/audit"
	"github.com/dkrylov/filegate/internal/auth"
	"github.com/dkrylov/filegate/internal/config"
	"github.com/dkrylov/filegate/internal/database"
	"github.com/dkrylov/filegate/internal/domain/policy"
	"github.com/dkrylov/filegate/internal/legacy"
	"github.com/dkrylov/filegate/internal/repository"
	"github.com/dkrylov/filegate/internal/server"
	"github.com/dkrylov/filegate/internal/service"
	"github.com/dkrylov/filegate/internal/storage"
)

// auditBuffer — размер буфера журнала аудита.
const auditBuffer = 256

func main() {
	// .env удобен при локальной разработке; в кластере его нет
	_ = godotenv.Load()

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("filegate запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("download_mode", cfg.DownloadMode),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Клиент объектного хранилища
	objectStore, err := storage.NewS3Store(ctx, storage.Config{
		Endpoint:       cfg.S3Endpoint,
		Region:         cfg.S3Region,
		Bucket:         cfg.S3Bucket,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		ForcePathStyle: cfg.S3ForcePathStyle,
		SignedURLTTL:   cfg.SignedURLTTL,
	})
	if err != nil {
		logger.Error("Ошибка создания клиента объектного хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Клиент объектного хранилища создан",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)

	// 6. Repositories
	userRepo := repository.NewUserRepository(pool)
	fileRepo := repository.NewFileRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	rateLimitStore := repository.NewRateLimitStore(pool)

	// 7. Журнал аудита — фоновый приёмник
	sink := audit.NewSink(auditRepo, auditBuffer, logger)
	sink.Start()
	defer sink.Stop()

	// 8. Политика доступа и токены
	engine := policy.NewEngine(assignmentRepo)
	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTTTL)

	// 9. Services
	authSvc := service.NewAuthService(userRepo, tokens, sink, logger)
	userSvc := service.NewUserService(userRepo, fileRepo, sink, cfg.BcryptCost, logger)
	fileSvc := service.NewFileService(
		fileRepo, assignmentRepo, objectStore, sink,
		cfg.DownloadMode, cfg.MaxUploadBytes(),
		logger,
	)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, userRepo, fileRepo, sink, logger)

	// 10. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), objectStore)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		handlers.NewAuthHandler(authSvc, logger),
		handlers.NewUsersHandler(userSvc, engine, logger),
		handlers.NewFilesHandler(fileSvc, engine, cfg.MaxUploadBytes(), logger),
		handlers.NewAssignmentsHandler(assignmentSvc, logger),
		logger,
	)

	// 11. Middleware
	authMW := middleware.NewAuth(tokens, userRepo, logger)
	limiter := middleware.NewRateLimiter(rateLimitStore, cfg.RateLimitFailClosed, logger)

	// 12. Наследуемый обработчик альбомов (опционально)
	var legacyHandler http.Handler
	if cfg.LegacyEnabled {
		albums, err := legacy.LoadAlbums(cfg.LegacyAlbumsPath)
		if err != nil {
			logger.Error("Ошибка загрузки альбомов", slog.String("error", err.Error()))
			os.Exit(1)
		}
		legacyHandler = legacy.NewHandler(albums, cfg.LegacyFilesDir, rateLimitStore, sink, logger)
		logger.Info("Наследуемый обработчик альбомов включён",
			slog.Int("albums", len(albums)),
			slog.String("files_dir", cfg.LegacyFilesDir),
		)
	} else {
		logger.Info("Наследуемый обработчик альбомов отключён (FG_LEGACY_ENABLED=false)")
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, authMW, engine, limiter, legacyHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("filegate остановлен")
}
