// Пакет server — HTTP-сервер filegate с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на балансировщике.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dkrylov/filegate/internal/api/handlers"
	"github.com/dkrylov/filegate/internal/api/middleware"
	"github.com/dkrylov/filegate/internal/config"
	"github.com/dkrylov/filegate/internal/domain/policy"
	"github.com/dkrylov/filegate/internal/ratelimit"
)

// Server — HTTP-сервер filegate.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
// legacy — опциональный обработчик POST /album/download (nil, если
// наследуемый режим выключен).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	auth *middleware.Auth,
	engine *policy.Engine,
	limiter *middleware.RateLimiter,
	legacy http.Handler,
) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.RequestID)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics — без аутентификации и лимитов,
	// их опрашивает Kubernetes напрямую
	router.Get("/health/live", api.Health.HealthLive)
	router.Get("/health/ready", api.Health.HealthReady)
	router.Get("/metrics", api.Health.GetMetrics)

	// Наследуемый обработчик альбомов со своим лимитом
	if legacy != nil {
		router.Post("/album/download", legacy.ServeHTTP)
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Общий лимит на весь API
		r.Use(limiter.Limit(ratelimit.ClassGeneral))

		// Вход — единственный маршрут без Bearer-токена
		r.With(limiter.Limit(ratelimit.ClassAuth)).
			Post("/auth/login", api.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware())

			r.Get("/auth/me", api.Auth.Me)
			r.Post("/auth/refresh", api.Auth.Refresh)
			r.Post("/auth/logout", api.Auth.Logout)

			// Файлы. Карточка и скачивание авторизуются в обработчике:
			// policy.Engine нужен идентификатор файла для проверки назначения.
			r.With(
				middleware.RequireOperation(engine, policy.OpFileUpload),
				limiter.Limit(ratelimit.ClassUpload),
			).Post("/files/upload", api.Files.Upload)
			r.With(middleware.RequireOperation(engine, policy.OpFileList)).
				Get("/files", api.Files.List)
			r.Get("/files/{id}", api.Files.Get)
			r.With(limiter.Limit(ratelimit.ClassDownload)).
				Get("/files/{id}/download", api.Files.Download)
			r.With(middleware.RequireOperation(engine, policy.OpFileDelete)).
				Delete("/files/{id}", api.Files.Delete)

			// Пользователи. Удаление авторизуется в обработчике:
			// запрет самоудаления требует идентификатор цели.
			r.With(middleware.RequireOperation(engine, policy.OpUserCreate)).
				Post("/users", api.Users.Create)
			r.With(middleware.RequireOperation(engine, policy.OpUserList)).
				Get("/users", api.Users.List)
			r.With(middleware.RequireOperation(engine, policy.OpUserGet)).
				Get("/users/{id}", api.Users.Get)
			r.With(middleware.RequireOperation(engine, policy.OpUserUpdate)).
				Patch("/users/{id}", api.Users.Update)
			r.With(middleware.RequireOperation(engine, policy.OpUserResetPassword)).
				Patch("/users/{id}/reset-password", api.Users.ResetPassword)
			r.Delete("/users/{id}", api.Users.Delete)

			// Назначения
			r.With(middleware.RequireOperation(engine, policy.OpAssignmentCreate)).
				Post("/assignments", api.Assignments.Create)
			r.With(middleware.RequireOperation(engine, policy.OpAssignmentCreate)).
				Post("/assignments/bulk", api.Assignments.CreateBulk)
			r.With(middleware.RequireOperation(engine, policy.OpAssignmentList)).
				Get("/assignments/file/{fileId}", api.Assignments.ListByFile)
			r.With(middleware.RequireOperation(engine, policy.OpAssignmentDelete)).
				Delete("/assignments/file/{fileId}/user/{userId}", api.Assignments.DeleteByUserFile)
			r.With(middleware.RequireOperation(engine, policy.OpAssignmentDelete)).
				Delete("/assignments/{id}", api.Assignments.Delete)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
