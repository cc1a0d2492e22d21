// Пакет middleware — HTTP middleware API filegate.
// auth.go — аутентификация по Bearer JWT и ролевые проверки.
// Подпись и срок проверяет auth.TokenService, после чего учётная
// запись перечитывается из БД: удалённый пользователь получает 401
// даже с формально действующим токеном.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	apierrors "github.com/dkrylov/filegate/internal/api/errors"
	"github.com/dkrylov/filegate/internal/auth"
	"github.com/dkrylov/filegate/internal/domain/model"
	"github.com/dkrylov/filegate/internal/domain/policy"
	"github.com/dkrylov/filegate/internal/repository"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyIdentity — учётная запись в контексте запроса.
const ContextKeyIdentity contextKey = "identity"

// UserResolver — чтение пользователя по идентификатору.
// Реализуется repository.UserRepository.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Auth — middleware аутентификации.
type Auth struct {
	tokens *auth.TokenService
	users  UserResolver
	logger *slog.Logger
}

// NewAuth создаёт middleware аутентификации.
func NewAuth(tokens *auth.TokenService, users UserResolver, logger *slog.Logger) *Auth {
	return &Auth{
		tokens: tokens,
		users:  users,
		logger: logger.With(slog.String("component", "auth_middleware")),
	}
}

// Middleware проверяет Bearer-токен, перечитывает пользователя из БД
// и помещает policy.Identity в контекст запроса.
func (a *Auth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}
			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims, err := a.tokens.Verify(tokenString)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					apierrors.Unauthorized(w, "Срок действия токена истёк")
					return
				}
				a.logger.Debug("Токен не прошёл проверку",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			// Роль и почта берутся из БД, не из токена: изменения
			// применяются немедленно, удалённый пользователь — 401
			user, err := a.users.GetByID(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					apierrors.Unauthorized(w, "Учётная запись не существует")
					return
				}
				a.logger.Error("Ошибка чтения пользователя при аутентификации",
					slog.String("user_id", claims.Subject),
					slog.String("error", err.Error()),
				)
				apierrors.InternalError(w, "Внутренняя ошибка сервера")
				return
			}

			identity := &policy.Identity{
				UserID: user.ID,
				Email:  user.Email,
				Role:   user.Role,
			}
			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalMiddleware — необязательная аутентификация для публичных
// маршрутов чтения: отсутствие или невалидность токена не ошибка,
// запрос продолжается анонимным (без учётной записи в контексте).
// Валидный токен даёт те же гарантии, что и Middleware: учётная
// запись перечитывается из БД, удалённый пользователь — аноним.
func (a *Auth) OptionalMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := a.tokens.Verify(parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := a.users.GetByID(r.Context(), claims.Subject)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					a.logger.Error("Ошибка чтения пользователя при аутентификации",
						slog.String("user_id", claims.Subject),
						slog.String("error", err.Error()),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			identity := &policy.Identity{
				UserID: user.ID,
				Email:  user.Email,
				Role:   user.Role,
			}
			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext извлекает учётную запись из контекста запроса.
// Возвращает nil, если запрос не аутентифицирован.
func IdentityFromContext(ctx context.Context) *policy.Identity {
	id, _ := ctx.Value(ContextKeyIdentity).(*policy.Identity)
	return id
}

// RequireOperation возвращает middleware, пропускающий запрос только
// если policy.Engine разрешает операцию op для роли учётной записи.
// Проверка назначения конкретного ресурса выполняется в обработчике,
// где известен его идентификатор.
// Должен использоваться ПОСЛЕ Auth.Middleware().
func RequireOperation(engine *policy.Engine, op policy.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			decision, err := engine.Authorize(r.Context(), identity, op, "")
			if err != nil {
				apierrors.InternalError(w, "Внутренняя ошибка сервера")
				return
			}
			if !decision.Allowed {
				WriteDecision(w, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteDecision переводит отказ policy.Engine в HTTP-ответ.
func WriteDecision(w http.ResponseWriter, d policy.Decision) {
	switch d.Reason {
	case policy.ReasonUnauthenticated:
		apierrors.Unauthorized(w, "Требуется аутентификация")
	case policy.ReasonNotAssigned:
		apierrors.NotAssigned(w, "Файл не назначен пользователю")
	case policy.ReasonSelfDeletion:
		apierrors.Forbidden(w, "Удаление собственной учётной записи запрещено")
	default:
		apierrors.Forbidden(w, "Недостаточно прав")
	}
}

// ClientIP возвращает IP клиента: первый адрес X-Forwarded-For,
// иначе host-часть RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := fwd
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			first = fwd[:idx]
		}
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
