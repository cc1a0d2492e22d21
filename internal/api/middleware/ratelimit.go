// ratelimit.go — middleware ограничения частоты запросов по IP клиента.
// Превышение лимита — 429 с заголовком Retry-After. Недоступность
// хранилища счётчиков по умолчанию пропускает запрос (fail-open);
// переключается на отказ (fail-closed) конфигурацией.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/dkrylov/filegate/internal/api/errors"
	"github.com/dkrylov/filegate/internal/ratelimit"
)

// RateLimiter — фабрика middleware лимитов по классам запросов.
type RateLimiter struct {
	store      ratelimit.Store
	failClosed bool
	logger     *slog.Logger
}

// NewRateLimiter создаёт фабрику middleware поверх хранилища счётчиков.
func NewRateLimiter(store ratelimit.Store, failClosed bool, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		store:      store,
		failClosed: failClosed,
		logger:     logger.With(slog.String("component", "ratelimit")),
	}
}

// Limit возвращает middleware, применяющий лимит класса class
// к запросам, сгруппированным по IP клиента.
func (rl *RateLimiter) Limit(class ratelimit.Class) func(http.Handler) http.Handler {
	limit := ratelimit.LimitFor(class)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)

			count, expiresAt, err := rl.store.Hit(r.Context(), key, class, limit.Window)
			if err != nil {
				rl.logger.Error("Хранилище счётчиков недоступно",
					slog.String("class", string(class)),
					slog.String("error", err.Error()),
				)
				if rl.failClosed {
					apierrors.RateLimited(w, "Сервис временно недоступен, повторите позже")
					return
				}
				// fail-open: лимит не проверяем
				next.ServeHTTP(w, r)
				return
			}

			if count > limit.Max {
				retryAfter := int(time.Until(expiresAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				rl.logger.Warn("Превышен лимит запросов",
					slog.String("class", string(class)),
					slog.String("key", key),
					slog.Int("count", count),
				)
				apierrors.RateLimited(w, "Превышен лимит запросов, повторите позже")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
