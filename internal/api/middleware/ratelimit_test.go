package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkrylov/filegate/internal/ratelimit"
)

// errStore — хранилище счётчиков, всегда возвращающее ошибку.
type errStore struct{}

func (errStore) Hit(context.Context, string, ratelimit.Class, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("соединение разорвано")
}

func TestRateLimiterLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("шестая попытка входа отклоняется", func(t *testing.T) {
		rl := NewRateLimiter(ratelimit.NewMemoryStore(), false, testLogger)
		handler := rl.Limit(ratelimit.ClassAuth)(ok)

		for i := 1; i <= 5; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			req.RemoteAddr = "10.0.0.1:1000"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusNoContent {
				t.Fatalf("попытка %d: статус = %d, ожидался 204", i, rec.Code)
			}
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("статус = %d, ожидался 429", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("отсутствует заголовок Retry-After")
		}
	})

	t.Run("лимиты считаются по IP раздельно", func(t *testing.T) {
		rl := NewRateLimiter(ratelimit.NewMemoryStore(), false, testLogger)
		handler := rl.Limit(ratelimit.ClassAuth)(ok)

		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			req.RemoteAddr = "10.0.0.1:1000"
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = "10.0.0.2:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("статус = %d, ожидался 204 для другого IP", rec.Code)
		}
	})

	t.Run("fail-open пропускает запрос при сбое хранилища", func(t *testing.T) {
		rl := NewRateLimiter(errStore{}, false, testLogger)
		handler := rl.Limit(ratelimit.ClassGeneral)(ok)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("статус = %d, ожидался 204 (fail-open)", rec.Code)
		}
	})

	t.Run("fail-closed отклоняет запрос при сбое хранилища", func(t *testing.T) {
		rl := NewRateLimiter(errStore{}, true, testLogger)
		handler := rl.Limit(ratelimit.ClassGeneral)(ok)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/files", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("статус = %d, ожидался 429 (fail-closed)", rec.Code)
		}
	})
}
