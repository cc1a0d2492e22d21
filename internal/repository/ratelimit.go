package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dkrylov/filegate/internal/ratelimit"
)

// RateLimitStore — счётчики ограничения частоты запросов в PostgreSQL.
// Общее состояние для всех экземпляров сервиса; инкремент атомарен —
// одиночный upsert, поэтому конкурентные обращения не теряются.
// Реализует ratelimit.Store.
type RateLimitStore struct {
	db DBTX
}

// NewRateLimitStore создаёт хранилище счётчиков поверх PostgreSQL.
func NewRateLimitStore(db DBTX) *RateLimitStore {
	return &RateLimitStore{db: db}
}

// Hit атомарно увеличивает счётчик пары (key, class).
// Истёкшее окно начинается заново со счётчиком 1 в том же запросе,
// поэтому гонка между сбросом и инкрементом исключена.
func (s *RateLimitStore) Hit(ctx context.Context, key string, class ratelimit.Class, window time.Duration) (int, time.Time, error) {
	// Вычищаем истёкшие записи других ключей, чтобы таблица не росла
	if _, err := s.db.Exec(ctx,
		`DELETE FROM rate_limits WHERE expires_at <= now()`); err != nil {
		return 0, time.Time{}, fmt.Errorf("ошибка очистки счётчиков: %w", err)
	}

	query := `
		INSERT INTO rate_limits (key, class, count, expires_at)
		VALUES ($1, $2, 1, now() + make_interval(secs => $3))
		ON CONFLICT (key, class) DO UPDATE SET
			count = CASE
				WHEN rate_limits.expires_at <= now() THEN 1
				ELSE rate_limits.count + 1
			END,
			expires_at = CASE
				WHEN rate_limits.expires_at <= now() THEN now() + make_interval(secs => $3)
				ELSE rate_limits.expires_at
			END
		RETURNING count, expires_at`

	var count int
	var expiresAt time.Time
	err := s.db.QueryRow(ctx, query, key, string(class), window.Seconds()).Scan(&count, &expiresAt)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ошибка инкремента счётчика: %w", err)
	}
	return count, expiresAt, nil
}
