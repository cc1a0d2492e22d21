package ratelimit

import (
	"context"
	"sync"
	"time"
)

// entry — счётчик одного окна.
type entry struct {
	count     int
	expiresAt time.Time
}

// MemoryStore — хранилище счётчиков в памяти процесса.
// Подходит для одного экземпляра сервиса; при нескольких экземплярах
// используется хранилище в PostgreSQL.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	// nowFunc подменяется в тестах
	nowFunc func() time.Time
}

// NewMemoryStore создаёт пустое in-memory хранилище счётчиков.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		nowFunc: time.Now,
	}
}

// Hit увеличивает счётчик пары (key, class).
// Истёкшие записи вычищаются перед обработкой обращения.
func (s *MemoryStore) Hit(_ context.Context, key string, class Class, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()

	// Вычищаем истёкшие окна, чтобы карта не росла бесконечно
	for k, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, k)
		}
	}

	k := key + "\x00" + string(class)
	e, ok := s.entries[k]
	if !ok {
		e = &entry{count: 0, expiresAt: now.Add(window)}
		s.entries[k] = e
	}
	e.count++

	return e.count, e.expiresAt, nil
}

// Len возвращает число активных записей (для тестов и диагностики).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
