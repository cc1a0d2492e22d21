package legacy

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dkrylov/filegate/internal/audit"
	"github.com/dkrylov/filegate/internal/ratelimit"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// captureSink — AuditRecorder, накапливающий события.
type captureSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *captureSink) Record(e audit.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func (c *captureSink) last() *audit.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return nil
	}
	return &c.entries[len(c.entries)-1]
}

func newTestHandler(t *testing.T) (*Handler, *captureSink, string) {
	t.Helper()

	dir := t.TempDir()
	content := []byte("PK\x03\x04album-archive")
	if err := os.WriteFile(filepath.Join(dir, "wedding2026.zip"), content, 0o600); err != nil {
		t.Fatalf("подготовка архива: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("album-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("хэширование: %v", err)
	}

	albums := map[string]Album{
		"WED26": {PasswordHash: string(hash), File: "wedding2026.zip"},
	}
	sink := &captureSink{}
	h := NewHandler(albums, dir, ratelimit.NewMemoryStore(), sink, testLogger)
	return h, sink, string(content)
}

func postForm(h http.Handler, values url.Values, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/album/download",
		strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = ip + ":4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerDownload(t *testing.T) {
	h, sink, content := newTestHandler(t)

	rec := postForm(h, url.Values{
		"code":     {"WED26"},
		"password": {"album-pass"},
		"email":    {"guest@example.com"},
	}, "10.0.0.1")

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/zip" {
		t.Errorf("Content-Type = %q", got)
	}
	if rec.Body.String() != content {
		t.Error("содержимое ответа не совпадает с архивом")
	}

	e := sink.last()
	if e == nil || e.Action != audit.ActionDownload {
		t.Fatalf("ожидалось событие DOWNLOAD, получено %+v", e)
	}
	if e.ActorUserID != "" {
		t.Error("анонимное скачивание не должно иметь инициатора")
	}
	if e.Metadata["code"] != "WED26" || e.Metadata["email"] != "guest@example.com" {
		t.Errorf("метаданные: %+v", e.Metadata)
	}
}

func TestHandlerRejections(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		password   string
		wantStatus int
	}{
		{"пустые поля", "", "", http.StatusBadRequest},
		{"неизвестный код", "GHOST", "album-pass", http.StatusNotFound},
		{"неверный пароль", "WED26", "wrong", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, sink, _ := newTestHandler(t)
			rec := postForm(h, url.Values{
				"code":     {tt.code},
				"password": {tt.password},
			}, "10.0.0.1")

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			if sink.last() != nil {
				t.Error("отказ не должен попадать в журнал аудита")
			}
		})
	}
}

func TestHandlerRateLimit(t *testing.T) {
	h, _, _ := newTestHandler(t)

	// Пять попыток разрешены
	for i := 0; i < 5; i++ {
		rec := postForm(h, url.Values{
			"code":     {"WED26"},
			"password": {"wrong"},
		}, "10.0.0.9")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("попытка %d: статус = %d", i+1, rec.Code)
		}
	}

	rec := postForm(h, url.Values{
		"code":     {"WED26"},
		"password": {"album-pass"},
	}, "10.0.0.9")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("статус = %d, ожидался 429", rec.Code)
	}

	// Другой IP не ограничен
	rec = postForm(h, url.Values{
		"code":     {"WED26"},
		"password": {"album-pass"},
	}, "10.0.0.10")
	if rec.Code != http.StatusOK {
		t.Errorf("статус = %d, ожидался 200 для другого IP", rec.Code)
	}
}

func TestLoadAlbums(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albums.json")
	data := `{"WED26": {"passwordHash": "$2a$10$abc", "file": "wedding.zip"}}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("подготовка файла: %v", err)
	}

	albums, err := LoadAlbums(path)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if a, ok := albums["WED26"]; !ok || a.File != "wedding.zip" {
		t.Errorf("albums = %+v", albums)
	}

	t.Run("отсутствующий файл", func(t *testing.T) {
		if _, err := LoadAlbums(filepath.Join(dir, "ghost.json")); err == nil {
			t.Error("ожидалась ошибка")
		}
	})

	t.Run("некорректный JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		_ = os.WriteFile(bad, []byte("{"), 0o600)
		if _, err := LoadAlbums(bad); err == nil {
			t.Error("ожидалась ошибка")
		}
	})
}
