// Пакет legacy — наследуемый обработчик скачивания альбомов.
// Сохраняет контракт старого портала: форма POST /album/download с
// кодом события и паролем, без учётных записей. Альбомы описываются
// плоским JSON-файлом, архивы лежат в локальном каталоге.
// Включается флагом FG_LEGACY_ENABLED; основной API от него не зависит.
package legacy

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	apierrors "github.com/dkrylov/filegate/internal/api/errors"
	"github.com/dkrylov/filegate/internal/api/middleware"
	"github.com/dkrylov/filegate/internal/audit"
	"github.com/dkrylov/filegate/internal/ratelimit"
)

// Album — один альбом из конфигурационного файла.
type Album struct {
	// PasswordHash — bcrypt-хэш пароля альбома
	PasswordHash string `json:"passwordHash"`
	// File — имя ZIP-архива в каталоге альбомов
	File string `json:"file"`
}

// LoadAlbums читает карту код → альбом из JSON-файла.
func LoadAlbums(path string) (map[string]Album, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла альбомов %s: %w", path, err)
	}
	albums := make(map[string]Album)
	if err := json.Unmarshal(data, &albums); err != nil {
		return nil, fmt.Errorf("разбор файла альбомов %s: %w", path, err)
	}
	return albums, nil
}

// AuditRecorder — неблокирующая запись события аудита.
type AuditRecorder interface {
	Record(e audit.Entry)
}

// Handler — обработчик POST /album/download.
type Handler struct {
	albums   map[string]Album
	filesDir string
	store    ratelimit.Store
	sink     AuditRecorder
	logger   *slog.Logger
}

// NewHandler создаёт наследуемый обработчик альбомов.
func NewHandler(albums map[string]Album, filesDir string, store ratelimit.Store, sink AuditRecorder, logger *slog.Logger) *Handler {
	return &Handler{
		albums:   albums,
		filesDir: filesDir,
		store:    store,
		sink:     sink,
		logger:   logger.With(slog.String("component", "legacy_albums")),
	}
}

// ServeHTTP обрабатывает форму скачивания альбома: код + пароль
// (+ необязательная почта для журнала). Не более 5 попыток с одного
// IP за 10 минут.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := middleware.ClientIP(r)

	limit := ratelimit.LimitFor(ratelimit.ClassLegacy)
	count, _, err := h.store.Hit(r.Context(), ip, ratelimit.ClassLegacy, limit.Window)
	if err != nil {
		// Счётчик недоступен — попытку пропускаем, вход всё равно
		// защищён паролем
		h.logger.Error("Хранилище счётчиков недоступно",
			slog.String("error", err.Error()))
	} else if count > limit.Max {
		apierrors.RateLimited(w, "Слишком много попыток, повторите через несколько минут")
		return
	}

	if err := r.ParseForm(); err != nil {
		apierrors.ValidationError(w, "Некорректная форма")
		return
	}
	code := r.PostFormValue("code")
	password := r.PostFormValue("password")
	email := r.PostFormValue("email")

	if code == "" || password == "" {
		apierrors.ValidationError(w, "Укажите код события и пароль")
		return
	}

	album, ok := h.albums[code]
	if !ok {
		apierrors.NotFound(w, "Неизвестный код события")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(album.PasswordHash), []byte(password)) != nil {
		h.logger.Warn("Неверный пароль альбома",
			slog.String("code", code),
			slog.String("ip", ip),
		)
		apierrors.Unauthorized(w, "Неверный пароль")
		return
	}

	// Только имя файла: конфиг не может увести чтение за пределы каталога
	fileName := filepath.Base(album.File)
	filePath := filepath.Join(h.filesDir, fileName)

	f, err := os.Open(filePath)
	if err != nil {
		h.logger.Error("Архив альбома недоступен",
			slog.String("code", code),
			slog.String("path", filePath),
			slog.String("error", err.Error()),
		)
		apierrors.NotFound(w, "Файл временно недоступен")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}

	// Анонимное скачивание: инициатора нет, код и почта — в метаданных
	h.sink.Record(audit.Entry{
		Action:     audit.ActionDownload,
		TargetType: audit.TargetFile,
		TargetID:   fileName,
		IPAddress:  ip,
		Metadata:   map[string]any{"legacy": true, "code": code, "email": email},
	})

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("Прерван поток скачивания альбома",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
}
