// Пакет handlers — HTTP-обработчики API filegate.
// handler.go — агрегат обработчиков и общие вспомогательные функции.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/dkrylov/filegate/internal/api/errors"
	"github.com/dkrylov/filegate/internal/domain/model"
	"github.com/dkrylov/filegate/internal/service"
)

// Пределы пагинации page/limit.
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// APIHandler — агрегат всех обработчиков API.
type APIHandler struct {
	Health      *HealthHandler
	Auth        *AuthHandler
	Users       *UsersHandler
	Files       *FilesHandler
	Assignments *AssignmentsHandler
	logger      *slog.Logger
}

// NewAPIHandler создаёт агрегат обработчиков.
func NewAPIHandler(
	health *HealthHandler,
	auth *AuthHandler,
	users *UsersHandler,
	files *FilesHandler,
	assignments *AssignmentsHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		Health:      health,
		Auth:        auth,
		Users:       users,
		Files:       files,
		Assignments: assignments,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.Unauthorized(w, "Неверные учётные данные")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ресурс не найден")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, "Ресурс уже существует")
	case errors.Is(err, service.ErrStorageUnavailable):
		// Детали сбоя хранилища не раскрываются клиенту
		apierrors.UpstreamError(w, "Объектное хранилище недоступно")
	default:
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// validUUID проверяет синтаксис идентификатора до обращения к БД:
// некорректный UUID — ошибка клиента (400), а не отсутствие ресурса
// и не сбой запроса к uuid-колонке.
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// pathUUID извлекает UUID-параметр маршрута. При некорректном
// значении пишет 400 и возвращает false.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if !validUUID(id) {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный идентификатор %q", id))
		return "", false
	}
	return id, true
}

// parsePagination читает query-параметры page/limit и возвращает
// limit и offset для репозиториев. page с 1, limit 1..100 (по умолчанию 20).
func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	page := 1

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			page = v
		}
	}

	return limit, (page - 1) * limit
}

// listMeta — метаданные постраничного ответа.
type listMeta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func metaFor(limit, offset, total int) listMeta {
	return listMeta{Page: offset/limit + 1, Limit: limit, Total: total}
}

// --- DTO ответов API ---

// userResponse — пользователь в ответах API. Хэш пароля не отдаётся.
type userResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	AssignmentsCount *int      `json:"assignmentsCount,omitempty"`
}

func toUserResponse(u *model.User, withCount bool) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if withCount {
		count := u.AssignmentsCount
		resp.AssignmentsCount = &count
	}
	return resp
}

// fileResponse — файл в ответах API. Ключ хранилища не отдаётся.
type fileResponse struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	ProjectSlug  string    `json:"projectSlug"`
	SizeBytes    int64     `json:"sizeBytes"`
	SHA256       string    `json:"sha256"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

func toFileResponse(f *model.File) fileResponse {
	return fileResponse{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		ProjectSlug:  f.ProjectSlug,
		SizeBytes:    f.SizeBytes,
		SHA256:       f.SHA256,
		UploadedAt:   f.UploadedAt,
	}
}

func toFileResponses(files []*model.File) []fileResponse {
	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFileResponse(f))
	}
	return out
}

// assignmentResponse — назначение в ответах API.
type assignmentResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	FileID    string    `json:"fileId"`
	UserEmail string    `json:"userEmail,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toAssignmentResponse(a *model.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		FileID:    a.FileID,
		UserEmail: a.UserEmail,
		FileName:  a.FileName,
		CreatedAt: a.CreatedAt,
	}
}
