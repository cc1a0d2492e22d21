// files.go — загрузка, список, карточка, скачивание и удаление архивов.
package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/dkrylov/filegate/internal/api/errors"
	"github.com/dkrylov/filegate/internal/api/middleware"
	"github.com/dkrylov/filegate/internal/domain/policy"
	"github.com/dkrylov/filegate/internal/service"
)

// FilesHandler — обработчики /api/v1/files.
type FilesHandler struct {
	files    *service.FileService
	engine   *policy.Engine
	maxBytes int64
	logger   *slog.Logger
}

// NewFilesHandler создаёт обработчик файлов.
func NewFilesHandler(files *service.FileService, engine *policy.Engine, maxBytes int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		files:    files,
		engine:   engine,
		maxBytes: maxBytes,
		logger:   logger.With(slog.String("component", "files_handler")),
	}
}

// Upload — POST /api/v1/files/upload.
// Multipart-форма: поле file (ZIP-архив) и поле projectSlug.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Запас на multipart-обвязку поверх лимита содержимого
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apierrors.ValidationError(w, "Некорректная multipart-форма или превышен размер")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	projectSlug := r.FormValue("projectSlug")
	if projectSlug == "" {
		apierrors.ValidationError(w, "Поле projectSlug обязательно")
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле file обязательно")
		return
	}
	defer part.Close()

	data, err := io.ReadAll(io.LimitReader(part, h.maxBytes+1))
	if err != nil {
		apierrors.InternalError(w, "Ошибка чтения файла")
		return
	}
	if int64(len(data)) > h.maxBytes {
		apierrors.ValidationError(w, fmt.Sprintf("Размер файла превышает лимит %d байт", h.maxBytes))
		return
	}

	identity := middleware.IdentityFromContext(r.Context())
	file, err := h.files.Upload(r.Context(), identity, projectSlug, header.Filename, data, middleware.ClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileResponse(file))
}

// fileListResponse — постраничный список файлов.
type fileListResponse struct {
	Files []fileResponse `json:"files"`
	Meta  listMeta       `json:"meta"`
}

// List — GET /api/v1/files?page&limit.
// ADMIN видит все файлы, USER — только назначенные ему.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	identity := middleware.IdentityFromContext(r.Context())

	files, total, err := h.files.List(r.Context(), identity, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fileListResponse{
		Files: toFileResponses(files),
		Meta:  metaFor(limit, offset, total),
	})
}

// fileDetailResponse — карточка файла; назначения видит только ADMIN.
type fileDetailResponse struct {
	fileResponse
	Assignments []assignmentResponse `json:"assignments,omitempty"`
}

// Get — GET /api/v1/files/{id}.
// Для USER policy.Engine требует назначения файла.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())

	decision, err := h.engine.Authorize(r.Context(), identity, policy.OpFileGet, id)
	if err != nil {
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}
	if !decision.Allowed {
		middleware.WriteDecision(w, decision)
		return
	}

	file, err := h.files.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := fileDetailResponse{fileResponse: toFileResponse(file)}
	if identity.IsAdmin() {
		assignments, err := h.files.AssignedUsers(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp.Assignments = make([]assignmentResponse, 0, len(assignments))
		for _, a := range assignments {
			resp.Assignments = append(resp.Assignments, toAssignmentResponse(a))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Download — GET /api/v1/files/{id}/download.
// Режим presigned — 302 на подписанную ссылку, режим proxy — поток
// содержимого с Content-Disposition.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())

	decision, err := h.engine.Authorize(r.Context(), identity, policy.OpFileDownload, id)
	if err != nil {
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}
	if !decision.Allowed {
		middleware.WriteDecision(w, decision)
		return
	}

	res, err := h.files.Download(r.Context(), identity, id, middleware.ClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if res.Mode == service.DownloadPresigned {
		http.Redirect(w, r, res.URL, http.StatusFound)
		return
	}

	defer res.Body.Close()
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", res.File.OriginalName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", res.Size))
	if _, err := io.Copy(w, res.Body); err != nil {
		h.logger.Warn("Прерван поток скачивания",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// Delete — DELETE /api/v1/files/{id}.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.files.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
