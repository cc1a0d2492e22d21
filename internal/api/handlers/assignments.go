// assignments.go — выдача и отзыв доступа к файлам (/api/v1/assignments).
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/dkrylov/filegate/internal/api/errors"
	"github.com/dkrylov/filegate/internal/api/middleware"
	"github.com/dkrylov/filegate/internal/service"
)

// AssignmentsHandler — обработчики /api/v1/assignments.
type AssignmentsHandler struct {
	assignments *service.AssignmentService
	logger      *slog.Logger
}

// NewAssignmentsHandler создаёт обработчик назначений.
func NewAssignmentsHandler(assignments *service.AssignmentService, logger *slog.Logger) *AssignmentsHandler {
	return &AssignmentsHandler{
		assignments: assignments,
		logger:      logger.With(slog.String("component", "assignments_handler")),
	}
}

// createAssignmentRequest — тело запроса POST /assignments.
type createAssignmentRequest struct {
	UserID string `json:"userId"`
	FileID string `json:"fileId"`
}

// Create — POST /api/v1/assignments.
func (h *AssignmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	if req.UserID == "" || req.FileID == "" {
		apierrors.ValidationError(w, "Поля userId и fileId обязательны")
		return
	}
	if !validUUID(req.UserID) || !validUUID(req.FileID) {
		apierrors.ValidationError(w, "Поля userId и fileId должны быть UUID")
		return
	}

	identity := middleware.IdentityFromContext(r.Context())
	a, err := h.assignments.Create(r.Context(), identity, req.UserID, req.FileID, middleware.ClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentResponse(a))
}

// bulkAssignmentRequest — тело запроса POST /assignments/bulk.
type bulkAssignmentRequest struct {
	FileID  string   `json:"fileId"`
	UserIDs []string `json:"userIds"`
}

// bulkAssignmentResponse — итог массового назначения.
type bulkAssignmentResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// CreateBulk — POST /api/v1/assignments/bulk.
// Несуществующий пользователь в списке отменяет всю операцию;
// уже существующие пары пропускаются.
func (h *AssignmentsHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	if req.FileID == "" {
		apierrors.ValidationError(w, "Поле fileId обязательно")
		return
	}
	if !validUUID(req.FileID) {
		apierrors.ValidationError(w, "Поле fileId должно быть UUID")
		return
	}
	for _, userID := range req.UserIDs {
		if !validUUID(userID) {
			apierrors.ValidationError(w, fmt.Sprintf("Некорректный идентификатор пользователя %q", userID))
			return
		}
	}

	identity := middleware.IdentityFromContext(r.Context())
	res, err := h.assignments.CreateBulk(r.Context(), identity, req.FileID, req.UserIDs, middleware.ClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkAssignmentResponse{Created: res.Created, Skipped: res.Skipped})
}

// Delete — DELETE /api/v1/assignments/{id}.
// Отсутствующее назначение — 404, повторный отзыв не маскируется.
func (h *AssignmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())

	if err := h.assignments.Delete(r.Context(), identity, id, middleware.ClientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteByUserFile — DELETE /api/v1/assignments/file/{fileId}/user/{userId}.
func (h *AssignmentsHandler) DeleteByUserFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathUUID(w, r, "fileId")
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())

	if err := h.assignments.DeleteByUserFile(r.Context(), identity, userID, fileID, middleware.ClientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListByFile — GET /api/v1/assignments/file/{fileId}.
func (h *AssignmentsHandler) ListByFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathUUID(w, r, "fileId")
	if !ok {
		return
	}

	list, err := h.assignments.ListByFile(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]assignmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAssignmentResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": out})
}
