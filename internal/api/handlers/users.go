// users.go — управление пользователями (/api/v1/users, только ADMIN).
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/dkrylov/filegate/internal/api/errors"
	"github.com/dkrylov/filegate/internal/api/middleware"
	"github.com/dkrylov/filegate/internal/domain/policy"
	"github.com/dkrylov/filegate/internal/service"
)

// UsersHandler — обработчики /api/v1/users.
type UsersHandler struct {
	users  *service.UserService
	engine *policy.Engine
	logger *slog.Logger
}

// NewUsersHandler создаёт обработчик пользователей.
func NewUsersHandler(users *service.UserService, engine *policy.Engine, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{
		users:  users,
		engine: engine,
		logger: logger.With(slog.String("component", "users_handler")),
	}
}

// createUserRequest — тело запроса POST /users.
type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Create — POST /api/v1/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	identity := middleware.IdentityFromContext(r.Context())
	user, err := h.users.Create(r.Context(), identity, req.Email, req.Password, req.Role, middleware.ClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user, false))
}

// userListResponse — постраничный список пользователей.
type userListResponse struct {
	Users []userResponse `json:"users"`
	Meta  listMeta       `json:"meta"`
}

// List — GET /api/v1/users?page&limit.
// Каждый элемент содержит число назначенных файлов.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	users, total, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := userListResponse{
		Users: make([]userResponse, 0, len(users)),
		Meta:  metaFor(limit, offset, total),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserResponse(u, true))
	}
	writeJSON(w, http.StatusOK, resp)
}

// userDetailResponse — карточка пользователя с назначенными файлами.
type userDetailResponse struct {
	userResponse
	Files []fileResponse `json:"files"`
}

// Get — GET /api/v1/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	user, files, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userDetailResponse{
		userResponse: toUserResponse(user, false),
		Files:        toFileResponses(files),
	})
}

// updateUserRequest — тело запроса PATCH /users/{id}.
// Отсутствующее поле не меняется.
type updateUserRequest struct {
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

// Update — PATCH /api/v1/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	if req.Email == nil && req.Role == nil {
		apierrors.ValidationError(w, "Нет полей для обновления")
		return
	}

	user, err := h.users.Update(r.Context(), id, req.Email, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user, false))
}

// ResetPassword — PATCH /api/v1/users/{id}/reset-password.
// Возвращает временный пароль единственный раз.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())

	tempPassword, err := h.users.ResetPassword(r.Context(), identity, id, middleware.ClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"temporaryPassword": tempPassword})
}

// Delete — DELETE /api/v1/users/{id}.
// Решение о доступе (включая запрет самоудаления) принимает
// policy.Engine с реальным идентификатором цели.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())

	decision, err := h.engine.Authorize(r.Context(), identity, policy.OpUserDelete, id)
	if err != nil {
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}
	if !decision.Allowed {
		middleware.WriteDecision(w, decision)
		return
	}

	if err := h.users.Delete(r.Context(), identity, id, middleware.ClientIP(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
