// auth.go — вход, обновление токена, данные текущего пользователя.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/dkrylov/filegate/internal/api/errors"
	"github.com/dkrylov/filegate/internal/api/middleware"
	"github.com/dkrylov/filegate/internal/service"
)

// AuthHandler — обработчики /api/v1/auth.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler создаёт обработчик аутентификации.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With(slog.String("component", "auth_handler")),
	}
}

// loginRequest — тело запроса POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse — ответ на успешный вход.
type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// Login — POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	if req.Email == "" || req.Password == "" {
		apierrors.ValidationError(w, "Поля email и password обязательны")
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password, middleware.ClientIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  toUserResponse(user, false),
	})
}

// Me — GET /api/v1/auth/me. Возвращает учётную запись из контекста
// (она перечитана из БД middleware аутентификации).
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":    identity.UserID,
		"email": identity.Email,
		"role":  identity.Role,
	})
}

// Refresh — POST /api/v1/auth/refresh. Выпускает новый токен
// с актуальными почтой и ролью из БД.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	token, err := h.auth.Refresh(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Logout — POST /api/v1/auth/logout. Серверного состояния сессии нет,
// выход только фиксируется в аудите.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	h.auth.Logout(identity.UserID, middleware.ClientIP(r))
	w.WriteHeader(http.StatusNoContent)
}
