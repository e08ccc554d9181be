package auth

import (
	"net/http"
	"strings"

	"github.com/swellway/swellway-api/internal/common"
)

// Handlers exposes the admin authentication endpoints.
type Handlers struct {
	Svc *Service
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /admin/auth/login. The route sits behind a per-IP rate
// limit.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return
	}
	result, err := h.Svc.Login(r.Context(), req.Email, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, result)
}

// Refresh handles POST /admin/auth/refresh.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return
	}
	result, err := h.Svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, result)
}

// Logout handles POST /admin/auth/logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON payload", err))
		return
	}
	if err := h.Svc.Logout(r.Context(), req.RefreshToken); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me handles GET /admin/auth/me.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	user, err := h.Svc.Me(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"user": user})
}

// clientIP prefers the RealIP middleware's rewrite of RemoteAddr.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}
