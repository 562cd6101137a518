package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/atmx/gateway-sim/internal/auth"
)

// SessionManager issues and checks session tokens.
type SessionManager interface {
	Login(userName string) (auth.Session, error)
	Logout(token string) error
	Validate(token string) (auth.Session, error)
}

// LoginApp handles POST /api/Auth/loginApp
func (h *Handler) LoginApp(w http.ResponseWriter, r *http.Request) {
	var req LoginAppRequest
	if !decode(w, r, &req) {
		return
	}
	h.login(w, req.UserName, "app")
}

// LoginKey handles POST /api/Auth/loginKey
func (h *Handler) LoginKey(w http.ResponseWriter, r *http.Request) {
	var req LoginKeyRequest
	if !decode(w, r, &req) {
		return
	}
	h.login(w, req.UserName, "key")
}

func (h *Handler) login(w http.ResponseWriter, userName, method string) {
	s, err := h.sessions.Login(userName)
	if err != nil {
		writeResult(w, failure(codeFor(err, loginUnknownError, loginCodes), err))
		return
	}
	slog.Info("user logged in", "user", userName, "method", method)
	writeJSON(w, LoginResponse{Result: success(), Token: s.Token})
}

// Logout handles POST /api/Auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(bearerToken(r)); err != nil {
		writeResult(w, failure(codeFor(err, logoutUnknownError, logoutCodes), err))
		return
	}
	slog.Info("user logged out")
	writeResult(w, success())
}

// Validate handles POST /api/Auth/validate. A live token is exchanged for
// a new one.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Validate(bearerToken(r))
	if err != nil {
		writeResult(w, failure(codeFor(err, validateUnknownError, validateCodes), err))
		return
	}
	writeJSON(w, ValidateResponse{Result: success(), NewToken: s.Token})
}

// bearerToken returns the token from an "Authorization: Bearer" header, or
// "" when there is none.
func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
