package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/andon-board/middleware"
	"github.com/upb/andon-board/services/auth"
	"github.com/upb/andon-board/utils"
	"go.uber.org/zap"
)

const authCookieName = "auth_token"

// LoginRequest is the body of POST /api/v1/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Authenticator signs staff in
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

// AuthHandler handles staff sign-in
type AuthHandler struct {
	auth         Authenticator
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. secureCookie marks the session
// cookie Secure.
func NewAuthHandler(authenticator Authenticator, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         authenticator,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// HandleLogin handles POST /api/v1/auth/login. The token is returned in the
// body and also set as an HttpOnly cookie for the board pages.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeOK(w, r, session, h.logger)
}

// HandleLogout handles POST /api/v1/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /api/v1/t/{slug}/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}
	writeOK(w, r, principal, h.logger)
}
