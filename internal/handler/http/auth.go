package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kumanday/OmniLearn/internal/auth"
	"github.com/kumanday/OmniLearn/internal/domain"
	"github.com/kumanday/OmniLearn/internal/service"
	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
	"github.com/kumanday/OmniLearn/pkg/httputil"
	"github.com/kumanday/OmniLearn/pkg/logger"
	"github.com/kumanday/OmniLearn/pkg/middleware"
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service *service.AuthService
	cookie  auth.CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, cookie auth.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookie: cookie, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for password registration.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the JSON request body for password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// GoogleLoginRequest carries the ID token obtained by Google Identity
// Services in the browser.
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required,notblank"`
}

// --- Response types ---

// UserResponse is the public view of an account.
type UserResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	PictureURL string `json:"picture_url"`
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, PictureURL: u.PictureURL}
}

// AuthResponse is returned by every sign-in endpoint. The same token is also
// set as the session cookie.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

// --- Handlers ---

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeSession(w, http.StatusCreated, result)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.PasswordLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeSession(w, http.StatusOK, result)
}

// Google handles POST /api/v1/auth/google
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.GoogleLogin(r.Context(), req.IDToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeSession(w, http.StatusOK, result)
}

// Logout handles POST /api/v1/auth/logout. Tokens are stateless, so this
// only clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookie.ClearSession(w)
	httputil.WriteData(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.ResolveCurrentUser(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newUserResponse(user))
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, result *service.AuthResult) {
	h.cookie.SetSession(w, result.AccessToken, h.service.TokenTTL())
	httputil.WriteData(w, status, AuthResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		User:        newUserResponse(result.User),
	})
}

// sessionAuthenticator resolves the caller through the auth service. Storage
// failures are logged here because the middleware answers every failure
// with the same 401.
func sessionAuthenticator(svc *service.AuthService, fallback *slog.Logger) middleware.Authenticator {
	return func(r *http.Request) (*middleware.Claims, error) {
		user, err := svc.ResolveCurrentUser(r)
		if err != nil {
			if !errors.Is(err, apperrors.ErrUnauthorized) {
				logger.WithContext(r.Context(), fallback).ErrorContext(r.Context(), "session lookup failed",
					slog.String("error", err.Error()),
				)
			}
			return nil, err
		}
		return &middleware.Claims{UserID: user.ID, Email: user.Email}, nil
	}
}
