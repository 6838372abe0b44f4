package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"daisycash/internal/auth"
	applog "daisycash/internal/log"
)

const readyTimeout = 5 * time.Second

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.store == nil {
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", "check", "store", "error", err)
		checks["store"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.blobs == nil {
		checks["receipts"] = "not_configured"
	} else {
		checks["receipts"] = "ok"
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLoginPage tells an anonymous caller how to log in. Callers with a
// live session never reach it.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"authenticated": false,
		"login":         "POST " + auth.LoginPath + " with email and password",
	}).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	email := sanitizeInput(req.Email)
	if email == "" || req.Password == "" {
		UnprocessableEntityError("email and password are required").Write(w)
		return
	}

	sess, err := s.auth.Login(r.Context(), email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.logger.WarnContext(r.Context(), "Login rejected", applog.FieldOperation, applog.OpLogin, "email", email)
		ErrorResponse(http.StatusUnauthorized, err.Error()).Write(w)
		return
	}
	if err != nil {
		s.respondError(w, r, err, applog.OpLogin)
		return
	}

	http.SetCookie(w, auth.SessionCookie(sess, s.cookieSecure))
	s.logger.InfoContext(r.Context(), "User logged in",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUserID, sess.Principal.UserID)
	NewJSONResponse().Body(sess).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(auth.TokenFrom(r)); err != nil {
		s.logger.DebugContext(r.Context(), "Logout of an already invalid session", "error", err)
	}
	http.SetCookie(w, auth.ClearedCookie(s.cookieSecure))
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		s.logger.InfoContext(r.Context(), "User logged out",
			applog.FieldOperation, applog.OpLogout,
			applog.FieldUserID, p.UserID)
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
