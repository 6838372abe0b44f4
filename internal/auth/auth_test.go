package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"daisycash/internal/store/memory"
)

func newService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewService(memory.New(nil), "test-secret", time.Hour).WithClock(func() time.Time { return now })
	if _, err := s.EnsureUser(context.Background(), "owner@example.com", "hunter22"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	return s, &now
}

func TestLoginAndAuthenticate(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	if _, err := s.Login(ctx, "owner@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := s.Login(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	sess, err := s.Login(ctx, "Owner@Example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	p, err := s.Authenticate(sess.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Email != "owner@example.com" || p.UserID == "" || p.SessionID == "" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	s, _ := newService(t)
	a, _ := s.EnsureUser(context.Background(), "owner@example.com", "other")
	b, _ := s.EnsureUser(context.Background(), "owner@example.com", "other")
	if a.ID != b.ID {
		t.Fatalf("expected same user, got %s and %s", a.ID, b.ID)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	s, now := newService(t)
	sess, _ := s.Login(context.Background(), "owner@example.com", "hunter22")

	other := NewService(memory.New(nil), "other-secret", time.Hour)
	if _, err := other.Authenticate(sess.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected signature failure, got %v", err)
	}
	if _, err := s.Authenticate(""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for empty token, got %v", err)
	}
	if _, err := s.Authenticate("not.a.jwt"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for garbage, got %v", err)
	}

	*now = now.Add(2 * time.Hour)
	if s.IsAuthenticated(sess.Token) {
		t.Fatalf("expired token accepted")
	}
}

func TestLogoutRevokes(t *testing.T) {
	s, _ := newService(t)
	sess, _ := s.Login(context.Background(), "owner@example.com", "hunter22")
	if err := s.Logout(sess.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.IsAuthenticated(sess.Token) {
		t.Fatalf("revoked token accepted")
	}
	if err := s.Logout(sess.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated on second logout, got %v", err)
	}
}

func TestGuard(t *testing.T) {
	s, _ := newService(t)
	sess, _ := s.Login(context.Background(), "owner@example.com", "hunter22")

	var seen Principal
	h := s.Guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		path   string
		setup  func(*http.Request)
		status int
	}{
		{"api without session", "/api/transactions", func(*http.Request) {}, http.StatusUnauthorized},
		{"page without session", "/dashboard", func(*http.Request) {}, http.StatusSeeOther},
		{"cookie", "/api/transactions", func(r *http.Request) { r.AddCookie(SessionCookie(sess, false)) }, http.StatusNoContent},
		{"bearer", "/api/transactions", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+sess.Token) }, http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		tc.setup(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
		if tc.status == http.StatusSeeOther && rec.Header().Get("Location") != LoginPath {
			t.Fatalf("%s: unexpected redirect %q", tc.name, rec.Header().Get("Location"))
		}
	}
	if seen.Email != "owner@example.com" {
		t.Fatalf("principal not propagated: %+v", seen)
	}
}

func TestRedirectIfAuthenticated(t *testing.T) {
	s, _ := newService(t)
	sess, _ := s.Login(context.Background(), "owner@example.com", "hunter22")
	h := s.RedirectIfAuthenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, LoginPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous: expected 200, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, LoginPath, nil)
	req.AddCookie(SessionCookie(sess, false))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != DashboardPath {
		t.Fatalf("authenticated: expected redirect to dashboard, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}
