package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func sessionCookie(t *testing.T, m *AuthMiddleware, userID int64) *http.Cookie {
	t.Helper()

	w := httptest.NewRecorder()
	m.SetAuthCookie(w, userID)
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}
	return cookies[0]
}

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Fatalf("user id not in context")
		}
		if id != 42 {
			t.Fatalf("user id from context = %d, want 42", id)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/api/user/wallet", nil)
	r.AddCookie(sessionCookie(t, m, 42))

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	valid := sessionCookie(t, m, 7)

	expired := NewAuthMiddleware("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-authCookieTTL - time.Hour) }
	stale := sessionCookie(t, expired, 7)

	foreign := sessionCookie(t, NewAuthMiddleware("other-secret"), 7)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "no cookie"},
		{name: "garbage", cookie: &http.Cookie{Name: authCookieName, Value: "garbage"}},
		{name: "tampered user", cookie: &http.Cookie{Name: authCookieName, Value: "8" + valid.Value[1:]}},
		{name: "other secret", cookie: foreign},
		{name: "expired", cookie: stale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			r := httptest.NewRequest(http.MethodGet, "/api/user/wallet", nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			m.Middleware(next).ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestClearAuthCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	w := httptest.NewRecorder()
	m.ClearAuthCookie(w)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	if cookies[0].Name != authCookieName || cookies[0].MaxAge >= 0 {
		t.Fatalf("unexpected cookie %+v", cookies[0])
	}
}

type adminStub struct {
	admins map[int64]bool
	err    error
}

func (s adminStub) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return s.admins[userID], s.err
}

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name    string
		userID  int64
		withID  bool
		checker adminStub
		want    int
	}{
		{name: "admin", userID: 1, withID: true, checker: adminStub{admins: map[int64]bool{1: true}}, want: http.StatusOK},
		{name: "regular user", userID: 2, withID: true, checker: adminStub{admins: map[int64]bool{1: true}}, want: http.StatusForbidden},
		{name: "lookup failure", userID: 1, withID: true, checker: adminStub{err: errors.New("db down")}, want: http.StatusForbidden},
		{name: "anonymous", checker: adminStub{}, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			r := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
			if tt.withID {
				r = r.WithContext(WithUserID(r.Context(), tt.userID))
			}
			w := httptest.NewRecorder()
			AdminOnly(tt.checker, zap.NewNop())(next).ServeHTTP(w, r)

			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
