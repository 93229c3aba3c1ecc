package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdentify_WithValidCookie(t *testing.T) {
	a := NewAuth("test-secret")

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

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/checkout", nil)

	a.SetAuthCookie(w, 42)
	resCookies := w.Result().Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}
	r.AddCookie(resCookies[0])

	a.Identify(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestIdentify_WithoutCookiePassesThroughAsGuest(t *testing.T) {
	a := NewAuth("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		if _, ok := GetUserIDFromContext(r.Context()); ok {
			t.Fatalf("guest request must not carry a user id")
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/checkout", nil)

	a.Identify(next).ServeHTTP(w, r)

	if !nextCalled {
		t.Fatalf("guest request must pass through")
	}
}

func TestIdentify_WithTamperedCookie(t *testing.T) {
	a := NewAuth("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserIDFromContext(r.Context()); ok {
			t.Fatalf("tampered cookie must not identify a user")
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/checkout", nil)
	r.AddCookie(&http.Cookie{Name: "auth_token", Value: "42.deadbeef"})

	a.Identify(next).ServeHTTP(httptest.NewRecorder(), r)
}

func TestSessions_IssuesAndKeepsID(t *testing.T) {
	s := NewSessions("test-secret")

	var issued string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := GetSessionIDFromContext(r.Context())
		if !ok || sid == "" {
			t.Fatalf("session id not in context")
		}
		issued = sid
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/bag", nil)

	s.Middleware(next).ServeHTTP(w, r)

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected session cookie to be set")
	}

	// Повторный запрос с выданным cookie сохраняет тот же идентификатор.
	second := httptest.NewRequest(http.MethodGet, "/bag", nil)
	second.AddCookie(cookies[0])

	verify := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, _ := GetSessionIDFromContext(r.Context())
		if sid != issued {
			t.Fatalf("session id = %s, want %s", sid, issued)
		}
	})

	rec := httptest.NewRecorder()
	s.Middleware(verify).ServeHTTP(rec, second)

	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("valid session cookie must not be reissued")
	}
}

func TestSessions_RejectsTamperedCookie(t *testing.T) {
	s := NewSessions("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, _ := GetSessionIDFromContext(r.Context())
		if sid == "forged-session" {
			t.Fatalf("tampered session id must be replaced")
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/bag", nil)
	r.AddCookie(&http.Cookie{Name: "session_id", Value: "forged-session.deadbeef"})

	s.Middleware(next).ServeHTTP(w, r)

	if len(w.Result().Cookies()) == 0 {
		t.Fatalf("expected a fresh session cookie to be issued")
	}
}
