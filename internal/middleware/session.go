package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

const (
	sessionCookieName = "session_id"
	sessionCookieTTL  = 14 * 24 * time.Hour
)

// Sessions выдаёт и проверяет подписанные идентификаторы сессии покупателя.
type Sessions struct {
	secretKey []byte
}

// NewSessions создаёт middleware сессий с указанным секретным ключом.
func NewSessions(secret string) *Sessions {
	return &Sessions{secretKey: []byte(secret)}
}

// Middleware гарантирует, что у запроса есть валидная сессия: существующий
// подписанный cookie принимается, иначе выдаётся новый идентификатор.
// Идентификатор сессии кладётся в контекст запроса.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sid string

		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			if v, ok := parseSigned(s.secretKey, cookie.Value); ok {
				sid = v
			}
		}

		if sid == "" {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    signValue(s.secretKey, sid),
				Path:     "/",
				Expires:  time.Now().Add(sessionCookieTTL),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionIDFromContext извлекает идентификатор сессии из контекста запроса.
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey).(string)
	return sid, ok
}

// WithSessionID возвращает контекст с указанным идентификатором сессии.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sid)
}

func signValue(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return value + "." + hex.EncodeToString(mac.Sum(nil))
}

func parseSigned(key []byte, cookieValue string) (string, bool) {
	value, signature, found := strings.Cut(cookieValue, ".")
	if !found || value == "" {
		return "", false
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", false
	}

	return value, true
}
