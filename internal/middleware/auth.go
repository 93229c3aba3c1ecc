package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

const userIDKey contextKey = "userID"

const (
	authCookieName = "auth_token"
	authCookieTTL  = 365 * 24 * time.Hour
)

// Auth извлекает личность покупателя из подписанного cookie.
// Оформление заказа доступно и гостям, поэтому отсутствие или
// невалидность cookie не блокирует запрос.
type Auth struct {
	secretKey []byte
}

// NewAuth создаёт middleware аутентификации с указанным секретным ключом.
func NewAuth(secret string) *Auth {
	return &Auth{secretKey: []byte(secret)}
}

// Identify добавляет идентификатор профиля покупателя в контекст запроса,
// если cookie авторизации присутствует и подпись верна.
func (a *Auth) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := parseSigned(a.secretKey, cookie.Value)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie устанавливает cookie авторизации для указанного профиля.
// Используется сервисом аутентификации, владеющим учётными записями.
func (a *Auth) SetAuthCookie(w http.ResponseWriter, profileID int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    signValue(a.secretKey, strconv.FormatInt(profileID, 10)),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetUserIDFromContext извлекает идентификатор профиля покупателя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// WithUserID возвращает контекст с указанным идентификатором профиля.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}
