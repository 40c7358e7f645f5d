// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/storefront/internal/session"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "sid"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// stateContextKey はリクエストコンテキストにセッション状態を格納するためのキー。
var stateContextKey = contextKey("session_state")

// createdContextKey はこのリクエストでセッションが新規作成されたことを示すキー。
var createdContextKey = contextKey("session_created")

// SessionResolver はCookieのセッションIDから状態を解決する。
// session.Registryが実装する。
type SessionResolver interface {
	Resolve(ctx context.Context, id string) (st *session.State, created bool)
}

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge time.Duration
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// セッション状態をリクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない・失効している場合は新しいセッションを作成してCookieを発行する。
func NewSessionMiddleware(resolver SessionResolver, cfg CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				id = cookie.Value
			}

			st, created := resolver.Resolve(r.Context(), id)
			if created || st.ID != id {
				SetSessionCookie(w, cfg, st.ID)
			}

			ctx := ContextWithState(r.Context(), st)
			if created {
				ctx = context.WithValue(ctx, createdContextKey, true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetSessionCookie はセッションCookieを書き込む。ログイン時のID切り替えでも使う。
func SetSessionCookie(w http.ResponseWriter, cfg CookieConfig, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// StateFromContext はリクエストコンテキストからセッション状態を取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func StateFromContext(ctx context.Context) (*session.State, bool) {
	st, ok := ctx.Value(stateContextKey).(*session.State)
	return st, ok && st != nil
}

// ContextWithState はコンテキストにセッション状態を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithState(ctx context.Context, st *session.State) context.Context {
	return context.WithValue(ctx, stateContextKey, st)
}

// SessionCreated はこのリクエストでセッションが新規作成されたかを返す。
func SessionCreated(ctx context.Context) bool {
	created, _ := ctx.Value(createdContextKey).(bool)
	return created
}

// sessionLabel はログに出すセッションIDの先頭部分を返す。
func sessionLabel(ctx context.Context) string {
	st, ok := StateFromContext(ctx)
	if !ok || st.ID == "" {
		return ""
	}
	if len(st.ID) > 8 {
		return st.ID[:8]
	}
	return st.ID
}
