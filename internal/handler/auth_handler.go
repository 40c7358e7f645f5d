package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

// SessionLifecycle はログイン・ログアウトに伴うセッションIDの切り替えと破棄を行う。
// session.Registryが実装する。
type SessionLifecycle interface {
	Rotate(ctx context.Context, old *session.State) *session.State
	End(ctx context.Context, id string)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	base
	sessions SessionLifecycle
	cookie   middleware.CookieConfig
}

// NewAuthHandler はAuthHandlerの新しいインスタンスを生成する。
func NewAuthHandler(services *ServiceFactory, coord *session.Coordinator, sessions SessionLifecycle, cookie middleware.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		base:     newBase(services, coord, logger),
		sessions: sessions,
		cookie:   cookie,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はPOST /auth/login を処理する。
// 成功時はセッションIDを切り替え、新しいCookieを発行する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.services.Users(st).Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}

	next := h.sessions.Rotate(r.Context(), st)
	middleware.SetSessionCookie(w, h.cookie, next.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"user": result.User,
	})
}

// Logout はPOST /auth/logout を処理する。
// バックエンドのログアウト結果にかかわらずセッションを破棄する。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}

	if err := h.services.Users(st).Logout(r.Context()); err != nil {
		h.logger.Warn("ログアウト時のトークン破棄に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	h.sessions.End(r.Context(), st.ID)
	middleware.ClearSessionCookie(w, h.cookie)

	w.WriteHeader(http.StatusNoContent)
}

// Me はGET /auth/me を処理する。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}

	u, err := h.services.Users(st).Me(r.Context())
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Register はPOST /auth/register を処理する。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	var in model.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}

	u, err := h.services.Users(st).Register(r.Context(), in)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// UpdateMe はPUT /auth/me を処理する。
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	var in model.UpdateUserInput
	if !decodeJSON(w, r, &in) {
		return
	}

	users := h.services.Users(st)
	me, err := users.Me(r.Context())
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	u, err := users.Update(r.Context(), me.ID, in)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// RequireLogin はトークンを持たないセッションを401で拒否するミドルウェア。
// 遷移先としてログイン画面を返す。
func RequireLogin(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := middleware.StateFromContext(r.Context())
			if !ok {
				middleware.WriteErrorResponseWithRedirect(w, http.StatusUnauthorized, model.NewUnauthorizedError(), session.LoginPath)
				return
			}
			token, found, err := st.Tokens.Get(r.Context(), apiclient.TokenKey)
			if err != nil {
				logger.Error("failed to read session token", slog.String("error", err.Error()))
				middleware.WriteInternalServerError(w)
				return
			}
			if !found || token == "" {
				middleware.WriteErrorResponseWithRedirect(w, http.StatusUnauthorized, model.NewUnauthorizedError(), session.LoginPath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
