package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/model"
)

// LoginPath は認証切れ時の遷移先。
const LoginPath = "/login"

// Navigation は画面遷移の指示。
type Navigation struct {
	RedirectTo string `json:"redirect"`
}

// Coordinator は認証切れ後の遷移を決める唯一の場所。
// HTTPクライアント層は型付きエラーを返すだけで、遷移の判断はここで行う。
type Coordinator struct {
	logger *slog.Logger
}

// NewCoordinator はCoordinatorを生成する。
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{logger: logger}
}

// HandleAuthExpired は認証切れを処理し、ログイン画面への遷移を返す。
// トークンが確実に消えていることを保証する。カートは保持する。
func (c *Coordinator) HandleAuthExpired(ctx context.Context, st *State, cause error) Navigation {
	attrs := []any{slog.String("redirect", LoginPath)}
	if st != nil {
		attrs = append(attrs, slog.String("session_id", st.ID))
		if err := st.Tokens.Delete(ctx, apiclient.TokenKey); err != nil {
			attrs = append(attrs, slog.String("token_error", err.Error()))
		}
	}

	var authErr *model.AuthExpiredError
	if errors.As(cause, &authErr) {
		attrs = append(attrs,
			slog.String("method", authErr.Method),
			slog.String("path", authErr.Path),
		)
	}

	c.logger.Warn("認証切れのためログイン画面へ遷移します", attrs...)
	return Navigation{RedirectTo: LoginPath}
}

// Resolve はエラーが認証切れであれば遷移を返す。
func (c *Coordinator) Resolve(ctx context.Context, st *State, err error) (Navigation, bool) {
	if !errors.Is(err, model.ErrAuthExpired) {
		return Navigation{}, false
	}
	return c.HandleAuthExpired(ctx, st, err), true
}
