// Package user はユーザー・認証に関するバックエンド呼び出しを提供する。
package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
)

// UserIDKey はログイン中ユーザーのIDを保存するキー。
const UserIDKey = apiclient.UserIDKey

// minPasswordLength は登録時のパスワード最小長。
const minPasswordLength = 6

// Service はユーザー管理のサービス層。
// クライアントはセッションのトークンストアに紐づいたものを渡す。
type Service struct {
	client *apiclient.Client
	norm   *envelope.Normalizer
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client *apiclient.Client, norm *envelope.Normalizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, norm: norm, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードでログインし、トークンを保存する。
// 資格情報の誤り（400/401）は LOGIN_FAILED として返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidInputError("email và mật khẩu là bắt buộc")
	}

	body, err := s.client.PostCredentials(ctx, "/auth/login", loginRequest{Email: email, Password: password})
	if err != nil {
		if isStatus(err, http.StatusUnauthorized) || isStatus(err, http.StatusBadRequest) {
			return nil, model.NewLoginFailedError()
		}
		return nil, fmt.Errorf("ログインに失敗しました: %w", err)
	}

	result := s.parseLogin(body)
	if result == nil || result.Token == "" {
		return nil, model.NewLoginFailedError()
	}

	if err := s.client.SetToken(ctx, result.Token); err != nil {
		return nil, fmt.Errorf("トークンの保存に失敗しました: %w", err)
	}
	if result.User != nil && result.User.ID != "" {
		if err := s.client.Tokens().Set(ctx, UserIDKey, result.User.ID); err != nil {
			s.logger.Warn("ユーザーIDの保存に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("ログインしました",
		slog.String("user_id", userID(result.User)),
	)
	return result, nil
}

// parseLogin はログインレスポンスからトークンとユーザーを取り出す。
// {"token": ..., "user": {...}} を包んだ形・包まない形のどちらも受け付ける。
func (s *Service) parseLogin(body []byte) *model.LoginResult {
	rec := envelope.One[map[string]json.RawMessage](s.norm, "login", body)
	if rec == nil {
		return nil
	}

	result := &model.LoginResult{}
	for _, key := range []string{"token", "accessToken", "Token"} {
		var tok string
		if v, ok := (*rec)[key]; ok && json.Unmarshal(v, &tok) == nil && tok != "" {
			result.Token = tok
			break
		}
	}

	if raw, ok := (*rec)["user"]; ok {
		var userRec map[string]json.RawMessage
		if json.Unmarshal(raw, &userRec) == nil && len(userRec) > 0 {
			u := envelope.NormalizeUser(userRec)
			result.User = &u
		}
	}
	return result
}

// Logout は保存済みのトークンとユーザーIDを破棄する。
func (s *Service) Logout(ctx context.Context) error {
	if err := s.client.ClearToken(ctx); err != nil {
		return fmt.Errorf("トークンの破棄に失敗しました: %w", err)
	}
	if tokens := s.client.Tokens(); tokens != nil {
		if err := tokens.Delete(ctx, UserIDKey); err != nil {
			return fmt.Errorf("ユーザーIDの破棄に失敗しました: %w", err)
		}
	}
	return nil
}

// Me はログイン中のユーザーを返す。未ログインの場合はUNAUTHORIZEDを返す。
func (s *Service) Me(ctx context.Context) (*model.User, error) {
	tokens := s.client.Tokens()
	if tokens == nil {
		return nil, model.NewUnauthorizedError()
	}
	if _, ok, err := tokens.Get(ctx, apiclient.TokenKey); err != nil || !ok {
		return nil, model.NewUnauthorizedError()
	}
	id, ok, err := tokens.Get(ctx, UserIDKey)
	if err != nil {
		return nil, fmt.Errorf("ユーザーIDの取得に失敗しました: %w", err)
	}
	if !ok || id == "" {
		return nil, model.NewUnauthorizedError()
	}
	return s.Get(ctx, id)
}

// List はユーザー一覧を取得する。
func (s *Service) List(ctx context.Context) ([]model.User, error) {
	body, err := s.client.Get(ctx, "/Users")
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return s.norm.Users(body), nil
}

// Get は指定IDのユーザーを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	body, err := s.client.Get(ctx, "/Users/"+url.PathEscape(id))
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, model.NewUserNotFoundError(id)
		}
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	u := s.norm.User(body)
	if u == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return u, nil
}

// Register はユーザーを新規登録する。
func (s *Service) Register(ctx context.Context, in model.RegisterInput) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		return nil, model.NewInvalidInputError("email không hợp lệ")
	}
	if len(in.Password) < minPasswordLength {
		return nil, model.NewInvalidInputError(fmt.Sprintf("mật khẩu phải có ít nhất %d ký tự", minPasswordLength))
	}
	if in.FirstName == "" && in.LastName == "" {
		return nil, model.NewInvalidInputError("họ tên là bắt buộc")
	}

	body, err := s.client.Post(ctx, "/Users", in)
	if err != nil {
		if isStatus(err, http.StatusBadRequest) || isStatus(err, http.StatusConflict) {
			return nil, model.NewInvalidInputError("email đã được sử dụng hoặc dữ liệu không hợp lệ")
		}
		return nil, fmt.Errorf("ユーザー登録に失敗しました: %w", err)
	}

	if len(strings.TrimSpace(string(body))) > 0 {
		if u := s.norm.User(body); u != nil {
			return u, nil
		}
	}
	// 作成APIが本文を返さない場合は入力値から組み立てる
	u := envelope.NormalizeUser(map[string]json.RawMessage{
		"firstName": mustJSON(in.FirstName),
		"lastName":  mustJSON(in.LastName),
		"email":     mustJSON(in.Email),
	})
	return &u, nil
}

// Update はユーザー情報を更新し、更新後のユーザーを返す。
func (s *Service) Update(ctx context.Context, id string, in model.UpdateUserInput) (*model.User, error) {
	body, err := s.client.Put(ctx, "/Users/"+url.PathEscape(id), in)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, model.NewUserNotFoundError(id)
		}
		return nil, fmt.Errorf("ユーザー情報の更新に失敗しました: %w", err)
	}

	if len(strings.TrimSpace(string(body))) > 0 {
		if d := envelope.DecodeOne[map[string]json.RawMessage](body); d.Ok() {
			if u := envelope.NormalizeUser(d.Value); u.ID != "" {
				return &u, nil
			}
		}
	}
	// 204やID無しの応答の場合は取得し直す
	return s.Get(ctx, id)
}

// Delete は指定IDのユーザーを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.client.Delete(ctx, "/Users/"+url.PathEscape(id)); err != nil {
		if apiclient.IsNotFound(err) {
			return model.NewUserNotFoundError(id)
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var httpErr *apiclient.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

func userID(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func mustJSON(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
