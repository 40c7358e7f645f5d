// Package apiclient はバックエンドREST APIを呼び出すHTTPクライアントを提供する。
//
// すべてのリクエストに Content-Type: application/json と、トークンがあれば
// Authorization: Bearer ヘッダーを付与する。401を受け取った場合はトークンを破棄し、
// *model.AuthExpiredError を返す。画面遷移の判断は呼び出し側（session.Coordinator）が行う。
// リトライは行わない。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/model"
)

const (
	// defaultTimeout はHTTPクライアントを内部生成する場合のタイムアウト。
	defaultTimeout = 10 * time.Second
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（10MB）。
	maxResponseSize = 10 * 1024 * 1024
	// maxErrorBody はHTTPErrorに保持するボディの最大サイズ。
	maxErrorBody = 1024
)

// HTTPError はバックエンドが2xx/401以外のステータスを返したことを表す。
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

// Error はエラーメッセージを返す。
func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned status %d for %s %s", e.StatusCode, e.Method, e.Path)
}

// Class はステータスコードの分類を返す。
func (e *HTTPError) Class() StatusClass {
	return ClassifyStatus(e.StatusCode)
}

// IsNotFound はエラーがバックエンドの404であるかを判定する。
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

// Options はClientの生成オプション。
type Options struct {
	// BaseURL はバックエンドのベースURL（必須）。末尾のスラッシュは除去する。
	BaseURL string
	// HTTPClient が nil の場合、Cookie Jar付きのクライアントを内部生成する。
	HTTPClient *http.Client
	// Timeout は内部生成するクライアントのタイムアウト。
	Timeout time.Duration
	// Tokens は認証トークンの保存先。nil の場合は認証ヘッダーを付与しない。
	Tokens TokenStore
	// Limiter はバックエンドへの送信レートを制限する。nil の場合は無制限。
	Limiter *rate.Limiter
	Metrics metrics.MetricsCollector
	Logger  *slog.Logger
}

// Client はバックエンドAPIのクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	ownsJar    bool
	tokens     TokenStore
	limiter    *rate.Limiter
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// New は新しいClientを生成する。
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	c := &Client{
		baseURL:    base,
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		jar, err := newJar()
		if err != nil {
			return nil, err
		}
		c.httpClient = &http.Client{Timeout: timeout, Jar: jar}
		c.ownsJar = true
	}

	return c, nil
}

func newJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// WithTokens は別のトークンストアを使うClientのコピーを返す。
// Cookie Jarを内部生成している場合、コピーには新しいJarを割り当て、
// セッション間でCookieが共有されないようにする。
func (c *Client) WithTokens(tokens TokenStore) *Client {
	cp := *c
	cp.tokens = tokens
	if c.ownsJar {
		hc := *c.httpClient
		if jar, err := newJar(); err == nil {
			hc.Jar = jar
		} else {
			hc.Jar = nil
		}
		cp.httpClient = &hc
	}
	return &cp
}

// Tokens はこのClientが使用するトークンストアを返す。
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

// SetToken はログイン成功時にトークンを保存する。
func (c *Client) SetToken(ctx context.Context, token string) error {
	if c.tokens == nil {
		return errors.New("token store is not configured")
	}
	return c.tokens.Set(ctx, TokenKey, token)
}

// ClearToken は保存済みのトークンを破棄する。
func (c *Client) ClearToken(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	return c.tokens.Delete(ctx, TokenKey)
}

// Get はGETリクエストを送信し、レスポンスボディを返す。
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post はPOSTリクエストを送信する。payloadはJSONにエンコードする。
func (c *Client) Post(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, path, payload)
}

// Put はPUTリクエストを送信する。
func (c *Client) Put(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.Do(ctx, http.MethodPut, path, payload)
}

// Delete はDELETEリクエストを送信する。
func (c *Client) Delete(ctx context.Context, path string) ([]byte, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// PostCredentials は資格情報を送るPOSTリクエストを送信する。
// 認証ヘッダーは付けず、401は資格情報の誤りとして *HTTPError で返す。保存済みトークンは破棄しない。
func (c *Client) PostCredentials(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, payload, false)
}

// Do はリクエストを1回だけ送信し、2xxの場合にレスポンスボディを返す。
// 401の場合はトークンを破棄して *model.AuthExpiredError を返す。
// それ以外の非2xxは *HTTPError を返す。
func (c *Client) Do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	return c.do(ctx, method, path, payload, true)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, authenticated bool) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait for %s %s: %w", method, path, err)
		}
	}

	var body io.Reader
	if payload != nil {
		encoded, err := encodePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body for %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+ensureLeadingSlash(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if authenticated {
		if token := c.currentToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordAPILatency(time.Since(start))
	if err != nil {
		c.metrics.RecordAPIRequest(method, 0)
		c.logger.Error("バックエンドAPIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordAPIRequest(method, resp.StatusCode)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s %s: %w", method, path, err)
	}

	switch class := ClassifyStatus(resp.StatusCode); {
	case class == StatusOK:
		return respBody, nil
	case class == StatusAuthExpired && authenticated:
		c.metrics.RecordAuthExpired()
		if err := c.ClearToken(ctx); err != nil {
			c.logger.Error("認証トークンの破棄に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		c.logger.Warn("認証が期限切れです",
			slog.String("method", method),
			slog.String("path", path),
		)
		return nil, &model.AuthExpiredError{Method: method, Path: path}
	default:
		c.logger.Warn("バックエンドAPIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Body:       string(respBody),
		}
	}
}

// currentToken は保存済みのトークンを返す。取得に失敗した場合は認証なしで送信する。
func (c *Client) currentToken(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	token, ok, err := c.tokens.Get(ctx, TokenKey)
	if err != nil {
		c.logger.Warn("認証トークンの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}

func ensureLeadingSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}
