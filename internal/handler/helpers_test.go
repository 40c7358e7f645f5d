package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv はゲートウェイ全体をテストするための環境。
// バックエンドはhttptestのスタブで、Cookieはブラウザと同様に保持する。
type testEnv struct {
	t        *testing.T
	backend  *httptest.Server
	registry *session.Registry
	limiter  *middleware.RateLimiter
	router   http.Handler
	cookies  map[string]*http.Cookie
}

func newTestEnv(t *testing.T, backend http.Handler) *testEnv {
	return newTestEnvWithLimits(t, backend, middleware.DefaultRateLimiterConfig())
}

func newTestEnvWithLimits(t *testing.T, backend http.Handler, limits middleware.RateLimiterConfig) *testEnv {
	t.Helper()

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}

	registry := session.NewRegistry(session.Config{TTL: time.Hour}, repository.NewMemoryKVRepo(), client, discardLogger(), nil)
	t.Cleanup(registry.Stop)

	limits.CleanupInterval = 0
	limiter := middleware.NewRateLimiter(limits, discardLogger())
	t.Cleanup(limiter.Stop)

	router := NewRouter(&RouterDeps{
		Sessions:    registry,
		RateLimiter: limiter,
		Services:    NewServiceFactory(ServiceFactoryConfig{PendingAsFailure: true, Logger: discardLogger()}),
		Coordinator: session.NewCoordinator(discardLogger()),
		HealthCheck: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		Logger: discardLogger(),
	})

	return &testEnv{
		t:        t,
		backend:  srv,
		registry: registry,
		limiter:  limiter,
		router:   router,
		cookies:  make(map[string]*http.Cookie),
	}
}

// do はCookieとCSRFヘッダーを付けてリクエストを送り、レスポンスのCookieを取り込む。
func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range e.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	if c, ok := e.cookies["csrf_token"]; ok {
		req.Header.Set("X-CSRF-Token", c.Value)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(e.cookies, c.Name)
			continue
		}
		e.cookies[c.Name] = c
	}
	return w
}

// start はセッションとCSRFトークンのCookieを取得する。
func (e *testEnv) start() {
	e.t.Helper()
	if w := e.do(http.MethodGet, "/api/cart", ""); w.Code != http.StatusOK {
		e.t.Fatalf("GET /api/cart status = %d, want %d", w.Code, http.StatusOK)
	}
}

// login はバックエンドスタブに対してログインする。
func (e *testEnv) login() {
	e.t.Helper()
	e.start()
	w := e.do(http.MethodPost, "/auth/login", `{"email":"an@example.com","password":"secret1"}`)
	if w.Code != http.StatusOK {
		e.t.Fatalf("login status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func (e *testEnv) sessionID() string {
	if c, ok := e.cookies[middleware.SessionCookieName]; ok {
		return c.Value
	}
	return ""
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) middleware.ErrorResponseBody {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d (body = %s)", w.Code, status, w.Body.String())
	}
	body := decodeBody[middleware.ErrorResponseBody](t, w)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
	return body
}

const testToken = "tok-1"

// authorized はAuthorizationヘッダーがログイン済みトークンかを判定する。
func authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+testToken
}

// newFakeBackend はストアフロントのバックエンドAPIのスタブを返す。
// overridesで個別のパターンを差し替えられる。
func newFakeBackend(overrides map[string]http.HandlerFunc) *http.ServeMux {
	routes := map[string]http.HandlerFunc{
		"POST /auth/login": func(w http.ResponseWriter, r *http.Request) {
			var req struct{ Email, Password string }
			json.NewDecoder(r.Body).Decode(&req)
			if req.Password != "secret1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `{"data":{"token":"`+testToken+`","user":{"id":7,"email":"an@example.com","firstName":"An","lastName":"Nguyen"}}}`)
		},
		"GET /Users/{id}": func(w http.ResponseWriter, r *http.Request) {
			if !authorized(r) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `{"id":`+r.PathValue("id")+`,"email":"an@example.com","firstName":"An","lastName":"Nguyen"}`)
		},
		"GET /Products": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("categoryId") == "2" {
				io.WriteString(w, `{"$values":[{"id":3,"name":"Phân bón NPK","description":"Phân bón","price":120000,"categoryId":2}]}`)
				return
			}
			io.WriteString(w, `[
				{"id":1,"name":"Hạt giống cà chua","description":"<p>Giống <b>F1</b></p><script>x()</script>","price":25000,"categoryId":1},
				{"id":2,"name":"Bình tưới","description":"Dung tích 5L","price":80000.5,"categoryId":1},
				{"id":3,"name":"Phân bón NPK","description":"Phân bón","price":120000,"categoryId":2}
			]`)
		},
		"GET /Products/{id}": func(w http.ResponseWriter, r *http.Request) {
			switch r.PathValue("id") {
			case "1":
				io.WriteString(w, `{"data":{"id":1,"name":"Hạt giống cà chua","price":25000,"imageUrl":"/img/1.png"}}`)
			case "2":
				io.WriteString(w, `{"id":2,"name":"Bình tưới","price":80000.5}`)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		},
		"GET /Categories": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `[{"id":1,"name":"Hạt giống"},{"id":2,"name":"Phân bón"}]`)
		},
		"GET /Ratings/product/{id}": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `[{"id":1,"productId":1,"userId":"7","score":5},{"id":2,"productId":1,"userId":8,"score":4}]`)
		},
		"GET /Ratings/product/{id}/average": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"averageRating":4.5}`)
		},
		"GET /Promotions/active": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `[{"id":1,"code":"SALE10","discountType":"Percentage","discountValue":10}]`)
		},
		"GET /api/users/me/addresses": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `[
				{"id":4,"recipientName":"Trần B","phoneNumber":"0900000001","street":"1 Lê Lợi","city":"Huế"},
				{"id":5,"recipientName":"Nguyễn An","phoneNumber":"0900000002","street":"2 Hai Bà Trưng","district":"Quận 1","city":"TP.HCM","isDefault":true}
			]`)
		},
		"GET /api/Orders/{id}": func(w http.ResponseWriter, r *http.Request) {
			switch r.PathValue("id") {
			case "100":
				io.WriteString(w, `{"id":100,"status":"confirmed","totalAmount":50000}`)
			case "101":
				io.WriteString(w, `{"id":101,"status":"SHIPPED","totalAmount":50000}`)
			case "102":
				io.WriteString(w, `{"id":102,"status":"PENDING","totalAmount":50000}`)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		},
		"PUT /api/Orders/{id}/status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
	}
	for pattern, h := range overrides {
		routes[pattern] = h
	}

	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	return mux
}
