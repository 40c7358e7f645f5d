package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

func requestWithSession(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	return req.WithContext(ContextWithState(req.Context(), &session.State{ID: id}))
}

func TestRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 2, GeneralBurst: 5, StrictRate: 1, StrictBurst: 1}, discardLogger())
	defer rl.Stop()

	calls := 0
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestWithSession("s1"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
	if calls != 5 {
		t.Errorf("handler calls = %d, want 5", calls)
	}
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 0.5, GeneralBurst: 2}, discardLogger())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestWithSession("s1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession("s1"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != strconv.Itoa(2) {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}

	// 別セッションは独立して制限される
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession("s2"))
	if w.Code != http.StatusOK {
		t.Errorf("other session status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddleware_StrictIsIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 10, GeneralBurst: 10, StrictRate: 0.1, StrictBurst: 1}, discardLogger())
	defer rl.Stop()

	strict := rl.StrictMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	strict.ServeHTTP(httptest.NewRecorder(), requestWithSession("s1"))
	w := httptest.NewRecorder()
	strict.ServeHTTP(w, requestWithSession("s1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("strict status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestWithSession("s1"))
	if w.Code != http.StatusOK {
		t.Errorf("general status = %d, want 200", w.Code)
	}
	if rl.StrictLimiterCount() != 1 || rl.GeneralLimiterCount() != 1 {
		t.Errorf("counts = %d/%d, want 1/1", rl.StrictLimiterCount(), rl.GeneralLimiterCount())
	}
}

func TestRateLimitMiddleware_NoSession_Returns401(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig(), discardLogger())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 1, GeneralBurst: 1, StrictRate: 1, StrictBurst: 1, CleanupInterval: time.Minute}, discardLogger())
	defer rl.Stop()

	now := time.Now()
	rl.general.get("old", now.Add(-10*time.Minute))
	rl.general.get("fresh", now)
	rl.strict.get("old", now.Add(-10*time.Minute))

	rl.cleanup(now)

	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("GeneralLimiterCount = %d, want 1", rl.GeneralLimiterCount())
	}
	if rl.StrictLimiterCount() != 0 {
		t.Errorf("StrictLimiterCount = %d, want 0", rl.StrictLimiterCount())
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(60)
	if cfg.GeneralRate != 1 || cfg.GeneralBurst != 60 {
		t.Errorf("cfg = %+v, want rate 1 burst 60", cfg)
	}

	def := RateLimiterConfigPerMinute(0)
	if def.GeneralBurst != DefaultRateLimiterConfig().GeneralBurst {
		t.Errorf("zero should keep default, got %+v", def)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{CleanupInterval: time.Minute}, discardLogger())
	rl.Stop()
	rl.Stop()
}

func TestRateLimitMiddleware_StrictCountsPerClientIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 10, GeneralBurst: 10, StrictRate: 0.1, StrictBurst: 2}, discardLogger())
	defer rl.Stop()

	handler := rl.StrictMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// セッションを変えても同じIPからのリクエストは同じリミッターで数える
	for i, id := range []string{"s1", "s2"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestWithSession(id))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession("s3"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}

	other := requestWithSession("s4")
	other.RemoteAddr = "198.51.100.7:4000"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	if w.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddleware_GeneralCountsNewSessionsPerClientIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GeneralRate: 0.1, GeneralBurst: 1}, discardLogger())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	newSession := func(id string) *http.Request {
		req := requestWithSession(id)
		return req.WithContext(context.WithValue(req.Context(), createdContextKey, true))
	}

	handler.ServeHTTP(httptest.NewRecorder(), newSession("n1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newSession("n2"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("new session status = %d, want 429", w.Code)
	}

	// Cookieを持って戻ってきたセッションはセッション単位で数える
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithSession("n1"))
	if w.Code != http.StatusOK {
		t.Errorf("existing session status = %d, want 200", w.Code)
	}
}

func TestLimiterKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:51000"

	if got := limiterKey(req, "sid-1", true); got != "ip:203.0.113.9" {
		t.Errorf("limiterKey(byIP) = %q, want ip:203.0.113.9", got)
	}
	if got := limiterKey(req, "sid-1", false); got != "sid:sid-1" {
		t.Errorf("limiterKey(session) = %q, want sid:sid-1", got)
	}

	req.RemoteAddr = "unix-socket"
	if got := clientIP(req); got != "unix-socket" {
		t.Errorf("clientIP = %q, want unix-socket", got)
	}
}
