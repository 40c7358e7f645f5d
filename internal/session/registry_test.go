package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock はテスト用の時計。
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestRegistry(t *testing.T, baseURL string) (*Registry, *repository.MemoryKVRepo, *fakeClock) {
	t.Helper()
	client, err := apiclient.New(apiclient.Options{BaseURL: baseURL, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	kv := repository.NewMemoryKVRepo()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	// CleanupInterval=0 でバックグラウンドループを起動しない
	r := NewRegistry(Config{TTL: time.Hour}, kv, client, discardLogger(), nil)
	r.now = clock.Now
	t.Cleanup(r.Stop)
	return r, kv, clock
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r, _, _ := newTestRegistry(t, "http://backend.test")

	a := r.Create()
	b := r.Create()

	if a.ID == b.ID {
		t.Fatal("session ids should be unique")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	got, ok := r.Get(a.ID)
	if !ok || got != a {
		t.Errorf("Get(%q) = (%v, %v), want the created state", a.ID, got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should return false")
	}
}

func TestRegistry_Get_ExpiredSessionIsTornDown(t *testing.T) {
	r, _, clock := newTestRegistry(t, "http://backend.test")
	ctx := context.Background()

	st := r.Create()
	st.Tokens.Set(ctx, apiclient.TokenKey, "jwt")

	clock.now = clock.now.Add(2 * time.Hour)

	if _, ok := r.Get(st.ID); ok {
		t.Fatal("expired session should not be returned")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if _, ok, _ := st.Tokens.Get(ctx, apiclient.TokenKey); ok {
		t.Error("token should be deleted when the session expires")
	}
}

func TestRegistry_Get_RefreshesLastAccess(t *testing.T) {
	r, _, clock := newTestRegistry(t, "http://backend.test")

	st := r.Create()
	clock.now = clock.now.Add(50 * time.Minute)
	if _, ok := r.Get(st.ID); !ok {
		t.Fatal("session should still be alive")
	}
	clock.now = clock.now.Add(50 * time.Minute)
	if _, ok := r.Get(st.ID); !ok {
		t.Error("access should extend the session")
	}
}

func TestRegistry_End_ClearsState(t *testing.T) {
	r, _, _ := newTestRegistry(t, "http://backend.test")
	ctx := context.Background()

	st := r.Create()
	st.Cart.Add(cart.Item{ID: 1, Price: decimal.NewFromInt(10)}, 2)
	st.Search.Set("cà chua")
	st.Tokens.Set(ctx, apiclient.TokenKey, "jwt")

	r.End(ctx, st.ID)

	if _, ok := r.Get(st.ID); ok {
		t.Error("ended session should be gone")
	}
	if !st.Cart.IsEmpty() {
		t.Error("cart should be cleared on teardown")
	}
	if st.Search.Get() != "" {
		t.Error("keyword should be cleared on teardown")
	}
	if _, ok, _ := st.Tokens.Get(ctx, apiclient.TokenKey); ok {
		t.Error("token should be removed on teardown")
	}

	// 存在しないセッションの破棄は何もしない
	r.End(ctx, "missing")
}

func TestRegistry_Resolve(t *testing.T) {
	r, kv, _ := newTestRegistry(t, "http://backend.test")
	ctx := context.Background()

	st, created := r.Resolve(ctx, "")
	if !created {
		t.Error("empty id should create a session")
	}

	same, created := r.Resolve(ctx, st.ID)
	if created || same != st {
		t.Error("known id should resolve to the existing session")
	}

	if _, created := r.Resolve(ctx, "not-a-uuid"); !created {
		t.Error("malformed id should create a new session")
	}

	// 再起動後を想定: メモリにないがトークンがストアに残っている
	survivor := "0b7e4a9c-3f1d-4c55-9a7e-2c1f0e6d8b11"
	kv.Set(ctx, survivor+":"+apiclient.TokenKey, "jwt")

	resumed, created := r.Resolve(ctx, survivor)
	if created {
		t.Fatal("id with a stored token should be resumed")
	}
	if resumed.ID != survivor {
		t.Errorf("resumed.ID = %q, want %q", resumed.ID, survivor)
	}
	if !resumed.Cart.IsEmpty() {
		t.Error("resumed session should start with an empty cart")
	}

	// トークンのないUUIDは復元しない
	if st, created := r.Resolve(ctx, "6f1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"); !created || st.ID == "6f1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d" {
		t.Error("id without a stored token should not be adopted")
	}
}

func TestRegistry_Rotate_MovesStateToNewID(t *testing.T) {
	r, _, _ := newTestRegistry(t, "http://backend.test")
	ctx := context.Background()

	old := r.Create()
	old.Cart.Add(cart.Item{ID: 3, Price: decimal.NewFromInt(5)}, 1)
	old.Tokens.Set(ctx, apiclient.TokenKey, "jwt")
	old.Tokens.Set(ctx, apiclient.UserIDKey, "42")

	next := r.Rotate(ctx, old)

	if next.ID == old.ID {
		t.Fatal("rotated session should have a new id")
	}
	if next.Cart.TotalItems() != 1 {
		t.Errorf("cart should carry over, TotalItems() = %d", next.Cart.TotalItems())
	}
	if v, ok, _ := next.Tokens.Get(ctx, apiclient.TokenKey); !ok || v != "jwt" {
		t.Errorf("token = %q (ok=%v), want jwt", v, ok)
	}
	if v, ok, _ := next.Tokens.Get(ctx, apiclient.UserIDKey); !ok || v != "42" {
		t.Errorf("user id = %q (ok=%v), want 42", v, ok)
	}
	if _, ok, _ := old.Tokens.Get(ctx, apiclient.TokenKey); ok {
		t.Error("old token should be removed")
	}
	if _, ok, _ := old.Tokens.Get(ctx, apiclient.UserIDKey); ok {
		t.Error("old user id should be removed")
	}
	if _, ok := r.Get(old.ID); ok {
		t.Error("old id should no longer resolve")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_Cleanup_EvictsIdleSessionsAndStaleTokens(t *testing.T) {
	r, kv, clock := newTestRegistry(t, "http://backend.test")
	ctx := context.Background()

	idle := r.Create()
	idle.Tokens.Set(ctx, apiclient.TokenKey, "idle")

	clock.now = clock.now.Add(90 * time.Minute)
	active := r.Create()
	active.Tokens.Set(ctx, apiclient.TokenKey, "active")

	r.cleanup(ctx)

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if _, ok := r.Get(active.ID); !ok {
		t.Error("active session should remain")
	}
	if kv.Len() != 1 {
		t.Errorf("kv.Len() = %d, want 1", kv.Len())
	}
}

func TestRegistry_StateClientUsesSessionToken(t *testing.T) {
	var gotAuth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	r, _, _ := newTestRegistry(t, server.URL)
	ctx := context.Background()

	a := r.Create()
	b := r.Create()
	a.Client.SetToken(ctx, "token-a")

	a.Client.Get(ctx, "/Products")
	b.Client.Get(ctx, "/Products")

	if gotAuth[0] != "Bearer token-a" {
		t.Errorf("session a Authorization = %q, want %q", gotAuth[0], "Bearer token-a")
	}
	if gotAuth[1] != "" {
		t.Errorf("session b Authorization = %q, want empty", gotAuth[1])
	}
}

func TestRegistry_StopIsIdempotent(t *testing.T) {
	client, _ := apiclient.New(apiclient.Options{BaseURL: "http://backend.test"})
	r := NewRegistry(Config{TTL: time.Hour, CleanupInterval: 10 * time.Millisecond}, repository.NewMemoryKVRepo(), client, discardLogger(), nil)

	r.Stop()
	r.Stop()
}

func TestRegistry_Cleanup_EvictsUnusedSessionsEarly(t *testing.T) {
	client, err := apiclient.New(apiclient.Options{BaseURL: "http://backend.test", Logger: discardLogger()})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(Config{TTL: time.Hour, UnusedTTL: 10 * time.Minute}, repository.NewMemoryKVRepo(), client, discardLogger(), nil)
	r.now = clock.Now
	t.Cleanup(r.Stop)

	unused := r.Create()
	returning := r.Create()
	if _, ok := r.Get(returning.ID); !ok {
		t.Fatal("returning session should be found")
	}

	clock.now = clock.now.Add(15 * time.Minute)
	r.cleanup(context.Background())

	if _, ok := r.Get(unused.ID); ok {
		t.Error("session never revisited should be evicted after UnusedTTL")
	}
	if _, ok := r.Get(returning.ID); !ok {
		t.Error("revisited session should be kept until TTL")
	}
}

// touchRecorder はTouchに渡されたキーを記録するKVリポジトリ。
type touchRecorder struct {
	*repository.MemoryKVRepo
	touched []string
}

func (k *touchRecorder) Touch(ctx context.Context, keys []string) error {
	k.touched = append(k.touched, keys...)
	return k.MemoryKVRepo.Touch(ctx, keys)
}

func TestRegistry_Cleanup_TouchesTokensOfLiveSessions(t *testing.T) {
	client, err := apiclient.New(apiclient.Options{BaseURL: "http://backend.test", Logger: discardLogger()})
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	kv := &touchRecorder{MemoryKVRepo: repository.NewMemoryKVRepo()}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(Config{TTL: time.Hour}, kv, client, discardLogger(), nil)
	r.now = clock.Now
	t.Cleanup(r.Stop)
	ctx := context.Background()

	idle := r.Create()
	clock.now = clock.now.Add(90 * time.Minute)
	live := r.Create()
	live.Tokens.Set(ctx, apiclient.TokenKey, "jwt")

	r.cleanup(ctx)

	want := live.Tokens.Key(apiclient.TokenKey)
	var found bool
	for _, k := range kv.touched {
		if k == want {
			found = true
		}
		if k == idle.Tokens.Key(apiclient.TokenKey) {
			t.Errorf("evicted session key %q should not be touched", k)
		}
	}
	if !found {
		t.Errorf("touched = %v, want to include %q", kv.touched, want)
	}
}
