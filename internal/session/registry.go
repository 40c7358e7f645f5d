// Package session はブラウザセッションごとのクライアント状態（カート・検索キーワード・認証トークン）を管理する。
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/search"
)

// State は1セッション分のクライアント状態。
type State struct {
	ID     string
	Cart   *cart.Cart
	Search *search.Keyword
	Tokens *repository.ScopedStore
	// Client はこのセッションのトークンストアに紐づいたAPIクライアント。
	Client *apiclient.Client

	lastAccess time.Time
	// seen はCookieを持って再訪したか（ログイン・復元で得たセッションも含む）。
	seen bool
}

// Config はRegistryの設定。
type Config struct {
	// TTL は最終アクセスからセッションを破棄するまでの時間。
	TTL time.Duration
	// UnusedTTL は作成後に一度も再訪のないセッションを破棄するまでの時間。0以下の場合はTTLのみ。
	UnusedTTL time.Duration
	// CleanupInterval は期限切れセッションの掃除間隔。
	CleanupInterval time.Duration
}

// Registry はセッションの生成・参照・破棄を管理する。
// バックグラウンドで一定時間アクセスのないセッションを破棄する。
type Registry struct {
	config  Config
	kv      repository.KVRepository
	client  *apiclient.Client
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*State

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry は新しいRegistryを生成し、クリーンアップループを開始する。
// clientはセッションごとにWithTokensで複製して使う。
func NewRegistry(cfg Config, kv repository.KVRepository, client *apiclient.Client, logger *slog.Logger, m metrics.MetricsCollector) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	r := &Registry{
		config:   cfg,
		kv:       kv,
		client:   client,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[string]*State),
		stopCh:   make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		go r.cleanupLoop()
	}

	return r
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Registry) newState(id string) *State {
	tokens := repository.NewScopedStore(r.kv, id)
	return &State{
		ID:         id,
		Cart:       cart.New(r.logger.With(slog.String("session_id", id)), r.metrics),
		Search:     &search.Keyword{},
		Tokens:     tokens,
		Client:     r.client.WithTokens(tokens),
		lastAccess: r.now(),
	}
}

// Create は新しいIDでセッションを生成する。
func (r *Registry) Create() *State {
	st := r.newState(uuid.NewString())

	r.mu.Lock()
	r.sessions[st.ID] = st
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	return st
}

// Get は指定IDのセッションを返し、最終アクセス時刻を更新する。
// 存在しない場合はfalseを返す。期限切れの場合は破棄してfalseを返す。
func (r *Registry) Get(id string) (*State, bool) {
	r.mu.Lock()
	st, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	now := r.now()
	if !r.expired(st, now) {
		st.lastAccess = now
		st.seen = true
		r.mu.Unlock()
		return st, true
	}
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	r.teardown(context.Background(), st)
	r.metrics.SetActiveSessions(n)
	return nil, false
}

// Resolve はCookieのセッションIDからセッションを解決する。
// メモリ上にないがトークンがストアに残っている場合（再起動後など）は同じIDで復元する。
// どちらにも該当しない場合は新しいセッションを生成する。createdは新規生成かを表す。
func (r *Registry) Resolve(ctx context.Context, id string) (st *State, created bool) {
	if id != "" {
		if st, ok := r.Get(id); ok {
			return st, false
		}
		if st, ok := r.resume(ctx, id); ok {
			return st, false
		}
	}
	return r.Create(), true
}

func (r *Registry) resume(ctx context.Context, id string) (*State, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}

	tokens := repository.NewScopedStore(r.kv, id)
	if _, ok, err := tokens.Get(ctx, apiclient.TokenKey); err != nil || !ok {
		if err != nil {
			r.logger.Warn("セッション復元時のトークン取得に失敗しました",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	st := r.newState(id)
	st.seen = true

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return existing, true
	}
	r.sessions[id] = st
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	r.logger.Info("セッションを復元しました", slog.String("session_id", id))
	return st, true
}

// Rotate はセッションを新しいIDに移し替える。ログイン時のセッション固定攻撃対策。
// カートと検索キーワードは引き継ぎ、トークンとユーザーIDは新IDへ移して旧IDからは削除する。
func (r *Registry) Rotate(ctx context.Context, old *State) *State {
	next := r.newState(uuid.NewString())
	next.seen = true
	next.Cart = old.Cart
	next.Search = old.Search

	for _, key := range apiclient.SessionKeys {
		v, ok, err := old.Tokens.Get(ctx, key)
		if err == nil && ok {
			if err := next.Tokens.Set(ctx, key, v); err != nil {
				r.logger.Error("セッション情報の移し替えに失敗しました",
					slog.String("session_id", next.ID),
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		}
		if err := old.Tokens.Delete(ctx, key); err != nil {
			r.logger.Error("旧セッションの情報削除に失敗しました",
				slog.String("session_id", old.ID),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	r.mu.Lock()
	delete(r.sessions, old.ID)
	r.sessions[next.ID] = next
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	return next
}

// End はセッションを破棄する。カートを空にし、トークンを削除する。
func (r *Registry) End(ctx context.Context, id string) {
	r.mu.Lock()
	st, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return
	}

	r.teardown(ctx, st)
	r.metrics.SetActiveSessions(n)
}

func (r *Registry) teardown(ctx context.Context, st *State) {
	st.Cart.Clear()
	st.Search.Clear()
	for _, key := range apiclient.SessionKeys {
		if err := st.Tokens.Delete(ctx, key); err != nil {
			r.logger.Error("セッション破棄時のトークン削除に失敗しました",
				slog.String("session_id", st.ID),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Len は保持しているセッション数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) expired(st *State, now time.Time) bool {
	idle := now.Sub(st.lastAccess)
	if !st.seen && r.config.UnusedTTL > 0 && idle > r.config.UnusedTTL {
		return true
	}
	return r.config.TTL > 0 && idle > r.config.TTL
}

// cleanupLoop は定期的に期限切れセッションを破棄する。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// cleanup は期限切れセッションを破棄し、ストアに残った古いトークンも削除する。
// 生きているセッションのトークンは更新時刻を進めてから削除対象を判定する。
func (r *Registry) cleanup(ctx context.Context) {
	now := r.now()

	r.mu.Lock()
	var stale []*State
	var live []string
	for id, st := range r.sessions {
		if r.expired(st, now) {
			stale = append(stale, st)
			delete(r.sessions, id)
			continue
		}
		for _, key := range apiclient.SessionKeys {
			live = append(live, st.Tokens.Key(key))
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if len(live) > 0 {
		if err := r.kv.Touch(ctx, live); err != nil {
			r.logger.Error("トークンの更新時刻の延長に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	for _, st := range stale {
		r.teardown(ctx, st)
	}
	r.metrics.SetActiveSessions(n)

	var purged int64
	if r.config.TTL > 0 {
		var err error
		purged, err = r.kv.DeleteUpdatedBefore(ctx, now.Add(-r.config.TTL))
		if err != nil {
			r.logger.Error("古いトークンの削除に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	if len(stale) > 0 || purged > 0 {
		r.logger.Info("期限切れセッションを破棄しました",
			slog.Int("sessions", len(stale)),
			slog.Int64("tokens", purged),
			slog.Int("active", n),
		)
	}
}
