package repository

import "context"

// ScopedStore はKVRepositoryを名前空間で区切ったビュー。
// キーは "<namespace>:<key>" として保存する。
type ScopedStore struct {
	repo      KVRepository
	namespace string
}

// NewScopedStore はScopedStoreを生成する。
func NewScopedStore(repo KVRepository, namespace string) *ScopedStore {
	return &ScopedStore{repo: repo, namespace: namespace}
}

// Key は名前空間付きのキーを返す。
func (s *ScopedStore) Key(key string) string {
	return s.namespace + ":" + key
}

// Get は名前空間内のキーの値を取得する。
func (s *ScopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.repo.Get(ctx, s.Key(key))
}

// Set は名前空間内のキーに値を保存する。
func (s *ScopedStore) Set(ctx context.Context, key, value string) error {
	return s.repo.Set(ctx, s.Key(key), value)
}

// Delete は名前空間内のキーを削除する。
func (s *ScopedStore) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, s.Key(key))
}

// compile-time interface check
var (
	_ KVRepository = (*MemoryKVRepo)(nil)
	_ KVRepository = (*PostgresKVRepo)(nil)
)
