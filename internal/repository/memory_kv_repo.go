package repository

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	updatedAt time.Time
}

// MemoryKVRepo はプロセス内メモリを使用したキーバリューリポジトリ。
// DATABASE_URLが未設定の場合に使用する。プロセス再起動で内容は失われる。
type MemoryKVRepo struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryKVRepo はMemoryKVRepoを生成する。
func NewMemoryKVRepo() *MemoryKVRepo {
	return &MemoryKVRepo{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get は指定キーの値を取得する。
func (r *MemoryKVRepo) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set は値を保存する。
func (r *MemoryKVRepo) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = memoryEntry{value: value, updatedAt: r.now()}
	return nil
}

// Delete は指定キーを削除する。
func (r *MemoryKVRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
	return nil
}

// Touch は指定キーの更新時刻を現在時刻にする。
func (r *MemoryKVRepo) Touch(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, k := range keys {
		if e, ok := r.entries[k]; ok {
			e.updatedAt = now
			r.entries[k] = e
		}
	}
	return nil
}

// DeleteUpdatedBefore は指定時刻より前に更新されたエントリを削除する。
func (r *MemoryKVRepo) DeleteUpdatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for k, e := range r.entries {
		if e.updatedAt.Before(cutoff) {
			delete(r.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

// Len は保持しているエントリ数を返す。
func (r *MemoryKVRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
