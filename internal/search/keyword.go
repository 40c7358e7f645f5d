// Package search はセッションごとの検索キーワードを保持する。
package search

import (
	"strings"
	"sync"
)

// Keyword は検索キーワードを1つ保持する。ゼロ値は空のキーワード。
type Keyword struct {
	mu    sync.RWMutex
	value string
}

// Set はキーワードを前後の空白を除いて設定する。
func (k *Keyword) Set(v string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.value = strings.TrimSpace(v)
}

// Get は現在のキーワードを返す。
func (k *Keyword) Get() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.value
}

// Clear はキーワードを空にする。
func (k *Keyword) Clear() {
	k.Set("")
}

// Matches はキーワードが対象文字列のいずれかに含まれるかを大文字小文字を区別せずに判定する。
// キーワードが空の場合は常にtrueを返す。
func Matches(keyword string, fields ...string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), keyword) {
			return true
		}
	}
	return false
}
