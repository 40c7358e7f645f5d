// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"
)

// KVRepository はクライアント側キーバリューストアの永続化インターフェース。
// ブラウザのローカルストレージに相当し、セッションごとの認証トークンを保持する。
type KVRepository interface {
	// Get は指定キーの値を取得する。存在しない場合はokがfalseになる。
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set は値を保存する。既存のキーは上書きし、更新時刻を現在時刻にする。
	Set(ctx context.Context, key, value string) error

	// Delete は指定キーを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error

	// Touch は指定キーの更新時刻を現在時刻にする。存在しないキーは無視する。
	Touch(ctx context.Context, keys []string) error

	// DeleteUpdatedBefore は指定時刻より前に更新されたエントリを削除し、削除件数を返す。
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
