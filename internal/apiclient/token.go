package apiclient

import "context"

// トークンストアのキー
const (
	// TokenKey は認証トークンを保存するキー。
	TokenKey = "token"
	// UserIDKey はログイン中ユーザーのIDを保存するキー。
	UserIDKey = "userId"
)

// SessionKeys はセッションに紐づくキーの一覧。ID切り替え・破棄の対象になる。
var SessionKeys = []string{TokenKey, UserIDKey}

// TokenStore は認証トークンを保持するキーバリューストア。
// セッションごとに名前空間を分けたストアを渡す想定。
type TokenStore interface {
	// Get はキーの値を返す。存在しない場合はokがfalseになる。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
