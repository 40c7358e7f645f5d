package apiclient

import "net/http"

// StatusClass はバックエンドのHTTPステータスコードの分類。
type StatusClass int

const (
	// StatusOK は成功（2xx）。
	StatusOK StatusClass = iota
	// StatusAuthExpired は認証切れ（401）。トークンを破棄する。
	StatusAuthExpired
	// StatusClientError はリクエスト側の誤り（401以外の4xx）。
	StatusClientError
	// StatusServerError はバックエンド側の障害（5xx）。
	StatusServerError
	// StatusUnknown は上記以外（1xx/3xx等）。
	StatusUnknown
)

// String はログ出力用の分類名を返す。
func (c StatusClass) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusAuthExpired:
		return "auth_expired"
	case StatusClientError:
		return "client_error"
	case StatusServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// ClassifyStatus はHTTPステータスコードを分類する。
func ClassifyStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusOK
	case statusCode == http.StatusUnauthorized:
		return StatusAuthExpired
	case statusCode >= 400 && statusCode < 500:
		return StatusClientError
	case statusCode >= 500 && statusCode < 600:
		return StatusServerError
	default:
		return StatusUnknown
	}
}
