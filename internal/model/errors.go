// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（利用者向け、ベトナム語）
	Category string // カテゴリ: auth, validation, catalog, order, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeAuthExpired         = "AUTH_EXPIRED"
	ErrCodeLoginFailed         = "LOGIN_FAILED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeCategoryNotFound    = "CATEGORY_NOT_FOUND"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeInvalidOrderStatus  = "INVALID_ORDER_STATUS"
	ErrCodeOrderNotCancellable = "ORDER_NOT_CANCELLABLE"
	ErrCodeCartEmpty           = "CART_EMPTY"
	ErrCodeInvalidRating       = "INVALID_RATING"
	ErrCodeAddressNotFound     = "ADDRESS_NOT_FOUND"
	ErrCodePromotionInvalid    = "PROMOTION_INVALID"
	ErrCodeInvalidImage        = "INVALID_IMAGE"
	ErrCodeBackendUnavailable  = "BACKEND_UNAVAILABLE"
	ErrCodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFFailed          = "CSRF_VALIDATION_FAILED"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
)

// ErrAuthExpired はバックエンドが401を返したことを表すセンチネル。
// errors.Is(err, ErrAuthExpired) で判定する。
var ErrAuthExpired = errors.New("authentication expired")

// AuthExpiredError は認証切れ（HTTP 401）を表す型付きエラー。
// HTTPクライアント層はトークンを破棄してこのエラーを返すだけで、
// 画面遷移の判断は上位のコーディネーターが行う。
type AuthExpiredError struct {
	Method string
	Path   string
}

// Error はerrorインターフェースを実装する。
func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("authentication expired: %s %s", e.Method, e.Path)
}

// Is はErrAuthExpiredとの比較を可能にする。
func (e *AuthExpiredError) Is(target error) bool {
	return target == ErrAuthExpired
}

// NewInvalidInputError は入力値不正エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("Dữ liệu không hợp lệ: %s", reason),
		Category: "validation",
		Action:   "Vui lòng kiểm tra lại thông tin đã nhập.",
	}
}

// NewUnauthorizedError は未ログインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Bạn cần đăng nhập để tiếp tục.",
		Category: "auth",
		Action:   "Vui lòng đăng nhập.",
	}
}

// NewAuthExpiredAPIError は認証切れをUIに伝えるエラーを生成する。
func NewAuthExpiredAPIError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthExpired,
		Message:  "Phiên đăng nhập đã hết hạn.",
		Category: "auth",
		Action:   "Vui lòng đăng nhập lại.",
	}
}

// NewLoginFailedError はログイン失敗エラーを生成する。
func NewLoginFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  "Email hoặc mật khẩu không đúng.",
		Category: "auth",
		Action:   "Vui lòng kiểm tra lại email và mật khẩu.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("Không tìm thấy người dùng: %s", userID),
		Category: "auth",
		Action:   "Vui lòng đăng nhập lại.",
	}
}

// NewProductNotFoundError は商品が見つからない場合のエラーを生成する。
func NewProductNotFoundError(productID int64) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("Không tìm thấy sản phẩm: %d", productID),
		Category: "catalog",
		Action:   "Vui lòng chọn sản phẩm khác.",
	}
}

// NewCategoryNotFoundError はカテゴリが見つからない場合のエラーを生成する。
func NewCategoryNotFoundError(categoryID int64) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("Không tìm thấy danh mục: %d", categoryID),
		Category: "catalog",
		Action:   "Vui lòng chọn danh mục khác.",
	}
}

// NewOrderNotFoundError は注文が見つからない場合のエラーを生成する。
func NewOrderNotFoundError(orderID int64) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("Không tìm thấy đơn hàng: %d", orderID),
		Category: "order",
		Action:   "Vui lòng kiểm tra lại mã đơn hàng.",
	}
}

// NewInvalidOrderStatusError は未知の注文ステータスが指定された場合のエラーを生成する。
func NewInvalidOrderStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOrderStatus,
		Message:  fmt.Sprintf("Trạng thái đơn hàng không hợp lệ: %s", status),
		Category: "validation",
		Action:   "Trạng thái phải là PENDING, CONFIRMED, PROCESSING, SHIPPED, COMPLETED hoặc CANCELLED.",
	}
}

// NewOrderNotCancellableError はキャンセルできない状態の注文に対するエラーを生成する。
func NewOrderNotCancellableError(status OrderStatus) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotCancellable,
		Message:  fmt.Sprintf("Không thể hủy đơn hàng ở trạng thái %s.", status),
		Category: "order",
		Action:   "Chỉ có thể hủy đơn hàng đang chờ xử lý hoặc đã xác nhận.",
	}
}

// NewCartEmptyError は空のカートで注文しようとした場合のエラーを生成する。
func NewCartEmptyError() *APIError {
	return &APIError{
		Code:     ErrCodeCartEmpty,
		Message:  "Giỏ hàng đang trống.",
		Category: "order",
		Action:   "Vui lòng thêm sản phẩm vào giỏ hàng trước khi thanh toán.",
	}
}

// NewInvalidRatingError は評価値が範囲外の場合のエラーを生成する。
func NewInvalidRatingError(score int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("Điểm đánh giá không hợp lệ: %d", score),
		Category: "validation",
		Action:   "Điểm đánh giá phải từ 1 đến 5.",
	}
}

// NewAddressNotFoundError は住所が見つからない場合のエラーを生成する。
func NewAddressNotFoundError(addressID int64) *APIError {
	return &APIError{
		Code:     ErrCodeAddressNotFound,
		Message:  fmt.Sprintf("Không tìm thấy địa chỉ: %d", addressID),
		Category: "validation",
		Action:   "Vui lòng chọn địa chỉ khác.",
	}
}

// NewPromotionInvalidError はプロモーションコードが使用できない場合のエラーを生成する。
func NewPromotionInvalidError(code string) *APIError {
	return &APIError{
		Code:     ErrCodePromotionInvalid,
		Message:  fmt.Sprintf("Mã khuyến mãi không hợp lệ hoặc đã hết hạn: %s", code),
		Category: "order",
		Action:   "Vui lòng kiểm tra lại mã khuyến mãi.",
	}
}

// NewInvalidImageError は診断用画像が取得・検証できない場合のエラーを生成する。
func NewInvalidImageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  fmt.Sprintf("Không thể sử dụng hình ảnh: %s", reason),
		Category: "validation",
		Action:   "Vui lòng chọn hình ảnh khác (JPEG, PNG hoặc WebP).",
	}
}

// NewBackendUnavailableError はバックエンドAPI呼び出し失敗時のエラーを生成する。
func NewBackendUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "Máy chủ đang bận, vui lòng thử lại sau.",
		Category: "system",
		Action:   "Vui lòng đợi một lát rồi thử lại.",
	}
}

// NewRateLimitedError はレート制限超過時のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Bạn thao tác quá nhanh.",
		Category: "system",
		Action:   "Vui lòng đợi một lát rồi thử lại.",
	}
}

// NewCSRFFailedError はCSRFトークン検証失敗時のエラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "Yêu cầu không hợp lệ.",
		Category: "auth",
		Action:   "Vui lòng tải lại trang rồi thử lại.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Đã xảy ra lỗi hệ thống.",
		Category: "system",
		Action:   "Vui lòng thử lại sau.",
	}
}

// NewNotFoundError はバックエンドが404を返したリソースのエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Không tìm thấy dữ liệu yêu cầu.",
		Category: "system",
		Action:   "Vui lòng kiểm tra lại đường dẫn.",
	}
}
