// Package order は注文・決済の呼び出しと決済結果の判定を提供する。
package order

import "github.com/hitoshi/storefront/internal/model"

// ResultState は決済結果画面の状態を表す。
type ResultState int

const (
	// ResultFailed は決済失敗またはキャンセル。
	ResultFailed ResultState = iota
	// ResultSuccess は決済成功（確認済み以降のステータス）。
	ResultSuccess
	// ResultProcessing は決済処理中（PENDINGを失敗扱いしない構成のみ）。
	ResultProcessing
	// ResultMissingOrderID は注文IDが指定されていない状態。取得は行わない。
	ResultMissingOrderID
	// ResultNotFound は注文が見つからない状態。
	ResultNotFound
)

// String は状態名を返す。JSONレスポンスにそのまま使う。
func (s ResultState) String() string {
	switch s {
	case ResultSuccess:
		return "success"
	case ResultProcessing:
		return "processing"
	case ResultMissingOrderID:
		return "missing_order_id"
	case ResultNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// MarshalText は状態名をテキストとして出力する。
func (s ResultState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Classifier は注文ステータスを決済結果に分類する。
type Classifier struct {
	// PendingAsFailure がtrueの場合、PENDINGを失敗として扱う。
	PendingAsFailure bool
}

// Classify は注文ステータスを決済結果に分類する。未知のステータスは失敗扱い。
func (c Classifier) Classify(status model.OrderStatus) ResultState {
	switch status {
	case model.OrderStatusConfirmed, model.OrderStatusProcessing,
		model.OrderStatusShipped, model.OrderStatusCompleted:
		return ResultSuccess
	case model.OrderStatusPending:
		if c.PendingAsFailure {
			return ResultFailed
		}
		return ResultProcessing
	default:
		return ResultFailed
	}
}

// Cancellable はユーザーがキャンセルできるステータスかを返す。
func Cancellable(status model.OrderStatus) bool {
	return status == model.OrderStatusPending || status == model.OrderStatusConfirmed
}
