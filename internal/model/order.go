package model

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderStatus は注文ステータスを表す。
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// orderStatuses は定義済みステータスの一覧。
var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// ParseOrderStatus は文字列を注文ステータスに変換する。
// 大文字小文字は区別しない。未知の値の場合はfalseを返す。
func ParseOrderStatus(s string) (OrderStatus, bool) {
	upper := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range orderStatuses {
		if st == upper {
			return st, true
		}
	}
	return "", false
}

// UnmarshalJSON はステータスを大文字に正規化して取り込む。
// 未知の値もそのまま保持し、分類側で失敗扱いにする。
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return nil
}

// PaymentMethod は支払い方法を表す。
type PaymentMethod string

const (
	// PaymentMethodCOD は代金引換。
	PaymentMethodCOD PaymentMethod = "COD"
	// PaymentMethodVNPay はVNPayによるオンライン決済。
	PaymentMethodVNPay PaymentMethod = "VNPAY"
)

// Online はオンライン決済（決済ページへのリダイレクトが必要）かを返す。
func (m PaymentMethod) Online() bool {
	return m != "" && m != PaymentMethodCOD
}

// OrderItem は注文明細を表す。
type OrderItem struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	ImageURL    string          `json:"imageUrl"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Subtotal は明細の小計を返す。
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order は注文を表す。サーバー採番のIDを持ち、クライアントからはステータス更新のみ行う。
type Order struct {
	ID              int64           `json:"id"`
	Status          OrderStatus     `json:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	RecipientName   string          `json:"recipientName"`
	PhoneNumber     string          `json:"phoneNumber"`
	ShippingAddress string          `json:"shippingAddress"`
	Note            string          `json:"note"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       Timestamp       `json:"createdAt"`
}

// CreateOrderItem は注文作成時の明細。
type CreateOrderItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderInput は注文作成の入力。
type CreateOrderInput struct {
	RecipientName   string            `json:"recipientName"`
	PhoneNumber     string            `json:"phoneNumber"`
	ShippingAddress string            `json:"shippingAddress"`
	Note            string            `json:"note,omitempty"`
	PaymentMethod   PaymentMethod     `json:"paymentMethod"`
	PromotionCode   string            `json:"promotionCode,omitempty"`
	Items           []CreateOrderItem `json:"items"`
}

// Payment は決済情報を表す。
type Payment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"orderId"`
	Method        PaymentMethod   `json:"method"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentURL    string          `json:"paymentUrl"`
	TransactionID string          `json:"transactionId"`
}
