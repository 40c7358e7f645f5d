package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product は商品を表す。
// Descriptionはサニタイズ済みのHTMLを保持する。
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	CategoryID  int64           `json:"categoryId"`
	Stock       int             `json:"stock"`
}

// Category は商品カテゴリを表す。
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Rating は商品レビューを表す。
type Rating struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"productId"`
	UserID    FlexID    `json:"userId"`
	UserName  string    `json:"userName"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment"`
	CreatedAt Timestamp `json:"createdAt"`
}

// 評価値の範囲
const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// CreateRatingInput はレビュー投稿の入力。
type CreateRatingInput struct {
	ProductID int64  `json:"productId"`
	Score     int    `json:"score"`
	Comment   string `json:"comment"`
}

// PromotionType は割引の種別を表す。
type PromotionType string

const (
	// PromotionTypeFixed は定額割引。
	PromotionTypeFixed PromotionType = "Fixed"
	// PromotionTypePercentage は定率割引。
	PromotionTypePercentage PromotionType = "Percentage"
)

// Promotion はプロモーション（割引）を表す。クライアントからは読み取り専用。
type Promotion struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Type           PromotionType   `json:"discountType"`
	Value          decimal.Decimal `json:"discountValue"`
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
	UsageLimit     int             `json:"usageLimit"`
	UsedCount      int             `json:"usedCount"`
	StartDate      Timestamp       `json:"startDate"`
	EndDate        Timestamp       `json:"endDate"`
}

var hundred = decimal.NewFromInt(100)

// Usable は指定時刻にプロモーションが使用可能かを返す。
// UsageLimitが0以下の場合は回数無制限として扱う。
func (p *Promotion) Usable(now time.Time) bool {
	if !p.StartDate.IsZero() && now.Before(p.StartDate.Time) {
		return false
	}
	if !p.EndDate.IsZero() && now.After(p.EndDate.Time) {
		return false
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return false
	}
	return true
}

// Discount は小計に対する割引額のプレビューを返す。
// 確定額はバックエンドが計算する。割引額は小計を超えない。
func (p *Promotion) Discount(subtotal decimal.Decimal, now time.Time) decimal.Decimal {
	if !p.Usable(now) || !subtotal.IsPositive() {
		return decimal.Zero
	}
	if subtotal.LessThan(p.MinOrderAmount) {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch p.Type {
	case PromotionTypeFixed:
		d = p.Value
	case PromotionTypePercentage:
		d = subtotal.Mul(p.Value).Div(hundred).Round(0)
	default:
		return decimal.Zero
	}

	if d.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(d, subtotal)
}
