// Package model はドメインモデルを定義する。
package model

// 既定値
const (
	// DefaultRole はバックエンドがroleを返さない場合のロール。
	DefaultRole = "CUSTOMER"
	// UnknownUserName は氏名もメールアドレスも得られない場合の表示名。
	UnknownUserName = "Unknown"
)

// User はストアフロントの利用者を表す。
// バックエンドのレスポンスは必ず envelope.NormalizeUser を通してから扱う。
type User struct {
	ID          string  `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	FullName    string  `json:"fullName"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
	Address     *string `json:"address"`
	Birthday    *string `json:"birthday"`
	Status      *string `json:"status"`
	Role        string  `json:"role"`
	IsActive    bool    `json:"isActive"`
}

// LoginResult はログインAPIの結果を表す。
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// UpdateUserInput はユーザー情報更新の入力。
// nilフィールドは変更しない。
type UpdateUserInput struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Address     *string `json:"address,omitempty"`
	Birthday    *string `json:"birthday,omitempty"`
}
