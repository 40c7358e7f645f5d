package envelope

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/hitoshi/storefront/internal/model"
)

// rawRecord は型付け前のJSONオブジェクト。
// encoding/jsonのフィールド照合は大文字小文字を区別しないため、
// userId と UserId の優先順位を保つためにキーを明示的に引く。
type rawRecord = map[string]json.RawMessage

// userIDKeys はユーザーIDを探すキーの優先順位。
var userIDKeys = []string{"userId", "id", "UserId"}

// NormalizeUser はバックエンドのユーザーレコードを正規化する。
//
//   - ID: userId → id → UserId の順に最初に値のあるもの（数値・文字列どちらも可）
//   - FullName: fullName → 前後の空白を除いた firstName + " " + lastName → メールアドレスのローカル部 → "Unknown"
//   - Role: 未設定なら "CUSTOMER"
//   - IsActive: 未設定なら true
func NormalizeUser(raw map[string]json.RawMessage) model.User {
	u := model.User{
		FirstName:   strings.TrimSpace(stringField(raw, "firstName", "FirstName")),
		LastName:    strings.TrimSpace(stringField(raw, "lastName", "LastName")),
		Email:       strings.TrimSpace(stringField(raw, "email", "Email")),
		PhoneNumber: nullableString(raw, "phoneNumber", "PhoneNumber"),
		Address:     nullableString(raw, "address", "Address"),
		Birthday:    nullableString(raw, "birthday", "Birthday"),
		Status:      nullableString(raw, "status", "Status"),
		Role:        strings.TrimSpace(stringField(raw, "role", "Role")),
		IsActive:    true,
	}

	for _, key := range userIDKeys {
		var id model.FlexID
		if v, ok := present(raw, key); ok && json.Unmarshal(v, &id) == nil && id != "" {
			u.ID = id.String()
			break
		}
	}

	u.FullName = displayName(strings.TrimSpace(stringField(raw, "fullName", "FullName")), u.FirstName, u.LastName, u.Email)

	if u.Role == "" {
		u.Role = model.DefaultRole
	}

	if v, ok := present(raw, "isActive", "IsActive"); ok {
		var active bool
		if json.Unmarshal(v, &active) == nil {
			u.IsActive = active
		}
	}

	return u
}

func displayName(fullName, firstName, lastName, email string) string {
	if fullName != "" {
		return fullName
	}
	if joined := strings.TrimSpace(firstName + " " + lastName); joined != "" {
		return joined
	}
	if local, _, found := strings.Cut(email, "@"); found && local != "" {
		return local
	} else if !found && email != "" {
		return email
	}
	return model.UnknownUserName
}

// Users はユーザー一覧レスポンスを正規化する。
func (n *Normalizer) Users(body []byte) []model.User {
	records := List[rawRecord](n, "users", body)
	users := make([]model.User, 0, len(records))
	for _, r := range records {
		users = append(users, NormalizeUser(r))
	}
	return users
}

// User は単一ユーザーのレスポンスを正規化する。
func (n *Normalizer) User(body []byte) *model.User {
	r := One[rawRecord](n, "user", body)
	if r == nil {
		return nil
	}
	u := NormalizeUser(*r)
	return &u
}

// present はキーの候補から、値がnullでない最初のものを返す。
func present(raw map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || bytes.Equal(v, []byte("null")) {
			continue
		}
		return v, true
	}
	return nil, false
}

func stringField(raw map[string]json.RawMessage, keys ...string) string {
	if s := nullableString(raw, keys...); s != nil {
		return *s
	}
	return ""
}

func nullableString(raw map[string]json.RawMessage, keys ...string) *string {
	v, ok := present(raw, keys...)
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	return &s
}
