// Package envelope はバックエンドの不揃いなレスポンス形状を正規化する。
//
// バックエンドは同じリソースを {"data": T} で包んで返すことも、T をそのまま返すこともある。
// DecodeOne / DecodeList は形状を判定して Decoded を返す純粋関数で、
// Normalizer はその結果を既定値（空スライス / nil）に落とし込み、不一致を記録する。
package envelope

import (
	"bytes"
	"encoding/json"
)

// Shape はレスポンスボディの形状を表す。
type Shape int

const (
	// ShapeUnrecognized はどの既知形状にも当てはまらないボディ。
	ShapeUnrecognized Shape = iota
	// ShapeWrapped は {"data": T} 形式（一覧の場合は {"$values": [...]} も含む）。
	ShapeWrapped
	// ShapeBare は T または [T, ...] をそのまま返す形式。
	ShapeBare
)

// String はログ出力用の形状名を返す。
func (s Shape) String() string {
	switch s {
	case ShapeWrapped:
		return "wrapped"
	case ShapeBare:
		return "bare"
	default:
		return "unrecognized"
	}
}

// Decoded は形状判定の結果。ShapeUnrecognized の場合 Value はゼロ値。
type Decoded[T any] struct {
	Shape Shape
	Value T
}

// Ok は既知の形状として解釈できたかを返す。
func (d Decoded[T]) Ok() bool {
	return d.Shape != ShapeUnrecognized
}

const (
	dataKey   = "data"
	valuesKey = "$values"
)

// DecodeList は一覧レスポンスを判定する。
//
//	[...]                 → ShapeBare
//	{"data": [...]}       → ShapeWrapped
//	{"$values": [...]}    → ShapeWrapped
//	それ以外              → ShapeUnrecognized
//
// 個々の要素がTとして解釈できない場合（nullを含む）、その要素は読み飛ばす。
func DecodeList[T any](body []byte) Decoded[[]T] {
	raw := bytes.TrimSpace(body)

	switch firstByte(raw) {
	case '[':
		elems, ok := rawArray(raw)
		if !ok {
			return Decoded[[]T]{}
		}
		return Decoded[[]T]{Shape: ShapeBare, Value: decodeElements[T](elems)}
	case '{':
		obj, ok := rawObject(raw)
		if !ok {
			return Decoded[[]T]{}
		}
		inner, ok := wrappedList(obj)
		if !ok {
			return Decoded[[]T]{}
		}
		return Decoded[[]T]{Shape: ShapeWrapped, Value: decodeElements[T](inner)}
	default:
		return Decoded[[]T]{}
	}
}

// DecodeOne は単一リソースのレスポンスを判定する。
//
//	{"data": {...}}             → ShapeWrapped
//	{...}（dataキーなし、非空） → ShapeBare
//	{}・配列・スカラー・不正JSON → ShapeUnrecognized
func DecodeOne[T any](body []byte) Decoded[T] {
	raw := bytes.TrimSpace(body)
	if firstByte(raw) != '{' {
		return Decoded[T]{}
	}

	obj, ok := rawObject(raw)
	if !ok || len(obj) == 0 {
		return Decoded[T]{}
	}

	shape := ShapeBare
	target := raw
	if data, found := obj[dataKey]; found {
		data = bytes.TrimSpace(data)
		inner, ok := rawObject(data)
		if firstByte(data) != '{' || !ok || len(inner) == 0 {
			return Decoded[T]{}
		}
		shape = ShapeWrapped
		target = data
	}

	var v T
	if err := json.Unmarshal(target, &v); err != nil {
		return Decoded[T]{}
	}
	return Decoded[T]{Shape: shape, Value: v}
}

// wrappedList は {"data": [...]} / {"$values": [...]} から要素を取り出す。
// ASP.NETの参照保持シリアライザは {"data": {"$values": [...]}} のように二重に包むことがある。
func wrappedList(obj map[string]json.RawMessage) ([]json.RawMessage, bool) {
	for _, key := range []string{dataKey, valuesKey} {
		v, found := obj[key]
		if !found {
			continue
		}
		v = bytes.TrimSpace(v)
		switch firstByte(v) {
		case '[':
			return rawArray(v)
		case '{':
			nested, ok := rawObject(v)
			if !ok {
				return nil, false
			}
			if values, found := nested[valuesKey]; found && firstByte(bytes.TrimSpace(values)) == '[' {
				return rawArray(bytes.TrimSpace(values))
			}
			return nil, false
		default:
			return nil, false
		}
	}
	return nil, false
}

func decodeElements[T any](elems []json.RawMessage) []T {
	out := make([]T, 0, len(elems))
	for _, e := range elems {
		if bytes.Equal(bytes.TrimSpace(e), []byte("null")) {
			continue
		}
		var v T
		if err := json.Unmarshal(e, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func rawArray(raw []byte) ([]json.RawMessage, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}
	return elems, true
}

func rawObject(raw []byte) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func firstByte(raw []byte) byte {
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}
