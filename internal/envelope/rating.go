package envelope

import (
	"bytes"
	"encoding/json"
)

// averageKeys は平均評価値を探すキーの優先順位。
var averageKeys = []string{"data", "average", "averageRating"}

// RatingAverage は平均評価レスポンスを正規化する。
//
// 数値そのもの、または {"data": 4.5} / {"average": 4.5} / {"averageRating": 4.5} の形式を受け付ける。
// dataの中にさらにaverage等が入っている形式も受け付ける。
// 値が見つからない場合はnilを返す。nilは「評価データなし」であり0とは区別する。
func (n *Normalizer) RatingAverage(body []byte) *float64 {
	raw := bytes.TrimSpace(body)
	if v, ok := number(raw); ok {
		return &v
	}

	if firstByte(raw) == '{' {
		obj, ok := rawObject(raw)
		if ok {
			if v, found, known := averageFrom(obj); found {
				return &v
			} else if known {
				// キーはあるが値がnull。評価がまだない状態。
				return nil
			}
		}
	} else if bytes.Equal(raw, []byte("null")) {
		return nil
	}

	n.mismatch("rating_average", "single", body)
	return nil
}

// averageFrom はオブジェクトから平均値を探す。
// knownは既知のキーが存在したか（値がnullでも真）を表す。
func averageFrom(obj map[string]json.RawMessage) (value float64, found, known bool) {
	for _, key := range averageKeys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		known = true
		v = bytes.TrimSpace(v)
		if f, ok := number(v); ok {
			return f, true, true
		}
		if key == dataKey && firstByte(v) == '{' {
			if nested, ok := rawObject(v); ok {
				if f, found, _ := averageFrom(nested); found {
					return f, true, true
				}
			}
		}
	}
	return 0, false, known
}

func number(raw []byte) (float64, bool) {
	c := firstByte(raw)
	if c != '-' && (c < '0' || c > '9') {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}
