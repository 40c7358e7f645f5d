package diagnosis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Report は診断結果の構造化表現。
type Report struct {
	PlantName      string    `json:"plantName"`
	ScientificName string    `json:"scientificName"`
	Disease        Disease   `json:"disease"`
	Treatment      Treatment `json:"treatment"`
	// Confidence は0〜100の確信度（パーセント）。値がない場合はnil。
	Confidence *int `json:"confidence,omitempty"`
}

// Disease は病害の診断内容。
type Disease struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Symptoms    TextList `json:"symptoms"`
	Causes      TextList `json:"causes"`
}

// Treatment は対処方法の提案。
type Treatment struct {
	Immediate  TextList `json:"immediate"`
	Preventive TextList `json:"preventive"`
	Products   TextList `json:"products"`
}

// TextList は文字列または文字列配列のどちらでも受け付けるリスト。
type TextList []string

// UnmarshalJSON は文字列・配列・nullを受け付ける。
func (l *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s != "" {
			*l = TextList{s}
		} else {
			*l = nil
		}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("text list must be a string or array of strings: %w", err)
	}
	*l = items
	return nil
}

// confidence は数値・数値文字列（"87%"を含む）の確信度を受け付ける。
type confidence struct {
	value *float64
}

func (c *confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		c.value = nil
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	} else {
		s = string(data)
	}
	if s == "" {
		c.value = nil
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("confidence must be numeric: %w", err)
	}
	c.value = &v
	return nil
}

// Percent は確信度を0〜100の整数パーセントに変換する。
// 1以下の値は0〜1の比率として扱う。範囲外は丸め込む。
func Percent(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	if v <= 1 {
		v *= 100
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

// IsEmpty は表示すべき内容がないかを返す。
func (r *Report) IsEmpty() bool {
	return r.PlantName == "" && r.ScientificName == "" &&
		r.Disease.Name == "" && r.Disease.Description == "" &&
		len(r.Disease.Symptoms) == 0 && len(r.Disease.Causes) == 0 &&
		len(r.Treatment.Immediate) == 0 && len(r.Treatment.Preventive) == 0 &&
		len(r.Treatment.Products) == 0 && r.Confidence == nil
}

// section は見出しと箇条書きからなる出力の1区画。
type section struct {
	title string
	lines []string
}

func (s *section) add(label string, values ...string) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return
	}
	s.lines = append(s.lines, "- "+label+": "+strings.Join(parts, "; "))
}

// Format は診断結果をベトナム語のテキストに整形する。
// 区画は 植物の特定 → 病害診断 → 対処方法 → 確信度 の順で、空の区画は出力しない。
func (r *Report) Format() string {
	plant := section{title: "Thông tin cây trồng"}
	plant.add("Tên cây", r.PlantName)
	plant.add("Tên khoa học", r.ScientificName)

	disease := section{title: "Chẩn đoán bệnh"}
	disease.add("Bệnh", r.Disease.Name)
	disease.add("Mô tả", r.Disease.Description)
	disease.add("Triệu chứng", r.Disease.Symptoms...)
	disease.add("Nguyên nhân", r.Disease.Causes...)

	treatment := section{title: "Hướng điều trị"}
	treatment.add("Xử lý ngay", r.Treatment.Immediate...)
	treatment.add("Phòng ngừa", r.Treatment.Preventive...)
	treatment.add("Sản phẩm gợi ý", r.Treatment.Products...)

	conf := section{title: "Độ tin cậy"}
	if r.Confidence != nil {
		conf.add("Mức độ", strconv.Itoa(*r.Confidence)+"%")
	}

	var b strings.Builder
	for _, s := range []section{plant, disease, treatment, conf} {
		if len(s.lines) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s.title)
		for _, line := range s.lines {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return b.String()
}
