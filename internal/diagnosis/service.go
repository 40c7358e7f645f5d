// Package diagnosis は植物診断チャットのバックエンド呼び出しと結果の整形を提供する。
package diagnosis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/security"
)

// 既定の診断パラメータ
const (
	DefaultLanguage  = "vi"
	DefaultPlantType = "general"
)

// maxDescriptionLength は症状説明の最大文字数。
const maxDescriptionLength = 2000

// fallbackText は結果を解釈できなかった場合の表示文言。
const fallbackText = "Không thể phân tích kết quả chẩn đoán. Vui lòng thử lại."

// TextSanitizer はバックエンドが返したテキストからHTMLを除去する。
type TextSanitizer interface {
	PlainText(raw string) string
}

// ImageSource は画像URLから診断用の画像を取得する。
type ImageSource interface {
	Fetch(ctx context.Context, rawURL string) (*security.Image, error)
}

// Options は診断リクエストの既定値。
type Options struct {
	Language  string
	PlantType string
}

// Input は診断の入力。説明文か画像のどちらかが必要。
type Input struct {
	Description string `json:"description"`
	ImageBase64 string `json:"imageBase64"`
}

// Result は診断結果。Reportは構造化された結果が得られた場合のみ設定される。
type Result struct {
	Report *Report `json:"report,omitempty"`
	Text   string  `json:"text"`
}

// Service は植物診断のサービス層。
type Service struct {
	client    *apiclient.Client
	norm      *envelope.Normalizer
	sanitizer TextSanitizer
	images    ImageSource
	opts      Options
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client *apiclient.Client, norm *envelope.Normalizer, sanitizer TextSanitizer, images ImageSource, opts Options, logger *slog.Logger) *Service {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.PlantType == "" {
		opts.PlantType = DefaultPlantType
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:    client,
		norm:      norm,
		sanitizer: sanitizer,
		images:    images,
		opts:      opts,
		logger:    logger,
	}
}

type diagnoseRequest struct {
	Description string `json:"description"`
	Language    string `json:"language"`
	PlantType   string `json:"plantType"`
	ImageBase64 string `json:"imageBase64"`
	SkipCache   bool   `json:"skipCache"`
}

// Diagnose は説明文と画像を送信して診断結果を取得する。
func (s *Service) Diagnose(ctx context.Context, in Input) (*Result, error) {
	in.Description = strings.TrimSpace(in.Description)
	image, err := normalizeBase64(in.ImageBase64)
	if err != nil {
		return nil, model.NewInvalidImageError("dữ liệu base64 không hợp lệ")
	}
	if in.Description == "" && image == "" {
		return nil, model.NewInvalidInputError("cần mô tả triệu chứng hoặc hình ảnh")
	}
	if len([]rune(in.Description)) > maxDescriptionLength {
		return nil, model.NewInvalidInputError(fmt.Sprintf("mô tả tối đa %d ký tự", maxDescriptionLength))
	}

	body, err := s.client.Post(ctx, "/Diagnosis", diagnoseRequest{
		Description: in.Description,
		Language:    s.opts.Language,
		PlantType:   s.opts.PlantType,
		ImageBase64: image,
		SkipCache:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("診断リクエストに失敗しました: %w", err)
	}

	result := s.parse(body)
	s.logger.Info("診断結果を受信しました",
		slog.Bool("with_image", image != ""),
		slog.Bool("structured", result.Report != nil),
	)
	return result, nil
}

// DiagnoseImageURL は画像URLから画像を取得し、base64に変換して診断する。
// 取得はSSRF対策済みのクライアントで行う。
func (s *Service) DiagnoseImageURL(ctx context.Context, description, imageURL string) (*Result, error) {
	if s.images == nil {
		return nil, model.NewInvalidImageError("không hỗ trợ tải hình ảnh từ URL")
	}
	img, err := s.images.Fetch(ctx, strings.TrimSpace(imageURL))
	if err != nil {
		switch {
		case errors.Is(err, security.ErrBlockedURL):
			return nil, model.NewInvalidImageError("URL không được phép")
		case errors.Is(err, security.ErrInvalidImage):
			return nil, model.NewInvalidImageError("không phải hình ảnh hợp lệ hoặc quá lớn")
		default:
			s.logger.Warn("診断用画像の取得に失敗しました",
				slog.String("url", imageURL),
				slog.String("error", err.Error()),
			)
			return nil, model.NewInvalidImageError("không thể tải hình ảnh")
		}
	}
	return s.Diagnose(ctx, Input{
		Description: description,
		ImageBase64: base64.StdEncoding.EncodeToString(img.Data),
	})
}

// reportPayload はバックエンドの診断レスポンス。
// 構造化された結果のほか、自由記述のresult/messageだけを返す場合がある。
type reportPayload struct {
	PlantName      string     `json:"plantName"`
	ScientificName string     `json:"scientificName"`
	Disease        Disease    `json:"disease"`
	Treatment      Treatment  `json:"treatment"`
	Confidence     confidence `json:"confidence"`
	Result         string     `json:"result"`
	Message        string     `json:"message"`
}

// parse はレスポンスを診断結果に変換する。形状を解釈できない場合は定型文を返す。
func (s *Service) parse(body []byte) *Result {
	if text, ok := freeText(body); ok {
		return &Result{Text: s.plain(text)}
	}

	p := envelope.One[reportPayload](s.norm, "diagnosis", body)
	if p == nil {
		return &Result{Text: fallbackText}
	}

	report := &Report{
		PlantName:      s.plain(p.PlantName),
		ScientificName: s.plain(p.ScientificName),
		Disease: Disease{
			Name:        s.plain(p.Disease.Name),
			Description: s.plain(p.Disease.Description),
			Symptoms:    s.plainList(p.Disease.Symptoms),
			Causes:      s.plainList(p.Disease.Causes),
		},
		Treatment: Treatment{
			Immediate:  s.plainList(p.Treatment.Immediate),
			Preventive: s.plainList(p.Treatment.Preventive),
			Products:   s.plainList(p.Treatment.Products),
		},
	}
	if p.Confidence.value != nil {
		pct := Percent(*p.Confidence.value)
		report.Confidence = &pct
	}

	if report.IsEmpty() {
		for _, free := range []string{p.Result, p.Message} {
			if free = s.plain(free); free != "" {
				return &Result{Text: free}
			}
		}
		return &Result{Text: fallbackText}
	}
	return &Result{Report: report, Text: report.Format()}
}

// freeText は "..." または {"data": "..."} 形式の自由記述レスポンスから本文を取り出す。
func freeText(body []byte) (string, bool) {
	if text, ok := jsonString(body); ok {
		return text, true
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(body, &wrapped) != nil {
		return "", false
	}
	return jsonString(wrapped.Data)
}

// jsonString はJSON文字列リテラルのみを受け付ける。nullは文字列として扱わない。
func jsonString(raw []byte) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var text string
	if json.Unmarshal(raw, &text) != nil {
		return "", false
	}
	return text, true
}

func (s *Service) plain(v string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(v)
	}
	return s.sanitizer.PlainText(v)
}

func (s *Service) plainList(items TextList) TextList {
	var out TextList
	for _, item := range items {
		if v := s.plain(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// normalizeBase64 はdata URIの接頭辞を取り除き、base64として妥当かを確認する。
func normalizeBase64(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", nil
	}
	if strings.HasPrefix(v, "data:") {
		_, after, ok := strings.Cut(v, ",")
		if !ok {
			return "", errors.New("malformed data URI")
		}
		v = after
	}
	if _, err := base64.StdEncoding.DecodeString(v); err != nil {
		return "", err
	}
	return v, nil
}
