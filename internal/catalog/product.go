// Package catalog は商品・カテゴリ・レビュー・プロモーションの読み出しを提供する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/search"
)

// DescriptionSanitizer は商品説明のHTMLを安全な形に変換する。
type DescriptionSanitizer interface {
	Description(rawHTML string) string
}

// ProductService は商品のサービス層。
type ProductService struct {
	client    *apiclient.Client
	norm      *envelope.Normalizer
	sanitizer DescriptionSanitizer
	logger    *slog.Logger
}

// NewProductService はProductServiceの新しいインスタンスを生成する。
// sanitizerがnilの場合、説明文はそのまま返す。
func NewProductService(client *apiclient.Client, norm *envelope.Normalizer, sanitizer DescriptionSanitizer, logger *slog.Logger) *ProductService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductService{client: client, norm: norm, sanitizer: sanitizer, logger: logger}
}

// List は商品一覧を取得する。
func (s *ProductService) List(ctx context.Context) ([]model.Product, error) {
	body, err := s.client.Get(ctx, "/Products")
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	return s.sanitizeAll(envelope.List[model.Product](s.norm, "products", body)), nil
}

// ListByCategory は指定カテゴリの商品一覧を取得する。
func (s *ProductService) ListByCategory(ctx context.Context, categoryID int64) ([]model.Product, error) {
	if categoryID <= 0 {
		return nil, model.NewInvalidInputError("categoryId không hợp lệ")
	}
	q := url.Values{"categoryId": {strconv.FormatInt(categoryID, 10)}}
	body, err := s.client.Get(ctx, "/Products?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("カテゴリ別商品一覧の取得に失敗しました: %w", err)
	}
	return s.sanitizeAll(envelope.List[model.Product](s.norm, "products", body)), nil
}

// Get は指定IDの商品を取得する。
func (s *ProductService) Get(ctx context.Context, id int64) (*model.Product, error) {
	if id <= 0 {
		return nil, model.NewProductNotFoundError(id)
	}
	body, err := s.client.Get(ctx, "/Products/"+strconv.FormatInt(id, 10))
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, model.NewProductNotFoundError(id)
		}
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	p := envelope.One[model.Product](s.norm, "product", body)
	if p == nil || p.ID == 0 {
		return nil, model.NewProductNotFoundError(id)
	}
	s.sanitize(p)
	return p, nil
}

// Search は商品一覧をキーワードで絞り込む。
// バックエンドに検索APIがないため、名前と説明文に対する部分一致で判定する。
func (s *ProductService) Search(ctx context.Context, keyword string) ([]model.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterProducts(products, keyword), nil
}

// FilterProducts は商品をキーワードで絞り込む。空のキーワードは全件を返す。
func FilterProducts(products []model.Product, keyword string) []model.Product {
	result := make([]model.Product, 0, len(products))
	for _, p := range products {
		if search.Matches(keyword, p.Name, p.Description) {
			result = append(result, p)
		}
	}
	return result
}

func (s *ProductService) sanitizeAll(products []model.Product) []model.Product {
	for i := range products {
		s.sanitize(&products[i])
	}
	return products
}

func (s *ProductService) sanitize(p *model.Product) {
	if s.sanitizer != nil && p.Description != "" {
		p.Description = s.sanitizer.Description(p.Description)
	}
}
