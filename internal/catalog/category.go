package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
)

// CategoryService はカテゴリのサービス層。
type CategoryService struct {
	client *apiclient.Client
	norm   *envelope.Normalizer
}

// NewCategoryService はCategoryServiceの新しいインスタンスを生成する。
func NewCategoryService(client *apiclient.Client, norm *envelope.Normalizer) *CategoryService {
	return &CategoryService{client: client, norm: norm}
}

// List はカテゴリ一覧を取得する。
func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	body, err := s.client.Get(ctx, "/Categories")
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return envelope.List[model.Category](s.norm, "categories", body), nil
}

// Get は指定IDのカテゴリを取得する。
func (s *CategoryService) Get(ctx context.Context, id int64) (*model.Category, error) {
	if id <= 0 {
		return nil, model.NewCategoryNotFoundError(id)
	}
	body, err := s.client.Get(ctx, "/Categories/"+strconv.FormatInt(id, 10))
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, model.NewCategoryNotFoundError(id)
		}
		return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}
	c := envelope.One[model.Category](s.norm, "category", body)
	if c == nil || c.ID == 0 {
		return nil, model.NewCategoryNotFoundError(id)
	}
	return c, nil
}
