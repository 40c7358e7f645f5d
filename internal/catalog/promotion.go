package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
)

// PromotionService はプロモーションのサービス層。読み取り専用。
type PromotionService struct {
	client *apiclient.Client
	norm   *envelope.Normalizer
	now    func() time.Time
}

// NewPromotionService はPromotionServiceの新しいインスタンスを生成する。
func NewPromotionService(client *apiclient.Client, norm *envelope.Normalizer) *PromotionService {
	return &PromotionService{client: client, norm: norm, now: time.Now}
}

// Active は現在有効なプロモーション一覧を取得する。
func (s *PromotionService) Active(ctx context.Context) ([]model.Promotion, error) {
	body, err := s.client.Get(ctx, "/Promotions/active")
	if err != nil {
		return nil, fmt.Errorf("プロモーション一覧の取得に失敗しました: %w", err)
	}
	return envelope.List[model.Promotion](s.norm, "promotions", body), nil
}

// FindByCode はコードに一致する使用可能なプロモーションを返す。
// コードは大文字小文字を区別しない。見つからない・使用できない場合はPROMOTION_INVALIDを返す。
func (s *PromotionService) FindByCode(ctx context.Context, code string) (*model.Promotion, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, model.NewPromotionInvalidError(code)
	}

	promotions, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range promotions {
		p := &promotions[i]
		if strings.EqualFold(p.Code, code) && p.Usable(now) {
			return p, nil
		}
	}
	return nil, model.NewPromotionInvalidError(code)
}
