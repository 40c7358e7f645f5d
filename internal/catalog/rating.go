package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
)

// maxCommentLength はレビューコメントの最大文字数。
const maxCommentLength = 1000

// RatingService は商品レビューのサービス層。
type RatingService struct {
	client *apiclient.Client
	norm   *envelope.Normalizer
	logger *slog.Logger
}

// NewRatingService はRatingServiceの新しいインスタンスを生成する。
func NewRatingService(client *apiclient.Client, norm *envelope.Normalizer, logger *slog.Logger) *RatingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RatingService{client: client, norm: norm, logger: logger}
}

// ListForProduct は商品のレビュー一覧を取得する。
func (s *RatingService) ListForProduct(ctx context.Context, productID int64) ([]model.Rating, error) {
	body, err := s.client.Get(ctx, ratingPath(productID))
	if err != nil {
		if apiclient.IsNotFound(err) {
			return []model.Rating{}, nil
		}
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}
	return envelope.List[model.Rating](s.norm, "ratings", body), nil
}

// Average は商品の平均評価を取得する。
// 評価データがない場合はnilを返す（0点とは区別する）。
func (s *RatingService) Average(ctx context.Context, productID int64) (*float64, error) {
	body, err := s.client.Get(ctx, ratingPath(productID)+"/average")
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("平均評価の取得に失敗しました: %w", err)
	}
	return s.norm.RatingAverage(body), nil
}

// Create はレビューを投稿する。評価値は1〜5のみ受け付ける。
func (s *RatingService) Create(ctx context.Context, in model.CreateRatingInput) (*model.Rating, error) {
	if in.ProductID <= 0 {
		return nil, model.NewProductNotFoundError(in.ProductID)
	}
	if in.Score < model.MinRatingScore || in.Score > model.MaxRatingScore {
		return nil, model.NewInvalidRatingError(in.Score)
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if len([]rune(in.Comment)) > maxCommentLength {
		return nil, model.NewInvalidInputError(fmt.Sprintf("bình luận tối đa %d ký tự", maxCommentLength))
	}

	body, err := s.client.Post(ctx, "/Ratings", in)
	if err != nil {
		return nil, fmt.Errorf("レビューの投稿に失敗しました: %w", err)
	}

	s.logger.Info("レビューを投稿しました",
		slog.Int64("product_id", in.ProductID),
		slog.Int("score", in.Score),
	)

	if r := envelope.One[model.Rating](s.norm, "rating", body); r != nil {
		return r, nil
	}
	// 作成APIが本文を返さない場合は入力値を返す
	return &model.Rating{ProductID: in.ProductID, Score: in.Score, Comment: in.Comment}, nil
}

func ratingPath(productID int64) string {
	return "/Ratings/product/" + strconv.FormatInt(productID, 10)
}
