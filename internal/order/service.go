package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
)

// Service は注文のサービス層。
type Service struct {
	client     *apiclient.Client
	norm       *envelope.Normalizer
	classifier Classifier
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client *apiclient.Client, norm *envelope.Normalizer, classifier Classifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, norm: norm, classifier: classifier, logger: logger}
}

// PaymentResult は決済結果画面に表示する内容。
type PaymentResult struct {
	State ResultState  `json:"state"`
	Order *model.Order `json:"order,omitempty"`
}

// Create は注文を作成する。明細が空の場合はCART_EMPTYを返す。
func (s *Service) Create(ctx context.Context, in model.CreateOrderInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, model.NewCartEmptyError()
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	body, err := s.client.Post(ctx, "/api/Orders", in)
	if err != nil {
		return nil, fmt.Errorf("注文の作成に失敗しました: %w", err)
	}

	o := envelope.One[model.Order](s.norm, "order", body)
	if o == nil || o.ID == 0 {
		return nil, fmt.Errorf("注文の作成に失敗しました: %w", model.NewBackendUnavailableError())
	}

	s.logger.Info("注文を作成しました",
		slog.Int64("order_id", o.ID),
		slog.String("payment_method", string(in.PaymentMethod)),
		slog.Int("items", len(in.Items)),
	)
	return o, nil
}

func validateCreate(in model.CreateOrderInput) error {
	if strings.TrimSpace(in.RecipientName) == "" {
		return model.NewInvalidInputError("tên người nhận là bắt buộc")
	}
	if strings.TrimSpace(in.PhoneNumber) == "" {
		return model.NewInvalidInputError("số điện thoại là bắt buộc")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return model.NewInvalidInputError("địa chỉ giao hàng là bắt buộc")
	}
	for _, item := range in.Items {
		if item.ProductID <= 0 || item.Quantity < 1 {
			return model.NewInvalidInputError("sản phẩm trong đơn hàng không hợp lệ")
		}
	}
	return nil
}

// Get は指定IDの注文を取得する。
func (s *Service) Get(ctx context.Context, id int64) (*model.Order, error) {
	if id <= 0 {
		return nil, model.NewOrderNotFoundError(id)
	}
	body, err := s.client.Get(ctx, orderPath(id))
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, model.NewOrderNotFoundError(id)
		}
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	o := envelope.One[model.Order](s.norm, "order", body)
	if o == nil || o.ID == 0 {
		return nil, model.NewOrderNotFoundError(id)
	}
	return o, nil
}

// ListMine はログイン中ユーザーの注文一覧を取得する。
func (s *Service) ListMine(ctx context.Context) ([]model.Order, error) {
	body, err := s.client.Get(ctx, "/api/Orders/my-orders")
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	return envelope.List[model.Order](s.norm, "orders", body), nil
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// UpdateStatus は注文ステータスを更新する。未知のステータスは送信前に拒否する。
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) error {
	st, ok := model.ParseOrderStatus(status)
	if !ok {
		return model.NewInvalidOrderStatusError(status)
	}
	if id <= 0 {
		return model.NewOrderNotFoundError(id)
	}

	if _, err := s.client.Put(ctx, orderPath(id)+"/status", statusRequest{Status: st}); err != nil {
		if apiclient.IsNotFound(err) {
			return model.NewOrderNotFoundError(id)
		}
		return fmt.Errorf("注文ステータスの更新に失敗しました: %w", err)
	}

	s.logger.Info("注文ステータスを更新しました",
		slog.Int64("order_id", id),
		slog.String("status", string(st)),
	)
	return nil
}

// Cancel は注文をキャンセルする。PENDING・CONFIRMED以外はORDER_NOT_CANCELLABLEを返す。
func (s *Service) Cancel(ctx context.Context, id int64) (*model.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Cancellable(o.Status) {
		return nil, model.NewOrderNotCancellableError(o.Status)
	}
	if err := s.UpdateStatus(ctx, id, string(model.OrderStatusCancelled)); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatusCancelled
	return o, nil
}

// PaymentResult は決済ページから戻った際の注文IDを1回だけ取得して分類する。
// IDが空・数値でない場合は取得せずにResultMissingOrderIDを返す。
func (s *Service) PaymentResult(ctx context.Context, rawOrderID string) (*PaymentResult, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawOrderID), 10, 64)
	if err != nil || id <= 0 {
		return &PaymentResult{State: ResultMissingOrderID}, nil
	}

	o, err := s.Get(ctx, id)
	if err != nil {
		if isOrderNotFound(err) {
			return &PaymentResult{State: ResultNotFound}, nil
		}
		return nil, err
	}

	state := s.classifier.Classify(o.Status)
	s.logger.Info("決済結果を判定しました",
		slog.Int64("order_id", o.ID),
		slog.String("status", string(o.Status)),
		slog.String("result", state.String()),
	)
	return &PaymentResult{State: state, Order: o}, nil
}

func isOrderNotFound(err error) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeOrderNotFound
}

func orderPath(id int64) string {
	return "/api/Orders/" + strconv.FormatInt(id, 10)
}
