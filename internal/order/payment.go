package order

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/envelope"
	"github.com/hitoshi/storefront/internal/model"
)

// PaymentService は決済のサービス層。
type PaymentService struct {
	client *apiclient.Client
	norm   *envelope.Normalizer
	logger *slog.Logger
}

// NewPaymentService はPaymentServiceの新しいインスタンスを生成する。
func NewPaymentService(client *apiclient.Client, norm *envelope.Normalizer, logger *slog.Logger) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{client: client, norm: norm, logger: logger}
}

type createPaymentRequest struct {
	OrderID int64               `json:"orderId"`
	Method  model.PaymentMethod `json:"paymentMethod"`
}

// Create は注文の決済を作成し、オンライン決済の場合は決済ページのURLを含む情報を返す。
func (s *PaymentService) Create(ctx context.Context, orderID int64, method model.PaymentMethod) (*model.Payment, error) {
	if orderID <= 0 {
		return nil, model.NewOrderNotFoundError(orderID)
	}

	body, err := s.client.Post(ctx, "/api/Payments/create", createPaymentRequest{OrderID: orderID, Method: method})
	if err != nil {
		return nil, fmt.Errorf("決済の作成に失敗しました: %w", err)
	}

	p := envelope.One[model.Payment](s.norm, "payment", body)
	if p == nil {
		return nil, fmt.Errorf("決済の作成に失敗しました: %w", model.NewBackendUnavailableError())
	}
	if p.OrderID == 0 {
		p.OrderID = orderID
	}
	if p.Method == "" {
		p.Method = method
	}

	s.logger.Info("決済を作成しました",
		slog.Int64("order_id", orderID),
		slog.String("method", string(method)),
		slog.Bool("redirect", p.PaymentURL != ""),
	)
	return p, nil
}

// GetByOrder は注文に紐づく決済情報を取得する。存在しない場合はnilを返す。
func (s *PaymentService) GetByOrder(ctx context.Context, orderID int64) (*model.Payment, error) {
	body, err := s.client.Get(ctx, "/api/Payments/order/"+strconv.FormatInt(orderID, 10))
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("決済情報の取得に失敗しました: %w", err)
	}
	return envelope.One[model.Payment](s.norm, "payment", body), nil
}
