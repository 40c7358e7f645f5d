package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

// OrderHandler は注文・決済関連のHTTPハンドラー。
type OrderHandler struct {
	base
	now func() time.Time
}

// NewOrderHandler はOrderHandlerの新しいインスタンスを生成する。
func NewOrderHandler(services *ServiceFactory, coord *session.Coordinator, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{base: newBase(services, coord, logger), now: time.Now}
}

type checkoutRequest struct {
	AddressID       int64               `json:"addressId"`
	RecipientName   string              `json:"recipientName"`
	PhoneNumber     string              `json:"phoneNumber"`
	ShippingAddress string              `json:"shippingAddress"`
	Note            string              `json:"note"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod"`
	PromotionCode   string              `json:"promotionCode"`
}

type checkoutResponse struct {
	Order      *model.Order    `json:"order"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	PaymentURL string          `json:"paymentUrl,omitempty"`
}

// Checkout はPOST /api/checkout を処理する。
// カートから注文を作成し、成功したらカートを空にする。
// オンライン決済の場合は決済ページのURLを返す。
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if st.Cart.IsEmpty() {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewCartEmptyError())
		return
	}

	if err := h.fillShipping(r, st, &req); err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}

	method := model.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(req.PaymentMethod))))
	if method == "" {
		method = model.PaymentMethodCOD
	}

	items := st.Cart.Items()
	if len(items) == 0 {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewCartEmptyError())
		return
	}
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal())
	}
	discount := decimal.Zero
	code := strings.TrimSpace(req.PromotionCode)
	if code != "" {
		p, err := h.services.Promotions(st).FindByCode(r.Context(), code)
		if err != nil {
			h.handleServiceError(w, r, st, err)
			return
		}
		discount = p.Discount(subtotal, h.now())
	}

	in := model.CreateOrderInput{
		RecipientName:   req.RecipientName,
		PhoneNumber:     req.PhoneNumber,
		ShippingAddress: req.ShippingAddress,
		Note:            strings.TrimSpace(req.Note),
		PaymentMethod:   method,
		PromotionCode:   code,
		Items:           make([]model.CreateOrderItem, 0, len(items)),
	}
	for _, it := range items {
		in.Items = append(in.Items, model.CreateOrderItem{ProductID: it.ID, Quantity: it.Quantity})
	}

	o, err := h.services.Orders(st).Create(r.Context(), in)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	st.Cart.Settle(items)

	resp := checkoutResponse{Order: o, Subtotal: subtotal, Discount: discount}
	if method.Online() {
		// 注文は作成済みのため、決済URLの発行失敗はエラーにせず再発行に任せる
		payment, err := h.services.Payments(st).Create(r.Context(), o.ID, method)
		if err != nil {
			h.logger.Warn("決済URLの発行に失敗しました",
				slog.Int64("order_id", o.ID),
				slog.String("error", err.Error()),
			)
		} else {
			resp.PaymentURL = payment.PaymentURL
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

// fillShipping は配送先を補完する。addressIdが指定されていればその住所を、
// 配送先が空なら既定の住所を使う。明示された値は上書きしない。
func (h *OrderHandler) fillShipping(r *http.Request, st *session.State, req *checkoutRequest) error {
	if req.AddressID == 0 && strings.TrimSpace(req.ShippingAddress) != "" {
		return nil
	}

	addresses := h.services.Addresses(st)
	var addr *model.Address
	if req.AddressID != 0 {
		list, err := addresses.List(r.Context())
		if err != nil {
			return err
		}
		for i := range list {
			if list[i].ID == req.AddressID {
				addr = &list[i]
				break
			}
		}
		if addr == nil {
			return model.NewAddressNotFoundError(req.AddressID)
		}
	} else {
		var err error
		addr, err = addresses.Default(r.Context())
		if err != nil {
			return err
		}
		if addr == nil {
			return nil
		}
	}

	if strings.TrimSpace(req.RecipientName) == "" {
		req.RecipientName = addr.RecipientName
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		req.PhoneNumber = addr.PhoneNumber
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		req.ShippingAddress = addr.FullAddress()
	}
	return nil
}

// List はGET /api/orders を処理する。
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}

	list, err := h.services.Orders(st).ListMine(r.Context())
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get はGET /api/orders/{id} を処理する。
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, err := h.services.Orders(st).Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Cancel はPOST /api/orders/{id}/cancel を処理する。
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, err := h.services.Orders(st).Cancel(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus はPUT /api/orders/{id}/status を処理する。
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.services.Orders(st).UpdateStatus(r.Context(), id, req.Status); err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createPaymentRequest struct {
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
}

// CreatePayment はPOST /api/orders/{id}/payment を処理する。決済URLの再発行に使う。
func (h *OrderHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req createPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	method := model.PaymentMethod(strings.ToUpper(strings.TrimSpace(string(req.PaymentMethod))))
	if !method.Online() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("phương thức thanh toán không hợp lệ"))
		return
	}

	payment, err := h.services.Payments(st).Create(r.Context(), id, method)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// GetPayment はGET /api/orders/{id}/payment を処理する。決済情報がなければ404を返す。
func (h *OrderHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	payment, err := h.services.Payments(st).GetByOrder(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	if payment == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// PaymentResult はGET /api/payment-result?orderId= を処理する。
// 結果の分類は常に200で返し、画面側が状態に応じて表示を切り替える。
func (h *OrderHandler) PaymentResult(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}

	result, err := h.services.Orders(st).PaymentResult(r.Context(), r.URL.Query().Get("orderId"))
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
