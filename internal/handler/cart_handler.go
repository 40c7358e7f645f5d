package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

// CartHandler はカート関連のHTTPハンドラー。
type CartHandler struct {
	base
}

// NewCartHandler はCartHandlerの新しいインスタンスを生成する。
func NewCartHandler(services *ServiceFactory, coord *session.Coordinator, logger *slog.Logger) *CartHandler {
	return &CartHandler{base: newBase(services, coord, logger)}
}

// cartResponse はカートのスナップショット。
type cartResponse struct {
	Items      []cart.Item     `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func snapshot(c *cart.Cart) cartResponse {
	return cartResponse{
		Items:      c.Items(),
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
}

// Get はGET /api/cart を処理する。
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshot(st.Cart))
}

// Clear はDELETE /api/cart を処理する。
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	st.Cart.Clear()
	writeJSON(w, http.StatusOK, snapshot(st.Cart))
}

type addItemRequest struct {
	ProductID json.Number `json:"productId"`
	Quantity  int         `json:"quantity"`
}

// AddItem はPOST /api/cart/items を処理する。
// 商品情報はバックエンドから取得し、その時点の価格でカートに入れる。
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	raw, err := req.ProductID.Float64()
	id, valid := cart.ParseProductID(raw)
	if err != nil || !valid {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("productId không hợp lệ"))
		return
	}

	p, err := h.services.Products(st).Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}

	st.Cart.Add(cart.Item{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		ImageURL: p.ImageURL,
	}, req.Quantity)

	writeJSON(w, http.StatusOK, snapshot(st.Cart))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateItem はPUT /api/cart/items/{id} を処理する。数量0以下は削除になる。
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st.Cart.UpdateQuantity(id, req.Quantity)
	writeJSON(w, http.StatusOK, snapshot(st.Cart))
}

// RemoveItem はDELETE /api/cart/items/{id} を処理する。
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	st.Cart.Remove(id)
	writeJSON(w, http.StatusOK, snapshot(st.Cart))
}
