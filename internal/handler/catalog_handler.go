package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

// CatalogHandler は商品・カテゴリ・レビュー・プロモーションのHTTPハンドラー。
type CatalogHandler struct {
	base
}

// NewCatalogHandler はCatalogHandlerの新しいインスタンスを生成する。
func NewCatalogHandler(services *ServiceFactory, coord *session.Coordinator, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{base: newBase(services, coord, logger)}
}

// ListProducts はGET /api/products を処理する。
// categoryIdでカテゴリを絞り込み、qまたはセッションの検索キーワードで名前と説明を絞り込む。
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}

	products := h.services.Products(st)
	var (
		list []model.Product
		err  error
	)
	if raw := r.URL.Query().Get("categoryId"); raw != "" {
		categoryID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("categoryId không hợp lệ"))
			return
		}
		list, err = products.ListByCategory(r.Context(), categoryID)
	} else {
		list, err = products.List(r.Context())
	}
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}

	keyword := strings.TrimSpace(r.URL.Query().Get("q"))
	if keyword == "" {
		keyword = st.Search.Get()
	}
	list = catalog.FilterProducts(list, keyword)

	writeJSON(w, http.StatusOK, map[string]any{
		"products": list,
		"keyword":  keyword,
	})
}

// GetProduct はGET /api/products/{id} を処理する。
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.services.Products(st).Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListRatings はGET /api/products/{id}/ratings を処理する。平均評価を含めて返す。
func (h *CatalogHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ratings := h.services.Ratings(st)
	list, err := ratings.ListForProduct(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	avg, err := ratings.Average(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ratings": list,
		"average": avg,
		"count":   len(list),
	})
}

type createRatingRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// CreateRating はPOST /api/products/{id}/ratings を処理する。
func (h *CatalogHandler) CreateRating(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req createRatingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rating, err := h.services.Ratings(st).Create(r.Context(), model.CreateRatingInput{
		ProductID: id,
		Score:     req.Score,
		Comment:   req.Comment,
	})
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

// ListCategories はGET /api/categories を処理する。
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}

	list, err := h.services.Categories(st).List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetCategory はGET /api/categories/{id} を処理する。
func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.services.Categories(st).Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListPromotions はGET /api/promotions を処理する。
func (h *CatalogHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}

	list, err := h.services.Promotions(st).Active(r.Context())
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
