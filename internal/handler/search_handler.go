package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/session"
)

// SearchHandler は検索キーワードのHTTPハンドラー。
type SearchHandler struct {
	base
}

// NewSearchHandler はSearchHandlerの新しいインスタンスを生成する。
func NewSearchHandler(coord *session.Coordinator, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{base: newBase(nil, coord, logger)}
}

type keywordBody struct {
	Keyword string `json:"keyword"`
}

// Get はGET /api/search を処理する。
func (h *SearchHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, keywordBody{Keyword: st.Search.Get()})
}

// Set はPUT /api/search を処理する。
func (h *SearchHandler) Set(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	var req keywordBody
	if !decodeJSON(w, r, &req) {
		return
	}
	st.Search.Set(req.Keyword)
	writeJSON(w, http.StatusOK, keywordBody{Keyword: st.Search.Get()})
}

// Clear はDELETE /api/search を処理する。
func (h *SearchHandler) Clear(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	st.Search.Clear()
	writeJSON(w, http.StatusOK, keywordBody{})
}
