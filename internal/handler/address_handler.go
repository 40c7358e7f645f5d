package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

// AddressHandler は配送先住所のHTTPハンドラー。
type AddressHandler struct {
	base
}

// NewAddressHandler はAddressHandlerの新しいインスタンスを生成する。
func NewAddressHandler(services *ServiceFactory, coord *session.Coordinator, logger *slog.Logger) *AddressHandler {
	return &AddressHandler{base: newBase(services, coord, logger)}
}

// List はGET /api/addresses を処理する。
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}

	list, err := h.services.Addresses(st).List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Create はPOST /api/addresses を処理する。
func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	var in model.AddressInput
	if !decodeJSON(w, r, &in) {
		return
	}

	a, err := h.services.Addresses(st).Create(r.Context(), in)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Update はPUT /api/addresses/{id} を処理する。
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in model.AddressInput
	if !decodeJSON(w, r, &in) {
		return
	}

	a, err := h.services.Addresses(st).Update(r.Context(), id, in)
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Delete はDELETE /api/addresses/{id} を処理する。
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.services.Addresses(st).Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDefault はPUT /api/addresses/{id}/default を処理する。
func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.services.Addresses(st).SetDefault(r.Context(), id); err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
