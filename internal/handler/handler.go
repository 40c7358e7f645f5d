// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

// maxRequestBody はJSONリクエストボディの上限（診断画像のbase64を含む）。
const maxRequestBody = 8 << 20

// base は各ハンドラーが共有する依存とヘルパー。
type base struct {
	services *ServiceFactory
	coord    *session.Coordinator
	logger   *slog.Logger
}

func newBase(services *ServiceFactory, coord *session.Coordinator, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	if coord == nil {
		coord = session.NewCoordinator(logger)
	}
	return base{services: services, coord: coord, logger: logger}
}

// state はリクエストのセッション状態を返す。セッションミドルウェアを通っていない場合は500を返す。
func (b *base) state(w http.ResponseWriter, r *http.Request) (*session.State, bool) {
	st, ok := middleware.StateFromContext(r.Context())
	if !ok {
		b.logger.Error("session state missing from request context",
			slog.String("path", r.URL.Path),
		)
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return st, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPレスポンスに変換する。
// 認証切れはコーディネーターに渡し、遷移先付きの401を返す。
func (b *base) handleServiceError(w http.ResponseWriter, r *http.Request, st *session.State, err error) {
	if nav, ok := b.coord.Resolve(r.Context(), st, err); ok {
		middleware.WriteErrorResponseWithRedirect(w, http.StatusUnauthorized, model.NewAuthExpiredAPIError(), nav.RedirectTo)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusNotFound {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
			return
		}
		b.logger.Warn("backend request failed",
			slog.String("error", err.Error()),
			slog.String("class", httpErr.Class().String()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
		return
	}

	b.logger.Error("backend call failed", slog.String("error", err.Error()))
	middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewBackendUnavailableError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidInput, model.ErrCodeInvalidOrderStatus,
		model.ErrCodeInvalidRating, model.ErrCodeInvalidImage:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeAuthExpired, model.ErrCodeLoginFailed:
		return http.StatusUnauthorized
	case model.ErrCodeUserNotFound, model.ErrCodeProductNotFound, model.ErrCodeCategoryNotFound,
		model.ErrCodeOrderNotFound, model.ErrCodeAddressNotFound, model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeOrderNotCancellable:
		return http.StatusConflict
	case model.ErrCodeCartEmpty, model.ErrCodePromotionInvalid:
		return http.StatusUnprocessableEntity
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeCSRFFailed:
		return http.StatusForbidden
	case model.ErrCodeBackendUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをデコードする。失敗時は400を書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("dữ liệu JSON không hợp lệ"))
		return false
	}
	return true
}

// pathID はURLパラメータの数値IDを取得する。不正な場合は400を書き込んでfalseを返す。
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError(name+" không hợp lệ"))
		return 0, false
	}
	return id, true
}
