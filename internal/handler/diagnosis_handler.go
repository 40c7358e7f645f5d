package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/storefront/internal/diagnosis"
	"github.com/hitoshi/storefront/internal/session"
)

// DiagnosisHandler は植物診断のHTTPハンドラー。
type DiagnosisHandler struct {
	base
}

// NewDiagnosisHandler はDiagnosisHandlerの新しいインスタンスを生成する。
func NewDiagnosisHandler(services *ServiceFactory, coord *session.Coordinator, logger *slog.Logger) *DiagnosisHandler {
	return &DiagnosisHandler{base: newBase(services, coord, logger)}
}

type diagnoseRequest struct {
	Description string `json:"description"`
	ImageBase64 string `json:"imageBase64"`
	ImageURL    string `json:"imageUrl"`
}

// Diagnose はPOST /api/diagnosis を処理する。
// imageUrlが指定された場合はゲートウェイが画像を取得して送信する。
func (h *DiagnosisHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	var req diagnoseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	svc := h.services.Diagnosis(st)
	var (
		result *diagnosis.Result
		err    error
	)
	if strings.TrimSpace(req.ImageURL) != "" && req.ImageBase64 == "" {
		result, err = svc.DiagnoseImageURL(r.Context(), req.Description, req.ImageURL)
	} else {
		result, err = svc.Diagnose(r.Context(), diagnosis.Input{
			Description: req.Description,
			ImageBase64: req.ImageBase64,
		})
	}
	if err != nil {
		h.handleServiceError(w, r, st, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
