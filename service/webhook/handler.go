package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/smsflow/smsflow/pkg/apperr"
	"github.com/smsflow/smsflow/pkg/otellib"
	"go.uber.org/zap"
)

// Path of the provider webhook
const Path = "/webhooks/provider"

const maxBodyBytes = 1 << 20

// Response is the JSON body of every webhook response
type Response struct {
	Success   bool        `json:"success"`
	ErrorCode apperr.Code `json:"error_code,omitempty"`
	Message   string      `json:"message,omitempty"`
	EventID   int64       `json:"event_id,omitempty"`
}

// Handler ...
type Handler struct {
	processor       *Processor
	signatureHeader string
}

// NewHandler ...
func NewHandler(processor *Processor, signatureHeader string) *Handler {
	if signatureHeader == "" {
		signatureHeader = "X-Signature"
	}
	return &Handler{
		processor:       processor,
		signatureHeader: signatureHeader,
	}
}

// Register mounts the webhook route
func (h *Handler) Register(r chi.Router) {
	r.Post(Path, h.ServeWebhook)
}

// ServeWebhook ...
func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			ErrorCode: apperr.CodeInvalidPayload,
			Message:   "cannot read body",
		})
		return
	}

	result, err := h.processor.HandleDelivery(r.Context(), body, r.Header.Get(h.signatureHeader))
	if err != nil {
		code := apperr.CodeOf(err)
		status := statusOf(code)
		if status >= http.StatusInternalServerError {
			otellib.Extract(r.Context()).Error("webhook processing", zap.Error(err))
		}
		writeJSON(w, status, Response{
			ErrorCode: code,
			Message:   apperr.MessageOf(err),
			EventID:   result.EventID,
		})
		return
	}

	message := "processed"
	if result.Duplicate {
		message = "duplicate"
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		EventID: result.EventID,
	})
}

func statusOf(code apperr.Code) int {
	switch code {
	case apperr.CodeMissingSignature, apperr.CodeInvalidSignature:
		return http.StatusUnauthorized
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeProcessingError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
