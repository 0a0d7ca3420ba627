package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Paigeblanch/TimeAuthority/internal/logging"
	"github.com/Paigeblanch/TimeAuthority/internal/protocol"
	"github.com/Paigeblanch/TimeAuthority/internal/service"
)

// Header names of the x402 exchange.
const (
	HeaderPayment         = "X-Payment"
	HeaderPaymentRequired = "X-Payment-Required"
	HeaderPaymentResponse = "X-Payment-Response"
)

type Handler struct {
	service *service.WitnessService
	logger  *slog.Logger
}

func NewHandler(svc *service.WitnessService, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /timestamp", h.handleTimestamp)
	mux.HandleFunc("GET /verify/{transaction_id}", h.handleVerify)
	mux.HandleFunc("GET /stats", h.handleStats)
	mux.HandleFunc("GET /quota", h.handleQuota)
	mux.HandleFunc("GET /dashboard", h.handleDashboard)
	return mux
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	logging.AddField(r.Context(), "op", "descriptor")
	writeJSON(w, http.StatusOK, h.service.Descriptor())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	logging.AddField(r.Context(), "op", "health")
	writeJSON(w, http.StatusOK, h.service.Health(r.Context()))
}

func (h *Handler) handleTimestamp(w http.ResponseWriter, r *http.Request) {
	var req protocol.TimestampRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, service.NewAppError(http.StatusBadRequest, "BAD_REQUEST", err.Error(), false, err))
		return
	}

	result, err := h.service.Timestamp(r.Context(), req, r.Header.Get(HeaderPayment))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if result.Challenge != nil {
		logging.AddField(r.Context(), "op", "payment_challenge")
		logging.AddField(r.Context(), "invoice_id", result.Challenge.InvoiceID)
		if raw, err := json.Marshal(result.Challenge); err == nil {
			w.Header().Set(HeaderPaymentRequired, string(raw))
		}
		writeJSON(w, http.StatusPaymentRequired, protocol.PaymentRequiredResponse{
			Error:   "Payment Required",
			Message: result.Message,
			Payment: *result.Challenge,
		})
		return
	}

	logging.AddField(r.Context(), "op", "issue_timestamp")
	logging.AddField(r.Context(), "transaction_id", result.Response.TransactionID)
	logging.AddField(r.Context(), "document_hash", result.Response.DocumentHash)
	if raw, err := json.Marshal(result.Confirmation); err == nil {
		w.Header().Set(HeaderPaymentResponse, string(raw))
	}
	writeJSON(w, http.StatusOK, result.Response)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	transactionID := r.PathValue("transaction_id")
	resp, err := h.service.Verify(r.Context(), transactionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.AddField(r.Context(), "op", "verify_timestamp")
	logging.AddField(r.Context(), "transaction_id", transactionID)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	logging.AddField(r.Context(), "op", "stats")
	writeJSON(w, http.StatusOK, h.service.Stats(r.Context()))
}

func (h *Handler) handleQuota(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Quota(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.AddField(r.Context(), "op", "quota")
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *service.AppError
	if errors.As(err, &appErr) {
		logging.AddField(r.Context(), "error_code", appErr.Code)
		logging.AddField(r.Context(), "error_message", appErr.Message)
		writeJSON(w, appErr.HTTPStatus, protocol.ErrorResponse{Error: protocol.ErrorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Retryable: appErr.Retryable,
		}})
		return
	}
	logging.AddField(r.Context(), "error_code", "INTERNAL_ERROR")
	logging.AddField(r.Context(), "error_message", err.Error())
	writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{Error: protocol.ErrorBody{
		Code:      "INTERNAL_ERROR",
		Message:   "internal server error",
		Retryable: true,
	}})
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	limited := io.LimitReader(r.Body, 2<<20)
	dec := json.NewDecoder(limited)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
