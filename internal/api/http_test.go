package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Paigeblanch/TimeAuthority/internal/ledger"
	"github.com/Paigeblanch/TimeAuthority/internal/logging"
	"github.com/Paigeblanch/TimeAuthority/internal/protocol"
	"github.com/Paigeblanch/TimeAuthority/internal/service"
	"github.com/Paigeblanch/TimeAuthority/internal/x402"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "transaction_log.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	svc, err := service.New(service.Params{
		Ledger:   l,
		Verifier: &x402.SimulatedVerifier{},
		Terms: x402.Terms{
			Amount:          0.01,
			Currency:        "USDC",
			Network:         "base",
			Recipient:       "0x9A51D52CcbeB0C414d1C4A0feC6fe345A169C1a4",
			Description:     "Time Authority timestamp witness service",
			FacilitatorName: "coinbase",
			FacilitatorURL:  "https://api.coinbase.com/v1/x402",
		},
	})
	require.NoError(t, err)

	logger := logging.NewJSONLogger()
	return logging.Middleware(logger, logging.Environment{Service: "time-authority-test"})(NewHandler(svc, logger).Router())
}

func paymentHeaderValue(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(protocol.PaymentAssertion{
		TransactionHash: "0xabcdef123456",
		Amount:          "0.01",
		Currency:        "USDC",
		Network:         "base",
	})
	require.NoError(t, err)
	return string(raw)
}

func postTimestamp(t *testing.T, router http.Handler, body string, payment string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/timestamp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if payment != "" {
		req.Header.Set(HeaderPayment, payment)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRootDescriptor(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var desc protocol.ServiceDescriptor
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &desc))
	require.Equal(t, "Time Authority", desc.Service)
	require.Equal(t, "0.01 USDC", desc.Price)
	require.Equal(t, "x402 v2.0", desc.Protocol)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var health protocol.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.Zero(t, health.TotalTimestamps)
}

func TestTimestampWithoutPaymentReturns402(t *testing.T) {
	router := newTestRouter(t)
	rr := postTimestamp(t, router, `{"content":"hello"}`, "")

	require.Equal(t, http.StatusPaymentRequired, rr.Code)

	var body protocol.PaymentRequiredResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "Payment Required", body.Error)
	require.Equal(t, "0.01", body.Payment.Amount)
	require.Equal(t, "USDC", body.Payment.Currency)
	require.Equal(t, "base", body.Payment.Network)

	// Header duplicates the body challenge.
	var headerChallenge protocol.PaymentChallenge
	require.NoError(t, json.Unmarshal([]byte(rr.Header().Get(HeaderPaymentRequired)), &headerChallenge))
	require.Equal(t, body.Payment.InvoiceID, headerChallenge.InvoiceID)
}

func TestTimestampMalformedPaymentReturns400(t *testing.T) {
	router := newTestRouter(t)
	rr := postTimestamp(t, router, `{"content":"hello"}`, "{not json")

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "MALFORMED_PAYMENT", body.Error.Code)
}

func TestTimestampMissingDocumentReturns400(t *testing.T) {
	router := newTestRouter(t)
	rr := postTimestamp(t, router, `{}`, paymentHeaderValue(t))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "MISSING_DOCUMENT", body.Error.Code)
	require.Contains(t, body.Error.Message, "must provide either 'content' or 'hash'")
}

func TestTimestampPaidFlowAndVerify(t *testing.T) {
	router := newTestRouter(t)
	rr := postTimestamp(t, router, `{"content":"hello","metadata":{"agent":"test"}}`, paymentHeaderValue(t))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp protocol.TimestampResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.PaymentVerified)
	require.Equal(t, protocol.HashDocument("hello"), resp.DocumentHash)

	var confirmation protocol.PaymentConfirmation
	require.NoError(t, json.Unmarshal([]byte(rr.Header().Get(HeaderPaymentResponse)), &confirmation))
	require.Equal(t, "confirmed", confirmation.Status)
	require.Equal(t, resp.TransactionID, confirmation.TransactionID)
	require.InDelta(t, 0.01, confirmation.Amount, 1e-9)

	// Immediate verify returns the exact record.
	verifyReq := httptest.NewRequest(http.MethodGet, "/verify/"+resp.TransactionID, nil)
	verifyRR := httptest.NewRecorder()
	router.ServeHTTP(verifyRR, verifyReq)

	require.Equal(t, http.StatusOK, verifyRR.Code)
	var verify protocol.VerifyResponse
	require.NoError(t, json.Unmarshal(verifyRR.Body.Bytes(), &verify))
	require.True(t, verify.Verified)
	require.Equal(t, resp.TransactionID, verify.Transaction.TransactionID)
	require.Equal(t, resp.DocumentHash, verify.Transaction.DocumentHash)
	require.Equal(t, resp.TimestampUnix, verify.Transaction.TimestampUnix)
}

func TestTimestampRejectsUnknownBodyFields(t *testing.T) {
	router := newTestRouter(t)
	rr := postTimestamp(t, router, `{"content":"hello","bogus":true}`, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyUnknownIDReturns404(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/verify/anything", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	var body protocol.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestStatsEmptyLedgerReportsZeros(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var stats protocol.StatsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.Zero(t, stats.TotalTimestamps)
	require.Zero(t, stats.TotalRevenueUSDC)
	require.Equal(t, 0.01, stats.PricePerTimestamp)
	require.Equal(t, "USDC", stats.PaymentToken)
}

func TestStatsAfterIssuances(t *testing.T) {
	router := newTestRouter(t)
	for i := 0; i < 3; i++ {
		rr := postTimestamp(t, router, `{"content":"doc"}`, paymentHeaderValue(t))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var stats protocol.StatsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.EqualValues(t, 3, stats.TotalTimestamps)
	require.InDelta(t, 0.03, stats.TotalRevenueUSDC, 1e-9)
}

func TestQuotaEndpoint(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/quota", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var quota protocol.QuotaResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &quota))
	require.Equal(t, 1000, quota.FreeTierRemaining)
}

func TestDashboardRendersTransactions(t *testing.T) {
	router := newTestRouter(t)
	issued := postTimestamp(t, router, `{"content":"hello"}`, paymentHeaderValue(t))
	require.Equal(t, http.StatusOK, issued.Code)
	var resp protocol.TimestampResponse
	require.NoError(t, json.Unmarshal(issued.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html"))
	html := rr.Body.String()
	require.Contains(t, html, "Time Authority Dashboard")
	require.Contains(t, html, resp.TransactionID)
	require.Contains(t, html, resp.DocumentHash)
}
