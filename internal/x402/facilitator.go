package x402

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Paigeblanch/TimeAuthority/internal/protocol"
)

// FacilitatorVerifier checks assertions against an external x402 facilitator
// over HTTP. This is the settlement-backed implementation of the Verifier
// seam; the simulated verifier is the default.
type FacilitatorVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewFacilitatorVerifier(baseURL, apiKey string, timeout time.Duration) *FacilitatorVerifier {
	return &FacilitatorVerifier{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type facilitatorVerifyRequest struct {
	TransactionHash  string `json:"transaction_hash"`
	ExpectedAmount   string `json:"expected_amount"`
	ExpectedCurrency string `json:"expected_currency"`
	Network          string `json:"network"`
}

type facilitatorVerifyResponse struct {
	Verified    bool   `json:"verified"`
	Amount      string `json:"amount"`
	Timestamp   string `json:"timestamp"`
	BlockNumber int64  `json:"block_number"`
	Error       string `json:"error,omitempty"`
}

type facilitatorUsageResponse struct {
	FreeTierRemaining     int     `json:"free_tier_remaining"`
	TransactionsThisMonth int     `json:"transactions_this_month"`
	EstimatedCostUSD      float64 `json:"estimated_cost_usd"`
}

func (v *FacilitatorVerifier) Verify(ctx context.Context, assertion protocol.PaymentAssertion) (Outcome, error) {
	if assertion.TransactionHash == "" || assertion.Amount == "" || assertion.Currency == "" || assertion.Network == "" {
		return Outcome{Verified: false, Error: "missing required payment fields"}, nil
	}
	body, err := json.Marshal(facilitatorVerifyRequest{
		TransactionHash:  assertion.TransactionHash,
		ExpectedAmount:   assertion.Amount,
		ExpectedCurrency: assertion.Currency,
		Network:          assertion.Network,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("encode verify request: %w", err)
	}
	var parsed facilitatorVerifyResponse
	if err := v.post(ctx, v.baseURL+"/verify", body, &parsed); err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Verified:        parsed.Verified,
		TransactionHash: assertion.TransactionHash,
		AmountPaid:      parsed.Amount,
		Currency:        assertion.Currency,
		Network:         assertion.Network,
		BlockNumber:     parsed.BlockNumber,
		Error:           parsed.Error,
	}
	if parsed.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, parsed.Timestamp); err == nil {
			out.ConfirmationTime = t
		}
	}
	return out, nil
}

func (v *FacilitatorVerifier) CheckQuota(ctx context.Context) (Quota, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/usage", nil)
	if err != nil {
		return Quota{}, fmt.Errorf("build usage request: %w", err)
	}
	v.authorize(req)
	resp, err := v.client.Do(req)
	if err != nil {
		return Quota{}, fmt.Errorf("query facilitator usage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Quota{}, fmt.Errorf("facilitator usage returned status %d", resp.StatusCode)
	}
	var parsed facilitatorUsageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return Quota{}, fmt.Errorf("decode facilitator usage: %w", err)
	}
	return Quota{
		FreeTierRemaining:     parsed.FreeTierRemaining,
		TransactionsThisMonth: parsed.TransactionsThisMonth,
		EstimatedCostUSD:      parsed.EstimatedCostUSD,
	}, nil
}

func (v *FacilitatorVerifier) post(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build facilitator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	v.authorize(req)
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("call facilitator: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facilitator returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode facilitator response: %w", err)
	}
	return nil
}

func (v *FacilitatorVerifier) authorize(req *http.Request) {
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}
}
