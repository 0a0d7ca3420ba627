// Package service holds the witness orchestration: the payment-challenge
// protocol over a single request/response exchange, timestamp issuance, and
// the free read paths against the ledger.
package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/Paigeblanch/TimeAuthority/internal/ledger"
	"github.com/Paigeblanch/TimeAuthority/internal/protocol"
	"github.com/Paigeblanch/TimeAuthority/internal/x402"
)

const witnessName = "Time Authority"

type WitnessService struct {
	ledger   *ledger.Ledger
	verifier x402.Verifier
	terms    x402.Terms
	idScheme protocol.IDScheme
	service  string
	version  string
	now      func() time.Time
}

type Params struct {
	Ledger   *ledger.Ledger
	Verifier x402.Verifier
	Terms    x402.Terms
	IDScheme protocol.IDScheme
	Service  string
	Version  string
	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func New(params Params) (*WitnessService, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if params.Terms.Recipient == "" {
		return nil, fmt.Errorf("payment recipient is required")
	}
	if params.Service == "" {
		params.Service = "time-authority"
	}
	if params.Version == "" {
		params.Version = "dev"
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &WitnessService{
		ledger:   params.Ledger,
		verifier: params.Verifier,
		terms:    params.Terms,
		idScheme: params.IDScheme,
		service:  params.Service,
		version:  params.Version,
		now:      params.Now,
	}, nil
}

// TimestampResult is the outcome of one POST /timestamp exchange. Exactly one
// of Challenge or Response is set: a non-nil Challenge means the request must
// be answered 402 with the payment terms.
type TimestampResult struct {
	Challenge    *protocol.PaymentChallenge
	Message      string
	Response     *protocol.TimestampResponse
	Confirmation *protocol.PaymentConfirmation
}

// Timestamp runs the challenge protocol for one request. paymentHeader is
// the raw X-Payment header value, empty when absent.
//
// An assertion is never matched against the challenge (invoice id, amount)
// it nominally satisfies; the protocol is stateless between the 402 and the
// retry.
func (s *WitnessService) Timestamp(ctx context.Context, req protocol.TimestampRequest, paymentHeader string) (TimestampResult, error) {
	if paymentHeader == "" {
		return s.challengeResult()
	}

	assertion, err := x402.ParseAssertion(paymentHeader)
	if err != nil {
		return TimestampResult{}, NewAppError(http.StatusBadRequest, "MALFORMED_PAYMENT", "invalid payment header", false, err)
	}

	outcome, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		return TimestampResult{}, Internal("verify payment", err)
	}
	if !outcome.Verified {
		// Not a terminal rejection: the caller re-enters the unpaid state
		// and receives fresh terms.
		return s.challengeResult()
	}

	digest, err := protocol.ResolveDigest(req.Content, req.Hash)
	if err != nil {
		return TimestampResult{}, NewAppError(http.StatusBadRequest, "MISSING_DOCUMENT", err.Error(), false, err)
	}

	record, err := s.issue(digest, req.Metadata, outcome)
	if err != nil {
		return TimestampResult{}, err
	}

	return TimestampResult{
		Response: &protocol.TimestampResponse{
			TransactionID:   record.TransactionID,
			Timestamp:       record.Timestamp,
			TimestampUnix:   record.TimestampUnix,
			DocumentHash:    record.DocumentHash,
			WitnessedBy:     witnessName,
			PaymentVerified: record.PaymentVerified,
			Signature:       protocol.Signature(record.TransactionID),
		},
		Confirmation: &protocol.PaymentConfirmation{
			Status:        "confirmed",
			TransactionID: record.TransactionID,
			Amount:        s.terms.Amount,
			Currency:      s.terms.Currency,
		},
	}, nil
}

// issue creates and durably records one transaction. The ledger append is
// the point of no return: without a completed append no success is reported.
func (s *WitnessService) issue(digest string, metadata map[string]any, outcome x402.Outcome) (protocol.TransactionRecord, error) {
	transactionID, err := protocol.NewTransactionID(s.idScheme)
	if err != nil {
		return protocol.TransactionRecord{}, Internal("generate transaction id", err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	// One clock sample; both representations derive from it.
	issuedAt := s.now().UTC()
	record := protocol.TransactionRecord{
		TransactionID:   transactionID,
		Timestamp:       issuedAt.Format(time.RFC3339Nano),
		TimestampUnix:   issuedAt.Unix(),
		DocumentHash:    digest,
		PaymentAmount:   s.terms.Amount,
		PaymentToken:    s.terms.Currency,
		PaymentNetwork:  s.terms.Network,
		PaymentVerified: outcome.Verified,
		Metadata:        metadata,
	}
	if err := s.ledger.Append(record); err != nil {
		return protocol.TransactionRecord{}, NewAppError(http.StatusInternalServerError, "STORAGE_ERROR", "record timestamp", true, err)
	}
	return record, nil
}

func (s *WitnessService) challengeResult() (TimestampResult, error) {
	challenge, err := x402.NewChallenge(s.terms, s.now())
	if err != nil {
		return TimestampResult{}, Internal("build payment challenge", err)
	}
	return TimestampResult{
		Challenge: &challenge,
		Message:   fmt.Sprintf("Please pay %s %s to timestamp this document", challenge.Amount, challenge.Currency),
	}, nil
}

// Verify looks up a transaction by id. Free endpoint.
func (s *WitnessService) Verify(_ context.Context, transactionID string) (protocol.VerifyResponse, error) {
	record, found := s.ledger.FindByID(transactionID)
	if !found {
		return protocol.VerifyResponse{}, NewAppError(http.StatusNotFound, "NOT_FOUND", "Transaction ID not found", false, nil)
	}
	return protocol.VerifyResponse{Verified: true, Transaction: record}, nil
}

// Stats reports ledger aggregates. Free endpoint.
func (s *WitnessService) Stats(_ context.Context) protocol.StatsResponse {
	count, revenue := s.ledger.CountAndSum()
	return protocol.StatsResponse{
		TotalTimestamps:   count,
		TotalRevenueUSDC:  revenue,
		PricePerTimestamp: s.terms.Amount,
		PaymentToken:      s.terms.Currency,
	}
}

// Quota reports facilitator usage via the verifier seam.
func (s *WitnessService) Quota(ctx context.Context) (protocol.QuotaResponse, error) {
	quota, err := s.verifier.CheckQuota(ctx)
	if err != nil {
		return protocol.QuotaResponse{}, Internal("check facilitator quota", err)
	}
	return protocol.QuotaResponse{
		FreeTierRemaining:     quota.FreeTierRemaining,
		TransactionsThisMonth: quota.TransactionsThisMonth,
		EstimatedCostUSD:      quota.EstimatedCostUSD,
	}, nil
}

// Health is the liveness card.
func (s *WitnessService) Health(_ context.Context) protocol.HealthResponse {
	count, _ := s.ledger.CountAndSum()
	return protocol.HealthResponse{
		Service:         s.service,
		Version:         s.version,
		Status:          "ok",
		TotalTimestamps: count,
	}
}

// Descriptor is the GET / service card.
func (s *WitnessService) Descriptor() protocol.ServiceDescriptor {
	return protocol.ServiceDescriptor{
		Service:     witnessName,
		Description: "x402-powered timestamping witness service",
		Price:       fmt.Sprintf("%v %s", s.terms.Amount, s.terms.Currency),
		Network:     s.terms.Network,
		Endpoint:    "/timestamp",
		Protocol:    "x402 v2.0",
	}
}

// DashboardData is everything the HTML dashboard renders: ledger aggregates
// plus all transactions, newest first.
type DashboardData struct {
	Service           string
	TotalTimestamps   int64
	TotalRevenueUSDC  float64
	PricePerTimestamp float64
	PaymentToken      string
	Transactions      []protocol.TransactionRecord
}

func (s *WitnessService) Dashboard(_ context.Context) DashboardData {
	records := s.ledger.List()
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	count, revenue := s.ledger.CountAndSum()
	return DashboardData{
		Service:           witnessName,
		TotalTimestamps:   count,
		TotalRevenueUSDC:  revenue,
		PricePerTimestamp: s.terms.Amount,
		PaymentToken:      s.terms.Currency,
		Transactions:      records,
	}
}
