package x402

import (
	"context"
	"time"

	"github.com/Paigeblanch/TimeAuthority/internal/protocol"
)

// Outcome is the verifier's decision on a payment assertion.
type Outcome struct {
	Verified         bool
	TransactionHash  string
	AmountPaid       string
	Currency         string
	Network          string
	ConfirmationTime time.Time
	BlockNumber      int64
	Note             string
	Error            string
}

// Quota reports facilitator usage, independent of any verification.
type Quota struct {
	FreeTierRemaining     int
	TransactionsThisMonth int
	EstimatedCostUSD      float64
}

// Verifier decides whether a payment assertion settles the deployment's
// terms. The protocol layer never hard-codes an accept decision; swapping a
// real settlement-backed implementation in requires no protocol changes.
type Verifier interface {
	Verify(ctx context.Context, assertion protocol.PaymentAssertion) (Outcome, error)
	CheckQuota(ctx context.Context) (Quota, error)
}

// SimulatedVerifier accepts any assertion that carries the four required
// fields. It performs field-presence validation only, no settlement proof.
type SimulatedVerifier struct {
	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (v *SimulatedVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v *SimulatedVerifier) Verify(_ context.Context, assertion protocol.PaymentAssertion) (Outcome, error) {
	if assertion.TransactionHash == "" || assertion.Amount == "" || assertion.Currency == "" || assertion.Network == "" {
		return Outcome{
			Verified: false,
			Error:    "missing required payment fields",
		}, nil
	}
	return Outcome{
		Verified:         true,
		TransactionHash:  assertion.TransactionHash,
		AmountPaid:       assertion.Amount,
		Currency:         assertion.Currency,
		Network:          assertion.Network,
		ConfirmationTime: v.now().UTC(),
		BlockNumber:      12345678,
		Note:             "SIMULATED - no settlement check performed",
	}, nil
}

func (v *SimulatedVerifier) CheckQuota(_ context.Context) (Quota, error) {
	return Quota{
		FreeTierRemaining:     1000,
		TransactionsThisMonth: 0,
		EstimatedCostUSD:      0,
	}, nil
}
