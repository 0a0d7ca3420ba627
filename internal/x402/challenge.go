// Package x402 implements the payment-challenge side of the protocol: the
// machine-readable terms served with a 402 response, the parsing of the
// caller's payment assertion, and the verifier seam behind which real
// settlement checks plug in.
package x402

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Paigeblanch/TimeAuthority/internal/protocol"
)

// ChallengeExpirySeconds is how long a served challenge advertises itself as
// payable.
const ChallengeExpirySeconds = 300

// Terms are the static payment terms of a deployment.
type Terms struct {
	Amount          float64
	Currency        string
	Network         string
	Recipient       string
	Description     string
	FacilitatorName string
	FacilitatorURL  string
}

// NewChallenge builds a fresh payment challenge for an unpaid request. The
// invoice id uses the same 8-digit generator as transaction ids. Challenges
// are never stored, so a later assertion is not matched against the invoice
// it nominally pays.
func NewChallenge(terms Terms, now time.Time) (protocol.PaymentChallenge, error) {
	invoiceID, err := protocol.NewTransactionID(protocol.IDSchemeRandom8)
	if err != nil {
		return protocol.PaymentChallenge{}, fmt.Errorf("generate invoice id: %w", err)
	}
	return protocol.PaymentChallenge{
		Type:        "x402",
		Version:     "2.0",
		Amount:      strconv.FormatFloat(terms.Amount, 'f', -1, 64),
		Currency:    terms.Currency,
		Network:     terms.Network,
		Recipient:   terms.Recipient,
		Description: terms.Description,
		InvoiceID:   invoiceID,
		Facilitator: protocol.Facilitator{
			Name: terms.FacilitatorName,
			URL:  terms.FacilitatorURL,
		},
		Metadata: &protocol.ChallengeMetadata{
			Timestamp:        now.UTC().Format(time.RFC3339Nano),
			ExpiresInSeconds: ChallengeExpirySeconds,
		},
	}, nil
}

// ParseAssertion decodes the X-Payment header value. Unknown fields are
// accepted; only syntax is checked here, field presence is the verifier's
// job.
func ParseAssertion(header string) (protocol.PaymentAssertion, error) {
	var assertion protocol.PaymentAssertion
	if err := json.Unmarshal([]byte(header), &assertion); err != nil {
		return protocol.PaymentAssertion{}, fmt.Errorf("parse payment header: %w", err)
	}
	return assertion, nil
}
