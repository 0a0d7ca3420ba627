package protocol

// TransactionRecord is one issued timestamp as persisted in the ledger file,
// one JSON object per line. Records are immutable after append.
type TransactionRecord struct {
	TransactionID   string         `json:"transaction_id"`
	Timestamp       string         `json:"timestamp"`
	TimestampUnix   int64          `json:"timestamp_unix"`
	DocumentHash    string         `json:"document_hash"`
	PaymentAmount   float64        `json:"payment_amount"`
	PaymentToken    string         `json:"payment_token"`
	PaymentNetwork  string         `json:"payment_network"`
	PaymentVerified bool           `json:"payment_verified"`
	Metadata        map[string]any `json:"metadata"`
}

// TimestampRequest is the POST /timestamp body. Either Content or Hash must
// be supplied; Metadata is stored verbatim.
type TimestampRequest struct {
	Content  string         `json:"content,omitempty"`
	Hash     string         `json:"hash,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TimestampResponse is the proof returned to the caller on a paid request.
type TimestampResponse struct {
	TransactionID   string `json:"transaction_id"`
	Timestamp       string `json:"timestamp"`
	TimestampUnix   int64  `json:"timestamp_unix"`
	DocumentHash    string `json:"document_hash"`
	WitnessedBy     string `json:"witnessed_by"`
	PaymentVerified bool   `json:"payment_verified"`
	Signature       string `json:"signature"`
}

// PaymentChallenge is the x402 payment-terms object carried in the 402 body
// and duplicated in the X-Payment-Required header. It is generated fresh per
// unpaid request and never persisted.
type PaymentChallenge struct {
	Type        string             `json:"type"`
	Version     string             `json:"version"`
	Amount      string             `json:"amount"`
	Currency    string             `json:"currency"`
	Network     string             `json:"network"`
	Recipient   string             `json:"recipient"`
	Description string             `json:"description"`
	InvoiceID   string             `json:"invoice_id"`
	Facilitator Facilitator        `json:"facilitator"`
	Metadata    *ChallengeMetadata `json:"metadata,omitempty"`
}

type Facilitator struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type ChallengeMetadata struct {
	Timestamp        string `json:"timestamp"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// PaymentAssertion is the caller's claim of payment, parsed from the
// X-Payment request header. Unknown fields are ignored.
type PaymentAssertion struct {
	TransactionHash string `json:"transaction_hash"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Network         string `json:"network"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	Timestamp       string `json:"timestamp,omitempty"`
}

// PaymentRequiredResponse is the 402 body.
type PaymentRequiredResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message"`
	Payment PaymentChallenge `json:"payment"`
}

// PaymentConfirmation is serialized into the X-Payment-Response header on a
// successful issuance.
type PaymentConfirmation struct {
	Status        string  `json:"status"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

type VerifyResponse struct {
	Verified    bool              `json:"verified"`
	Transaction TransactionRecord `json:"transaction"`
}

type StatsResponse struct {
	TotalTimestamps   int64   `json:"total_timestamps"`
	TotalRevenueUSDC  float64 `json:"total_revenue_usdc"`
	PricePerTimestamp float64 `json:"price_per_timestamp"`
	PaymentToken      string  `json:"payment_token"`
}

type QuotaResponse struct {
	FreeTierRemaining     int     `json:"free_tier_remaining"`
	TransactionsThisMonth int     `json:"transactions_this_month"`
	EstimatedCostUSD      float64 `json:"estimated_cost_usd"`
}

// ServiceDescriptor is the GET / body.
type ServiceDescriptor struct {
	Service     string `json:"service"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Network     string `json:"network"`
	Endpoint    string `json:"endpoint"`
	Protocol    string `json:"protocol"`
}

type HealthResponse struct {
	Service         string `json:"service"`
	Version         string `json:"version"`
	Status          string `json:"status"`
	TotalTimestamps int64  `json:"total_timestamps"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
