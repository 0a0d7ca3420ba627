package protocol

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMissingDocument is returned when a request carries neither document
// content nor a precomputed hash.
var ErrMissingDocument = errors.New("must provide either 'content' or 'hash'")

// IDScheme selects how transaction identifiers are generated.
type IDScheme string

const (
	// IDSchemeRandom8 is the historical scheme: eight random decimal
	// digits, no uniqueness check against the ledger.
	IDSchemeRandom8 IDScheme = "random8"
	// IDSchemeUUID generates a v4 UUID for deployments that need
	// collision-free identifiers.
	IDSchemeUUID IDScheme = "uuid"
)

// HashDocument returns the SHA-256 hex digest of the document content.
func HashDocument(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// ResolveDigest picks the document digest for a request: an explicit hash is
// passed through unchanged (no format validation), otherwise the content is
// hashed. Neither present is an input error.
func ResolveDigest(content, hash string) (string, error) {
	if hash != "" {
		return hash, nil
	}
	if content != "" {
		return HashDocument(content), nil
	}
	return "", ErrMissingDocument
}

// NewTransactionID generates a transaction identifier under the given scheme.
func NewTransactionID(scheme IDScheme) (string, error) {
	switch scheme {
	case IDSchemeUUID:
		return uuid.NewString(), nil
	case IDSchemeRandom8, "":
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("random transaction id: %w", err)
		}
		n := binary.BigEndian.Uint64(buf[:]) % 90000000
		return fmt.Sprintf("%d", 10000000+n), nil
	default:
		return "", fmt.Errorf("unknown id scheme %q", scheme)
	}
}

// Signature builds the witness signature string for a transaction. This is a
// placeholder attestation, not a cryptographic signature: it is only
// meaningful to a caller that trusts the issuing authority.
func Signature(transactionID string) string {
	return "Time Authority #" + transactionID
}
