package protocol

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHashDocumentDeterministic(t *testing.T) {
	h1 := HashDocument("the quick brown fox")
	h2 := HashDocument("the quick brown fox")
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)
}

func TestHashDocumentKnownVector(t *testing.T) {
	// sha256("hello")
	require.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		HashDocument("hello"))
}

func TestResolveDigestPassThrough(t *testing.T) {
	got, err := ResolveDigest("ignored content", "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", got)
}

func TestResolveDigestHashesContent(t *testing.T) {
	got, err := ResolveDigest("hello", "")
	require.NoError(t, err)
	require.Equal(t, HashDocument("hello"), got)
}

func TestResolveDigestMissingBoth(t *testing.T) {
	_, err := ResolveDigest("", "")
	require.ErrorIs(t, err, ErrMissingDocument)
}

func TestNewTransactionIDRandom8(t *testing.T) {
	pattern := regexp.MustCompile(`^[1-9][0-9]{7}$`)
	for i := 0; i < 50; i++ {
		id, err := NewTransactionID(IDSchemeRandom8)
		require.NoError(t, err)
		require.Regexp(t, pattern, id)
	}
}

func TestNewTransactionIDDefaultsToRandom8(t *testing.T) {
	id, err := NewTransactionID("")
	require.NoError(t, err)
	require.Len(t, id, 8)
}

func TestNewTransactionIDUUID(t *testing.T) {
	id, err := NewTransactionID(IDSchemeUUID)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)
}

func TestNewTransactionIDUnknownScheme(t *testing.T) {
	_, err := NewTransactionID("sequential")
	require.Error(t, err)
}

func TestSignature(t *testing.T) {
	require.Equal(t, "Time Authority #12345678", Signature("12345678"))
}
