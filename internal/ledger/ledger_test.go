package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Paigeblanch/TimeAuthority/internal/protocol"
)

func tempLedgerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "transaction_log.jsonl")
}

func record(id string, amount float64) protocol.TransactionRecord {
	return protocol.TransactionRecord{
		TransactionID:   id,
		Timestamp:       "2026-08-28T12:00:00Z",
		TimestampUnix:   1787918400,
		DocumentHash:    protocol.HashDocument("doc-" + id),
		PaymentAmount:   amount,
		PaymentToken:    "USDC",
		PaymentNetwork:  "base",
		PaymentVerified: true,
		Metadata:        map[string]any{},
	}
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	l, err := Open(tempLedgerPath(t))
	require.NoError(t, err)
	defer l.Close()

	count, sum := l.CountAndSum()
	require.Zero(t, count)
	require.Zero(t, sum)
	_, found := l.FindByID("12345678")
	require.False(t, found)
}

func TestAppendAndReplayRoundTrip(t *testing.T) {
	path := tempLedgerPath(t)
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(record("11111111", 0.01)))
	require.NoError(t, l.Append(record("22222222", 0.01)))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, sum := reopened.CountAndSum()
	require.EqualValues(t, 2, count)
	require.InDelta(t, 0.02, sum, 1e-9)

	rec, found := reopened.FindByID("22222222")
	require.True(t, found)
	require.Equal(t, protocol.HashDocument("doc-22222222"), rec.DocumentHash)
}

func TestFindByIDReturnsFirstMatch(t *testing.T) {
	l, err := Open(tempLedgerPath(t))
	require.NoError(t, err)
	defer l.Close()

	first := record("33333333", 0.01)
	first.DocumentHash = "first"
	dup := record("33333333", 0.01)
	dup.DocumentHash = "second"
	require.NoError(t, l.Append(first))
	require.NoError(t, l.Append(dup))

	rec, found := l.FindByID("33333333")
	require.True(t, found)
	require.Equal(t, "first", rec.DocumentHash)

	count, _ := l.CountAndSum()
	require.EqualValues(t, 2, count)
}

func TestCountAndSumDefaultsMissingAmountToZero(t *testing.T) {
	path := tempLedgerPath(t)
	raw := `{"transaction_id":"44444444","timestamp":"2026-08-28T12:00:00Z","timestamp_unix":1787918400,"document_hash":"abc","payment_token":"USDC","payment_network":"base","payment_verified":true,"metadata":{}}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	count, sum := l.CountAndSum()
	require.EqualValues(t, 1, count)
	require.Zero(t, sum)
}

func TestOpenToleratesTornFinalLine(t *testing.T) {
	path := tempLedgerPath(t)
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(record("55555555", 0.01)))
	require.NoError(t, l.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"transaction_id":"666`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, _ := reopened.CountAndSum()
	require.EqualValues(t, 1, count)
}

func TestOpenRejectsCorruptionMidFile(t *testing.T) {
	path := tempLedgerPath(t)
	raw := "not json\n" + `{"transaction_id":"77777777"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ledger line 1")
}

func TestListPreservesAppendOrder(t *testing.T) {
	l, err := Open(tempLedgerPath(t))
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append(record("10000001", 0.01)))
	require.NoError(t, l.Append(record("10000002", 0.01)))
	require.NoError(t, l.Append(record("10000003", 0.01)))

	records := l.List()
	require.Len(t, records, 3)
	require.Equal(t, "10000001", records[0].TransactionID)
	require.Equal(t, "10000003", records[2].TransactionID)
}

func TestAppendAfterCloseFails(t *testing.T) {
	l, err := Open(tempLedgerPath(t))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.Error(t, l.Append(record("88888888", 0.01)))
}
