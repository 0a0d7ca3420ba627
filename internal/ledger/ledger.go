// Package ledger implements the append-only transaction log: one JSON object
// per line, newline-terminated, no header or compaction. The file is the
// authoritative record; an in-memory index is rebuilt by replaying it once
// on open.
package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Paigeblanch/TimeAuthority/internal/protocol"
)

// Ledger is a single-process append-only record store. Appends are serialized
// by a mutex so each record lands as one intact line; readers serve from the
// in-memory replay.
type Ledger struct {
	mu   sync.Mutex
	path string
	file *os.File

	records []protocol.TransactionRecord
	byID    map[string]int
	revenue float64
}

// Open replays the ledger file at path and returns a store ready for
// appends. A missing file is an empty ledger. A final line that does not
// parse is treated as a torn write and skipped; garbage earlier in the file
// is an error.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path, byID: make(map[string]int)}
	if err := l.replay(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	l.file = f
	return l, nil
}

func (l *Ledger) replay() error {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	var pendingErr error
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if pendingErr != nil {
			// The bad line was not the last one.
			return pendingErr
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec protocol.TransactionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			pendingErr = fmt.Errorf("ledger line %d: %w", lineNo, err)
			continue
		}
		l.admit(rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan ledger file: %w", err)
	}
	return nil
}

// admit adds a replayed or freshly appended record to the in-memory view.
// The index keeps the first record per id, preserving the first-match
// semantics of a linear file scan.
func (l *Ledger) admit(rec protocol.TransactionRecord) {
	l.records = append(l.records, rec)
	if _, exists := l.byID[rec.TransactionID]; !exists {
		l.byID[rec.TransactionID] = len(l.records) - 1
	}
	l.revenue += rec.PaymentAmount
}

// Append serializes the record as one JSON line and writes it to the backing
// file. The in-memory view is updated only after the write succeeds, so a
// failed append is never visible to readers and the caller must not report
// the timestamp as issued.
func (l *Ledger) Append(rec protocol.TransactionRecord) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode ledger record: %w", err)
	}
	buf = append(buf, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("ledger is closed")
	}
	if _, err := l.file.Write(buf); err != nil {
		return fmt.Errorf("append ledger record: %w", err)
	}
	l.admit(rec)
	return nil
}

// FindByID returns the first record appended with the given transaction id.
func (l *Ledger) FindByID(id string) (protocol.TransactionRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.byID[id]
	if !ok {
		return protocol.TransactionRecord{}, false
	}
	return l.records[idx], true
}

// CountAndSum returns the number of records and the total payment amount.
// Records persisted without a payment_amount count as zero.
func (l *Ledger) CountAndSum() (int64, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.records)), l.revenue
}

// List returns all records in append order.
func (l *Ledger) List() []protocol.TransactionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]protocol.TransactionRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Close releases the backing file. Further appends fail.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
