package audit

import (
	"encoding/json"
	"fmt"
	"os"
)

// ChainError reports the first entry that breaks the log's hash chain.
type ChainError struct {
	LineNo  int    // 1-based line in the log file
	Seq     uint64 // sequence number recorded in the entry
	Session string
	Line    string // the shell line the entry records
	Reason  string
}

func (e *ChainError) Error() string {
	if e.Session == "" && e.Line == "" {
		return fmt.Sprintf("line %d: %s", e.LineNo, e.Reason)
	}
	return fmt.Sprintf("line %d (seq %d, session %s, %q): %s", e.LineNo, e.Seq, e.Session, e.Line, e.Reason)
}

// Verify reads the audit log and checks sequence continuity, the prev_hash
// chain and each entry's own hash. It returns nil for a valid or empty log
// and a *ChainError for the first violation.
func Verify(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	prev := Entry{Hash: genesisHash()}
	for i, raw := range splitLines(data) {
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return &ChainError{LineNo: i + 1, Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}
		if reason := checkLink(prev, entry); reason != "" {
			return &ChainError{
				LineNo:  i + 1,
				Seq:     entry.Seq,
				Session: entry.Session,
				Line:    entry.Line,
				Reason:  reason,
			}
		}
		prev = entry
	}
	return nil
}

// checkLink returns why e cannot follow prev, or "" if it can.
func checkLink(prev, e Entry) string {
	switch {
	case e.Seq != prev.Seq+1:
		return fmt.Sprintf("sequence gap: expected %d, got %d", prev.Seq+1, e.Seq)
	case e.PrevHash != prev.Hash:
		return fmt.Sprintf("prev_hash mismatch: expected %s, got %s", abbrev(prev.Hash), abbrev(e.PrevHash))
	}
	if computed := computeHash(e); e.Hash != computed {
		return fmt.Sprintf("hash mismatch: expected %s, got %s", abbrev(computed), abbrev(e.Hash))
	}
	return ""
}

// Tail returns the last n entries from the audit log; n < 0 means all.
// Lines that are not valid JSON are skipped.
func Tail(path string, n int) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	lines := splitLines(data)
	if n > len(lines) || n < 0 {
		n = len(lines)
	}

	entries := make([]Entry, 0, n)
	for _, raw := range lines[len(lines)-n:] {
		var entry Entry
		if json.Unmarshal(raw, &entry) == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func abbrev(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "..."
}
