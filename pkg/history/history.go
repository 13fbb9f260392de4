package history

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Encoded history fields use two reserved separators: RecordSep between
// entries and FieldSep between the fields of one entry. Both predate this
// service and must not change, or previously persisted leads become
// unreadable.
const (
	RecordSep = "|||"
	FieldSep  = "__"
)

// defaultStatus seeds records whose status field is missing. It matches the
// pipeline's initial state.
const defaultStatus = "New"

var ErrReservedDelimiter = errors.New("value contains a reserved history delimiter")

// Testable variable for decode-time timestamp defaults.
var nowFunc = time.Now

// NoteEntry is one timestamped status change with an operator note.
// IsNew marks a draft row created by the current edit session; it is never
// encoded.
type NoteEntry struct {
	Note      string
	Status    string
	Timestamp string
	IsNew     bool
}

// PaymentEntry is one timestamped payment event on a converted lead.
type PaymentEntry struct {
	Amount    string
	Timestamp string
	UTR       string
	Approved  bool
	IsNew     bool
}

// DecodeNotes parses an encoded notes field into entries, oldest-first.
// Empty input yields an empty slice. Missing trailing fields fall back to
// an empty note, the initial status and the current time.
func DecodeNotes(raw string) []NoteEntry {
	if strings.TrimSpace(raw) == "" {
		return []NoteEntry{}
	}
	records := strings.Split(raw, RecordSep)
	entries := make([]NoteEntry, 0, len(records))
	for _, rec := range records {
		parts := strings.Split(rec, FieldSep)
		entry := NoteEntry{
			Note:      field(parts, 0, ""),
			Status:    field(parts, 1, defaultStatus),
			Timestamp: field(parts, 2, nowFunc().UTC().Format(time.RFC3339)),
		}
		entries = append(entries, entry)
	}
	return entries
}

// EncodeNotes serializes entries, oldest-first, to the persisted format
// (note, status, timestamp per record). Values carrying a reserved
// delimiter are rejected rather than silently corrupting the field.
func EncodeNotes(entries []NoteEntry) (string, error) {
	records := make([]string, 0, len(entries))
	for i, e := range entries {
		note := strings.TrimSpace(e.Note)
		if err := checkDelimiters(note, e.Status, e.Timestamp); err != nil {
			return "", fmt.Errorf("notes entry %d: %w", i, err)
		}
		records = append(records, note+FieldSep+e.Status+FieldSep+e.Timestamp)
	}
	return strings.Join(records, RecordSep), nil
}

// DecodePayments parses an encoded payment field, oldest-first. Records
// without an explicit approval flag predate the approval workflow and are
// treated as already approved.
func DecodePayments(raw string) []PaymentEntry {
	if strings.TrimSpace(raw) == "" {
		return []PaymentEntry{}
	}
	records := strings.Split(raw, RecordSep)
	entries := make([]PaymentEntry, 0, len(records))
	for _, rec := range records {
		parts := strings.Split(rec, FieldSep)
		entry := PaymentEntry{
			Amount:    field(parts, 0, ""),
			Timestamp: field(parts, 1, nowFunc().UTC().Format(time.RFC3339)),
			UTR:       field(parts, 2, ""),
			Approved:  true,
		}
		if flag := field(parts, 3, ""); flag != "" {
			entry.Approved = flag == "1" || flag == "true"
		}
		entries = append(entries, entry)
	}
	return entries
}

// EncodePayments serializes entries, oldest-first (amount, timestamp, utr,
// approved flag as "1"/"0"). Draft rows whose amount was left blank are
// dropped entirely; the draft marker itself never reaches the encoding.
func EncodePayments(entries []PaymentEntry) (string, error) {
	records := make([]string, 0, len(entries))
	for i, e := range entries {
		if e.IsNew && strings.TrimSpace(e.Amount) == "" {
			continue
		}
		if err := checkDelimiters(e.Amount, e.Timestamp, e.UTR); err != nil {
			return "", fmt.Errorf("payment entry %d: %w", i, err)
		}
		flag := "0"
		if e.Approved {
			flag = "1"
		}
		records = append(records, e.Amount+FieldSep+e.Timestamp+FieldSep+e.UTR+FieldSep+flag)
	}
	return strings.Join(records, RecordSep), nil
}

// Reversed returns a copy in the opposite order. Persisted history is
// oldest-first; every editing surface works newest-first, so the flip
// happens exactly once at this boundary.
func Reversed[T any](entries []T) []T {
	out := make([]T, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

func field(parts []string, idx int, fallback string) string {
	if idx < len(parts) && parts[idx] != "" {
		return parts[idx]
	}
	return fallback
}

func checkDelimiters(values ...string) error {
	for _, v := range values {
		if strings.Contains(v, RecordSep) || strings.Contains(v, FieldSep) {
			return ErrReservedDelimiter
		}
	}
	return nil
}
