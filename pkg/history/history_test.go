package history

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDecodeNotesEmpty(t *testing.T) {
	if got := DecodeNotes(""); len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
	if got := DecodeNotes("   "); len(got) != 0 {
		t.Fatalf("expected empty slice for whitespace, got %v", got)
	}
}

func TestNotesRoundTrip(t *testing.T) {
	entries := []NoteEntry{
		{Note: "first call", Status: "New", Timestamp: "2024-01-02T10:00:00Z"},
		{Note: "asked to call later", Status: "Callback", Timestamp: "2024-01-03T09:30:00Z"},
		{Note: "", Status: "Follow-Up", Timestamp: "2024-01-04T15:00:00Z"},
	}
	raw, err := EncodeNotes(entries)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded := DecodeNotes(raw)
	if len(decoded) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(decoded))
	}
	for i := range entries {
		if decoded[i].Note != entries[i].Note || decoded[i].Status != entries[i].Status || decoded[i].Timestamp != entries[i].Timestamp {
			t.Fatalf("entry %d mismatch: %+v vs %+v", i, decoded[i], entries[i])
		}
	}
}

func TestEncodeNotesEmptyRoundTrip(t *testing.T) {
	raw, err := EncodeNotes(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := DecodeNotes(raw); len(got) != 0 {
		t.Fatalf("expected empty decode, got %v", got)
	}
}

func TestDecodeNotesDefaults(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = time.Now }()

	entries := DecodeNotes("just a note")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Status != "New" {
		t.Fatalf("expected default status New, got %q", entries[0].Status)
	}
	if entries[0].Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("expected default timestamp, got %q", entries[0].Timestamp)
	}
}

func TestEncodeNotesRejectsDelimiters(t *testing.T) {
	_, err := EncodeNotes([]NoteEntry{{Note: "bad|||note", Status: "New", Timestamp: "2024-01-01T00:00:00Z"}})
	if !errors.Is(err, ErrReservedDelimiter) {
		t.Fatalf("expected ErrReservedDelimiter, got %v", err)
	}
	_, err = EncodeNotes([]NoteEntry{{Note: "ok", Status: "Follow__Up", Timestamp: "2024-01-01T00:00:00Z"}})
	if !errors.Is(err, ErrReservedDelimiter) {
		t.Fatalf("expected ErrReservedDelimiter for field sep, got %v", err)
	}
}

func TestPaymentsRoundTrip(t *testing.T) {
	entries := []PaymentEntry{
		{Amount: "5000", Timestamp: "2024-02-01T00:00:00Z", UTR: "UTR123", Approved: true},
		{Amount: "2500", Timestamp: "2024-02-10T00:00:00Z", UTR: "", Approved: false},
	}
	raw, err := EncodePayments(entries)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(raw, "5000__2024-02-01T00:00:00Z__UTR123__1") {
		t.Fatalf("unexpected encoding: %q", raw)
	}
	decoded := DecodePayments(raw)
	if len(decoded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(decoded))
	}
	if !decoded[0].Approved || decoded[1].Approved {
		t.Fatalf("approval flags lost: %+v", decoded)
	}
}

func TestDecodePaymentsLegacyApproved(t *testing.T) {
	// Records persisted before the approval flag existed carry three fields.
	decoded := DecodePayments("1000__2023-11-05T00:00:00Z__UTROLD")
	if len(decoded) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(decoded))
	}
	if !decoded[0].Approved {
		t.Fatalf("legacy entry should default to approved")
	}
}

func TestEncodePaymentsDropsBlankDrafts(t *testing.T) {
	entries := []PaymentEntry{
		{Amount: "750", Timestamp: "2024-03-01T00:00:00Z", Approved: false},
		{Amount: "  ", Timestamp: "2024-03-02T00:00:00Z", IsNew: true},
	}
	raw, err := EncodePayments(entries)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := DecodePayments(raw); len(got) != 1 {
		t.Fatalf("blank draft should be dropped, got %v", got)
	}
}

func TestEncodePaymentsRejectsDelimiters(t *testing.T) {
	_, err := EncodePayments([]PaymentEntry{{Amount: "10", Timestamp: "2024-01-01T00:00:00Z", UTR: "A|||B"}})
	if !errors.Is(err, ErrReservedDelimiter) {
		t.Fatalf("expected ErrReservedDelimiter, got %v", err)
	}
}

func TestReversed(t *testing.T) {
	in := []NoteEntry{{Note: "a"}, {Note: "b"}, {Note: "c"}}
	out := Reversed(in)
	if out[0].Note != "c" || out[2].Note != "a" {
		t.Fatalf("unexpected order: %v", out)
	}
	if in[0].Note != "a" {
		t.Fatalf("input mutated: %v", in)
	}
	if got := Reversed([]PaymentEntry{}); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}
