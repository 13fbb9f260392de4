package ledger

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/history"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/lifecycle"
)

var (
	ErrNotWon          = errors.New("payments require a won lead")
	ErrAlreadyApproved = errors.New("payment entry already approved")
	ErrEmptyUTR        = errors.New("utr reference required")
	ErrBadIndex        = errors.New("payment entry index out of range")
)

// Testable variable for timestamp defaults.
var nowFunc = time.Now

// Record appends a draft payment: amount only, no UTR, pending approval.
// A blank amount is dropped rather than persisted as an empty record.
func Record(entries []history.PaymentEntry, amount, ts string) []history.PaymentEntry {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return entries
	}
	if strings.TrimSpace(ts) == "" {
		ts = nowFunc().UTC().Format(time.RFC3339)
	}
	return append(entries, history.PaymentEntry{
		Amount:    amount,
		Timestamp: ts,
		Approved:  false,
		IsNew:     true,
	})
}

// Approve commits a UTR reference for the pending entry at index (into the
// persisted oldest-first order) and flips it to approved. The transition
// is one-way: an approved entry's UTR and flag never change again.
func Approve(entries []history.PaymentEntry, index int, utr string) error {
	if index < 0 || index >= len(entries) {
		return ErrBadIndex
	}
	utr = strings.TrimSpace(utr)
	if utr == "" {
		return ErrEmptyUTR
	}
	if entries[index].Approved {
		return ErrAlreadyApproved
	}
	entries[index].UTR = utr
	entries[index].Approved = true
	return nil
}

// ApprovedTotal sums the amounts of approved entries. Pending entries
// contribute nothing; non-numeric amounts count as zero. The total is
// always recomputed from the live entries, never cached.
func ApprovedTotal(entries []history.PaymentEntry) float64 {
	var total float64
	for _, e := range entries {
		if !e.Approved {
			continue
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(e.Amount), 64)
		if err != nil {
			continue
		}
		total += amount
	}
	return total
}

// RecordEncoded is the encoded-field form of Record for callers holding a
// raw payment_history string. The owning lead must have reached Won.
func RecordEncoded(leadStatus, encoded, amount, ts string) (string, error) {
	if leadStatus != lifecycle.StatusWon {
		return "", ErrNotWon
	}
	entries := Record(history.DecodePayments(encoded), amount, ts)
	return history.EncodePayments(entries)
}

// ApproveEncoded is the encoded-field form of Approve.
func ApproveEncoded(leadStatus, encoded string, index int, utr string) (string, error) {
	if leadStatus != lifecycle.StatusWon {
		return "", ErrNotWon
	}
	entries := history.DecodePayments(encoded)
	if err := Approve(entries, index, utr); err != nil {
		return "", err
	}
	return history.EncodePayments(entries)
}
