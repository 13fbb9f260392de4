package lifecycle

import (
	"errors"
	"strings"
	"time"

	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/history"
)

// Pipeline statuses. Won is terminal: a converted lead never leaves it.
const (
	StatusNew             = "New"
	StatusSwitchedOff     = "Switched-off"
	StatusFreeTrial       = "Free-Trial"
	StatusBusy            = "Busy"
	StatusWon             = "Won"
	StatusFollowUp        = "Follow-Up"
	StatusNotInterested   = "Not-Interested"
	StatusCallback        = "Callback"
	StatusConversion      = "Conversion"
	StatusLessFunds       = "Less-Funds"
	StatusLanguageBarrier = "Language-Barrier"
	StatusInvalid         = "Invalid"
	StatusNonTrader       = "Non-Trader"
)

var (
	ErrUnknownStatus   = errors.New("unknown lead status")
	ErrWonTerminal     = errors.New("lead already won, status is terminal")
	ErrWonNotConfirmed = errors.New("won transition requires confirmation")
	ErrDuplicatePhone  = errors.New("lead with this phone number already exists")
)

var statuses = map[string]struct{}{
	StatusNew:             {},
	StatusSwitchedOff:     {},
	StatusFreeTrial:       {},
	StatusBusy:            {},
	StatusWon:             {},
	StatusFollowUp:        {},
	StatusNotInterested:   {},
	StatusCallback:        {},
	StatusConversion:      {},
	StatusLessFunds:       {},
	StatusLanguageBarrier: {},
	StatusInvalid:         {},
	StatusNonTrader:       {},
}

// legacyStatuses folds the older progress-view enumeration and the spaced
// spellings found in persisted data into the canonical pipeline.
var legacyStatuses = map[string]string{
	"Contacted":        StatusCallback,
	"Qualified":        StatusFollowUp,
	"Proposal":         StatusConversion,
	"Lost":             StatusNotInterested,
	"Switched off":     StatusSwitchedOff,
	"Free Trial":       StatusFreeTrial,
	"Follow Up":        StatusFollowUp,
	"Not Interested":   StatusNotInterested,
	"Less Funds":       StatusLessFunds,
	"Language Barrier": StatusLanguageBarrier,
	"Non Trader":       StatusNonTrader,
}

// Canonical maps any persisted status spelling to the canonical
// enumeration. Unknown values return ErrUnknownStatus.
func Canonical(status string) (string, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return StatusNew, nil
	}
	if _, ok := statuses[status]; ok {
		return status, nil
	}
	if mapped, ok := legacyStatuses[status]; ok {
		return mapped, nil
	}
	return "", ErrUnknownStatus
}

func IsValid(status string) bool {
	_, ok := statuses[status]
	return ok
}

func IsTerminal(status string) bool {
	return status == StatusWon
}

// CanTransition reports whether a lead may move between two statuses. Any
// move is allowed except out of Won.
func CanTransition(from, to string) bool {
	if !IsValid(from) || !IsValid(to) {
		return false
	}
	if from == StatusWon && to != StatusWon {
		return false
	}
	return true
}

// Result carries the state produced by a committed transition. Notes is the
// re-encoded oldest-first history; WonOn is set only when this transition
// first entered Won.
type Result struct {
	Notes  string
	Status string
	WonOn  string
}

// Testable variable for timestamp defaults.
var nowFunc = time.Now

// Seed returns the encoded notes history for a freshly created lead: a
// lone New entry at ts.
func Seed(note, ts string) (string, error) {
	if strings.TrimSpace(ts) == "" {
		ts = nowFunc().UTC().Format(time.RFC3339)
	}
	return history.EncodeNotes([]history.NoteEntry{{Note: note, Status: StatusNew, Timestamp: ts}})
}

// CurrentStatus derives a lead's status from its decoded history: always
// the newest (last, oldest-first) entry's status.
func CurrentStatus(entries []history.NoteEntry) string {
	if len(entries) == 0 {
		return StatusNew
	}
	status, err := Canonical(entries[len(entries)-1].Status)
	if err != nil {
		return StatusNew
	}
	return status
}

// Transition appends a status change to a lead's encoded notes history and
// returns the new encoding and status.
//
// Moving into Won converts the lead to a client and cannot be undone, so it
// must be confirmed explicitly; an unconfirmed attempt returns
// ErrWonNotConfirmed and the caller rolls its edit buffer back to
// currentStatus, not to New. Moving out of Won is never permitted.
func Transition(currentStatus, encodedNotes, target, note, ts string, confirmed bool) (Result, error) {
	from, err := Canonical(currentStatus)
	if err != nil {
		return Result{}, err
	}
	to, err := Canonical(target)
	if err != nil {
		return Result{}, err
	}
	if from == StatusWon && to != StatusWon {
		return Result{}, ErrWonTerminal
	}
	if to == StatusWon && from != StatusWon && !confirmed {
		return Result{}, ErrWonNotConfirmed
	}
	if strings.TrimSpace(ts) == "" {
		ts = nowFunc().UTC().Format(time.RFC3339)
	}
	entries := history.DecodeNotes(encodedNotes)
	entries = append(entries, history.NoteEntry{Note: note, Status: to, Timestamp: ts})
	encoded, err := history.EncodeNotes(entries)
	if err != nil {
		return Result{}, err
	}
	res := Result{Notes: encoded, Status: to}
	if to == StatusWon && from != StatusWon {
		res.WonOn = ts
	}
	return res, nil
}
