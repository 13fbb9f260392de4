package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/audit"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/auth"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/history"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/httpx"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/ledger"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/lifecycle"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/policy"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/stream"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

type recordPaymentRequest struct {
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) recordPayment(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	leadID := chi.URLParam(r, "lead_id")
	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	l, err := s.loadLead(r.Context(), leadID)
	if err == pgx.ErrNoRows {
		httpx.Error(w, 404, "lead not found")
		return
	}
	if err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	if !policy.CanViewLead(principal.Role, principal.UserID, principal.TeamID, l.AssignedTo, l.TeamID) {
		httpx.Error(w, 403, "forbidden")
		return
	}
	state := policy.RecordState{LeadWon: l.Status == lifecycle.StatusWon, EntryIsNew: true}
	if !policy.For(principal.Role, policy.FieldPaymentAmount, state).Editable {
		httpx.Error(w, 403, "payment amounts are locked for your role")
		return
	}
	encoded, err := ledger.RecordEncoded(l.Status, l.PaymentHistory, req.Amount, req.Timestamp)
	if errors.Is(err, ledger.ErrNotWon) {
		httpx.Error(w, 403, err.Error())
		return
	}
	if err != nil {
		httpx.Error(w, 400, err.Error())
		return
	}
	if _, err := s.DB.Exec(r.Context(), `
		UPDATE leads SET payment_history=$1, updated_at=now() WHERE id=$2
	`, encoded, leadID); err != nil {
		httpx.Error(w, 500, "update failed")
		return
	}
	_ = s.Audit.Append(r.Context(), audit.Record{
		LeadID:    leadID,
		ActorID:   principal.UserID,
		ActorRole: principal.Role,
		Kind:      audit.KindPaymentDraft,
		Detail:    "amount=" + req.Amount,
	})
	if s.Cache != nil {
		_ = s.Cache.DelPrefix(r.Context(), "dashboard:")
	}
	s.Metrics.IncPaymentEvent("recorded")
	s.Events.Publish(stream.NewEvent(stream.TypePaymentRecorded, map[string]string{
		"leadId": leadID, "amount": req.Amount,
	}))
	updated, err := s.loadLead(r.Context(), leadID)
	if err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	httpx.WriteJSON(w, 200, presentLead(principal.Role, updated))
}

type approvePaymentRequest struct {
	UTR string `json:"utr"`
}

func (s *Server) approvePayment(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	leadID := chi.URLParam(r, "lead_id")
	index, err := strconv.Atoi(chi.URLParam(r, "entry_index"))
	if err != nil {
		httpx.Error(w, 400, "invalid entry index")
		return
	}
	var req approvePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	l, err := s.loadLead(r.Context(), leadID)
	if err == pgx.ErrNoRows {
		httpx.Error(w, 404, "lead not found")
		return
	}
	if err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	if !policy.CanViewLead(principal.Role, principal.UserID, principal.TeamID, l.AssignedTo, l.TeamID) {
		httpx.Error(w, 403, "forbidden")
		return
	}
	state := policy.RecordState{LeadWon: l.Status == lifecycle.StatusWon}
	if entries := history.DecodePayments(l.PaymentHistory); index >= 0 && index < len(entries) {
		state.EntryApproved = entries[index].Approved
	}
	if !policy.For(principal.Role, policy.FieldPaymentUTR, state).Editable {
		httpx.Error(w, 403, "payment approval is locked for your role")
		return
	}
	encoded, err := ledger.ApproveEncoded(l.Status, l.PaymentHistory, index, req.UTR)
	switch {
	case errors.Is(err, ledger.ErrNotWon), errors.Is(err, ledger.ErrAlreadyApproved):
		httpx.Error(w, 403, err.Error())
		return
	case errors.Is(err, ledger.ErrEmptyUTR), errors.Is(err, ledger.ErrBadIndex):
		httpx.Error(w, 400, err.Error())
		return
	case err != nil:
		httpx.Error(w, 400, err.Error())
		return
	}
	if _, err := s.DB.Exec(r.Context(), `
		UPDATE leads SET payment_history=$1, updated_at=now() WHERE id=$2
	`, encoded, leadID); err != nil {
		httpx.Error(w, 500, "update failed")
		return
	}
	_ = s.Audit.Append(r.Context(), audit.Record{
		LeadID:    leadID,
		ActorID:   principal.UserID,
		ActorRole: principal.Role,
		Kind:      audit.KindPaymentApprove,
		Detail:    "entry=" + strconv.Itoa(index),
	})
	if s.Cache != nil {
		_ = s.Cache.DelPrefix(r.Context(), "dashboard:")
	}
	s.Metrics.IncPaymentEvent("approved")
	s.Events.Publish(stream.NewEvent(stream.TypePaymentApproved, map[string]string{
		"leadId": leadID, "entry": strconv.Itoa(index),
	}))
	updated, err := s.loadLead(r.Context(), leadID)
	if err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	httpx.WriteJSON(w, 200, presentLead(principal.Role, updated))
}
