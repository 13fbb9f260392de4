package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/audit"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/auth"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/history"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/httpx"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/intake"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/lifecycle"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/policy"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/stream"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type apiLead struct {
	ID                string `json:"id"`
	FullName          string `json:"fullName"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	AltNumber         string `json:"altNumber"`
	DeematAccountName string `json:"deematAccountName"`
	Profession        string `json:"profession"`
	StateName         string `json:"stateName"`
	Capital           string `json:"capital"`
	Segment           string `json:"segment"`
	Gender            string `json:"gender"`
	DOB               string `json:"dob"`
	PanCardNumber     string `json:"panCardNumber"`
	AadharCardNumber  string `json:"aadharCardNumber"`
	Status            string `json:"status"`
	Notes             string `json:"notes"`
	PaymentHistory    string `json:"paymentHistory"`
	WonOn             string `json:"wonOn"`
	AssignedTo        string `json:"assignedTo"`
	TeamID            string `json:"teamId"`
	CreatedBy         string `json:"createdBy"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
}

const leadColumns = `
	id, full_name, phone, COALESCE(email,''), COALESCE(alt_number,''),
	COALESCE(deemat_account_name,''), COALESCE(profession,''), COALESCE(state_name,''),
	COALESCE(capital,''), COALESCE(segment,''), COALESCE(gender,''), COALESCE(dob,''),
	COALESCE(pan_card_number,''), COALESCE(aadhar_card_number,''),
	status, COALESCE(notes,''), COALESCE(payment_history,''), COALESCE(won_on,''),
	COALESCE(assigned_to::text,''), COALESCE(team_id::text,''), COALESCE(created_by::text,''),
	to_char(created_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"'), to_char(updated_at, 'YYYY-MM-DD"T"HH24:MI:SS"Z"')`

type leadScanner interface {
	Scan(dest ...any) error
}

func scanLead(row leadScanner) (apiLead, error) {
	var l apiLead
	err := row.Scan(
		&l.ID, &l.FullName, &l.Phone, &l.Email, &l.AltNumber,
		&l.DeematAccountName, &l.Profession, &l.StateName,
		&l.Capital, &l.Segment, &l.Gender, &l.DOB,
		&l.PanCardNumber, &l.AadharCardNumber,
		&l.Status, &l.Notes, &l.PaymentHistory, &l.WonOn,
		&l.AssignedTo, &l.TeamID, &l.CreatedBy,
		&l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// presentLead applies the viewer's capability table to an outbound lead:
// masked phone for manager roles and no payment trail before Won.
func presentLead(role string, l apiLead) apiLead {
	won := l.Status == lifecycle.StatusWon
	if policy.For(role, policy.FieldPhone, policy.RecordState{}).Masked {
		l.Phone = policy.MaskPhone(l.Phone)
		l.AltNumber = policy.MaskPhone(l.AltNumber)
	}
	if !policy.For(role, policy.FieldPaymentAmount, policy.RecordState{LeadWon: won}).Visible {
		l.PaymentHistory = ""
	}
	return l
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []any
	switch principal.Role {
	case policy.RoleTeamLeader:
		query += ` WHERE team_id::text=$1`
		args = append(args, principal.TeamID)
	case policy.RoleRelationshipMgr, policy.RoleFinancialMgr:
		query += ` WHERE assigned_to::text=$1`
		args = append(args, principal.UserID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.DB.Query(r.Context(), query, args...)
	if err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	defer rows.Close()
	leads := []apiLead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			httpx.Error(w, 500, "scan failed")
			return
		}
		leads = append(leads, presentLead(principal.Role, l))
	}
	if rows.Err() != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"leads": leads})
}

type apiNoteEntry struct {
	Note      string `json:"note"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type apiPaymentEntry struct {
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
	UTR       string `json:"utr"`
	Approved  bool   `json:"approved"`
}

// leadHistory decodes the persisted trails for the detail view, newest
// entry first.
func leadHistory(l apiLead) ([]apiNoteEntry, []apiPaymentEntry) {
	notes := []apiNoteEntry{}
	for _, e := range history.Reversed(history.DecodeNotes(l.Notes)) {
		notes = append(notes, apiNoteEntry{Note: e.Note, Status: e.Status, Timestamp: e.Timestamp})
	}
	payments := []apiPaymentEntry{}
	for _, e := range history.Reversed(history.DecodePayments(l.PaymentHistory)) {
		payments = append(payments, apiPaymentEntry{Amount: e.Amount, Timestamp: e.Timestamp, UTR: e.UTR, Approved: e.Approved})
	}
	return notes, payments
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	leadID := chi.URLParam(r, "lead_id")
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
	presented := presentLead(principal.Role, l)
	notes, payments := leadHistory(presented)
	httpx.WriteJSON(w, 200, map[string]any{
		"lead":     presented,
		"history":  notes,
		"payments": payments,
	})
}

func (s *Server) loadLead(ctx context.Context, leadID string) (apiLead, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=$1`, leadID)
	return scanLead(row)
}

type createLeadRequest struct {
	FullName          string `json:"fullName"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	AltNumber         string `json:"altNumber"`
	DeematAccountName string `json:"deematAccountName"`
	Profession        string `json:"profession"`
	StateName         string `json:"stateName"`
	Capital           string `json:"capital"`
	Segment           string `json:"segment"`
	Gender            string `json:"gender"`
	DOB               string `json:"dob"`
	PanCardNumber     string `json:"panCardNumber"`
	AadharCardNumber  string `json:"aadharCardNumber"`
	Note              string `json:"note"`
	AssignedTo        string `json:"assignedTo"`
	TeamID            string `json:"teamId"`
}

func (s *Server) createLead(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	var req createLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	l, err := s.insertLead(r.Context(), principal, req)
	if errors.Is(err, lifecycle.ErrDuplicatePhone) {
		httpx.Error(w, 409, err.Error())
		return
	}
	if errors.Is(err, history.ErrReservedDelimiter) {
		httpx.Error(w, 400, err.Error())
		return
	}
	if err != nil {
		if msg := err.Error(); strings.HasPrefix(msg, "validation:") {
			httpx.Error(w, 400, strings.TrimSpace(strings.TrimPrefix(msg, "validation:")))
			return
		}
		httpx.Error(w, 500, "insert failed")
		return
	}
	httpx.WriteJSON(w, 201, presentLead(principal.Role, l))
}

func (s *Server) insertLead(ctx context.Context, principal auth.Principal, req createLeadRequest) (apiLead, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = normalizePhone(req.Phone)
	if req.FullName == "" || req.Phone == "" {
		return apiLead{}, errors.New("validation: fullName and phone required")
	}
	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE phone=$1)`, req.Phone).Scan(&exists); err != nil {
		return apiLead{}, err
	}
	if exists {
		return apiLead{}, lifecycle.ErrDuplicatePhone
	}
	notes, err := lifecycle.Seed(req.Note, "")
	if err != nil {
		return apiLead{}, err
	}
	id := uuid.New().String()
	teamID := req.TeamID
	if teamID == "" {
		teamID = principal.TeamID
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO leads
		(id, full_name, phone, email, alt_number, deemat_account_name, profession, state_name,
		 capital, segment, gender, dob, pan_card_number, aadhar_card_number,
		 status, notes, payment_history, assigned_to, team_id, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,'',$17,$18,$19,now(),now())
	`, id, req.FullName, req.Phone, nullIfEmpty(req.Email), nullIfEmpty(req.AltNumber),
		nullIfEmpty(req.DeematAccountName), nullIfEmpty(req.Profession), nullIfEmpty(req.StateName),
		nullIfEmpty(req.Capital), nullIfEmpty(req.Segment), nullIfEmpty(req.Gender), nullIfEmpty(req.DOB),
		nullIfEmpty(req.PanCardNumber), nullIfEmpty(req.AadharCardNumber),
		lifecycle.StatusNew, notes, nullIfEmpty(req.AssignedTo), nullIfEmpty(teamID), nullIfEmpty(principal.UserID))
	if err != nil {
		return apiLead{}, err
	}
	_ = s.Audit.Append(ctx, audit.Record{
		LeadID:    id,
		ActorID:   principal.UserID,
		ActorRole: principal.Role,
		Kind:      audit.KindCreate,
		ToStatus:  lifecycle.StatusNew,
	})
	s.Metrics.IncStatus(lifecycle.StatusNew)
	s.Events.Publish(stream.NewEvent(stream.TypeLeadCreated, map[string]string{"leadId": id}))
	return s.loadLead(ctx, id)
}

type updateLeadRequest struct {
	Fields       map[string]string `json:"fields"`
	Status       string            `json:"status"`
	Note         string            `json:"note"`
	WonConfirmed bool              `json:"wonConfirmed"`
}

var leadFieldColumns = map[string]string{
	"fullName":          "full_name",
	"phone":             "phone",
	"email":             "email",
	"altNumber":         "alt_number",
	"deematAccountName": "deemat_account_name",
	"profession":        "profession",
	"stateName":         "state_name",
	"capital":           "capital",
	"segment":           "segment",
	"gender":            "gender",
	"dob":               "dob",
	"panCardNumber":     "pan_card_number",
	"aadharCardNumber":  "aadhar_card_number",
}

func currentLeadField(l apiLead, name string) string {
	switch name {
	case "fullName":
		return l.FullName
	case "phone":
		return l.Phone
	case "email":
		return l.Email
	case "altNumber":
		return l.AltNumber
	case "deematAccountName":
		return l.DeematAccountName
	case "profession":
		return l.Profession
	case "stateName":
		return l.StateName
	case "capital":
		return l.Capital
	case "segment":
		return l.Segment
	case "gender":
		return l.Gender
	case "dob":
		return l.DOB
	case "panCardNumber":
		return l.PanCardNumber
	case "aadharCardNumber":
		return l.AadharCardNumber
	}
	return ""
}

func (s *Server) updateLead(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	leadID := chi.URLParam(r, "lead_id")
	var req updateLeadRequest
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

	setCols := []string{"updated_at=now()"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	for name, value := range req.Fields {
		col, ok := leadFieldColumns[name]
		if !ok {
			httpx.Error(w, 400, "unknown field "+name)
			return
		}
		current := currentLeadField(l, name)
		// A masked view round-tripped through an edit form is not a change.
		if policy.For(principal.Role, policy.FieldKind(name), policy.RecordState{}).Masked &&
			value == policy.MaskPhone(current) {
			continue
		}
		if name == "phone" {
			value = normalizePhone(value)
		}
		if value == current {
			continue
		}
		allowed := policy.For(principal.Role, policy.FieldKind(name), policy.RecordState{HasValue: current != ""})
		if !allowed.Editable {
			httpx.Error(w, 403, "field "+name+" is locked for your role")
			return
		}
		if name == "phone" && value != "" {
			var exists bool
			if err := s.DB.QueryRow(r.Context(), `SELECT EXISTS (SELECT 1 FROM leads WHERE phone=$1 AND id<>$2)`, value, leadID).Scan(&exists); err != nil {
				httpx.Error(w, 500, "query failed")
				return
			}
			if exists {
				httpx.Error(w, 409, lifecycle.ErrDuplicatePhone.Error())
				return
			}
		}
		setCols = append(setCols, col+"="+arg(nullIfEmpty(value)))
	}

	statusChanged := false
	fromStatus := l.Status
	if strings.TrimSpace(req.Status) != "" || strings.TrimSpace(req.Note) != "" {
		// Every transition appends a fresh note entry; only the current
		// draft is writable for relationship managers.
		if !policy.For(principal.Role, policy.FieldNoteEntry, policy.RecordState{EntryIsNew: true}).Editable {
			httpx.Error(w, 403, "notes are locked for your role")
			return
		}
		target := req.Status
		if strings.TrimSpace(target) == "" {
			// A note without a status change stays on the current status.
			target = l.Status
		}
		res, err := lifecycle.Transition(l.Status, l.Notes, target, req.Note, "", req.WonConfirmed)
		switch {
		case errors.Is(err, lifecycle.ErrWonNotConfirmed):
			httpx.WriteJSON(w, 200, map[string]any{
				"confirmationRequired": true,
				"lead":                 presentLead(principal.Role, l),
			})
			return
		case errors.Is(err, lifecycle.ErrWonTerminal):
			httpx.Error(w, 403, err.Error())
			return
		case errors.Is(err, lifecycle.ErrUnknownStatus):
			httpx.Error(w, 400, err.Error())
			return
		case errors.Is(err, history.ErrReservedDelimiter):
			httpx.Error(w, 400, err.Error())
			return
		case err != nil:
			httpx.Error(w, 500, "transition failed")
			return
		}
		setCols = append(setCols, "notes="+arg(res.Notes))
		setCols = append(setCols, "status="+arg(res.Status))
		if res.WonOn != "" && l.WonOn == "" {
			setCols = append(setCols, "won_on="+arg(res.WonOn))
		}
		statusChanged = res.Status != fromStatus
		l.Status = res.Status
	}

	if len(setCols) > 1 {
		query := `UPDATE leads SET ` + strings.Join(setCols, ", ") + ` WHERE id=` + arg(leadID)
		if _, err := s.DB.Exec(r.Context(), query, args...); err != nil {
			httpx.Error(w, 500, "update failed")
			return
		}
	}
	if statusChanged {
		if s.Cache != nil {
			_ = s.Cache.DelPrefix(r.Context(), "dashboard:")
		}
		_ = s.Audit.Append(r.Context(), audit.Record{
			LeadID:     leadID,
			ActorID:    principal.UserID,
			ActorRole:  principal.Role,
			Kind:       audit.KindTransition,
			FromStatus: fromStatus,
			ToStatus:   l.Status,
		})
		s.Metrics.IncStatus(l.Status)
		s.Events.Publish(stream.NewEvent(stream.TypeLeadTransition, map[string]string{
			"leadId": leadID, "from": fromStatus, "to": l.Status,
		}))
	}
	updated, err := s.loadLead(r.Context(), leadID)
	if err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	httpx.WriteJSON(w, 200, presentLead(principal.Role, updated))
}

func (s *Server) deleteLead(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	leadID := chi.URLParam(r, "lead_id")
	tag, err := s.DB.Exec(r.Context(), `DELETE FROM leads WHERE id=$1`, leadID)
	if err != nil {
		httpx.Error(w, 500, "delete failed")
		return
	}
	if tag.RowsAffected() == 0 {
		httpx.Error(w, 404, "lead not found")
		return
	}
	_ = s.Audit.Append(r.Context(), audit.Record{
		LeadID:    leadID,
		ActorID:   principal.UserID,
		ActorRole: principal.Role,
		Kind:      audit.KindDelete,
	})
	httpx.WriteJSON(w, 200, map[string]string{"status": "deleted"})
}

type assignRequest struct {
	AssignedTo string `json:"assignedTo"`
}

func (s *Server) assignLead(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	leadID := chi.URLParam(r, "lead_id")
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	if !policy.For(principal.Role, policy.FieldAssignment, policy.RecordState{}).Editable {
		httpx.Error(w, 403, "assignment is locked for your role")
		return
	}
	teamID, err := s.assigneeTeam(r.Context(), req.AssignedTo)
	if err != nil {
		httpx.Error(w, 400, err.Error())
		return
	}
	if principal.Role == policy.RoleTeamLeader && teamID != principal.TeamID {
		httpx.Error(w, 403, "assignee outside your team")
		return
	}
	tag, err := s.DB.Exec(r.Context(), `
		UPDATE leads SET assigned_to=$1, team_id=$2, updated_at=now() WHERE id=$3
	`, req.AssignedTo, nullIfEmpty(teamID), leadID)
	if err != nil {
		httpx.Error(w, 500, "update failed")
		return
	}
	if tag.RowsAffected() == 0 {
		httpx.Error(w, 404, "lead not found")
		return
	}
	_ = s.Audit.Append(r.Context(), audit.Record{
		LeadID:    leadID,
		ActorID:   principal.UserID,
		ActorRole: principal.Role,
		Kind:      audit.KindAssign,
		Detail:    "assigned_to=" + req.AssignedTo,
	})
	s.Events.Publish(stream.NewEvent(stream.TypeLeadAssigned, map[string]string{
		"leadId": leadID, "assignedTo": req.AssignedTo,
	}))
	httpx.WriteJSON(w, 200, map[string]string{"status": "assigned"})
}

func (s *Server) assigneeTeam(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("assignedTo required")
	}
	var teamID string
	var active bool
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(team_id::text, ''), active FROM users WHERE id=$1
	`, userID).Scan(&teamID, &active)
	if err == pgx.ErrNoRows {
		return "", errors.New("assignee not found")
	}
	if err != nil {
		return "", err
	}
	if !active {
		return "", errors.New("assignee is inactive")
	}
	return teamID, nil
}

type bulkAssignRequest struct {
	LeadIDs    []string `json:"leadIds"`
	AssignedTo string   `json:"assignedTo"`
}

// bulkAssignLeads reassigns a batch inside one transaction: either every
// lead moves or none do.
func (s *Server) bulkAssignLeads(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	var req bulkAssignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	if len(req.LeadIDs) == 0 {
		httpx.Error(w, 400, "leadIds required")
		return
	}
	if !policy.For(principal.Role, policy.FieldAssignment, policy.RecordState{}).Editable {
		httpx.Error(w, 403, "assignment is locked for your role")
		return
	}
	teamID, err := s.assigneeTeam(r.Context(), req.AssignedTo)
	if err != nil {
		httpx.Error(w, 400, err.Error())
		return
	}
	if principal.Role == policy.RoleTeamLeader && teamID != principal.TeamID {
		httpx.Error(w, 403, "assignee outside your team")
		return
	}
	tx, err := s.DB.Begin(r.Context())
	if err != nil {
		httpx.Error(w, 500, "begin failed")
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()
	for _, leadID := range req.LeadIDs {
		tag, err := tx.Exec(r.Context(), `
			UPDATE leads SET assigned_to=$1, team_id=$2, updated_at=now() WHERE id=$3
		`, req.AssignedTo, nullIfEmpty(teamID), leadID)
		if err != nil {
			httpx.Error(w, 500, "update failed")
			return
		}
		if tag.RowsAffected() == 0 {
			httpx.Error(w, 404, "lead "+leadID+" not found")
			return
		}
	}
	if err := tx.Commit(r.Context()); err != nil {
		httpx.Error(w, 500, "commit failed")
		return
	}
	for _, leadID := range req.LeadIDs {
		_ = s.Audit.Append(r.Context(), audit.Record{
			LeadID:    leadID,
			ActorID:   principal.UserID,
			ActorRole: principal.Role,
			Kind:      audit.KindAssign,
			Detail:    "assigned_to=" + req.AssignedTo,
		})
		s.Events.Publish(stream.NewEvent(stream.TypeLeadAssigned, map[string]string{
			"leadId": leadID, "assignedTo": req.AssignedTo,
		}))
	}
	httpx.WriteJSON(w, 200, map[string]any{"status": "assigned", "count": len(req.LeadIDs)})
}

type importLeadsRequest struct {
	Leads []createLeadRequest `json:"leads"`
}

type importSkip struct {
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

// importLeads takes a parsed sheet and inserts row by row; duplicates and
// invalid rows are reported back, not fatal.
func (s *Server) importLeads(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	var req importLeadsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, 400, "invalid json")
		return
	}
	if len(req.Leads) == 0 {
		httpx.Error(w, 400, "leads required")
		return
	}
	imported := 0
	skipped := []importSkip{}
	for _, row := range req.Leads {
		if _, err := s.insertLead(r.Context(), principal, row); err != nil {
			skipped = append(skipped, importSkip{Phone: row.Phone, Reason: err.Error()})
			continue
		}
		imported++
	}
	httpx.WriteJSON(w, 200, map[string]any{"imported": imported, "skipped": skipped})
}

func (s *Server) listLeadAudit(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "lead_id")
	records, err := s.Audit.ListForLead(r.Context(), leadID, envInt("AUDIT_LIST_LIMIT", 100))
	if err != nil {
		httpx.Error(w, 500, "query failed")
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"audit": records})
}

// submitIntakeRow feeds a streamed row through the same create path the
// HTTP handler uses, attributed to the intake pseudo-user.
func (s *Server) submitIntakeRow(ctx context.Context, row intake.Row) error {
	_, err := s.insertLead(ctx, auth.Principal{UserID: "intake", Role: policy.RoleAdmin}, createLeadRequest{
		FullName:  row.FullName,
		Phone:     row.Phone,
		Email:     row.Email,
		AltNumber: row.AltNumber,
		StateName: row.StateName,
		Segment:   row.Segment,
		TeamID:    row.TeamID,
	})
	return err
}
