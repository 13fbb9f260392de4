package policy

import "strings"

// Fixed role set. Role strings appear in session tokens and the users
// table; they are compared exactly.
const (
	RoleSuperAdmin      = "super_admin"
	RoleAdmin           = "admin"
	RoleTeamLeader      = "team_leader"
	RoleRelationshipMgr = "relationship_mgr"
	RoleFinancialMgr    = "financial_manager"
)

// Field kinds consulted through Capability. Personal fields share the
// lock-once-set rule; history/payment kinds carry their own rules.
const (
	FieldPersonal        = "personal"
	FieldNoteEntry       = "note_entry"
	FieldPaymentAmount   = "payment_amount"
	FieldPaymentUTR      = "payment_utr"
	FieldPaymentApproved = "payment_approved"
	FieldPhone           = "phone"
	FieldAssignment      = "assignment"
)

// personalFields maps a lead's named fields onto FieldPersonal (FieldPhone
// for the masked ones). Every surface resolves field names here rather
// than keeping its own list.
var personalFields = map[string]string{
	"fullName":          FieldPersonal,
	"phone":             FieldPhone,
	"email":             FieldPersonal,
	"altNumber":         FieldPhone,
	"deematAccountName": FieldPersonal,
	"profession":        FieldPersonal,
	"stateName":         FieldPersonal,
	"capital":           FieldPersonal,
	"segment":           FieldPersonal,
	"gender":            FieldPersonal,
	"dob":               FieldPersonal,
	"panCardNumber":     FieldPersonal,
	"aadharCardNumber":  FieldPersonal,
}

func IsRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleTeamLeader, RoleRelationshipMgr, RoleFinancialMgr:
		return true
	}
	return false
}

// FieldKind resolves a lead field name to its policy kind. Unknown names
// fall back to FieldPersonal.
func FieldKind(name string) string {
	if kind, ok := personalFields[name]; ok {
		return kind
	}
	return FieldPersonal
}

// RecordState is the slice of record state the capability table depends
// on.
type RecordState struct {
	// HasValue: the field already holds a non-empty persisted value.
	HasValue bool
	// EntryIsNew: the history/payment entry is the current session's draft.
	EntryIsNew bool
	// EntryApproved: the payment entry has completed approval.
	EntryApproved bool
	// LeadWon: the owning lead has reached Won.
	LeadWon bool
}

type Capability struct {
	Editable bool
	Visible  bool
	Masked   bool
}

// For evaluates the single capability table every surface consults.
// relationship_mgr loses edit access to personal fields once they hold a
// value and to every history entry except the current draft; the payment
// columns follow the two-phase approval split between relationship_mgr
// (amounts on drafts) and financial_manager (UTRs on pending entries).
func For(role, field string, state RecordState) Capability {
	cap := Capability{Visible: true}
	switch field {
	case FieldPhone:
		cap.Masked = role == RoleRelationshipMgr || role == RoleFinancialMgr
		cap.Editable = editablePersonal(role, state)
	case FieldPersonal:
		cap.Editable = editablePersonal(role, state)
	case FieldNoteEntry:
		if role == RoleRelationshipMgr {
			cap.Editable = state.EntryIsNew
		} else {
			cap.Editable = true
		}
	case FieldPaymentAmount:
		cap.Visible = state.LeadWon
		cap.Editable = state.LeadWon && role == RoleRelationshipMgr && state.EntryIsNew
	case FieldPaymentUTR:
		cap.Visible = state.LeadWon
		cap.Editable = state.LeadWon && role == RoleFinancialMgr && !state.EntryApproved && !state.EntryIsNew
	case FieldPaymentApproved:
		// The flag flips as a side effect of committing a UTR, never by
		// direct edit.
		cap.Visible = state.LeadWon
	case FieldAssignment:
		cap.Editable = role == RoleSuperAdmin || role == RoleAdmin || role == RoleTeamLeader
	default:
		cap.Editable = editablePersonal(role, state)
	}
	return cap
}

func editablePersonal(role string, state RecordState) bool {
	if role == RoleRelationshipMgr {
		return !state.HasValue
	}
	return IsRole(role)
}

// MaskPhone renders a phone number for roles whose view is masked: first
// two digits kept, remainder hidden.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	if len(phone) <= 2 {
		return phone + "******"
	}
	return phone[:2] + "******"
}

// CanViewLead scopes list reads: managers see their own assignments, team
// leaders their team, admins everything.
func CanViewLead(role, userID, teamID, leadAssignedTo, leadTeamID string) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin:
		return true
	case RoleTeamLeader:
		return teamID != "" && leadTeamID == teamID
	case RoleRelationshipMgr, RoleFinancialMgr:
		return userID != "" && leadAssignedTo == userID
	}
	return false
}
