package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type auditDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Record is one append-only entry in the lead mutation trail. The encoded
// notes field already carries the operator-facing history; this table is
// the server-side record of who changed what, independent of the encoded
// payload a client sent.
type Record struct {
	LeadID     string
	ActorID    string
	ActorRole  string
	Kind       string
	FromStatus string
	ToStatus   string
	Detail     string
	CreatedAt  time.Time
}

// Mutation kinds.
const (
	KindTransition     = "TRANSITION"
	KindPaymentDraft   = "PAYMENT_DRAFT"
	KindPaymentApprove = "PAYMENT_APPROVE"
	KindAssign         = "ASSIGN"
	KindCreate         = "CREATE"
	KindDelete         = "DELETE"
)

type Writer struct {
	DB auditDB
}

func (w *Writer) Append(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := w.DB.Exec(ctx, `
		INSERT INTO lead_audit
		(lead_id, actor_id, actor_role, kind, from_status, to_status, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.LeadID, rec.ActorID, rec.ActorRole, rec.Kind, rec.FromStatus, rec.ToStatus, rec.Detail, rec.CreatedAt)
	return err
}

// ListForLead returns a lead's trail, newest-first.
func (w *Writer) ListForLead(ctx context.Context, leadID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := w.DB.Query(ctx, `
		SELECT lead_id, actor_id, actor_role, kind, from_status, to_status, detail, created_at
		FROM lead_audit WHERE lead_id=$1 ORDER BY created_at DESC LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.LeadID, &rec.ActorID, &rec.ActorRole, &rec.Kind, &rec.FromStatus, &rec.ToStatus, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
