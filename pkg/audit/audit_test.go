package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeAuditDB struct {
	execArgs [][]any
	execErr  error
	rows     [][]any
	queryErr error
}

func (f *fakeAuditDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeAuditDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeAuditRows{rows: f.rows}, nil
}

type fakeAuditRows struct {
	rows [][]any
	idx  int
}

func (r *fakeAuditRows) Close()                                       {}
func (r *fakeAuditRows) Err() error                                   { return nil }
func (r *fakeAuditRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT 1") }
func (r *fakeAuditRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeAuditRows) RawValues() [][]byte                          { return nil }
func (r *fakeAuditRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeAuditRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeAuditRows) Scan(dest ...any) error {
	current := r.rows[r.idx-1]
	if len(dest) != len(current) {
		return errors.New("scan arity mismatch")
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = current[i].(string)
		case *time.Time:
			*d = current[i].(time.Time)
		default:
			return errors.New("unsupported scan dest")
		}
	}
	return nil
}

func (r *fakeAuditRows) Values() ([]any, error) { return r.rows[r.idx-1], nil }

func TestAppendDefaultsCreatedAt(t *testing.T) {
	db := &fakeAuditDB{}
	w := &Writer{DB: db}
	err := w.Append(context.Background(), Record{
		LeadID: "l1", ActorID: "u1", ActorRole: "admin",
		Kind: KindTransition, FromStatus: "New", ToStatus: "Callback",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(db.execArgs) != 1 {
		t.Fatalf("expected one insert, got %d", len(db.execArgs))
	}
	createdAt, ok := db.execArgs[0][7].(time.Time)
	if !ok || createdAt.IsZero() {
		t.Fatalf("created_at should default to now, got %v", db.execArgs[0][7])
	}
}

func TestListForLead(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db := &fakeAuditDB{rows: [][]any{
		{"l1", "u1", "admin", KindTransition, "New", "Won", "confirmed", at},
	}}
	w := &Writer{DB: db}
	records, err := w.ListForLead(context.Background(), "l1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ToStatus != "Won" || records[0].Kind != KindTransition {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestListForLeadQueryError(t *testing.T) {
	db := &fakeAuditDB{queryErr: errors.New("boom")}
	w := &Writer{DB: db}
	if _, err := w.ListForLead(context.Background(), "l1", 10); err == nil {
		t.Fatalf("expected query error")
	}
}
