package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/audit"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/metrics"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/store"
	"github.com/Iamalive23802/StockVistaCRMrepo/pkg/stream"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeAPIDB struct {
	execFn     func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	beginErr   error
	execSQL    []string
	txExecSQL  []string
	committed  bool
	rolledBack bool
}

func (f *fakeAPIDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	if f.execFn != nil {
		return f.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeAPIDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.queryFn != nil {
		return f.queryFn(ctx, sql, args...)
	}
	return &fakeAPIRows{}, nil
}

func (f *fakeAPIDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.queryRowFn != nil {
		return f.queryRowFn(ctx, sql, args...)
	}
	return fakeAPIRow{err: pgx.ErrNoRows}
}

func (f *fakeAPIDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &fakeTx{db: f}, nil
}

// fakeTx embeds the pgx.Tx interface so only the methods the handlers
// use need real bodies.
type fakeTx struct {
	pgx.Tx
	db *fakeAPIDB
}

func (t *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	t.db.txExecSQL = append(t.db.txExecSQL, sql)
	if t.db.execFn != nil {
		return t.db.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.db.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.db.committed {
		t.db.rolledBack = true
	}
	return nil
}

type fakeAPIRow struct {
	values []any
	err    error
}

func (r fakeAPIRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("scan arity mismatch")
	}
	for i := range dest {
		if err := assignAPIScan(dest[i], r.values[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeAPIRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeAPIRows) Close() {}

func (r *fakeAPIRows) Err() error { return r.err }

func (r *fakeAPIRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT 1") }

func (r *fakeAPIRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *fakeAPIRows) Next() bool {
	if r.err != nil {
		return false
	}
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeAPIRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.rows) {
		return errors.New("no current row")
	}
	current := r.rows[r.idx-1]
	if len(dest) != len(current) {
		return errors.New("scan arity mismatch")
	}
	for i := range dest {
		if err := assignAPIScan(dest[i], current[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAPIRows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.rows) {
		return nil, errors.New("no current row")
	}
	return append([]any(nil), r.rows[r.idx-1]...), nil
}

func (r *fakeAPIRows) RawValues() [][]byte { return nil }

func (r *fakeAPIRows) Conn() *pgx.Conn { return nil }

func assignAPIScan(dest any, value any) error {
	switch d := dest.(type) {
	case *string:
		v, ok := value.(string)
		if !ok {
			return errors.New("value is not string")
		}
		*d = v
	case *bool:
		v, ok := value.(bool)
		if !ok {
			return errors.New("value is not bool")
		}
		*d = v
	case *int:
		switch v := value.(type) {
		case int:
			*d = v
		case int64:
			*d = int(v)
		default:
			return errors.New("value is not int")
		}
	case *float64:
		switch v := value.(type) {
		case float64:
			*d = v
		case int:
			*d = float64(v)
		default:
			return errors.New("value is not float64")
		}
	case *time.Time:
		v, ok := value.(time.Time)
		if !ok {
			return errors.New("value is not time.Time")
		}
		*d = v
	default:
		return errors.New("unsupported scan destination")
	}
	return nil
}

type fakeAuditStore struct {
	records []audit.Record
	listFn  func(ctx context.Context, leadID string, limit int) ([]audit.Record, error)
}

func (f *fakeAuditStore) Append(ctx context.Context, rec audit.Record) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeAuditStore) ListForLead(ctx context.Context, leadID string, limit int) ([]audit.Record, error) {
	if f.listFn != nil {
		return f.listFn(ctx, leadID, limit)
	}
	return nil, nil
}

func withAPIURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func newTestServer(db *fakeAPIDB) *Server {
	return &Server{
		DB:                  db,
		Cache:               store.NewMemoryCache(),
		Audit:               &fakeAuditStore{},
		Metrics:             metrics.NewRegistry(),
		Events:              stream.NewHub(),
		SessionSecret:       "test-secret",
		SessionTTL:          time.Hour,
		AuthMode:            "hs256",
		DashboardCacheTTL:   time.Second,
		MaxRequestBodyBytes: 1 << 20,
	}
}

// leadRowValues renders a lead as the column tuple the SELECT list
// produces, in declaration order.
func leadRowValues(l apiLead) []any {
	return []any{
		l.ID, l.FullName, l.Phone, l.Email, l.AltNumber,
		l.DeematAccountName, l.Profession, l.StateName,
		l.Capital, l.Segment, l.Gender, l.DOB,
		l.PanCardNumber, l.AadharCardNumber,
		l.Status, l.Notes, l.PaymentHistory, l.WonOn,
		l.AssignedTo, l.TeamID, l.CreatedBy,
		l.CreatedAt, l.UpdatedAt,
	}
}
