package directory

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"vn.io.arda/onboarding/internal/domain"
)

// fakeResult is what the fake connection answers for one statement.
type fakeResult struct {
	rows     [][]any
	affected int64
	err      error
}

type recordedQuery struct {
	sql  string
	args []any
}

// fakeConn answers statements through respond and records them.
type fakeConn struct {
	respond func(sql string, args []any) fakeResult
	queries []recordedQuery
	closed  bool
}

func (c *fakeConn) answer(sql string, args []any) fakeResult {
	c.queries = append(c.queries, recordedQuery{sql: sql, args: args})
	if c.respond == nil {
		return fakeResult{}
	}
	return c.respond(sql, args)
}

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	res := c.answer(sql, args)
	if res.err != nil {
		return nil, res.err
	}
	return &fakeRows{rows: res.rows, idx: -1}, nil
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	res := c.answer(sql, args)
	return &fakeRow{res: res}
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	res := c.answer(sql, args)
	if res.err != nil {
		return pgconn.CommandTag{}, res.err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", res.affected)), nil
}

func (c *fakeConn) Close(context.Context) error {
	c.closed = true
	return nil
}

type fakeDialer struct {
	conn  *fakeConn
	err   error
	dials int
}

func (d *fakeDialer) Dial(_ context.Context, inst domain.Instance) (Conn, error) {
	d.dials++
	if !inst.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close() {}
func (r *fakeRows) Err() error { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte { return nil }
func (r *fakeRows) Conn() *pgx.Conn { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.rows[r.idx], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.idx], nil
}

type fakeRow struct {
	res fakeResult
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.res.err != nil {
		return r.res.err
	}
	if len(r.res.rows) == 0 {
		return pgx.ErrNoRows
	}
	return scanInto(r.res.rows[0], dest)
}

// scanInto assigns row values to pointers, allocating for pointer-to-pointer
// destinations the way pgx does for nullable columns.
func scanInto(row []any, dest []any) error {
	if len(row) != len(dest) {
		return fmt.Errorf("fake scan: %d values into %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		dv := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			dv.Set(reflect.Zero(dv.Type()))
			continue
		}
		rv := reflect.ValueOf(v)
		switch {
		case rv.Type().AssignableTo(dv.Type()):
			dv.Set(rv)
		case dv.Kind() == reflect.Pointer && rv.Type().AssignableTo(dv.Type().Elem()):
			p := reflect.New(dv.Type().Elem())
			p.Elem().Set(rv)
			dv.Set(p)
		default:
			return fmt.Errorf("fake scan: cannot assign %T to %s", v, dv.Type())
		}
	}
	return nil
}

func undefinedColumnErr(column string) error {
	return &pgconn.PgError{Code: undefinedColumn, Message: fmt.Sprintf("column %q does not exist", column)}
}

func strPtr(s string) *string { return &s }
