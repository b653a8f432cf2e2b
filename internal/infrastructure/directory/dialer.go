// Package directory talks to the per-instance Postgres directories: the
// tenant table, the internal-user table and the role/group tables. Every
// call opens its own connection and closes it before returning.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"vn.io.arda/onboarding/internal/config"
	"vn.io.arda/onboarding/internal/domain"
)

// undefinedColumn is SQLSTATE 42703.
const undefinedColumn = "42703"

// ErrMissingCredentials is returned by Dial when host, user or password is absent.
var ErrMissingCredentials = errors.New("instance postgres credentials are missing")

// Querier is the subset of *pgx.Conn used by the directory clients.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Conn is a single remote connection. *pgx.Conn satisfies it.
type Conn interface {
	Querier
	Close(ctx context.Context) error
}

// Dialer opens a connection to an instance's directory database.
type Dialer interface {
	Dial(ctx context.Context, inst domain.Instance) (Conn, error)
}

// PGDialer dials instances with pgx. No pooling: the instances are owned
// by customers and their availability is unpredictable.
type PGDialer struct {
	cfg config.RemoteConfig
}

// NewDialer creates a PGDialer.
func NewDialer(cfg config.RemoteConfig) *PGDialer {
	return &PGDialer{cfg: cfg}
}

// Dial connects to inst, honoring the configured connect timeout.
func (d *PGDialer) Dial(ctx context.Context, inst domain.Instance) (Conn, error) {
	if !inst.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	connCfg, err := pgx.ParseConfig(d.connString(inst))
	if err != nil {
		return nil, fmt.Errorf("parse connection config for instance %s: %w", inst.ID, err)
	}
	if d.cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = d.cfg.ConnectTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to instance %s: %w", inst.ID, err)
	}
	return conn, nil
}

func (d *PGDialer) connString(inst domain.Instance) string {
	port := inst.PGPort
	if port == "" {
		port = d.cfg.DefaultPort
	}
	q := url.Values{}
	if d.cfg.SSLMode != "" {
		q.Set("sslmode", d.cfg.SSLMode)
	}
	if d.cfg.ConnectTimeout > 0 {
		// libpq reads 0 as "wait forever"
		q.Set("connect_timeout", strconv.Itoa(max(1, int(d.cfg.ConnectTimeout.Seconds()))))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(inst.PGUser, inst.PGPassword),
		Host:     net.JoinHostPort(inst.PGHost, port),
		Path:     "/" + d.cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// isUndefinedColumn reports whether err is Postgres' "column does not exist".
func isUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedColumn
}

// textOrNil converts a nullable text column, dropping empty strings.
func textOrNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
