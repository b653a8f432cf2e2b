package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"vn.io.arda/onboarding/internal/domain"
)

var _ domain.InternalUserCache = (*Store)(nil)

type internalUserRow struct {
	UserID      *string `db:"user_id"`
	Name        *string `db:"name"`
	Email       *string `db:"email"`
	AccountType string  `db:"account_type"`
}

func keyFilter(key domain.InternalUserKey) sq.Eq {
	return sq.Eq{
		"instance_id":  key.InstanceID,
		"tenant_id":    key.TenantID,
		"subscriber":   key.Subscriber,
		"account_type": key.AccountType,
	}
}

// LoadInternalUsers returns the cached users of key in fetch order and the
// key's fetched_at stamp. The stamp is "" when the key was never cached; a
// cached empty set comes back with its stamp.
func (s *Store) LoadInternalUsers(ctx context.Context, key domain.InternalUserKey) ([]domain.InternalUser, string, error) {
	query, args, err := sq.Select("fetched_at").
		From("internal_user_cache_keys").
		Where(keyFilter(key)).
		ToSql()
	if err != nil {
		return nil, "", err
	}
	var fetchedAt string
	err = s.DB.GetContext(ctx, &fetchedAt, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.InternalUser{}, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load internal user cache key: %w", err)
	}

	query, args, err = sq.Select("user_id", "name", "email", "account_type").
		From("internal_user_cache").
		Where(keyFilter(key)).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, "", err
	}
	var rows []internalUserRow
	if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, "", fmt.Errorf("load internal user cache: %w", err)
	}

	users := make([]domain.InternalUser, 0, len(rows))
	for _, r := range rows {
		users = append(users, domain.InternalUser{
			ID:          r.UserID,
			Name:        r.Name,
			Email:       r.Email,
			AccountType: r.AccountType,
		})
	}
	return users, fetchedAt, nil
}

// SaveInternalUsers replaces every row of key, including down to zero rows,
// and stamps the key as fetched now.
func (s *Store) SaveInternalUsers(ctx context.Context, key domain.InternalUserKey, users []domain.InternalUser) error {
	fetchedAt := s.clock.Now().UTC().Format(time.RFC3339Nano)

	s.Mu.Lock()
	defer s.Mu.Unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteUserKey(ctx, tx, key); err != nil {
		return err
	}

	query, args, err := sq.Insert("internal_user_cache_keys").
		Columns("instance_id", "tenant_id", "subscriber", "account_type", "fetched_at").
		Values(key.InstanceID, key.TenantID, key.Subscriber, key.AccountType, fetchedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("stamp internal user cache: %w", err)
	}

	for start := 0; start < len(users); start += insertBatch {
		end := min(start+insertBatch, len(users))
		// REPLACE keeps the last of two users sharing an id.
		q := sq.Replace("internal_user_cache").
			Columns("instance_id", "tenant_id", "subscriber", "account_type", "position", "user_id", "name", "email")
		for i, u := range users[start:end] {
			q = q.Values(key.InstanceID, key.TenantID, key.Subscriber, key.AccountType, start+i, u.ID, u.Name, u.Email)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert internal user cache: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit internal user cache: %w", err)
	}
	return nil
}

// InvalidateInternalUsers deletes the rows and the stamp of key.
func (s *Store) InvalidateInternalUsers(ctx context.Context, key domain.InternalUserKey) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteUserKey(ctx, tx, key); err != nil {
		return fmt.Errorf("invalidate internal user cache: %w", err)
	}
	return tx.Commit()
}

func deleteUserKey(ctx context.Context, tx *sqlx.Tx, key domain.InternalUserKey) error {
	for _, table := range []string{"internal_user_cache", "internal_user_cache_keys"} {
		query, args, err := sq.Delete(table).Where(keyFilter(key)).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
