package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog/log"
	"vn.io.arda/onboarding/internal/domain"
)

// insertBatch bounds the rows per INSERT, keeping the bound variables well
// below sqlite's limit.
const insertBatch = 500

var _ domain.TenantCache = (*Store)(nil)

type tenantRow struct {
	domain.TenantRecord
	FetchedAt string `db:"fetched_at"`
}

// LoadTenants returns the cached snapshot of the instance ordered by match
// value, and its fetched_at stamp. Both are empty when nothing is cached.
func (s *Store) LoadTenants(ctx context.Context, instanceID string) ([]domain.TenantRecord, string, error) {
	query, args, err := sq.Select("tenant_id", "subscriber", "tenant_name", "match_value", "fetched_at").
		From("tenant_cache").
		Where(sq.Eq{"instance_id": instanceID}).
		OrderBy("match_value").
		ToSql()
	if err != nil {
		return nil, "", err
	}

	var rows []tenantRow
	if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, "", fmt.Errorf("load tenant cache %s: %w", instanceID, err)
	}
	if len(rows) == 0 {
		return []domain.TenantRecord{}, "", nil
	}

	records := make([]domain.TenantRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.TenantRecord)
	}
	return records, rows[0].FetchedAt, nil
}

// SaveTenants replaces the instance snapshot in one transaction. Records are
// de-duplicated by match value first; an empty result keeps the old snapshot.
func (s *Store) SaveTenants(ctx context.Context, instanceID string, records []domain.TenantRecord) error {
	unique := domain.DedupeTenants(records)
	if len(unique) == 0 {
		log.Debug().Str("instance", instanceID).Msg("empty tenant set, keeping cached snapshot")
		return nil
	}
	fetchedAt := s.clock.Now().UTC().Format(time.RFC3339Nano)

	s.Mu.Lock()
	defer s.Mu.Unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tenant_cache WHERE instance_id = ?", instanceID); err != nil {
		return fmt.Errorf("clear tenant cache %s: %w", instanceID, err)
	}

	for start := 0; start < len(unique); start += insertBatch {
		end := min(start+insertBatch, len(unique))
		q := sq.Insert("tenant_cache").
			Columns("instance_id", "match_value", "tenant_id", "tenant_name", "subscriber", "fetched_at")
		for _, r := range unique[start:end] {
			q = q.Values(instanceID, r.MatchValue, r.TenantID, r.TenantName, r.Subscriber, fetchedAt)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert tenant cache %s: %w", instanceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tenant cache %s: %w", instanceID, err)
	}
	log.Debug().Str("instance", instanceID).Int("tenants", len(unique)).Msg("tenant cache replaced")
	return nil
}

// InvalidateTenants deletes the instance snapshot.
func (s *Store) InvalidateTenants(ctx context.Context, instanceID string) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if _, err := s.DB.ExecContext(ctx, "DELETE FROM tenant_cache WHERE instance_id = ?", instanceID); err != nil {
		return fmt.Errorf("invalidate tenant cache %s: %w", instanceID, err)
	}
	return nil
}

// SubscriberForTenant returns the subscriber of a cached row carrying tenantID.
func (s *Store) SubscriberForTenant(ctx context.Context, instanceID, tenantID string) (string, bool, error) {
	query, args, err := sq.Select("subscriber").
		From("tenant_cache").
		Where(sq.Eq{"instance_id": instanceID, "tenant_id": tenantID}).
		Where(sq.NotEq{"subscriber": ""}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", false, err
	}

	var subscriber string
	err = s.DB.GetContext(ctx, &subscriber, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup cached subscriber: %w", err)
	}
	return subscriber, true, nil
}
