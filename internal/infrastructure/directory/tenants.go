package directory

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog/log"
	"vn.io.arda/onboarding/internal/domain"
	"vn.io.arda/onboarding/internal/schema"
)

// TenantDirectory reads the remote tenant table. Every failure is soft:
// it is returned wrapped in domain.ErrRemoteUnavailable next to an empty
// result, and callers degrade instead of failing.
type TenantDirectory struct {
	dialer Dialer
	table  schema.TenantTable
}

// NewTenantDirectory creates a TenantDirectory.
func NewTenantDirectory(dialer Dialer, desc *schema.Descriptor) *TenantDirectory {
	return &TenantDirectory{dialer: dialer, table: desc.Tenant}
}

// FetchByKeys returns the tenants whose lower-cased match column is in keys.
// The returned map is never nil.
func (d *TenantDirectory) FetchByKeys(ctx context.Context, inst domain.Instance, keys []string) (map[string]domain.TenantRecord, error) {
	result := make(map[string]domain.TenantRecord)

	wanted := normalizeKeys(keys)
	if len(wanted) == 0 {
		return result, nil
	}

	records, err := d.query(ctx, inst, schema.LowerAnyOf(d.table.Match, wanted))
	if err != nil {
		return result, err
	}
	for _, r := range records {
		result[r.MatchValue] = r
	}
	return result, nil
}

// FetchAll returns every tenant of the instance, match values lower-cased at
// the source so later joins are case-insensitive.
func (d *TenantDirectory) FetchAll(ctx context.Context, inst domain.Instance) ([]domain.TenantRecord, error) {
	return d.query(ctx, inst, nil)
}

func (d *TenantDirectory) query(ctx context.Context, inst domain.Instance, where sq.Sqlizer) ([]domain.TenantRecord, error) {
	if !inst.HasCredentials() {
		log.Debug().Str("instance", inst.ID).Msg("instance has no postgres credentials, skipping tenant lookup")
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, ErrMissingCredentials)
	}

	conn, err := d.dialer.Dial(ctx, inst)
	if err != nil {
		log.Warn().Err(err).Str("instance", inst.ID).Msg("tenant directory unreachable")
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer conn.Close(ctx)

	q := schema.Builder().
		Select(
			schema.Text(d.table.ID),
			schema.Text(d.table.Subscriber),
			schema.Text(d.table.Name),
			schema.Lower(d.table.Match),
		).
		From(d.table.Table.Quoted())
	if where != nil {
		q = q.Where(where)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build tenant query: %v", domain.ErrRemoteUnavailable, err)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		log.Warn().Err(err).Str("instance", inst.ID).Str("table", d.table.Table.String()).Msg("tenant query failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer rows.Close()

	var records []domain.TenantRecord
	for rows.Next() {
		var tenantID, subscriber, name, match *string
		if err := rows.Scan(&tenantID, &subscriber, &name, &match); err != nil {
			return nil, fmt.Errorf("%w: scan tenant: %v", domain.ErrRemoteUnavailable, err)
		}
		key := domain.NormalizeMatchValue(domain.Deref(match))
		if tenantID == nil || key == "" {
			// Unjoinable rows are skipped; they could never be cached either.
			continue
		}
		records = append(records, domain.TenantRecord{
			TenantID:   *tenantID,
			Subscriber: domain.Deref(subscriber),
			TenantName: name,
			MatchValue: key,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return records, nil
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = domain.NormalizeMatchValue(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
