package directory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"vn.io.arda/onboarding/internal/domain"
	"vn.io.arda/onboarding/internal/schema"
)

// conventionalTenantColumns are tried after the configured tenant column.
var conventionalTenantColumns = []string{"tenantId", "tenantIds"}

// IDLookup is one role or group id resolution.
type IDLookup struct {
	Table      schema.LookupTable
	TenantID   string
	Subscriber string
}

// TenantColumnCandidates returns the configured column followed by the
// conventional singular and plural names, without duplicates.
func TenantColumnCandidates(configured string) []string {
	candidates := make([]string, 0, 1+len(conventionalTenantColumns))
	seen := make(map[string]struct{})
	for _, c := range append([]string{configured}, conventionalTenantColumns...) {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		candidates = append(candidates, c)
	}
	return candidates
}

// ResolveIDs returns the ids of the lookup table rows belonging to the tenant,
// filtered by the table's default names when configured and ordered by name.
//
// Each candidate tenant column is tried in order. An undefined-column error
// moves on to the next candidate; any other error ends the lookup. Failures
// are logged and yield an empty list: role and group ids only fill defaults.
func ResolveIDs(ctx context.Context, q Querier, l IDLookup) []string {
	t := l.Table
	if t.ID == "" || t.Tenant == "" {
		return []string{}
	}
	if len(t.DefaultNames) > 0 && t.Name == "" {
		log.Error().Str("table", t.Table.String()).Msg("name column is required to filter by default names")
		return []string{}
	}

	var probeErrs error
	for _, column := range TenantColumnCandidates(t.Tenant) {
		ids, err := queryIDs(ctx, q, l, column)
		if err == nil {
			return ids
		}
		if isUndefinedColumn(err) {
			probeErrs = multierr.Append(probeErrs, err)
			continue
		}
		log.Error().Err(err).Str("table", t.Table.String()).Str("column", column).Msg("id lookup failed")
		return []string{}
	}

	log.Error().
		Err(fmt.Errorf("%w: %v", domain.ErrSchemaProbeExhausted, probeErrs)).
		Str("table", t.Table.String()).
		Strs("columns", TenantColumnCandidates(t.Tenant)).
		Msg("id lookup failed for every tenant column")
	return []string{}
}

func queryIDs(ctx context.Context, q Querier, l IDLookup, tenantColumn string) ([]string, error) {
	t := l.Table
	b := schema.Builder().
		Select(schema.Text(t.ID)).
		From(t.Table.Quoted()).
		Where(schema.Match(tenantColumn, t.TenantMode, l.TenantID))
	if t.Subscriber != "" && l.Subscriber != "" {
		b = b.Where(schema.Eq(t.Subscriber, l.Subscriber))
	}
	if len(t.DefaultNames) > 0 {
		b = b.Where(schema.AnyOf(t.Name, t.DefaultNames))
	}
	if t.Name != "" {
		b = b.OrderBy(schema.Ident(t.Name))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id *string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if id != nil && *id != "" {
			ids = append(ids, *id)
		}
	}
	return ids, rows.Err()
}
