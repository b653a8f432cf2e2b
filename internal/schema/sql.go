package schema

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// psql renders `$n` placeholders for the remote Postgres directories.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Builder returns the statement builder used for every remote query.
func Builder() sq.StatementBuilderType {
	return psql
}

// Ident quotes a single column name.
func Ident(column string) string {
	return pgx.Identifier{column}.Sanitize()
}

// Text selects column cast to text so ids of any type scan into strings.
func Text(column string) string {
	return Ident(column) + "::text"
}

// TextArray selects an array column cast to text[].
func TextArray(column string) string {
	return Ident(column) + "::text[]"
}

// Lower selects lower(column).
func Lower(column string) string {
	return "lower(" + Ident(column) + ")"
}

// Eq renders `column = $n`.
func Eq(column string, value any) sq.Sqlizer {
	return sq.Expr(Ident(column)+" = ?", value)
}

// AnyOf renders `column = ANY($n)` with values bound as one array parameter.
func AnyOf(column string, values []string) sq.Sqlizer {
	return sq.Expr(Ident(column)+" = ANY(?)", values)
}

// LowerAnyOf renders `lower(column) = ANY($n)`.
func LowerAnyOf(column string, values []string) sq.Sqlizer {
	return sq.Expr(Lower(column)+" = ANY(?)", values)
}

// Match renders the tenant predicate for mode.
func Match(column string, mode MatchMode, value string) sq.Sqlizer {
	if mode == AnyOfArray {
		return sq.Expr("? = ANY("+Ident(column)+")", value)
	}
	return Eq(column, value)
}

// TenantValue is the value written to a tenant column on insert: a one-element
// array for array-typed columns, the bare id otherwise.
func TenantValue(mode MatchMode, tenantID string) any {
	if mode == AnyOfArray {
		return []string{tenantID}
	}
	return tenantID
}
