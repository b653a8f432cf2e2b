package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"vn.io.arda/onboarding/internal/domain"
)

var _ domain.CustomerReader = (*Store)(nil)

func customerQuery() sq.SelectBuilder {
	return sq.Select(
		"c.id", "c.name", "c.first_name", "c.last_name", "c.department", "c.vendor",
		"c.contact_email", "c.instance_id", "i.name AS instance_name", "c.created_at", "c.updated_at",
	).
		From("customers c").
		LeftJoin("instances i ON i.id = c.instance_id")
}

// ListCustomers returns every local customer with its instance name.
func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	query, args, err := customerQuery().OrderBy("c.created_at", "c.id").ToSql()
	if err != nil {
		return nil, err
	}

	customers := []domain.Customer{}
	if err := s.DB.SelectContext(ctx, &customers, query, args...); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

// GetCustomer returns one customer or an error wrapping domain.ErrNotFound.
func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	query, args, err := customerQuery().Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	var c domain.Customer
	err = s.DB.GetContext(ctx, &c, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", id, err)
	}
	return &c, nil
}

// LoadInstances returns the instances keyed by id. A nil ids loads every
// instance; an empty non-nil ids loads none.
func (s *Store) LoadInstances(ctx context.Context, ids []string) (map[string]domain.Instance, error) {
	result := make(map[string]domain.Instance)
	if ids != nil && len(ids) == 0 {
		return result, nil
	}

	q := sq.Select(
		"id", "name",
		"COALESCE(pg_host, '') AS pg_host",
		"COALESCE(pg_port, '') AS pg_port",
		"COALESCE(pg_user, '') AS pg_user",
		"COALESCE(pg_password, '') AS pg_password",
	).From("instances")
	if ids != nil {
		q = q.Where(sq.Eq{"id": ids})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var instances []domain.Instance
	if err := s.DB.SelectContext(ctx, &instances, query, args...); err != nil {
		return nil, fmt.Errorf("load instances: %w", err)
	}
	for _, inst := range instances {
		result[inst.ID] = inst
	}
	return result, nil
}
