// Package sqlite is the local store: the read-only customer and instance
// tables owned by the CRUD layer, and the tenant and internal-user caches.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// InMemory is the path of a private in-memory database.
const InMemory = ":memory:"

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps the local sqlite database. Writers hold Mu so a cache
// replacement never interleaves with another one.
type Store struct {
	DB *sqlx.DB
	Mu sync.Mutex

	clock clock.Clock
}

// Open opens (creating when needed) the database at path and applies
// pending migrations. clk stamps fetched_at on cache writes.
func Open(ctx context.Context, path string, clk clock.Clock) (*Store, error) {
	dsn := path
	if path != InMemory {
		dsn = path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == InMemory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	s := &Store{DB: db, clock: clk}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// migrate runs every embedded script whose numeric prefix is above the
// database's user_version, each in its own transaction.
func (s *Store) migrate(ctx context.Context) error {
	list, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })

	var current int
	if err := s.DB.GetContext(ctx, &current, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, f := range list {
		v, err := scriptVersion(f.Name())
		if err != nil {
			return err
		}
		if v <= current {
			continue
		}

		script, err := migrations.ReadFile("migrations/" + f.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f.Name(), err)
		}

		tx, err := s.DB.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(script)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", f.Name(), err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
			tx.Rollback()
			return fmt.Errorf("bump user_version to %d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		current = v
		log.Info().Str("migration", f.Name()).Msg("local store migration applied")
	}
	return nil
}

// scriptVersion extracts 2 from "0002_name.sql".
func scriptVersion(filename string) (int, error) {
	v, err := strconv.Atoi(strings.Split(filename, "_")[0])
	if err != nil {
		return 0, fmt.Errorf("migration %s: version prefix: %w", filename, err)
	}
	return v, nil
}
