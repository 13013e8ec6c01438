package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a bundle or unit does not exist.
var ErrNotFound = errors.New("not found")

// pragmas configure every connection: WAL so `units` listings can read
// while pregen writes, and foreign keys so unit rows cannot outlive
// their bundle.
var pragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migration upgrades a catalogue created by an older schema. Versions are
// stored in PRAGMA user_version and applied in order.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{1, "index units by form digest", `CREATE INDEX IF NOT EXISTS idx_units_digest ON units(digest)`},
}

// schemaVersion is the user_version of a fully migrated catalogue.
func schemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Store is the unit catalogue.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migration progress.
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates or opens the catalogue at path. Opening an existing
// catalogue is safe; pending migrations run once.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("connect to catalogue: %w", err)
	}

	// sqlite allows one writer.
	s.db.SetMaxOpenConns(1)
	s.db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply pragmas: execute %q: %w", stmt, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return s.migrate()
}

// migrate applies every migration newer than the catalogue's
// user_version.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := s.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("set user_version %d: %w", m.version, err)
		}
		s.logger.Debug("catalogue migrated", "version", m.version, "migration", m.name)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx runs fn in a transaction, rolling back when fn fails.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// verifyPragma checks a pragma value. Used by tests.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
