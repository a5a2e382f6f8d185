package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ist-dresden/composum-platform-sub002/internal/content"
	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version.
//
//	0 - tables only
//	1 - unique index on nodes.uuid
const schemaVersion = 1

// Store keeps the live content tree, the version archive captured from it
// and the release records of each site in one SQLite database.
type Store struct {
	db         *sql.DB
	types      *typesys.Registry
	versionIDs IDGenerator
}

var _ content.Accessor = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTypes sets the node type registry. Defaults to typesys.Default().
func WithTypes(r *typesys.Registry) Option {
	return func(s *Store) { s.types = r }
}

// WithVersionIDs sets the generator for archive version ids. Defaults
// to UUIDv7Generator.
func WithVersionIDs(g IDGenerator) Option {
	return func(s *Store) { s.versionIDs = g }
}

// Open opens the database at path, creating it and the root node if
// needed. The path ":memory:" yields a private in-memory database.
//
// Every connection runs in WAL mode with synchronous=NORMAL, a 5s busy
// timeout and foreign keys on. Opening an existing database again is safe.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// A memory database exists per connection.
	conns := 4
	if path == ":memory:" {
		conns = 1
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(min(conns, 2))

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, types: typesys.Default(), versionIDs: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureRoot(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const pragmas = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

func dsn(path string) string {
	switch {
	case path == ":memory:":
		return "file::memory:?" + pragmas
	case strings.HasPrefix(path, "file:") && strings.Contains(path, "?"):
		return path + "&" + pragmas
	case strings.HasPrefix(path, "file:"):
		return path + "?" + pragmas
	default:
		return "file:" + path + "?" + pragmas
	}
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the database handle for ad hoc statements.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Types returns the registry nodes of this store are typed by.
func (s *Store) Types() *typesys.Registry {
	return s.types
}

// Query runs a raw statement. The caller closes the rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *Store) ensureRoot(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (path, parent, name, ord, primary_type, mixins, props)
		VALUES ('/', '', '', 0, 'nt:unstructured', '[]', '{}')
		ON CONFLICT(path) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("create root node: %w", err)
	}
	return nil
}

// migrate creates missing tables, then upgrades from the recorded
// user_version step by step.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	steps := []func(*sql.DB) error{addUUIDIndex}
	for v := version; v < len(steps); v++ {
		if err := steps[v](db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}
	return nil
}

// addUUIDIndex backfills the uuid index for databases older than v1.
func addUUIDIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_uuid ON nodes(uuid) WHERE uuid IS NOT NULL`)
	return err
}

func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}

// descendantRange returns bounds selecting the strict descendants of p
// as path > lo AND path < hi.
func descendantRange(p string) (lo, hi string) {
	if p == content.Root {
		return "/", "0"
	}
	return p + "/", p + "0"
}
