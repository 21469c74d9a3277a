// Package sqlite implements the control plane's persistent state on SQLite
// (modernc.org/sqlite, pure Go, no CGO).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/learnreward/rewardplane/internal/domain"
	_ "modernc.org/sqlite"
)

// FileName is the state database inside the data directory.
const FileName = "state.db"

// DB is the state store. It holds a single connection so that every
// transaction is serialized against every other one.
type DB struct {
	db   *sql.DB
	path string
}

// Compile-time interface check.
var _ domain.Store = (*DB)(nil)

// Open opens (or creates) the state database in dir and applies migrations.
func Open(dir string) (*DB, error) {
	return OpenWith(filepath.Join(dir, FileName), Migrations())
}

// OpenWith opens the database at path with the given schema. The local
// ledger uses it to keep its own file next to the state database.
func OpenWith(path string, migrations []string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	db := &DB{db: sqlDB, path: path}
	if err := db.migrate(migrations); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// SQL exposes the underlying handle for packages that share the file
// layout but own their own schema.
func (db *DB) SQL() *sql.DB { return db.db }

// Close releases the connection.
func (db *DB) Close() error {
	if db == nil || db.db == nil {
		return nil
	}
	return db.db.Close()
}

func (db *DB) migrate(stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

// RunInTx runs fn inside one transaction. fn's writes commit when it
// returns nil and roll back otherwise.
func (db *DB) RunInTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Tx implements domain.Tx over a *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

var _ domain.Tx = (*Tx)(nil)

// ─── Encoding Helpers ───────────────────────────────────────────────────────
// SQLite integers are signed 64-bit. uint64 amounts are stored bit-cast and
// all arithmetic on them happens in Go.

func i64(v uint64) int64 { return int64(v) }
func u64(v int64) uint64 { return uint64(v) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// insertOnce runs an INSERT ... ON CONFLICT DO NOTHING and maps "no row
// written" to collision.
func (t *Tx) insertOnce(ctx context.Context, collision error, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return collision
	}
	return nil
}

// updateOne runs an UPDATE and maps "no row matched" to missing.
func (t *Tx) updateOne(ctx context.Context, missing error, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
