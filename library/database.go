package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/mattn/go-sqlite3"
)

// Options selects the backing store.
type Options struct {
	Driver string // "sqlite3" (default) or "pgx"
	DSN    string
}

// Database provides the ledger and catalog operations over a SQL store.
type Database struct {
	db      *sql.DB
	dialect Dialect
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string) (*Database, error) {
	return Open(context.Background(), Options{Driver: SQLite.Driver, DSN: dbPath})
}

// Open connects to the store described by opts and applies migrations.
func Open(ctx context.Context, opts Options) (*Database, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	dsn := opts.DSN
	if dialect.Name == SQLite.Name {
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	if dialect.Name == SQLite.Name {
		// SQLite only supports one writer at a time.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}

	if err := applyMigrations(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db, dialect: dialect}, nil
}

// sqliteDSN turns a bare path into a DSN with busy_timeout and foreign keys
// enabled, creating the parent directory so first-run succeeds.
func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("sqlite path: %w", ErrValidation)
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create db dir: %w", err)
		}
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path), nil
}

// Close releases the connection pool.
func (d *Database) Close() error { return d.db.Close() }

// Dialect reports which SQL dialect the store speaks.
func (d *Database) Dialect() Dialect { return d.dialect }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

// migrations[v] upgrades a schema at version v to v+1.
var migrations = []func(Dialect) []string{
	schemaV1,
	auditSeqV2,
}

func schemaVersion() int { return len(migrations) }

func schemaV1(d Dialect) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS clients (
            client_id TEXT PRIMARY KEY,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS librarians (
            librarian_id TEXT PRIMARY KEY,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS library_items (
            item_id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            creator TEXT,
            isbn TEXT,
            genre TEXT,
            format TEXT NOT NULL DEFAULT 'book',
            max_checkout_days INTEGER NOT NULL DEFAULT 14,
            status TEXT NOT NULL DEFAULT 'available',
            image_url TEXT,
            last_updated_by TEXT REFERENCES librarians(librarian_id),
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS item_transactions (
            seq ` + d.serialPK + `,
            transaction_id TEXT NOT NULL UNIQUE,
            client_id TEXT REFERENCES clients(client_id),
            librarian_id TEXT REFERENCES librarians(librarian_id),
            item_id TEXT NOT NULL REFERENCES library_items(item_id),
            transaction_type TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            CHECK ((client_id IS NULL) <> (librarian_id IS NULL))
        )`,
		`CREATE INDEX IF NOT EXISTS idx_item_transactions_client
            ON item_transactions(client_id, item_id, transaction_type)`,
		`CREATE INDEX IF NOT EXISTS idx_item_transactions_librarian
            ON item_transactions(librarian_id, item_id, transaction_type)`,
		`CREATE INDEX IF NOT EXISTS idx_item_transactions_item
            ON item_transactions(item_id)`,
		// item_id carries no foreign key: audit rows outlive the item.
		`CREATE TABLE IF NOT EXISTS item_audit_logs (
            audit_id TEXT PRIMARY KEY,
            item_id TEXT NOT NULL,
            librarian_id TEXT NOT NULL REFERENCES librarians(librarian_id),
            transaction_type TEXT NOT NULL,
            description TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
	}
}

// auditSeqV2 gives audit entries a serial seq, rebuilding the table with
// existing rows numbered in their previous order.
func auditSeqV2(d Dialect) []string {
	return []string{
		`CREATE TABLE item_audit_logs_next (
            seq ` + d.serialPK + `,
            audit_id TEXT NOT NULL UNIQUE,
            item_id TEXT NOT NULL,
            librarian_id TEXT NOT NULL REFERENCES librarians(librarian_id),
            transaction_type TEXT NOT NULL,
            description TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		`INSERT INTO item_audit_logs_next (audit_id, item_id, librarian_id, transaction_type, description, created_at)
            SELECT audit_id, item_id, librarian_id, transaction_type, description, created_at
            FROM item_audit_logs ORDER BY created_at, audit_id`,
		`DROP TABLE item_audit_logs`,
		`ALTER TABLE item_audit_logs_next RENAME TO item_audit_logs`,
		`CREATE INDEX IF NOT EXISTS idx_item_audit_logs_item ON item_audit_logs(item_id)`,
	}
}

func applyMigrations(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, pragma := range d.pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return fmt.Errorf("create meta: %w", err)
	}

	var raw string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='schema_version'`).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	current, _ := strconv.Atoi(raw)
	if current >= schemaVersion() {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for v := current; v < schemaVersion(); v++ {
		for _, stmt := range migrations[v](d) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %d: %w", v+1, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, d.Rebind(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value`), strconv.Itoa(schemaVersion())); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Sessions and transactions
// ---------------------------------------------------------------------------

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session runs ?-placeholder queries against a pool or a transaction.
type session struct {
	q       querier
	dialect Dialect
}

func (s session) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s session) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s session) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (d *Database) session() session { return session{q: d.db, dialect: d.dialect} }

// withTx runs fn inside one transaction. It commits when fn returns nil and
// rolls back otherwise, returning fn's error unchanged; a failed rollback is
// joined to it. Once begun, the scope no longer observes ctx cancellation so
// a failure always rolls back fully before control returns.
func (d *Database) withTx(ctx context.Context, fn func(ctx context.Context, s session) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	// database/sql rolls a tx back when its begin context ends.
	ctx = context.WithoutCancel(ctx)
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, session{q: tx, dialect: d.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, storeError("rollback", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeError("commit", err)
	}
	return nil
}

// rowsAffected reads the affected row count of res.
func rowsAffected(op string, res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeError(op, err)
	}
	return n, nil
}
