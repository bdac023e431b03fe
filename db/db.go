package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var noCtx = context.Background()

// PgxIface is the subset of pgxpool.Pool the store uses. Tests substitute
// a pgxmock pool for it.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Database struct {
	Conn PgxIface
}

// NewDatabase opens a connection pool and verifies connectivity, retrying
// up to attempts times with the given delay between attempts.
// The connection string should look like postgresql://localhost:5432/medications_bot?user=admn&password=passwd
func NewDatabase(connStr string, attempts int, delay time.Duration) (*Database, error) {
	pool, err := pgxpool.New(noCtx, connStr)
	if err != nil {
		return nil, errors.Wrap(err, "failed creating connection pool")
	}

	if err := pingWithRetry(pool, attempts, delay); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed connecting to database")
	}

	return &Database{Conn: pool}, nil
}

// pingWithRetry verifies connectivity, waiting delay between failed
// attempts. The last failure returns immediately.
func pingWithRetry(conn PgxIface, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = conn.Ping(noCtx); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}

	return err
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS medications (
	id SERIAL PRIMARY KEY,
	user_id BIGINT,
	medicine_name TEXT,
	dosage TEXT,
	time TEXT,
	frequency TEXT,
	active BOOLEAN DEFAULT TRUE,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_user_id ON medications(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_time ON medications(time)`,
	`CREATE INDEX IF NOT EXISTS idx_active ON medications(active)`,
}

// Init bootstraps the medications table and its indexes.
func (d *Database) Init() error {
	for _, stmt := range schemaStatements {
		if _, err := d.Conn.Exec(noCtx, stmt); err != nil {
			return errors.Wrap(err, "failed initializing schema")
		}
	}
	return nil
}

func (d *Database) Close() {
	d.Conn.Close()
}
