package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS feeding_kv (
	key   TEXT PRIMARY KEY,
	value BYTEA NOT NULL
)`

// serializationFailure is the SQLSTATE postgres raises when a serializable
// transaction loses a conflict.
const serializationFailure = "40001"

// PostgresStore implements Store on a single key/value table. Units of work
// run at serializable isolation and are retried on serialization failures.
type PostgresStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewPostgresStore connects with the pgx driver and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to reach postgres")
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create feeding_kv table")
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) View(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, false, fn)
}

func (s *PostgresStore) Update(ctx context.Context, fn func(Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.run(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, true, fn)
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != serializationFailure || attempt == maxConflictRetries {
			return err
		}
		s.logger.WithField("attempt", attempt).Debug("Retrying postgres transaction after serialization failure")
	}
}

func (s *PostgresStore) run(ctx context.Context, opts *sql.TxOptions, writable bool, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	if err := fn(newTx(&postgresKV{ctx: ctx, tx: tx, writable: writable})); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type postgresKV struct {
	ctx      context.Context
	tx       *sql.Tx
	writable bool
}

func (p *postgresKV) get(key string) ([]byte, error) {
	query := `SELECT value FROM feeding_kv WHERE key = $1`
	if p.writable {
		query += ` FOR UPDATE`
	}

	var value []byte
	err := p.tx.QueryRowContext(p.ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errKeyNotFound
	}
	return value, err
}

func (p *postgresKV) set(key string, value []byte) error {
	if !p.writable {
		return errReadOnly
	}
	_, err := p.tx.ExecContext(p.ctx, `
		INSERT INTO feeding_kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	return err
}

func (p *postgresKV) scan(prefix string, fn func(key string, value []byte) error) error {
	rows, err := p.tx.QueryContext(p.ctx, `
		SELECT key, value FROM feeding_kv
		WHERE starts_with(key, $1)
		ORDER BY key COLLATE "C"
	`, prefix)
	if err != nil {
		return err
	}
	defer rows.Close()

	// drain before calling fn; the connection cannot run other statements
	// while rows are open
	type row struct {
		key   string
		value []byte
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.key, &r.value); err != nil {
			return err
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, r := range all {
		if err := fn(r.key, r.value); err != nil {
			return err
		}
	}
	return nil
}

// Truncate removes every record. Intended for test isolation.
func (s *PostgresStore) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE feeding_kv`)
	return errors.Wrap(err, "failed to truncate feeding_kv")
}
