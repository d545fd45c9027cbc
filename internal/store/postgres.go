package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/retifica-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const insertDeclarationSQL = `INSERT INTO declarations (id, entity, source_year, target_year, source_number, target_number, nature_code, filename, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS declarations (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity        TEXT NOT NULL,
	source_year   TEXT NOT NULL,
	target_year   TEXT NOT NULL,
	source_number TEXT NOT NULL,
	target_number TEXT NOT NULL,
	nature_code   TEXT NOT NULL DEFAULT '',
	filename      TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_declarations_entity ON declarations(entity);
CREATE INDEX IF NOT EXISTS idx_declarations_created_at ON declarations(created_at DESC);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) RecordDeclaration(ctx context.Context, d *model.Declaration) error {
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, insertDeclarationSQL,
		d.ID, d.Entity, d.SourceYear, d.TargetYear, d.SourceNumber, d.TargetNumber, d.NatureCode, d.Filename, d.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert declaration")
}

func (s *PostgresStore) ListDeclarations(ctx context.Context, filter DeclarationFilter) ([]model.Declaration, error) {
	query := `SELECT id, entity, source_year, target_year, source_number, target_number, nature_code, filename, created_at FROM declarations WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Entity != "" {
		query += fmt.Sprintf(` AND entity = $%d`, argIdx)
		args = append(args, filter.Entity)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list declarations")
	}
	defer rows.Close()

	var out []model.Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan declaration")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list declarations iterate")
}
