package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/retifica-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS declarations (
	id            TEXT PRIMARY KEY,
	entity        TEXT NOT NULL,
	source_year   TEXT NOT NULL,
	target_year   TEXT NOT NULL,
	source_number TEXT NOT NULL,
	target_number TEXT NOT NULL,
	nature_code   TEXT NOT NULL DEFAULT '',
	filename      TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_declarations_entity ON declarations(entity);
CREATE INDEX IF NOT EXISTS idx_declarations_created_at ON declarations(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordDeclaration(ctx context.Context, d *model.Declaration) error {
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO declarations (id, entity, source_year, target_year, source_number, target_number, nature_code, filename, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Entity, d.SourceYear, d.TargetYear, d.SourceNumber, d.TargetNumber, d.NatureCode, d.Filename, d.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert declaration")
}

func (s *SQLiteStore) ListDeclarations(ctx context.Context, filter DeclarationFilter) ([]model.Declaration, error) {
	query := `SELECT id, entity, source_year, target_year, source_number, target_number, nature_code, filename, created_at
		FROM declarations WHERE 1=1`
	args := []any{}

	if filter.Entity != "" {
		query += ` AND entity = ?`
		args = append(args, filter.Entity)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list declarations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan declaration")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list declarations iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDeclaration(row scannable) (model.Declaration, error) {
	var d model.Declaration
	err := row.Scan(&d.ID, &d.Entity, &d.SourceYear, &d.TargetYear, &d.SourceNumber, &d.TargetNumber,
		&d.NatureCode, &d.Filename, &d.CreatedAt)
	return d, err
}
