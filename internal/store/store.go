// Package store persists the log of emitted rectification declarations.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/retifica-cli/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// defaultListLimit caps ListDeclarations when no limit is given.
const defaultListLimit = 100

// DeclarationFilter specifies criteria for listing declarations.
type DeclarationFilter struct {
	Entity string `json:"entity,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the declaration log.
type Store interface {
	// RecordDeclaration inserts d, assigning its ID and CreatedAt.
	RecordDeclaration(ctx context.Context, d *model.Declaration) error
	// ListDeclarations returns declarations newest first.
	ListDeclarations(ctx context.Context, filter DeclarationFilter) ([]model.Declaration, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store for driver and applies migrations. dsn is a
// file path for sqlite and a connection string for postgres.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(driver) {
	case "", DriverSQLite:
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
