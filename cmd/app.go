package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retifica-cli/internal/config"
	"github.com/sells-group/retifica-cli/internal/dataset"
	"github.com/sells-group/retifica-cli/internal/match"
	"github.com/sells-group/retifica-cli/internal/reconcile"
	"github.com/sells-group/retifica-cli/internal/report"
	"github.com/sells-group/retifica-cli/internal/store"
)

// appEnv holds the dataset cache, declaration log and service shared by
// the match/serve/datasets/history commands.
type appEnv struct {
	Datasets *dataset.Store
	Store    store.Store // may be nil
	Service  *reconcile.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp validates the config for mode and wires the service. The
// declaration log is opened only when withStore is set. Callers should
// defer env.Close().
func initApp(ctx context.Context, c *config.Config, mode string, withStore bool) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	key, err := match.ParseDescriptionKey(c.Match.DescriptionKey)
	if err != nil {
		return nil, err
	}

	loader := dataset.NewLoader(dataset.LoaderOptions{
		MaxRows: c.Datasets.MaxRows,
		Workers: c.Datasets.Workers,
	})
	datasets := dataset.NewStore(c.Datasets.Dir, loader, dataset.StoreOptions{
		AutoRefresh: c.Datasets.AutoRefresh,
	})

	env := &appEnv{Datasets: datasets}
	if withStore {
		st, err := initStore(ctx, c.Store)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	renderer := report.NewRenderer(report.Options{
		LogoPath:  c.Report.LogoPath,
		Signature: c.Report.Signature,
	})
	env.Service = reconcile.New(datasets, match.NewMatcher(key), renderer, env.Store)

	zap.L().Debug("app initialized",
		zap.String("datasets_dir", c.Datasets.Dir),
		zap.String("description_key", string(key)),
		zap.Bool("store", env.Store != nil),
	)
	return env, nil
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	st, err := store.Open(ctx, sc.Driver, sc.DSN(), &store.PoolConfig{
		MaxConns: sc.MaxConns,
		MinConns: sc.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open declaration log")
	}
	return st, nil
}
