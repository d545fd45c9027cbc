package dataset

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/retifica-cli/internal/fetcher"
	"github.com/sells-group/retifica-cli/internal/model"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// AutoRefresh rescans the directory on every Get and reloads when the
	// fingerprint of its files changed.
	AutoRefresh bool
}

// Store owns the cached YearDataset of one directory. The dataset handed
// out is never mutated; a reload swaps in a new one.
//
// The cache is invalidated by Invalidate, by a fingerprint change when
// AutoRefresh is set, and by Watch while it runs.
type Store struct {
	dir    string
	loader *Loader
	opts   StoreOptions
	group  singleflight.Group

	mu          sync.RWMutex
	data        model.YearDataset
	fingerprint string
	stale       bool
	loadedAt    time.Time
	// gen counts invalidations; loadedGen is the generation data was
	// scanned at.
	gen       uint64
	loadedGen uint64

	afterScan func() // test hook
}

// NewStore creates a Store over dir. Nothing is read until the first Get.
func NewStore(dir string, loader *Loader, opts StoreOptions) *Store {
	return &Store{dir: dir, loader: loader, opts: opts}
}

// Dir returns the dataset directory.
func (s *Store) Dir() string {
	return s.dir
}

// Get returns the cached dataset, loading it first when missing or stale.
// The load runs detached from ctx so a cancelled caller does not fail the
// callers sharing it; ctx only bounds how long this caller waits.
func (s *Store) Get(ctx context.Context) (model.YearDataset, error) {
	s.mu.RLock()
	data, fp, stale, gen := s.data, s.fingerprint, s.stale, s.gen
	s.mu.RUnlock()

	if data != nil && !stale {
		if !s.opts.AutoRefresh {
			return data, nil
		}
		files, err := s.loader.Scan(s.dir)
		if err != nil {
			zap.L().Warn("dataset: rescan failed, serving cached data", zap.Error(err))
			return data, nil
		}
		if Fingerprint(files) == fp {
			return data, nil
		}
		zap.L().Info("dataset: directory changed, reloading", zap.String("dir", s.dir))
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("load-"+strconv.FormatUint(gen, 10), func() (any, error) {
		return s.reload(loadCtx, gen)
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "dataset: load")
	case res := <-ch:
		if res.Err != nil {
			if data != nil {
				zap.L().Warn("dataset: reload failed, serving cached data", zap.Error(res.Err))
				return data, nil
			}
			return nil, res.Err
		}
		return res.Val.(model.YearDataset), nil
	}
}

// reload scans and parses the directory as of generation gen. The result
// is swapped in unless a newer generation was loaded meanwhile, and the
// cache stays stale when an invalidation arrived during the load.
func (s *Store) reload(ctx context.Context, gen uint64) (model.YearDataset, error) {
	files, err := s.loader.Scan(s.dir)
	if err != nil {
		return nil, err
	}
	if s.afterScan != nil {
		s.afterScan()
	}
	data, err := s.loader.LoadFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil && gen < s.loadedGen {
		return data, nil
	}
	s.data = data
	s.fingerprint = Fingerprint(files)
	s.loadedGen = gen
	s.stale = s.gen != gen
	s.loadedAt = time.Now()

	return data, nil
}

// Invalidate marks the cache stale; the next Get reloads.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.gen++
	s.stale = true
	s.mu.Unlock()
}

// LoadedAt returns when the cached dataset was built, zero if never.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Watch invalidates the cache whenever a tabular file in the directory is
// created, written, removed or renamed. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "dataset: create watcher")
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(s.dir); err != nil {
		return eris.Wrapf(err, "dataset: watch %s", s.dir)
	}

	zap.L().Info("dataset: watching directory", zap.String("dir", s.dir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !fetcher.IsTableFile(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				zap.L().Debug("dataset: change detected", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
				s.Invalidate()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("dataset: watcher error", zap.Error(err))
		}
	}
}
