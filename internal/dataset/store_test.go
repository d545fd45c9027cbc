package dataset

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetCachesDataset(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "despesas_2024.csv", testRow("A", "1", "x", "339039", "y"))

	s := NewStore(dir, NewLoader(LoaderOptions{}), StoreOptions{})
	assert.True(t, s.LoadedAt().IsZero())

	first, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, s.LoadedAt().IsZero())

	// New files are ignored until the cache is invalidated.
	writeCSV(t, dir, "despesas_2025.csv", testRow("A", "2", "x", "339039", "y"))
	second, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, second.Years())

	t1, _ := first.Table("2024")
	t2, _ := second.Table("2024")
	assert.Same(t, t1, t2)
}

func TestStore_Invalidate(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "despesas_2024.csv", testRow("A", "1", "x", "339039", "y"))

	s := NewStore(dir, NewLoader(LoaderOptions{}), StoreOptions{})
	_, err := s.Get(context.Background())
	require.NoError(t, err)

	writeCSV(t, dir, "despesas_2025.csv", testRow("A", "2", "x", "339039", "y"))
	s.Invalidate()

	ds, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "2025"}, ds.Years())
}

func TestStore_AutoRefreshOnFingerprintChange(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "despesas_2024.csv", testRow("A", "1", "x", "339039", "y"))

	s := NewStore(dir, NewLoader(LoaderOptions{}), StoreOptions{AutoRefresh: true})
	first, err := s.Get(context.Background())
	require.NoError(t, err)

	// Unchanged directory keeps the same tables.
	again, err := s.Get(context.Background())
	require.NoError(t, err)
	t1, _ := first.Table("2024")
	t2, _ := again.Table("2024")
	assert.Same(t, t1, t2)

	writeCSV(t, dir, "despesas_2025.csv", testRow("A", "2", "x", "339039", "y"))
	ds, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "2025"}, ds.Years())
}

// blockFirstLoad makes the first reload of s wait after its directory scan
// until release is closed. entered is closed once that load is waiting.
func blockFirstLoad(s *Store) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var blocked atomic.Bool
	s.afterScan = func() {
		if blocked.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
	}
	return entered, release
}

type getResult struct {
	years []string
	err   error
}

func getAsync(ctx context.Context, s *Store) <-chan getResult {
	out := make(chan getResult, 1)
	go func() {
		ds, err := s.Get(ctx)
		out <- getResult{years: ds.Years(), err: err}
	}()
	return out
}

func TestStore_InvalidateDuringLoadIsKept(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "despesas_2024.csv", testRow("A", "1", "x", "339039", "y"))

	s := NewStore(dir, NewLoader(LoaderOptions{}), StoreOptions{})
	entered, release := blockFirstLoad(s)

	first := getAsync(context.Background(), s)
	<-entered

	writeCSV(t, dir, "despesas_2025.csv", testRow("A", "2", "x", "339039", "y"))
	s.Invalidate()
	close(release)

	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, []string{"2024"}, r.years)

	ds, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "2025"}, ds.Years())
}

func TestStore_GetAfterInvalidateStartsFreshLoad(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "despesas_2024.csv", testRow("A", "1", "x", "339039", "y"))

	s := NewStore(dir, NewLoader(LoaderOptions{}), StoreOptions{})
	entered, release := blockFirstLoad(s)

	first := getAsync(context.Background(), s)
	<-entered

	writeCSV(t, dir, "despesas_2025.csv", testRow("A", "2", "x", "339039", "y"))
	s.Invalidate()

	// The blocked load is not joined.
	ds, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "2025"}, ds.Years())

	close(release)
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, []string{"2024"}, r.years)

	// The older load finishing last does not replace the newer data.
	ds, err = s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "2025"}, ds.Years())
}

func TestStore_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "despesas_2024.csv", testRow("A", "1", "x", "339039", "y"))

	s := NewStore(dir, NewLoader(LoaderOptions{}), StoreOptions{})
	entered, release := blockFirstLoad(s)

	ctx, cancel := context.WithCancel(context.Background())
	first := getAsync(ctx, s)
	<-entered
	second := getAsync(context.Background(), s)

	cancel()
	r := <-first
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "context canceled")

	close(release)
	r = <-second
	require.NoError(t, r.err)
	assert.Equal(t, []string{"2024"}, r.years)
	assert.False(t, s.LoadedAt().IsZero())
}

func TestStore_MissingDirIsError(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"), NewLoader(LoaderOptions{}), StoreOptions{})
	_, err := s.Get(context.Background())
	require.Error(t, err)
}

func TestStore_ServesCachedDataWhenReloadFails(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "dados")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeCSV(t, dir, "despesas_2024.csv", testRow("A", "1", "x", "339039", "y"))

	s := NewStore(dir, NewLoader(LoaderOptions{}), StoreOptions{})
	_, err := s.Get(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	s.Invalidate()

	ds, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024"}, ds.Years())
}

func TestStore_WatchInvalidates(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "despesas_2024.csv", testRow("A", "1", "x", "339039", "y"))

	s := NewStore(dir, NewLoader(LoaderOptions{}), StoreOptions{})
	_, err := s.Get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	require.Eventually(t, func() bool {
		writeCSV(t, dir, "despesas_2025.csv", testRow("A", "2", "x", "339039", "y"))
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.stale
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	ds, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "2025"}, ds.Years())
}

func TestStore_WatchMissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"), NewLoader(LoaderOptions{}), StoreOptions{})
	err := s.Watch(context.Background())
	require.Error(t, err)
}
