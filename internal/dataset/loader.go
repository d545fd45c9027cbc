// Package dataset loads the yearly expense tables from a directory and keeps
// them cached for queries.
package dataset

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/retifica-cli/internal/fetcher"
	"github.com/sells-group/retifica-cli/internal/model"
	"github.com/sells-group/retifica-cli/internal/normalize"
)

var yearPattern = regexp.MustCompile(`20\d{2}`)

// YearFromName returns the first 4-digit year starting with "20" in name.
func YearFromName(name string) (string, bool) {
	y := yearPattern.FindString(name)
	return y, y != ""
}

// File is a recognized dataset file.
type File struct {
	Name    string
	Path    string
	Year    string
	Size    int64
	ModTime time.Time
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	MaxRows int // data rows allowed per file; 0 = unlimited
	Workers int // files parsed concurrently; 0 = 4
}

// Loader reads every recognized file of a directory into a YearDataset.
type Loader struct {
	opts LoaderOptions
}

// NewLoader creates a Loader with the given options.
func NewLoader(opts LoaderOptions) *Loader {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Loader{opts: opts}
}

// Scan lists the recognized files of dir sorted by name: a supported
// tabular extension and a year in the file name.
func (l *Loader) Scan(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read dir %s", dir)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !fetcher.IsTableFile(e.Name()) {
			continue
		}
		year, ok := YearFromName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, File{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			Year:    year,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Load scans dir and parses every recognized file. Files that cannot be
// parsed are logged and skipped. When two files carry the same year the
// later one in name order wins.
func (l *Loader) Load(ctx context.Context, dir string) (model.YearDataset, error) {
	files, err := l.Scan(dir)
	if err != nil {
		return nil, err
	}
	return l.LoadFiles(ctx, files)
}

// LoadFiles parses files concurrently and assembles them in slice order.
func (l *Loader) LoadFiles(ctx context.Context, files []File) (model.YearDataset, error) {
	tables := make([]*model.Table, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			tbl, err := l.LoadFile(gctx, f)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("dataset: skipping unreadable file",
					zap.String("file", f.Name),
					zap.Error(err),
				)
				return nil
			}
			tables[i] = tbl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "dataset: load cancelled")
	}

	ds := make(model.YearDataset)
	for i, tbl := range tables {
		if tbl == nil {
			continue
		}
		if prev, ok := ds[tbl.Year]; ok {
			zap.L().Warn("dataset: year provided by more than one file, keeping the last",
				zap.String("year", tbl.Year),
				zap.String("dropped", prev.Source),
				zap.String("kept", files[i].Name),
			)
		}
		ds[tbl.Year] = tbl
	}

	zap.L().Info("dataset: loaded",
		zap.Int("files", len(files)),
		zap.Strings("years", ds.Years()),
	)
	return ds, nil
}

// LoadFile parses a single file into a table tagged with the file's year.
func (l *Loader) LoadFile(ctx context.Context, f File) (*model.Table, error) {
	rows, err := fetcher.ReadTable(ctx, f.Path, fetcher.TableOptions{MaxRows: l.opts.MaxRows})
	if err != nil {
		return nil, err
	}

	// The header is the first non-blank row.
	start := 0
	for start < len(rows) && blankRow(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, eris.Errorf("dataset: %s has no header row", f.Name)
	}

	cols, err := mapHeader(rows[start])
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: %s", f.Name)
	}

	tbl := &model.Table{
		Year:    f.Year,
		Source:  f.Path,
		Records: make([]model.ExpenseRecord, 0, len(rows)-start-1),
	}
	seen := make(map[string]struct{})
	for _, row := range rows[start+1:] {
		if blankRow(row) {
			continue
		}
		rec := cols.record(row, f.Year)
		tbl.Records = append(tbl.Records, rec)

		key := strings.TrimSpace(rec.Entity) + "\x00" + normalize.Text(rec.ExpenseNumber)
		if _, dup := seen[key]; dup {
			tbl.Duplicates++
		}
		seen[key] = struct{}{}
	}

	if tbl.Duplicates > 0 {
		zap.L().Warn("dataset: duplicate expense numbers, first occurrence wins",
			zap.String("file", f.Name),
			zap.Int("duplicates", tbl.Duplicates),
		)
	}
	return tbl, nil
}

// Fingerprint summarizes names, sizes and modification times of files.
// Any change to the directory's recognized files changes it.
func Fingerprint(files []File) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f.Name)
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(f.Size, 10))
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(f.ModTime.UnixNano(), 10))
		b.WriteByte('\n')
	}
	return b.String()
}
