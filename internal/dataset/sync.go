package dataset

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retifica-cli/internal/fetcher"
	"github.com/sells-group/retifica-cli/internal/resilience"
)

// Source is a remote file holding one fiscal year's expense table.
type Source struct {
	Year string `yaml:"year" mapstructure:"year"`
	URL  string `yaml:"url" mapstructure:"url"`
}

// SyncResult reports what happened to one source.
type SyncResult struct {
	Source Source
	Path   string
	Bytes  int64
	Err    error
}

// Syncer downloads sources into the dataset directory.
type Syncer struct {
	dir      string
	http     *fetcher.HTTPFetcher
	ftp      *fetcher.FTPFetcher
	breakers *resilience.Breakers
}

// NewSyncer creates a Syncer writing into dir. Downloads from a host are
// skipped once its breaker opens; nil breakers disables that.
func NewSyncer(dir string, httpF *fetcher.HTTPFetcher, ftpF *fetcher.FTPFetcher, breakers *resilience.Breakers) *Syncer {
	return &Syncer{dir: dir, http: httpF, ftp: ftpF, breakers: breakers}
}

// download runs dl.DownloadToFile through the breaker of host.
func (s *Syncer) download(ctx context.Context, dl fetcher.Downloader, host, rawURL, dest string) (int64, error) {
	if s.breakers == nil {
		return dl.DownloadToFile(ctx, rawURL, dest)
	}
	var n int64
	err := s.breakers.Get(host).Execute(ctx, func(ctx context.Context) error {
		var err error
		n, err = dl.DownloadToFile(ctx, rawURL, dest)
		return err
	})
	return n, err
}

// Sync downloads every source in order. A failing source does not stop the
// others; its error is reported in its result. The returned error is set
// only when ctx ends or the directory cannot be created.
func (s *Syncer) Sync(ctx context.Context, sources []Source) ([]SyncResult, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "dataset: create dir %s", s.dir)
	}

	results := make([]SyncResult, 0, len(sources))
	for _, src := range sources {
		if ctx.Err() != nil {
			return results, eris.Wrap(ctx.Err(), "dataset: sync cancelled")
		}

		res := SyncResult{Source: src}
		res.Path, res.Bytes, res.Err = s.syncOne(ctx, src)
		if res.Err != nil {
			zap.L().Error("dataset: sync failed",
				zap.String("year", src.Year),
				zap.String("url", src.URL),
				zap.Error(res.Err),
			)
		} else {
			zap.L().Info("dataset: synced",
				zap.String("year", src.Year),
				zap.String("path", res.Path),
				zap.Int64("bytes", res.Bytes),
			)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Syncer) syncOne(ctx context.Context, src Source) (string, int64, error) {
	if y, ok := YearFromName(src.Year); !ok || y != src.Year {
		return "", 0, eris.Errorf("dataset: invalid year %q", src.Year)
	}

	u, err := url.Parse(src.URL)
	if err != nil {
		return "", 0, eris.Wrap(err, "dataset: parse source url")
	}
	remoteName := path.Base(u.Path)

	dl, err := fetcher.ForURL(src.URL, s.http, s.ftp)
	if err != nil {
		return "", 0, err
	}

	if fetcher.IsZIP(remoteName) {
		return s.syncArchive(ctx, dl, u.Host, src)
	}
	if !fetcher.IsTableFile(remoteName) {
		return "", 0, eris.Errorf("dataset: %s is not a csv, xls, xlsx or zip file", remoteName)
	}

	dest := filepath.Join(s.dir, TargetName(remoteName, src.Year))
	n, err := s.download(ctx, dl, u.Host, src.URL, dest)
	if err != nil {
		return "", n, eris.Wrapf(err, "dataset: download %s", src.URL)
	}
	return dest, n, nil
}

// syncArchive downloads a ZIP holding exactly one tabular file and moves
// that file into the dataset directory.
func (s *Syncer) syncArchive(ctx context.Context, dl fetcher.Downloader, host string, src Source) (string, int64, error) {
	tmpDir, err := os.MkdirTemp(s.dir, ".sync-")
	if err != nil {
		return "", 0, eris.Wrap(err, "dataset: create temp dir")
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck

	archive := filepath.Join(tmpDir, "download.zip")
	if _, err := s.download(ctx, dl, host, src.URL, archive); err != nil {
		return "", 0, eris.Wrapf(err, "dataset: download %s", src.URL)
	}

	extractDir := filepath.Join(tmpDir, "x")
	if err := os.Mkdir(extractDir, 0o755); err != nil {
		return "", 0, eris.Wrap(err, "dataset: create extract dir")
	}
	files, err := fetcher.ExtractZIP(archive, extractDir, fetcher.IsTableFile)
	if err != nil {
		return "", 0, err
	}
	if len(files) != 1 {
		return "", 0, eris.Errorf("dataset: expected exactly 1 tabular file in archive, got %d", len(files))
	}

	info, err := os.Stat(files[0])
	if err != nil {
		return "", 0, eris.Wrap(err, "dataset: stat extracted file")
	}
	dest := filepath.Join(s.dir, TargetName(filepath.Base(files[0]), src.Year))
	if err := os.Rename(files[0], dest); err != nil {
		return "", 0, eris.Wrap(err, "dataset: move extracted file")
	}
	return dest, info.Size(), nil
}

// TargetName is the local file name for a downloaded file of the given
// year. Names already carrying that year are kept; any other name becomes
// despesas_<year>.<ext> so the loader attributes it to the right year.
func TargetName(remoteName, year string) string {
	if y, ok := YearFromName(remoteName); ok && y == year {
		return remoteName
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(remoteName), "."))
	return fmt.Sprintf("despesas_%s.%s", year, ext)
}
