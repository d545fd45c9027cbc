// Package fetcher reads tabular files (CSV, XLS, XLSX) and downloads remote
// dataset files over HTTP and FTP.
package fetcher

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Downloader saves a remote resource to a local path.
type Downloader interface {
	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ForURL picks the downloader matching the URL scheme.
func ForURL(rawURL string, httpF *HTTPFetcher, ftpF *FTPFetcher) (Downloader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if httpF == nil {
			return nil, eris.New("fetcher: http downloader not configured")
		}
		return httpF, nil
	case "ftp":
		if ftpF == nil {
			return nil, eris.New("fetcher: ftp downloader not configured")
		}
		return ftpF, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
