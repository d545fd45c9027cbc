package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Supported tabular file extensions, without the dot.
var tableExtensions = map[string]bool{
	"csv":  true,
	"xls":  true,
	"xlsx": true,
}

// IsTableFile reports whether name has a supported tabular extension.
func IsTableFile(name string) bool {
	return tableExtensions[extension(name)]
}

// TableOptions configures ReadTable.
type TableOptions struct {
	MaxRows int // data rows allowed per file; 0 = unlimited
}

// ReadTable reads the first sheet (or the whole CSV document) of a tabular
// file as rows of string cells. The format follows the file extension.
func ReadTable(ctx context.Context, path string, opts TableOptions) ([][]string, error) {
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "table: context cancelled")
	}

	switch ext := extension(path); ext {
	case "csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "table: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(ctx, f, CSVOptions{MaxRows: opts.MaxRows})
	case "xlsx":
		return ReadXLSX(path, SheetOptions{MaxRows: opts.MaxRows})
	case "xls":
		return ReadXLS(path, SheetOptions{MaxRows: opts.MaxRows})
	default:
		return nil, eris.Errorf("table: unsupported extension %q", ext)
	}
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
