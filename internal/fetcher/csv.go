package fetcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

// CSVOptions configures the CSV parser.
type CSVOptions struct {
	Delimiter rune // 0 = sniff from the first line
	MaxRows   int  // 0 = unlimited
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a whole CSV document and returns its rows.
// Input is UTF-8 (an optional BOM is dropped) or, when the bytes are not
// valid UTF-8, Windows-1252 as exported by most spreadsheet tools in Brazil.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "csv: read input")
	}

	data, err := decodeText(raw)
	if err != nil {
		return nil, err
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}

		rows = append(rows, record)
		// MaxRows bounds data rows; the header is the extra one.
		if opts.MaxRows > 0 && len(rows) > opts.MaxRows+1 {
			return nil, eris.Errorf("csv: more than %d rows", opts.MaxRows)
		}
	}
}

func decodeText(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return raw, nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, eris.Wrap(err, "csv: decode windows-1252")
	}
	return out, nil
}

// sniffDelimiter counts candidate separators on the first non-blank line
// outside quotes and picks the most frequent one, defaulting to comma.
func sniffDelimiter(data []byte) rune {
	var line []byte
	for len(data) > 0 {
		line, data, _ = bytes.Cut(data, []byte{'\n'})
		if len(bytes.TrimSpace(line)) > 0 {
			break
		}
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, r := range string(line) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case inQuotes:
		case r == ';', r == ',', r == '\t':
			counts[r]++
		}
	}

	best, bestN := ',', 0
	for _, r := range []rune{';', ',', '\t'} {
		if counts[r] > bestN {
			best, bestN = r, counts[r]
		}
	}
	return best
}
