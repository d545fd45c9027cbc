package fetcher

import (
	"github.com/extrame/xls"
	"github.com/rotisserie/eris"
)

// ReadXLS reads a legacy BIFF (.xls) workbook and returns all rows of the
// selected sheet. SheetName is matched against the sheet's name.
func ReadXLS(path string, opts SheetOptions) (rows [][]string, err error) {
	// extrame/xls panics on some malformed workbooks.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, eris.Errorf("xls: malformed workbook: %v", r)
		}
	}()

	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, eris.Wrap(err, "xls: open file")
	}

	sheet, err := getXLSSheet(wb, opts)
	if err != nil {
		return nil, err
	}

	maxRow := int(sheet.MaxRow)
	if opts.MaxRows > 0 && maxRow > opts.MaxRows {
		return nil, eris.Errorf("xls: more than %d rows", opts.MaxRows)
	}

	rows = make([][]string, 0, maxRow+1)
	for i := 0; i <= maxRow; i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}

	return rows, nil
}

func getXLSSheet(wb *xls.WorkBook, opts SheetOptions) (*xls.WorkSheet, error) {
	n := wb.NumSheets()
	if opts.SheetName != "" {
		for i := 0; i < n; i++ {
			if s := wb.GetSheet(i); s != nil && s.Name == opts.SheetName {
				return s, nil
			}
		}
		return nil, eris.Errorf("xls: sheet %q not found", opts.SheetName)
	}

	if opts.SheetIndex >= n {
		return nil, eris.Errorf("xls: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, n)
	}

	sheet := wb.GetSheet(opts.SheetIndex)
	if sheet == nil {
		return nil, eris.Errorf("xls: sheet index %d unreadable", opts.SheetIndex)
	}
	return sheet, nil
}
