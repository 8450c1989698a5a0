package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WorkbookSource reads one sheet of an Excel export and hands it on as CSV
// text.
type WorkbookSource struct {
	Path  string
	Sheet string
}

func (s *WorkbookSource) Name() string {
	if s.Sheet != "" {
		return s.Path + "#" + s.Sheet
	}
	return s.Path
}

func (s *WorkbookSource) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open workbook %q: %w", s.Path, err)
	}
	defer f.Close()

	return sheetText(f, s.Sheet)
}

// WorkbookText converts an uploaded workbook to CSV text. An empty sheet name
// selects the first sheet.
func WorkbookText(r io.Reader, sheet string) (string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return sheetText(f, sheet)
}

func sheetText(f *excelize.File, sheet string) (string, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return "", fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	var b strings.Builder
	w := csv.NewWriter(&b)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cellBreaks.Replace(cell)
		}
		if err := w.Write(cells); err != nil {
			return "", fmt.Errorf("failed to encode sheet %q: %w", sheet, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to encode sheet %q: %w", sheet, err)
	}
	return b.String(), nil
}

// Cells may hold line breaks, which the row splitter would treat as new rows.
var cellBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
