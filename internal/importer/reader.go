package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is a header row plus data rows, every cell trimmed.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV reads a comma-separated table. The first record is the header;
// rows may have fewer fields than the header.
func ReadCSV(ctx context.Context, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comment = '#'

	t := &Table{}
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "importer: csv cancelled")
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "importer: read csv row")
		}
		trimAll(record)
		if t.Header == nil {
			t.Header = record
			continue
		}
		if blank(record) {
			continue
		}
		t.Rows = append(t.Rows, record)
	}
	if t.Header == nil {
		return nil, eris.New("importer: csv has no header row")
	}
	return t, nil
}

// ReadXLSX reads a worksheet. An empty sheet name selects the first sheet.
func ReadXLSX(path, sheet string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open xlsx")
	}

	var ws *xlsx.Sheet
	switch {
	case sheet != "":
		s, ok := f.Sheet[sheet]
		if !ok {
			return nil, eris.Errorf("importer: sheet %q not found", sheet)
		}
		ws = s
	case len(f.Sheets) > 0:
		ws = f.Sheets[0]
	default:
		return nil, eris.New("importer: workbook has no sheets")
	}

	t := &Table{}
	for _, row := range ws.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		trimAll(cells)
		if t.Header == nil {
			t.Header = cells
			continue
		}
		if blank(cells) {
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	if t.Header == nil {
		return nil, eris.Errorf("importer: sheet %q has no header row", ws.Name)
	}
	return t, nil
}

func readCSVFile(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open csv")
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(ctx, f)
}

func trimAll(cells []string) {
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
