// Package input reads entity candidate lists from CSV and XLSX files. The
// export file written by the store is a valid input, so completed runs can be
// fed straight back in.
package input

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Row is one input line: the entity to enrich, plus any chairman answer the
// file already carries.
type Row struct {
	Entity       model.Entity
	ChairmanName string
	ChairmanID   string
}

// PreCompleted reports whether the row already holds an answer and needs no
// lookup.
func (r Row) PreCompleted() bool {
	return r.ChairmanName != ""
}

// Load reads rows from path, dispatching on the file extension. sheet names
// the XLSX worksheet to read; empty means the first sheet, and CSV files
// ignore it.
func Load(path, sheet string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return loadXLSX(path, sheet)
	case ".csv":
		return loadCSV(path)
	default:
		return nil, eris.Errorf("input: unsupported file type %q", filepath.Ext(path))
	}
}

func loadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "input: read csv row")
		}
		records = append(records, rec)
	}
	return parseRows(records), nil
}

func loadXLSX(path, sheetName string) ([]Row, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "input: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("input: xlsx file has no sheets")
	}

	sheet := f.Sheets[0]
	if sheetName != "" {
		named, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("input: sheet %q not found", sheetName)
		}
		sheet = named
	}

	var records [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return parseRows(records), nil
}

// Column aliases accepted in header rows; the export header and common
// source-registry spellings both resolve.
var (
	idAliases         = []string{"entity_id", "inn", "tax_id", "инн"}
	nameAliases       = []string{"name", "company", "наименование"}
	chairmanAliases   = []string{"chairman_name", "chairman", "председатель"}
	chairmanIDAliases = []string{"chairman_id", "chairman_inn", "инн председателя"}
)

type columnMap struct {
	id, name, chairman, chairmanID int
}

// parseRows maps records to Rows. A recognized header row drives column
// positions; headerless files fall back to positional columns
// (id, name, chairman, chairman id). Rows without an id are dropped.
func parseRows(records [][]string) []Row {
	cols := columnMap{id: 0, name: 1, chairman: 2, chairmanID: 3}
	start := 0
	if len(records) > 0 {
		if mapped, ok := mapHeader(records[0]); ok {
			cols = mapped
			start = 1
		}
	}

	var rows []Row
	for _, rec := range records[start:] {
		id := model.CanonicalID(cell(rec, cols.id))
		if id == "" {
			continue
		}
		rows = append(rows, Row{
			Entity: model.Entity{
				ID:   id,
				Name: strings.TrimSpace(cell(rec, cols.name)),
			},
			ChairmanName: strings.TrimSpace(cell(rec, cols.chairman)),
			ChairmanID:   strings.TrimSpace(cell(rec, cols.chairmanID)),
		})
	}
	return rows
}

func mapHeader(rec []string) (columnMap, bool) {
	cols := columnMap{id: -1, name: -1, chairman: -1, chairmanID: -1}
	for i, raw := range rec {
		h := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case matches(h, idAliases):
			cols.id = i
		case matches(h, nameAliases):
			cols.name = i
		case matches(h, chairmanAliases):
			cols.chairman = i
		case matches(h, chairmanIDAliases):
			cols.chairmanID = i
		}
	}
	if cols.id < 0 {
		return columnMap{}, false
	}
	return cols, true
}

func matches(h string, aliases []string) bool {
	for _, a := range aliases {
		if h == a {
			return true
		}
	}
	return false
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
