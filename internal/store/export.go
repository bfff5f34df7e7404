package store

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

var exportHeader = []string{"entity_id", "name", "chairman_name", "chairman_id", "source"}

// readExport reads a previously written export CSV. A missing file yields no
// rows and no error; a malformed file is an error the caller downgrades to a
// warning.
func readExport(path string) ([]model.Result, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: open export")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows []model.Result
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "store: read export row")
		}
		if first {
			first = false
			if len(rec) > 0 && rec[0] == exportHeader[0] {
				continue
			}
		}
		if len(rec) < 3 {
			continue
		}
		row := model.Result{
			EntityID:     model.CanonicalID(rec[0]),
			EntityName:   rec[1],
			ChairmanName: rec[2],
		}
		if len(rec) > 3 {
			row.ChairmanID = rec[3]
		}
		if len(rec) > 4 {
			row.Source = rec[4]
		}
		if row.ChairmanName != "" {
			row.Status = model.StatusFound
		} else {
			row.Status = model.StatusNotFound
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// writeExport merges results into the existing export file and rewrites it.
// Rows already on disk win over in-memory rows for the same entity id, and
// no pre-existing row is ever dropped: a run can only grow the export.
func writeExport(path string, results []model.Result) error {
	existing, err := readExport(path)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(existing))
	merged := make([]model.Result, 0, len(existing)+len(results))
	for _, row := range existing {
		merged = append(merged, row)
		seen[row.EntityID] = struct{}{}
	}
	for _, r := range results {
		if _, dup := seen[r.EntityID]; dup {
			continue
		}
		merged = append(merged, r)
		seen[r.EntityID] = struct{}{}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrap(err, "store: create export temp")
	}

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		f.Close()
		return eris.Wrap(err, "store: write export header")
	}
	for _, row := range merged {
		rec := []string{row.EntityID, row.EntityName, row.ChairmanName, row.ChairmanID, row.Source}
		if err := w.Write(rec); err != nil {
			f.Close()
			return eris.Wrap(err, "store: write export row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return eris.Wrap(err, "store: flush export")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "store: close export temp")
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrap(err, "store: rename export")
	}
	return nil
}
