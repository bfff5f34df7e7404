package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
)

func TestWriteExportMergePreservesExistingRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")

	existing := "entity_id,name,chairman_name,chairman_id,source\n" +
		"0277012345,ООО Ромашка,Иванов Иван,770277012345,alpha\n"
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	err := writeExport(path, []model.Result{
		{EntityID: "0277012345", EntityName: "ООО Ромашка", ChairmanName: "ДРУГОЙ", Source: "beta", Status: model.StatusFound},
		{EntityID: "0277099999", EntityName: "ООО Тюльпан", ChairmanName: "Петров Пётр", Source: "beta", Status: model.StatusFound},
	})
	require.NoError(t, err)

	rows, err := readExport(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]model.Result{}
	for _, r := range rows {
		byID[r.EntityID] = r
	}
	assert.Equal(t, "Иванов Иван", byID["0277012345"].ChairmanName, "rows on disk win")
	assert.Equal(t, "Петров Пётр", byID["0277099999"].ChairmanName, "new rows are appended")
}

func TestReadExportMissingFile(t *testing.T) {
	rows, err := readExport(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadExportHeaderless(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")
	require.NoError(t, os.WriteFile(path, []byte("0277012345,ООО Ромашка,Иванов Иван\n"), 0o644))

	rows, err := readExport(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusFound, rows[0].Status)
}

func TestExportRoundTripsAsInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")

	err := writeExport(path, []model.Result{
		{EntityID: "0277012345", EntityName: "ООО Ромашка", ChairmanName: "Иванов Иван", ChairmanID: "770277012345", Source: "alpha", Status: model.StatusFound},
		{EntityID: "0277099999", EntityName: "ООО Тюльпан", Source: "alpha", Status: model.StatusNotFound},
	})
	require.NoError(t, err)

	rows, err := readExport(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]model.Result{}
	for _, r := range rows {
		byID[r.EntityID] = r
	}
	assert.Equal(t, model.StatusFound, byID["0277012345"].Status)
	assert.Equal(t, model.StatusNotFound, byID["0277099999"].Status, "empty chairman reads back as not found")
}
