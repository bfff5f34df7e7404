package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadCSVWithHeader(t *testing.T) {
	path := writeCSV(t, "entity_id,name,chairman_name,chairman_id\n"+
		"0277012345,ООО Ромашка,,\n"+
		"0277099999,ООО Тюльпан,Петров Пётр,770277099999\n")

	rows, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "0277012345", rows[0].Entity.ID)
	assert.False(t, rows[0].PreCompleted())
	assert.True(t, rows[1].PreCompleted())
	assert.Equal(t, "770277099999", rows[1].ChairmanID)
}

func TestLoadCSVHeaderless(t *testing.T) {
	path := writeCSV(t, "0277012345,ООО Ромашка\n0013245678,МУП Родник\n")

	rows, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "0013245678", rows[1].Entity.ID, "leading zeros survive")
}

func TestLoadCSVRussianHeader(t *testing.T) {
	path := writeCSV(t, "ИНН,Наименование,Председатель\n0277012345,ООО Ромашка,Иванов Иван\n")

	rows, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Иванов Иван", rows[0].ChairmanName)
}

func TestLoadCSVSkipsEmptyIDs(t *testing.T) {
	path := writeCSV(t, "entity_id,name\n,nameless\n0277012345,ООО Ромашка\n")

	rows, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestLoadExportFileRoundTrip(t *testing.T) {
	path := writeCSV(t, "entity_id,name,chairman_name,chairman_id,source\n"+
		"0277012345,ООО Ромашка,Иванов Иван,,alpha\n")

	rows, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].PreCompleted())
}

func TestLoadXLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("candidates")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, h := range []string{"entity_id", "name", "chairman_name"} {
		header.AddCell().SetString(h)
	}
	row := sheet.AddRow()
	row.AddCell().SetString("0277012345")
	row.AddCell().SetString("ООО Ромашка")
	row.AddCell().SetString("")

	path := filepath.Join(t.TempDir(), "in.xlsx")
	require.NoError(t, f.Save(path))

	rows, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0277012345", rows[0].Entity.ID)
	assert.False(t, rows[0].PreCompleted())

	byName, err := Load(path, "candidates")
	require.NoError(t, err)
	assert.Equal(t, rows, byName)

	_, err = Load(path, "no-such-sheet")
	assert.Error(t, err)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load("in.json", "")
	assert.Error(t, err)
}
