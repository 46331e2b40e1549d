package exportcsv

import (
	"os"
	"path/filepath"
	"testing"

	tcerrors "github.com/rowcache/tablecache/internal/errors"
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/stretchr/testify/require"
)

func rowsOf(ids ...int64) []rowschema.Row {
	out := make([]rowschema.Row, len(ids))
	for i, id := range ids {
		out[i] = rowschema.Row{rowschema.CellInt64(id), rowschema.CellString("name")}
	}
	return out
}

func TestWriteCSVWritesHeaderAndAllRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	all := rowsOf(1, 2, 3)

	var progressCalls [][2]int
	err := WriteCSV(path, Options{
		Columns:   []string{"id", "name"},
		Total:     len(all),
		ChunkSize: 2,
		Progress:  func(done, total int) { progressCalls = append(progressCalls, [2]int{done, total}) },
	}, func(offset, limit int) ([]rowschema.Row, error) {
		if offset >= len(all) {
			return nil, nil
		}
		end := min(offset+limit, len(all))
		return all[offset:end], nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "id,name")
	require.Contains(t, string(data), "1,name")
	require.Contains(t, string(data), "3,name")
	require.Len(t, progressCalls, 2)
}

func TestWriteCSVNullCellBecomesEmptyField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	rows := []rowschema.Row{{rowschema.CellInt64(1), rowschema.CellNull(rowschema.String)}}

	err := WriteCSV(path, Options{Columns: []string{"id", "name"}}, func(offset, limit int) ([]rowschema.Row, error) {
		if offset > 0 {
			return nil, nil
		}
		return rows, nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "1,\n")
}

func TestWriteCSVCancellationRemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	cancelled := false

	err := WriteCSV(path, Options{
		Columns:   []string{"id"},
		Cancelled: func() bool { return cancelled },
	}, func(offset, limit int) ([]rowschema.Row, error) {
		cancelled = true
		return rowsOf(1), nil
	})
	require.ErrorIs(t, err, tcerrors.ErrExportCancelled)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}
