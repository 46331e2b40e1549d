package windowsnapshot

import (
	"testing"

	"github.com/rowcache/tablecache/internal/rangealgebra"
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/stretchr/testify/require"
)

func row(id int64) rowschema.Row { return rowschema.Row{rowschema.CellInt64(id)} }

func TestGetRow(t *testing.T) {
	v := ViewWindowValues{
		Rows: rangealgebra.Range{Top: 5, Bottom: 7},
		Data: []rowschema.Row{row(5), row(6), row(7)},
	}
	got, ok := v.GetRow(6)
	require.True(t, ok)
	require.Equal(t, int64(6), got.ID())

	_, ok = v.GetRow(10)
	require.False(t, ok)
}

func TestPrepareRemoveRows(t *testing.T) {
	r, ok := PrepareRemoveRows(10, 7)
	require.True(t, ok)
	require.Equal(t, rangealgebra.Range{Top: 7, Bottom: 9}, r)

	_, ok = PrepareRemoveRows(7, 10)
	require.False(t, ok)
}

func TestPrepareAddRows(t *testing.T) {
	r, ok := PrepareAddRows(7, 10)
	require.True(t, ok)
	require.Equal(t, rangealgebra.Range{Top: 7, Bottom: 9}, r)

	_, ok = PrepareAddRows(10, 7)
	require.False(t, ok)
}

func TestPrepareChangeRows(t *testing.T) {
	old := ViewWindowValues{RecordsCount: 10, Rows: rangealgebra.Range{Top: 0, Bottom: 4}}
	next := ViewWindowValues{RecordsCount: 10, Rows: rangealgebra.Range{Top: 2, Bottom: 6}}

	r, ok := PrepareChangeRows(old, next)
	require.True(t, ok)
	require.Equal(t, rangealgebra.Range{Top: 0, Bottom: 6}, r)
}

func TestPrepareChangeRowsEmptyWhenNoRecords(t *testing.T) {
	old := ViewWindowValues{RecordsCount: 0}
	next := ViewWindowValues{RecordsCount: 0}
	_, ok := PrepareChangeRows(old, next)
	require.False(t, ok)
}

func TestEmptySnapshot(t *testing.T) {
	v := Empty()
	require.False(t, v.Rows.IsValid())
	require.Equal(t, -1, v.CurrentRow)
}
