package cmd

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/rowcache/tablecache/internal/backcache"
	"github.com/rowcache/tablecache/internal/frontmodel"
	"github.com/rowcache/tablecache/internal/rowschema"
)

func TestDemoSchemaShape(t *testing.T) {
	schema := demoSchema()
	require.Len(t, schema.Fields, 5)
	require.Equal(t, "id", schema.Fields[0].Name)
	require.Equal(t, rowschema.Integer, schema.Fields[0].Kind)
	require.True(t, schema.Fields[1].IsCommonText)
}

func newTestFront(t *testing.T) *frontmodel.Model {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	front, err := frontmodel.New(frontmodel.Config{
		DB:   db,
		Back: backcache.Config{Schema: demoSchema()},
	})
	require.NoError(t, err)
	t.Cleanup(front.Stop)
	return front
}

func TestWaitReadyReturnsOnceInitCompletes(t *testing.T) {
	front := newTestFront(t)
	front.InitDbTableAsync()

	err := waitReady(front, 2*time.Second)
	require.NoError(t, err)
	require.True(t, front.Ready())
}

func TestWaitReadyTimesOutWithoutInit(t *testing.T) {
	front := newTestFront(t)

	err := waitReady(front, 50*time.Millisecond)
	require.Error(t, err)
}

func TestWaitSnapshotCountReturnsOnceCountReached(t *testing.T) {
	front := newTestFront(t)
	front.InitDbTableAsync()
	require.NoError(t, waitReady(front, 2*time.Second))

	front.SetLoadingStatus(backcache.LoadingStarted)
	front.IngestDeltas(rowschema.DeltaBatch{Deltas: []rowschema.Delta{
		rowschema.NewUpsert(rowschema.Row{
			rowschema.CellInt64(1),
			rowschema.CellString("alice"),
			rowschema.CellString("cat"),
			rowschema.CellFloat64(1.5),
			rowschema.CellBool(true),
		}),
	}})
	front.SetLoadingStatus(backcache.LoadingFinished)

	err := waitSnapshotCount(front, 1, 2*time.Second)
	require.NoError(t, err)
}

func TestWaitSnapshotCountTimesOutWhenCountNeverReached(t *testing.T) {
	front := newTestFront(t)
	front.InitDbTableAsync()
	require.NoError(t, waitReady(front, 2*time.Second))

	err := waitSnapshotCount(front, 5, 50*time.Millisecond)
	require.Error(t, err)
}
