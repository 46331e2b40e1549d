package backcache

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/rowcache/tablecache/internal/windowsnapshot"
)

func newTestBack(t *testing.T, cfg Config) (*Back, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	b, err := New(db, cfg)
	require.NoError(t, err)
	require.NoError(t, b.InitDbTable(context.Background()))
	return b, db
}

func testSchema() rowschema.Schema {
	return rowschema.Schema{Fields: []rowschema.FieldDescriptor{
		{Name: "id", Kind: rowschema.Integer},
		{Name: "name", Kind: rowschema.String},
		{Name: "common", Kind: rowschema.StringCollateNoCase, IsCommonText: true},
	}}
}

func upsert(id int64, name string) rowschema.Delta {
	return rowschema.NewUpsert(rowschema.Row{
		rowschema.CellInt64(id),
		rowschema.CellString(name),
		rowschema.CellString(""),
	})
}

func TestProcessHeavyInitialLoadMaterializesWindow(t *testing.T) {
	b, _ := newTestBack(t, Config{Schema: testSchema()})

	res, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		RequestId: 1,
		Deltas: rowschema.DeltaBatch{Deltas: []rowschema.Delta{
			upsert(1, "alice"), upsert(2, "bob"), upsert(3, "carol"),
		}},
		Loading: LoadingFinished,
	})
	require.NoError(t, err)
	require.True(t, res.Updated)
	require.Equal(t, 3, res.Snapshot.RecordsCount)
	require.True(t, res.Snapshot.Rows.IsValid())
	require.Len(t, res.Snapshot.Data, 3)
	require.Equal(t, int64(1), res.Snapshot.Data[0].ID())
}

func TestProcessHeavyDeleteShrinksWindow(t *testing.T) {
	b, _ := newTestBack(t, Config{Schema: testSchema()})

	_, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas:  rowschema.DeltaBatch{Deltas: []rowschema.Delta{upsert(1, "a"), upsert(2, "b")}},
		Loading: LoadingFinished,
	})
	require.NoError(t, err)

	res, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas: rowschema.DeltaBatch{Deltas: []rowschema.Delta{rowschema.NewDelete(1)}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Snapshot.RecordsCount)
	require.Equal(t, int64(2), res.Snapshot.Data[0].ID())
}

func TestProcessHeavyResortChangesOrder(t *testing.T) {
	b, _ := newTestBack(t, Config{Schema: testSchema()})

	_, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas:  rowschema.DeltaBatch{Deltas: []rowschema.Delta{upsert(1, "z"), upsert(2, "a")}},
		Loading: LoadingFinished,
	})
	require.NoError(t, err)

	res, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Sort: &SortSpec{Column: 1, Desc: false},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Snapshot.Data[0].ID())
	require.Equal(t, int64(1), res.Snapshot.Data[1].ID())
}

func TestProcessHeavySuspendThenResumeDrainsShadow(t *testing.T) {
	b, _ := newTestBack(t, Config{Schema: testSchema()})

	_, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas:  rowschema.DeltaBatch{Deltas: []rowschema.Delta{upsert(1, "a")}},
		Loading: LoadingFinished,
	})
	require.NoError(t, err)

	res, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas:         rowschema.DeltaBatch{Deltas: []rowschema.Delta{upsert(2, "b")}},
		SuspendUpdates: true,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Snapshot.RecordsCount, "suspended delta must not appear yet")
	require.Equal(t, 1, res.SuspendedCount)

	res, err = b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas: rowschema.DeltaBatch{Deltas: []rowschema.Delta{upsert(3, "c")}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Snapshot.RecordsCount, "un-suspending drains the shadow then applies the new delta")
	require.Equal(t, 0, res.SuspendedCount)
}

func TestProcessHeavyFilterNarrowsSelection(t *testing.T) {
	b, _ := newTestBack(t, Config{Schema: testSchema(), CommonTextSourceIndexes: []int{1}})

	_, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas:  rowschema.DeltaBatch{Deltas: []rowschema.Delta{upsert(1, "alice"), upsert(2, "bob")}},
		Loading: LoadingFinished,
	})
	require.NoError(t, err)

	filter := "bob"
	res, err := b.ProcessHeavy(context.Background(), HeavyRequest{Filter: &filter})
	require.NoError(t, err)
	require.Equal(t, 1, res.Snapshot.RecordsCount)
	require.Equal(t, int64(2), res.Snapshot.Data[0].ID())
}

func TestProcessHeavyStorageFailureBecomesTerminal(t *testing.T) {
	b, db := newTestBack(t, Config{Schema: testSchema()})
	db.Close()

	_, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas:  rowschema.DeltaBatch{Deltas: []rowschema.Delta{upsert(1, "a")}},
		Loading: LoadingFinished,
	})
	require.Error(t, err)

	_, err = b.ProcessHeavy(context.Background(), HeavyRequest{})
	require.Error(t, err, "once terminal, every subsequent call fails immediately")
}

func TestProcessEasyNoopWhenSelectionNotAllowed(t *testing.T) {
	b, _ := newTestBack(t, Config{Schema: testSchema()})

	res, err := b.ProcessEasy(context.Background(), EasyRequest{RequestId: 5})
	require.NoError(t, err)
	require.False(t, res.Updated)
}

func TestProcessEasyEnsureVisibleScrollsWindow(t *testing.T) {
	b, _ := newTestBack(t, Config{Schema: testSchema()})

	_, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas: rowschema.DeltaBatch{Deltas: func() []rowschema.Delta {
			var ds []rowschema.Delta
			for i := int64(1); i <= 200; i++ {
				ds = append(ds, upsert(i, "r"))
			}
			return ds
		}()},
		Loading: LoadingFinished,
	})
	require.NoError(t, err)

	res, err := b.ProcessEasy(context.Background(), EasyRequest{
		RequestId: 2,
		Hints: &HintsRequest{ScrollHint: windowsnapshot.HintEnsureVisible},
		Selection: &SelectionRequest{
			CurrentRow: 150,
			Version:    b.currentVersion,
		},
	})
	require.NoError(t, err)
	require.True(t, res.Updated)
	require.True(t, res.Snapshot.RowsVisible.Contains(150))
}

func TestProcessHeavyTransformsSelectionAcrossResort(t *testing.T) {
	b, _ := newTestBack(t, Config{Schema: testSchema()})

	_, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas:  rowschema.DeltaBatch{Deltas: []rowschema.Delta{upsert(1, "z"), upsert(2, "a")}},
		Loading: LoadingFinished,
	})
	require.NoError(t, err)

	// id 1 sits at row 0 before sorting by name ascending.
	_, err = b.ProcessEasy(context.Background(), EasyRequest{
		Selection: &SelectionRequest{
			Selection:  []Range{{Top: 0, Bottom: 0}},
			CurrentRow: 0,
			Version:    b.currentVersion,
		},
	})
	require.NoError(t, err)

	res, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Sort: &SortSpec{Column: 1, Desc: false},
	})
	require.NoError(t, err)
	// id 1 ("z") is now at row 1 after ascending by name.
	require.Equal(t, []Range{{Top: 1, Bottom: 1}}, res.Snapshot.Selection)
}

func TestClearTableResetsState(t *testing.T) {
	b, _ := newTestBack(t, Config{Schema: testSchema()})

	_, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas:  rowschema.DeltaBatch{Deltas: []rowschema.Delta{upsert(1, "a")}},
		Loading: LoadingFinished,
	})
	require.NoError(t, err)

	require.NoError(t, b.ClearTable(context.Background(), true))
	require.Equal(t, int64(0), b.currentVersion)
	require.Equal(t, windowsnapshot.Empty(), b.snapshot)

	res, err := b.ProcessHeavy(context.Background(), HeavyRequest{
		Deltas:  rowschema.DeltaBatch{Deltas: []rowschema.Delta{upsert(9, "z")}},
		Loading: LoadingFinished,
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Snapshot.RecordsCount)
}
