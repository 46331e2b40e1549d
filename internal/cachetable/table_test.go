package cachetable

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func testSchema() rowschema.Schema {
	return rowschema.Schema{Fields: []rowschema.FieldDescriptor{
		{Name: "id", Kind: rowschema.Integer},
		{Name: "name", Kind: rowschema.String},
		{Name: "common", Kind: rowschema.StringCollateNoCase, IsCommonText: true},
	}}
}

func TestNewCreatesUniquelySuffixedTable(t *testing.T) {
	db := newTestDB(t)
	t1, err := New(db, "rows", testSchema())
	require.NoError(t, err)
	t2, err := New(db, "rows", testSchema())
	require.NoError(t, err)
	require.NotEqual(t, t1.Name(), t2.Name())
}

func TestNewRejectsFieldCountAtCap(t *testing.T) {
	db := newTestDB(t)
	fields := make([]rowschema.FieldDescriptor, SQLiteMaxVariableNumber)
	for i := range fields {
		fields[i] = rowschema.FieldDescriptor{Name: "id", Kind: rowschema.Integer}
	}
	_, err := New(db, "rows", rowschema.Schema{Fields: fields})
	require.Error(t, err)
}

func TestInsertSelectDeleteByID(t *testing.T) {
	db := newTestDB(t)
	tbl, err := New(db, "rows", testSchema())
	require.NoError(t, err)
	ctx := context.Background()

	row := rowschema.Row{rowschema.CellInt64(1), rowschema.CellString("alice"), rowschema.CellString("]alice")}
	require.NoError(t, tbl.InsertRow(ctx, db, row))

	rows, err := tbl.SelectByID(ctx, db, 1)
	require.NoError(t, err)
	require.True(t, rows.Next())
	got, err := tbl.ScanRow(rows)
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	require.Equal(t, int64(1), got.ID())
	require.Equal(t, "alice", got[1].Str)

	require.NoError(t, tbl.DeleteID(ctx, db, 1))
	rows, err = tbl.SelectByID(ctx, db, 1)
	require.NoError(t, err)
	require.False(t, rows.Next())
	require.NoError(t, rows.Close())
}

func TestInsertOrReplaceOverwritesExisting(t *testing.T) {
	db := newTestDB(t)
	tbl, err := New(db, "rows", testSchema())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, tbl.InsertRow(ctx, db, rowschema.Row{rowschema.CellInt64(1), rowschema.CellString("alice"), rowschema.CellString("")}))
	require.NoError(t, tbl.InsertRow(ctx, db, rowschema.Row{rowschema.CellInt64(1), rowschema.CellString("alice2"), rowschema.CellString("")}))

	rows, err := tbl.SelectByID(ctx, db, 1)
	require.NoError(t, err)
	require.True(t, rows.Next())
	got, err := tbl.ScanRow(rows)
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	require.Equal(t, "alice2", got[1].Str)
}

func TestClearAllEmptiesTableWithoutDrop(t *testing.T) {
	db := newTestDB(t)
	tbl, err := New(db, "rows", testSchema())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, tbl.InsertRow(ctx, db, rowschema.Row{rowschema.CellInt64(1), rowschema.CellString("a"), rowschema.CellString("")}))
	require.NoError(t, tbl.ClearAll(ctx, db))

	rows, err := tbl.PerformSql(ctx, "SELECT $fields$ FROM $table$ WHERE $filter$", nil, "")
	require.NoError(t, err)
	require.False(t, rows.Next())
	require.NoError(t, rows.Close())
}

func TestPerformSqlSubstitutesPlaceholdersAndFilter(t *testing.T) {
	db := newTestDB(t)
	tbl, err := New(db, "rows", testSchema())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, tbl.InsertRow(ctx, db, rowschema.Row{rowschema.CellInt64(1), rowschema.CellString("alice"), rowschema.CellString("")}))
	require.NoError(t, tbl.InsertRow(ctx, db, rowschema.Row{rowschema.CellInt64(2), rowschema.CellString("bob"), rowschema.CellString("")}))

	rows, err := tbl.PerformSql(ctx, "SELECT id FROM $table$ WHERE $filter$ ORDER BY id", nil, "name = 'bob'")
	require.NoError(t, err)
	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Close())
	require.Equal(t, []int64{2}, ids)
}

func TestPerformActionCreateClearInsertDeleteSelect(t *testing.T) {
	db := newTestDB(t)
	tbl, err := New(db, "rows", testSchema())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = tbl.PerformAction(ctx, ActionInsertOrReplace, rowschema.Row{rowschema.CellInt64(9), rowschema.CellString("z"), rowschema.CellString("")})
	require.NoError(t, err)

	rows, err := tbl.PerformAction(ctx, ActionSelectByID, int64(9))
	require.NoError(t, err)
	require.True(t, rows.Next())
	require.NoError(t, rows.Close())

	_, err = tbl.PerformAction(ctx, ActionDelete, int64(9))
	require.NoError(t, err)

	_, err = tbl.PerformAction(ctx, ActionClear, nil)
	require.NoError(t, err)
}
