// Package cachetable is a typed façade over a table in the embedded
// SQL store: it derives DDL from a field schema, prepares the five
// canonical statements at construction, and exposes PerformAction/
// PerformSql for everything the back cache needs from the database.
package cachetable

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	tcerrors "github.com/rowcache/tablecache/internal/errors"
	"github.com/rowcache/tablecache/internal/rowschema"
)

// SQLiteMaxVariableNumber is the default SQLITE_MAX_VARIABLE_NUMBER
// compile-time bound; field lists at or above this size are rejected.
const SQLiteMaxVariableNumber = 999

var nextTableSeq atomic.Int64

// ActionKind selects one of the five canonical prepared statements.
type ActionKind int

const (
	ActionCreate ActionKind = iota
	ActionClear
	ActionInsertOrReplace
	ActionDelete
	ActionSelectByID
)

// Table wraps one logical table name backed by a shared *sql.DB
// handle. Table names are suffixed with an atomic, monotonically
// increasing counter so multiple instances sharing one connection
// cannot collide.
type Table struct {
	db     *sql.DB
	name   string
	schema rowschema.Schema
	pk     string

	ddl          string
	clearSQL     string
	insertSQL    string
	deleteSQL    string
	selectSQL    string
	selectAllSQL string
}

// New derives a uniquely-suffixed table named baseName from schema
// and prepares its DDL and the five canonical statement templates.
// It returns ErrFieldCountExceeded if schema has too many columns for
// the engine's bound-parameter cap.
func New(db *sql.DB, baseName string, schema rowschema.Schema) (*Table, error) {
	if len(schema.Fields) >= SQLiteMaxVariableNumber {
		return nil, fmt.Errorf("cachetable: %w: %d fields, max %d", tcerrors.ErrFieldCountExceeded, len(schema.Fields), SQLiteMaxVariableNumber)
	}

	seq := nextTableSeq.Add(1)
	name := fmt.Sprintf("%s_%d", baseName, seq)
	pk := schema.PrimaryKey()

	t := &Table{db: db, name: name, schema: schema, pk: pk}
	t.ddl = t.buildCreateDDL()
	t.clearSQL = fmt.Sprintf("DELETE FROM %s", name)
	t.insertSQL = t.buildInsertSQL()
	t.deleteSQL = fmt.Sprintf("DELETE FROM %s WHERE %s = ?", name, pk)
	t.selectSQL = fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", t.columnList(), name, pk)
	t.selectAllSQL = fmt.Sprintf("SELECT %s FROM %s", t.columnList(), name)

	if _, err := db.Exec(t.ddl); err != nil {
		return nil, fmt.Errorf("cachetable: create %s: %w: %v", name, tcerrors.ErrStorageFailure, err)
	}
	return t, nil
}

// Name returns the physical, sequence-suffixed table name.
func (t *Table) Name() string { return t.name }

// Schema returns the field schema the table was constructed with.
func (t *Table) Schema() rowschema.Schema { return t.schema }

func (t *Table) columnList() string {
	names := make([]string, len(t.schema.Fields))
	for i, f := range t.schema.Fields {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

func (t *Table) buildCreateDDL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (", t.name)
	for i, f := range t.schema.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", f.Name, f.Kind.DDL())
		if f.Name == t.pk {
			b.WriteString(" PRIMARY KEY")
		}
	}
	b.WriteString(")")
	return b.String()
}

func (t *Table) buildInsertSQL() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.schema.Fields)), ", ")
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)", t.name, t.columnList(), placeholders)
}

// PerformAction runs one of the five canonical statements. arg is the
// row to insert-or-replace (ActionInsertOrReplace), the id to delete
// or select (ActionDelete, ActionSelectByID), or ignored otherwise.
func (t *Table) PerformAction(ctx context.Context, kind ActionKind, arg any) (*sql.Rows, error) {
	switch kind {
	case ActionCreate:
		_, err := t.db.ExecContext(ctx, t.ddl)
		return nil, t.wrapExecErr(err)
	case ActionClear:
		_, err := t.db.ExecContext(ctx, t.clearSQL)
		return nil, t.wrapExecErr(err)
	case ActionInsertOrReplace:
		row, ok := arg.(rowschema.Row)
		if !ok {
			return nil, fmt.Errorf("cachetable: PerformAction(InsertOrReplace): arg is not a Row")
		}
		return nil, t.insert(ctx, row)
	case ActionDelete:
		id, ok := arg.(int64)
		if !ok {
			return nil, fmt.Errorf("cachetable: PerformAction(Delete): arg is not an int64 id")
		}
		_, err := t.db.ExecContext(ctx, t.deleteSQL, id)
		return nil, t.wrapExecErr(err)
	case ActionSelectByID:
		id, ok := arg.(int64)
		if !ok {
			return nil, fmt.Errorf("cachetable: PerformAction(SelectByID): arg is not an int64 id")
		}
		rows, err := t.db.QueryContext(ctx, t.selectSQL, id)
		return rows, t.wrapExecErr(err)
	default:
		return nil, fmt.Errorf("cachetable: unknown action kind %d", kind)
	}
}

func (t *Table) insert(ctx context.Context, row rowschema.Row) error {
	return t.InsertRow(ctx, t.db, row)
}

// Execer is satisfied by both *sql.DB and *sql.Tx; the back cache
// passes a *sql.Tx so inserts/deletes/clears run inside its heavy-op
// transaction.
type Execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

// InsertRow runs the table's INSERT OR REPLACE statement for row
// against execer (the live *sql.DB or an in-flight *sql.Tx).
func (t *Table) InsertRow(ctx context.Context, execer Execer, row rowschema.Row) error {
	args := make([]any, len(row))
	for i, c := range row {
		args[i] = c.Value()
	}
	_, err := execer.ExecContext(ctx, t.insertSQL, args...)
	return t.wrapExecErr(err)
}

// DeleteID runs the table's single-id DELETE against execer.
func (t *Table) DeleteID(ctx context.Context, execer Execer, id int64) error {
	_, err := execer.ExecContext(ctx, t.deleteSQL, id)
	return t.wrapExecErr(err)
}

// ClearAll runs DELETE FROM t against execer, used in place of DROP
// so open cursors over the table aren't invalidated.
func (t *Table) ClearAll(ctx context.Context, execer Execer) error {
	_, err := execer.ExecContext(ctx, t.clearSQL)
	return t.wrapExecErr(err)
}

// SelectByID runs the table's single-id SELECT against execer.
func (t *Table) SelectByID(ctx context.Context, execer Execer, id int64) (*sql.Rows, error) {
	rows, err := execer.QueryContext(ctx, t.selectSQL, id)
	if err != nil {
		return nil, t.wrapExecErr(err)
	}
	return rows, nil
}

func (t *Table) wrapExecErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("cachetable: %w: %v", tcerrors.ErrStorageFailure, err)
}

// PerformSql substitutes the $table$, $fields$, $filter$ placeholders
// in template and runs the resulting query with params. An empty
// filter becomes the literal TRUE.
func (t *Table) PerformSql(ctx context.Context, template string, params []any, filter string) (*sql.Rows, error) {
	if filter == "" {
		filter = "TRUE"
	}
	sqlText := strings.NewReplacer(
		"$table$", t.name,
		"$fields$", t.columnList(),
		"$filter$", filter,
	).Replace(template)

	rows, err := t.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("cachetable: %w: %v", tcerrors.ErrStorageFailure, err)
	}
	return rows, nil
}

// ScanRow reads one result row from rows into a rowschema.Row shaped
// like the table's schema.
func (t *Table) ScanRow(rows *sql.Rows) (rowschema.Row, error) {
	dest := make([]any, len(t.schema.Fields))
	ptrs := make([]any, len(t.schema.Fields))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("cachetable: %w: %v", tcerrors.ErrStorageFailure, err)
	}

	row := make(rowschema.Row, len(t.schema.Fields))
	for i, f := range t.schema.Fields {
		row[i] = cellFromScanned(f.Kind, dest[i])
	}
	return row, nil
}

func cellFromScanned(kind rowschema.FieldKind, v any) rowschema.Cell {
	if v == nil {
		return rowschema.CellNull(kind)
	}
	switch kind {
	case rowschema.Integer, rowschema.Bool:
		switch n := v.(type) {
		case int64:
			if kind == rowschema.Bool {
				return rowschema.CellBool(n != 0)
			}
			return rowschema.CellInt64(n)
		}
	case rowschema.Double:
		if f, ok := v.(float64); ok {
			return rowschema.CellFloat64(f)
		}
	}
	switch s := v.(type) {
	case string:
		return rowschema.CellString(s)
	case []byte:
		return rowschema.CellString(string(s))
	default:
		return rowschema.CellString(fmt.Sprintf("%v", s))
	}
}
