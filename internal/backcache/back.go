// Package backcache is the single owner of the embedded SQL store: it
// runs heavy operations (writes, re-selection) and easy operations
// (window/selection/hint adjustment) against a main table and a
// suspended shadow table, keeps the version→id-mapping dictionary,
// and produces windowsnapshot.ViewWindowValues for the front model.
// Every method is meant to be called from a single goroutine — the
// back thread — exactly as a *sql.DB's exclusive owner would.
package backcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rowcache/tablecache/internal/cachetable"
	tcerrors "github.com/rowcache/tablecache/internal/errors"
	"github.com/rowcache/tablecache/internal/exportcsv"
	"github.com/rowcache/tablecache/internal/filtergrammar"
	"github.com/rowcache/tablecache/internal/plugin"
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/rowcache/tablecache/internal/windowsnapshot"
)

// ScrollPolicy decides what happens to the requested row window when
// a re-selection runs: PolicyAnchor transforms it across versions so
// an interactive user's place in the data is preserved; PolicyTail
// leaves it at its absolute position so a growing stream's new tail
// rows become visible. This turns a single auto-scroll boolean into
// an explicit, named choice.
type ScrollPolicy int

const (
	PolicyAnchor ScrollPolicy = iota
	PolicyTail
)

// LoadingStatus reports how the producer's current batch relates to
// the overall initial load.
type LoadingStatus int

const (
	LoadingNotChanged LoadingStatus = iota
	LoadingStarted
	LoadingFinished
)

// Config parameterizes a Back instance as a plain value instead of a
// class hierarchy.
type Config struct {
	Schema                  rowschema.Schema
	DefaultSequences        []SortSequence
	CommonTextSourceIndexes []int
	Hooks                   plugin.Hooks
	WindowOffset            int
	FilterOptions           filtergrammar.Options
}

// Back owns one sqlite connection exclusively and the main/suspended
// tables built from Config.Schema.
type Back struct {
	db  *sql.DB
	cfg Config

	main      *cachetable.Table
	suspended *cachetable.Table

	userSort *SortSpec
	filter   string

	isSelectionAllowed bool
	scrollPolicy       ScrollPolicy

	currentVersion int64
	idMappings     map[int64]*IdsInfo

	snapshot windowsnapshot.ViewWindowValues

	tableOpsCounter      int64
	suspendedCount       int
	suspendedDeletedIDs  []int64

	terminalErr error
}

// New validates cfg and returns a Back with no tables yet created;
// call InitDbTable before issuing operations.
func New(db *sql.DB, cfg Config) (*Back, error) {
	if err := validateSortSequences(cfg.Schema, cfg.DefaultSequences); err != nil {
		return nil, err
	}
	if cfg.Hooks == nil {
		cfg.Hooks = plugin.NoopHooks{}
	}
	b := &Back{
		db:         db,
		cfg:        cfg,
		idMappings: map[int64]*IdsInfo{0: newIdsInfo(nil)},
		snapshot:   windowsnapshot.Empty(),
	}
	return b, nil
}

func (b *Back) windowOffset() int {
	if b.cfg.WindowOffset > 0 {
		return b.cfg.WindowOffset
	}
	return WindowOffset
}

// SetScrollPolicy sets the auto-scroll behavior for subsequent heavy
// operations.
func (b *Back) SetScrollPolicy(p ScrollPolicy) { b.scrollPolicy = p }

// SetAutoScroll is a convenience wrapper over SetScrollPolicy: true
// selects PolicyTail, false PolicyAnchor.
func (b *Back) SetAutoScroll(enabled bool) {
	if enabled {
		b.scrollPolicy = PolicyTail
	} else {
		b.scrollPolicy = PolicyAnchor
	}
}

// InitDbTable creates the main and suspended tables. It is the
// Back's response to the front model's InitDbTableAsync.
func (b *Back) InitDbTable(ctx context.Context) error {
	main, err := cachetable.New(b.db, "main", b.cfg.Schema)
	if err != nil {
		return err
	}
	suspended, err := cachetable.New(b.db, "suspended", b.cfg.Schema)
	if err != nil {
		return err
	}
	b.main = main
	b.suspended = suspended
	return nil
}

// ClearTable deletes both tables' contents and resets all versioning
// and snapshot state. isFinal is accepted but does not change
// behavior — see DESIGN.md for why the distinction was dropped.
func (b *Back) ClearTable(ctx context.Context, isFinal bool) error {
	if b.main != nil {
		if err := b.main.ClearAll(ctx, b.db); err != nil {
			return err
		}
	}
	if b.suspended != nil {
		if err := b.suspended.ClearAll(ctx, b.db); err != nil {
			return err
		}
	}
	b.cfg.Hooks.ProcessClear()

	b.userSort = nil
	b.filter = ""
	b.isSelectionAllowed = false
	b.terminalErr = nil
	b.currentVersion = 0
	b.idMappings = map[int64]*IdsInfo{0: newIdsInfo(nil)}
	b.snapshot = windowsnapshot.Empty()
	b.tableOpsCounter = 0
	b.suspendedCount = 0
	b.suspendedDeletedIDs = nil
	return nil
}

// ConfirmVersion drops every retained id-mapping older than v, once
// the front has acknowledged it no longer needs them.
func (b *Back) ConfirmVersion(v int64) {
	for k := range b.idMappings {
		if k < v {
			delete(b.idMappings, k)
		}
	}
}

// PerformSelect runs a read-only pass-through query. Any statement
// that doesn't start with SELECT is rejected.
func (b *Back) PerformSelect(ctx context.Context, sqlText string, params []any) ([]rowschema.Row, error) {
	if !isSelectStatement(sqlText) {
		return nil, fmt.Errorf("backcache: %w", tcerrors.ErrUserQueryNotSelect)
	}

	rows, err := b.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("backcache: %w: %v", tcerrors.ErrStorageFailure, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("backcache: %w: %v", tcerrors.ErrStorageFailure, err)
	}

	var out []rowschema.Row
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("backcache: %w: %v", tcerrors.ErrStorageFailure, err)
		}
		row := make(rowschema.Row, len(cols))
		for i, v := range dest {
			row[i] = genericCell(v)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// OnExport streams every row (projected to columnIndexes) to a CSV
// file at path, cooperatively cancellable via cancelled. A cancelled
// export removes the partial file and returns nil.
func (b *Back) OnExport(ctx context.Context, path string, columnIndexes []int, chunkSize int, progress func(done, total int), cancelled func() bool) error {
	names := make([]string, len(columnIndexes))
	for i, idx := range columnIndexes {
		names[i] = b.cfg.Schema.Fields[idx].Name
	}
	total := b.countRows(ctx)

	fetch := func(offset, limit int) ([]rowschema.Row, error) {
		tmpl := fmt.Sprintf("SELECT $fields$ FROM $table$ WHERE $filter$ ORDER BY %s LIMIT %d OFFSET %d",
			b.cfg.Schema.PrimaryKey(), limit, offset)
		rows, err := b.main.PerformSql(ctx, tmpl, nil, "")
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []rowschema.Row
		for rows.Next() {
			row, err := b.main.ScanRow(rows)
			if err != nil {
				return nil, err
			}
			projected := make(rowschema.Row, len(columnIndexes))
			for i, idx := range columnIndexes {
				projected[i] = row[idx]
			}
			out = append(out, projected)
		}
		return out, rows.Err()
	}

	err := exportcsv.WriteCSV(path, exportcsv.Options{
		Columns:   names,
		Total:     total,
		ChunkSize: chunkSize,
		Progress:  progress,
		Cancelled: cancelled,
	}, fetch)
	if errors.Is(err, tcerrors.ErrExportCancelled) {
		return nil
	}
	return err
}

// compileFilter turns user-entered filter text into the SQL boolean
// expression stored as b.filter, matched against the schema's common
// full-text column.
func (b *Back) compileFilter(text string) string {
	idx := b.cfg.Schema.CommonTextIndex()
	if idx < 0 {
		return ""
	}
	col := b.cfg.Schema.Fields[idx].Name
	return filtergrammar.Compile(col, text, b.cfg.FilterOptions)
}

func (b *Back) countRows(ctx context.Context) int {
	if !b.isSelectionAllowed {
		return int(b.tableOpsCounter)
	}
	tmpl := "SELECT count(1) FROM $table$ WHERE $filter$"
	rows, err := b.main.PerformSql(ctx, tmpl, nil, b.filter)
	if err != nil {
		return int(b.tableOpsCounter)
	}
	defer rows.Close()
	if !rows.Next() {
		return 0
	}
	var count int64
	_ = rows.Scan(&count)
	return int(count)
}

func isSelectStatement(sqlText string) bool {
	i := 0
	for i < len(sqlText) && (sqlText[i] == ' ' || sqlText[i] == '\t' || sqlText[i] == '\n' || sqlText[i] == '\r') {
		i++
	}
	rest := sqlText[i:]
	return len(rest) >= 6 &&
		(rest[0] == 's' || rest[0] == 'S') &&
		(rest[1] == 'e' || rest[1] == 'E') &&
		(rest[2] == 'l' || rest[2] == 'L') &&
		(rest[3] == 'e' || rest[3] == 'E') &&
		(rest[4] == 'c' || rest[4] == 'C') &&
		(rest[5] == 't' || rest[5] == 'T')
}

func genericCell(v any) rowschema.Cell {
	if v == nil {
		return rowschema.CellNull(rowschema.String)
	}
	switch t := v.(type) {
	case int64:
		return rowschema.CellInt64(t)
	case float64:
		return rowschema.CellFloat64(t)
	case bool:
		return rowschema.CellBool(t)
	case []byte:
		return rowschema.CellString(string(t))
	case string:
		return rowschema.CellString(t)
	default:
		return rowschema.CellString(fmt.Sprintf("%v", t))
	}
}
