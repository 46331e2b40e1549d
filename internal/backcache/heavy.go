package backcache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	tcerrors "github.com/rowcache/tablecache/internal/errors"
	"github.com/rowcache/tablecache/internal/filtergrammar"
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/rowcache/tablecache/internal/windowsnapshot"
)

// HeavyRequest carries everything a ProcessHeavy call needs: incoming
// deltas, loading-state transition, sort/filter changes, and the
// selected-ids/suspend flags.
type HeavyRequest struct {
	RequestId      int64
	Deltas         rowschema.DeltaBatch
	Loading        LoadingStatus
	Sort           *SortSpec
	Filter         *string
	ReportSelected bool
	SuspendUpdates bool
}

// HeavyResult is the Back's OperationCompleted response to a heavy op.
type HeavyResult struct {
	Snapshot            windowsnapshot.ViewWindowValues
	SelectionDurationMs int64
	DbRowCount          int
	SuspendedCount      int
	Updated             bool
	SelectedIds         []int64
}

// ProcessHeavy runs the full write/re-selection pipeline: snapshot
// selected ids, adopt sort/filter, drain-or-divert deltas inside one
// transaction, optionally re-select, transform prior state to the new
// version, and re-materialize the window.
func (b *Back) ProcessHeavy(ctx context.Context, req HeavyRequest) (HeavyResult, error) {
	if b.terminalErr != nil {
		return HeavyResult{}, b.terminalErr
	}

	var selectedIds []int64
	if req.ReportSelected {
		selectedIds = b.currentSelectedIds()
	}

	if req.Sort != nil {
		b.userSort = req.Sort
	}
	if req.Filter != nil {
		b.filter = b.compileFilter(*req.Filter)
	}

	isSuspend := req.SuspendUpdates && b.isSelectionAllowed

	switch req.Loading {
	case LoadingFinished:
		b.isSelectionAllowed = true
	case LoadingStarted:
		b.isSelectionAllowed = false
	case LoadingNotChanged:
	}

	mainChanged, err := b.storeDeltas(ctx, req.Deltas, isSuspend)
	if err != nil {
		b.terminalErr = err
		return HeavyResult{}, err
	}
	b.tableOpsCounter += int64(len(req.Deltas.Deltas) + len(req.Deltas.DeletedIDs))

	var selectionDuration time.Duration
	selectionRan := mainChanged || req.Loading == LoadingFinished || req.Sort != nil || req.Filter != nil
	if selectionRan {
		d, err := b.runReselect(ctx)
		if err != nil {
			b.terminalErr = err
			return HeavyResult{}, err
		}
		selectionDuration = d
	}

	b.transformStateToCurrentVersion()

	if err := b.rematerializeWindow(ctx, false); err != nil {
		return HeavyResult{}, err
	}

	b.snapshot.ExtraData = b.cfg.Hooks.MakeExtraData()
	if req.Loading == LoadingFinished || mainChanged || req.Sort != nil || req.Filter != nil {
		b.cfg.Hooks.ProcessDataSelected()
	}

	dbRowCount := b.countRows(ctx)

	b.snapshot.RequestId = req.RequestId
	b.snapshot.Version = b.currentVersion

	return HeavyResult{
		Snapshot:            b.snapshot,
		SelectionDurationMs: selectionDuration.Milliseconds(),
		DbRowCount:          dbRowCount,
		SuspendedCount:      b.suspendedCount,
		Updated:             selectionRan,
		SelectedIds:         selectedIds,
	}, nil
}

// currentSelectedIds snapshots the ids under the current selection,
// using the id-mapping the most recent snapshot was built against —
// i.e. before this call's sort/filter/write changes take effect.
func (b *Back) currentSelectedIds() []int64 {
	info := b.idMappings[b.snapshot.Version]
	var ids []int64
	for _, r := range b.snapshot.Selection {
		for row := r.Top; row <= r.Bottom; row++ {
			if id, ok := info.GetId(row); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// storeDeltas applies one delta batch inside a single transaction: if
// not suspended it first drains the suspended shadow into main, then
// applies each delta to the target table (main, or the shadow when
// suspended). It returns whether the main table's contents changed.
func (b *Back) storeDeltas(ctx context.Context, batch rowschema.DeltaBatch, isSuspend bool) (bool, error) {
	if batch.IsEmpty() && (isSuspend || (b.suspendedCount == 0 && len(b.suspendedDeletedIDs) == 0)) {
		return false, nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("backcache: %w: %v", tcerrors.ErrStorageFailure, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	changed := false

	if !isSuspend && (b.suspendedCount > 0 || len(b.suspendedDeletedIDs) > 0) {
		if err := b.drainSuspended(ctx, tx); err != nil {
			return false, err
		}
		changed = true
	}

	target := b.main
	if isSuspend {
		target = b.suspended
	}

	for _, d := range batch.Deltas {
		if d.IsDelete {
			if isSuspend {
				b.suspendedDeletedIDs = append(b.suspendedDeletedIDs, d.DeleteID)
			} else {
				if err := target.DeleteID(ctx, tx, d.DeleteID); err != nil {
					return false, err
				}
				changed = true
			}
			b.cfg.Hooks.DeletePendingValue(d.DeleteID)
			continue
		}

		if !b.cfg.Hooks.AddPendingValue(d.Row) {
			continue
		}
		row := b.fillCommonText(d.Row)
		if err := target.InsertRow(ctx, tx, row); err != nil {
			return false, err
		}
		if isSuspend {
			b.suspendedCount++
		} else {
			changed = true
		}
	}

	for _, id := range batch.DeletedIDs {
		if isSuspend {
			b.suspendedDeletedIDs = append(b.suspendedDeletedIDs, id)
		} else {
			if err := target.DeleteID(ctx, tx, id); err != nil {
				return false, err
			}
			changed = true
		}
		b.cfg.Hooks.DeletePendingValue(id)
	}

	if b.cfg.Hooks.IsInsertionNeeded() {
		if err := b.cfg.Hooks.ProcessDataInserted(); err != nil {
			return false, fmt.Errorf("backcache: plugin aborted transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("backcache: %w: %v", tcerrors.ErrStorageFailure, err)
	}
	committed = true
	return changed, nil
}

// drainSuspended applies the suspended shadow's deletes then its
// inserts to main, in id order, then clears the shadow. Must run
// inside the caller's transaction.
func (b *Back) drainSuspended(ctx context.Context, tx *sql.Tx) error {
	for _, id := range b.suspendedDeletedIDs {
		if err := b.main.DeleteID(ctx, tx, id); err != nil {
			return err
		}
	}
	b.suspendedDeletedIDs = nil

	cols := ""
	for i, f := range b.cfg.Schema.Fields {
		if i > 0 {
			cols += ", "
		}
		cols += f.Name
	}
	rows, err := tx.QueryContext(ctx, "SELECT "+cols+" FROM "+b.suspended.Name()+" ORDER BY "+b.cfg.Schema.PrimaryKey())
	if err != nil {
		return fmt.Errorf("backcache: %w: %v", tcerrors.ErrStorageFailure, err)
	}
	var shadowRows []rowschema.Row
	for rows.Next() {
		row, err := b.suspended.ScanRow(rows)
		if err != nil {
			rows.Close()
			return err
		}
		shadowRows = append(shadowRows, row)
	}
	rows.Close()

	for _, row := range shadowRows {
		if err := b.main.InsertRow(ctx, tx, row); err != nil {
			return err
		}
	}

	if err := b.suspended.ClearAll(ctx, tx); err != nil {
		return err
	}
	b.suspendedCount = 0
	return nil
}

// fillCommonText concatenates the configured source columns into the
// schema's designated common full-text column, so filtering can match
// a concatenated textual representation of the configured columns.
func (b *Back) fillCommonText(row rowschema.Row) rowschema.Row {
	idx := b.cfg.Schema.CommonTextIndex()
	if idx < 0 || len(b.cfg.CommonTextSourceIndexes) == 0 {
		return row
	}
	values := make([]string, len(row))
	for i, c := range row {
		values[i] = c.String()
	}
	out := append(rowschema.Row(nil), row...)
	out[idx] = rowschema.CellString(filtergrammar.BuildCommonText(values, b.cfg.CommonTextSourceIndexes))
	return out
}

// runReselect executes the id-only re-selection query and stores its
// result as a freshly versioned IdsInfo.
func (b *Back) runReselect(ctx context.Context) (time.Duration, error) {
	orderBy, err := b.buildOrderBy(b.userSort)
	if err != nil {
		return 0, err
	}

	tmpl := "SELECT " + b.cfg.Schema.PrimaryKey() + " FROM $table$ WHERE $filter$"
	if orderBy != "" {
		tmpl += " ORDER BY " + orderBy
	}

	start := time.Now()
	rows, err := b.main.PerformSql(ctx, tmpl, nil, b.filter)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("backcache: %w: %v", tcerrors.ErrStorageFailure, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("backcache: %w: %v", tcerrors.ErrStorageFailure, err)
	}

	duration := time.Since(start)
	b.currentVersion++
	b.idMappings[b.currentVersion] = newIdsInfo(ids)
	return duration, nil
}

// transformStateToCurrentVersion carries the prior snapshot's
// selection and current row onto the new id mapping. The row window
// is transformed too unless PolicyTail is active, in which case it is
// left at its absolute position so newly-appended tail rows appear.
func (b *Back) transformStateToCurrentVersion() {
	old := b.idMappings[b.snapshot.Version]
	if old == nil {
		old = newIdsInfo(nil)
	}
	newInfo := b.idMappings[b.currentVersion]
	tr := RowTransformator{Old: old, New: newInfo}

	var selection []Range
	for _, r := range b.snapshot.Selection {
		selection = append(selection, tr.TransformRange(r)...)
	}
	b.snapshot.Selection = selection
	b.snapshot.CurrentRow = tr.Transform(b.snapshot.CurrentRow)
	b.snapshot.RecordsCount = newInfo.Count()

	if b.scrollPolicy == PolicyTail {
		return
	}
	parts := tr.TransformRange(b.snapshot.Rows)
	if len(parts) == 0 {
		b.snapshot.Rows = Invalid
		return
	}
	top, bottom := parts[0].Top, parts[0].Bottom
	for _, p := range parts[1:] {
		top = min(top, p.Top)
		bottom = max(bottom, p.Bottom)
	}
	b.snapshot.Rows = Range{Top: top, Bottom: bottom}
}
