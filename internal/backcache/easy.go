package backcache

import (
	"context"
	"fmt"

	tcerrors "github.com/rowcache/tablecache/internal/errors"
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/rowcache/tablecache/internal/windowsnapshot"
)

// RowRequest asks the back to materialize a different row window.
type RowRequest struct {
	Window     Range
	RefreshAll bool
}

// SelectionRequest carries a selection made against an older version;
// Version names which id-mapping Selection/CurrentRow were computed
// against so the back can transform them forward.
type SelectionRequest struct {
	Selection  []Range
	CurrentRow int
	Version    int64
}

// HintsRequest adjusts the scroll-alignment hints.
type HintsRequest struct {
	ScrollHint    windowsnapshot.ScrollHint
	TopRowHint    bool
	BottomRowHint bool
}

// EasyRequest bundles the window/selection/hints adjustments a single
// ProcessEasy call may carry; any of the three may be nil.
type EasyRequest struct {
	RequestId int64
	Row       *RowRequest
	Selection *SelectionRequest
	Hints     *HintsRequest
}

// EasyResult is the Back's OperationCompleted response to an easy op.
type EasyResult struct {
	Snapshot windowsnapshot.ViewWindowValues
	Updated  bool
}

// ProcessEasy applies window/selection/hint adjustments without
// re-running the selection query; it only re-materializes the window
// if something actually changed.
func (b *Back) ProcessEasy(ctx context.Context, req EasyRequest) (EasyResult, error) {
	if b.terminalErr != nil {
		return EasyResult{}, b.terminalErr
	}
	if !b.isSelectionAllowed {
		return EasyResult{Snapshot: b.snapshot}, nil
	}

	changed := false

	if req.Selection != nil {
		old := b.idMappings[req.Selection.Version]
		tr := RowTransformator{Old: old, New: b.idMappings[b.currentVersion]}

		var selection []Range
		for _, r := range req.Selection.Selection {
			selection = append(selection, tr.TransformRange(r)...)
		}
		currentRow := tr.Transform(req.Selection.CurrentRow)
		if !rangesEqual(selection, b.snapshot.Selection) || currentRow != b.snapshot.CurrentRow {
			b.snapshot.Selection = selection
			b.snapshot.CurrentRow = currentRow
			changed = true
		}
	}

	if req.Hints != nil {
		b.snapshot.ScrollHint = req.Hints.ScrollHint
		b.snapshot.TopRowHint = req.Hints.TopRowHint
		b.snapshot.BottomRowHint = req.Hints.BottomRowHint
	}

	if req.Row != nil && req.Row.Window != b.snapshot.Rows {
		b.snapshot.Rows = req.Row.Window
		changed = true
	}

	bottomIsLast := b.snapshot.RowsVisible.Bottom == b.snapshot.RecordsCount-1
	switch {
	case b.snapshot.ScrollHint == windowsnapshot.HintEnsureVisible:
		next := b.snapshot.RowsVisible.ScrollToWithCorrection(b.snapshot.CurrentRow, b.snapshot.TopRowHint, b.snapshot.BottomRowHint, bottomIsLast)
		if next != b.snapshot.RowsVisible {
			b.snapshot.RowsVisible = next
			changed = true
		}
	case bottomIsLast && b.snapshot.RecordsCount > 0:
		next := b.snapshot.RowsVisible.ScrollToWithCorrection(b.snapshot.RecordsCount-1, b.snapshot.TopRowHint, true, true)
		if next != b.snapshot.RowsVisible {
			b.snapshot.RowsVisible = next
			changed = true
		}
	}

	if changed {
		refreshAll := req.Row != nil && req.Row.RefreshAll
		if err := b.rematerializeWindow(ctx, refreshAll); err != nil {
			return EasyResult{}, err
		}
	}

	b.snapshot.RequestId = req.RequestId
	return EasyResult{Snapshot: b.snapshot, Updated: changed}, nil
}

func rangesEqual(a, b []Range) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// defaultVisibleRows is the visible-window height assumed before the
// front ever reports an actual viewport size.
const defaultVisibleRows = 30

// rematerializeWindow recomputes Rows/RowsVisible/Data so that Rows
// always encloses RowsVisible.Expand(WindowOffset), fetching
// each newly-needed row by id, reusing the previous snapshot's
// materialized rows by id where refreshAll is false. It stops early
// and shrinks the window if the table has fewer rows than requested.
func (b *Back) rematerializeWindow(ctx context.Context, refreshAll bool) error {
	info := b.idMappings[b.currentVersion]
	count := info.Count()
	b.snapshot.RecordsCount = count

	if count == 0 {
		b.snapshot.Data = nil
		b.snapshot.Rows = Invalid
		b.snapshot.RowsVisible = Invalid
		return nil
	}

	visible := clampRange(b.snapshot.RowsVisible, count)
	if !visible.IsValid() {
		visible = Range{Top: 0, Bottom: min(defaultVisibleRows-1, count-1)}
	}
	window := enclosing(clampRange(b.snapshot.Rows, count), visible.Expand(b.windowOffset()))
	window = clampRange(window, count)
	if !window.IsValid() {
		window = clampRange(Range{Top: 0, Bottom: count - 1}, count)
	}

	oldData := b.snapshot.Data

	data := make([]rowschema.Row, 0, window.Count())
	for row := window.Top; row <= window.Bottom; row++ {
		id, ok := info.GetId(row)
		if !ok {
			break
		}
		if !refreshAll {
			if cached, ok := cachedRowByID(oldData, id); ok {
				data = append(data, cached)
				continue
			}
		}
		r, err := b.fetchRow(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			break
		}
		data = append(data, r)
	}

	if len(data) == 0 {
		window = Invalid
		visible = Invalid
	} else {
		window = Range{Top: window.Top, Bottom: window.Top + len(data) - 1}
		visible = Range{Top: max(visible.Top, window.Top), Bottom: min(visible.Bottom, window.Bottom)}
		if !visible.IsValid() {
			visible = window
		}
	}

	b.snapshot.Data = data
	b.snapshot.Rows = window
	b.snapshot.RowsVisible = visible
	return nil
}

func (b *Back) fetchRow(ctx context.Context, id int64) (rowschema.Row, error) {
	rows, err := b.main.SelectByID(ctx, b.db, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, nil
	}
	row, err := b.main.ScanRow(rows)
	if err != nil {
		return nil, fmt.Errorf("backcache: %w: %v", tcerrors.ErrStorageFailure, err)
	}
	return row, nil
}

func cachedRowByID(data []rowschema.Row, id int64) (rowschema.Row, bool) {
	for _, r := range data {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// clampRange clips r into [0, count-1]; an already-invalid or
// fully-out-of-range r becomes Invalid.
func clampRange(r Range, count int) Range {
	if count <= 0 || !r.IsValid() {
		return Invalid
	}
	top := max(r.Top, 0)
	bottom := min(r.Bottom, count-1)
	if top > bottom {
		return Invalid
	}
	return Range{Top: top, Bottom: bottom}
}

// enclosing returns the smallest range covering both a and b,
// ignoring whichever operand is invalid.
func enclosing(a, b Range) Range {
	switch {
	case !a.IsValid():
		return b
	case !b.IsValid():
		return a
	default:
		return Range{Top: min(a.Top, b.Top), Bottom: max(a.Bottom, b.Bottom)}
	}
}
