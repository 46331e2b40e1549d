// Package windowsnapshot defines ViewWindowValues, the immutable value
// object the back cache produces and the front model consumes: a
// materialized row window, selection state, scroll hints, and the
// version/request-id pair the front uses to correlate responses.
package windowsnapshot

import (
	"github.com/rowcache/tablecache/internal/rangealgebra"
	"github.com/rowcache/tablecache/internal/rowschema"
)

// ScrollHint tells the view how to align the visible window when it
// is re-materialized.
type ScrollHint int

const (
	// HintNone leaves the window wherever it already is.
	HintNone ScrollHint = iota
	// HintEnsureVisible scrolls so CurrentRow is visible, correcting
	// for partially-visible edge rows.
	HintEnsureVisible
)

// ViewWindowValues is copied by value across the Front/Back channel
// boundary; it holds no pointers to mutable back-side state.
type ViewWindowValues struct {
	Data          []rowschema.Row
	RecordsCount  int
	Rows          rangealgebra.Range
	RowsVisible   rangealgebra.Range
	Selection     []rangealgebra.Range
	CurrentRow    int
	ScrollHint    ScrollHint
	TopRowHint    bool
	BottomRowHint bool
	Version       int64
	RequestId     int64
	ExtraData     any
}

// Empty returns the zero-state snapshot: no rows, no selection,
// version 0. It is what the back emits after Clear.
func Empty() ViewWindowValues {
	return ViewWindowValues{
		Rows:        rangealgebra.Invalid,
		RowsVisible: rangealgebra.Invalid,
		CurrentRow:  -1,
	}
}

// GetRow returns the materialized row at absolute index row, and
// whether it was present in Data (row must fall within Rows).
func (v ViewWindowValues) GetRow(row int) (rowschema.Row, bool) {
	if !v.Rows.Contains(row) {
		return nil, false
	}
	idx := row - v.Rows.Top
	if idx < 0 || idx >= len(v.Data) {
		return nil, false
	}
	return v.Data[idx], true
}

// PrepareRemoveRows returns the trailing range to notify as removed
// when the record count shrinks from oldCount to newCount.
func PrepareRemoveRows(oldCount, newCount int) (rangealgebra.Range, bool) {
	if newCount >= oldCount {
		return rangealgebra.Invalid, false
	}
	return rangealgebra.Range{Top: newCount, Bottom: oldCount - 1}, true
}

// PrepareAddRows returns the trailing range to notify as added when
// the record count grows from oldCount to newCount.
func PrepareAddRows(oldCount, newCount int) (rangealgebra.Range, bool) {
	if newCount <= oldCount {
		return rangealgebra.Invalid, false
	}
	return rangealgebra.Range{Top: oldCount, Bottom: newCount - 1}, true
}

// PrepareChangeRows returns the range of rows to notify as changed:
// the union of old and new materialized windows, clipped to
// min(oldCount, newCount) so it never reaches past either snapshot's
// valid row indices.
func PrepareChangeRows(old, next ViewWindowValues) (rangealgebra.Range, bool) {
	limit := min(old.RecordsCount, next.RecordsCount)
	if limit == 0 {
		return rangealgebra.Invalid, false
	}

	ranges := old.Rows.Union(next.Rows)
	// Union returns up to two ranges; pick the widest span covering
	// both, since the view re-renders by absolute row index anyway.
	result := rangealgebra.Invalid
	for _, r := range ranges {
		r = rangealgebra.Range{Top: max(r.Top, 0), Bottom: min(r.Bottom, limit-1)}
		if !r.IsValid() {
			continue
		}
		if !result.IsValid() {
			result = r
			continue
		}
		result = rangealgebra.Range{Top: min(result.Top, r.Top), Bottom: max(result.Bottom, r.Bottom)}
	}
	return result, result.IsValid()
}
