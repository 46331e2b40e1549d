// Package rangealgebra implements row-range algebra over a virtualized
// table's row indices: containment, intersection, union, distance and the
// scroll-correction rules used to keep a viewport aligned with a target row.
package rangealgebra

import "math"

// Range is a closed interval of row indices [Top, Bottom]. A Range with
// Top or Bottom negative is invalid and represents "no rows".
type Range struct {
	Top    int
	Bottom int
}

// Invalid is the zero-value-equivalent invalid range.
var Invalid = Range{Top: -1, Bottom: -1}

// IsValid reports whether the range describes at least one row.
func (r Range) IsValid() bool {
	return r.Top >= 0 && r.Bottom >= 0 && r.Bottom >= r.Top
}

// Contains reports whether row lies within the range.
func (r Range) Contains(row int) bool {
	return r.IsValid() && row >= r.Top && row <= r.Bottom
}

// ContainsRange reports whether other lies fully within r, with at least
// padding rows of slack on each side.
func (r Range) ContainsRange(other Range, padding int) bool {
	if !r.Contains(other.Top) || !r.Contains(other.Bottom) {
		return false
	}
	return other.Top-r.Top >= padding && r.Bottom-other.Bottom >= padding
}

// Intersects reports whether r and other share at least one row.
func (r Range) Intersects(other Range) bool {
	if !r.IsValid() || !other.IsValid() {
		return false
	}
	return r.Contains(other.Top) || r.Contains(other.Bottom) ||
		other.Contains(r.Top) || other.Contains(r.Bottom)
}

// Union merges r and other. If they intersect, the result is a single
// enclosing range; otherwise (adjacent ranges included) both ranges are
// returned, ordered ascending by Top.
func (r Range) Union(other Range) []Range {
	if !r.IsValid() {
		return []Range{other}
	}
	if !other.IsValid() {
		return []Range{r}
	}
	if r.Intersects(other) {
		return []Range{{
			Top:    min(r.Top, other.Top),
			Bottom: max(r.Bottom, other.Bottom),
		}}
	}
	if r.Top <= other.Top {
		return []Range{r, other}
	}
	return []Range{other, r}
}

// Distance returns the number of rows between row and the nearest edge of
// the range; 0 if row is contained, math.MaxInt if the range is invalid.
func (r Range) Distance(row int) int {
	if !r.IsValid() {
		return math.MaxInt
	}
	if r.Contains(row) {
		return 0
	}
	if row < r.Top {
		return r.Top - row
	}
	return row - r.Bottom
}

// NearestRow clamps row into the range. If the range is invalid, row is
// returned unchanged.
func (r Range) NearestRow(row int) int {
	if !r.IsValid() || r.Contains(row) {
		return row
	}
	if row < r.Top {
		return r.Top
	}
	return r.Bottom
}

// Expand grows the range by offset rows on each side, clamped at row 0.
func (r Range) Expand(offset int) Range {
	newTop := max(0, r.Top-offset)
	newBottom := max(newTop, r.Bottom+offset)
	return Range{Top: newTop, Bottom: newBottom}
}

// Count returns the number of rows in the range, 0 if invalid.
func (r Range) Count() int {
	if !r.IsValid() {
		return 0
	}
	return r.Bottom - r.Top + 1
}

// ScrollTo translates the range by the minimal signed amount needed to
// bring row inside it. Returns the translated range unchanged if row is
// already contained or the range is invalid.
func (r Range) ScrollTo(row int) Range {
	dst := r.scrollDelta(row)
	if dst == 0 {
		return r
	}
	return Range{Top: r.Top + dst, Bottom: r.Bottom + dst}
}

func (r Range) scrollDelta(row int) int {
	if !r.IsValid() || r.Contains(row) {
		return 0
	}
	if row < r.Top {
		return row - r.Top
	}
	return row - r.Bottom
}

// ScrollToWithCorrection translates the range to bring row into view,
// applying a one-row correction when row lands exactly on the bottom edge
// and that edge is not fully visible: the range shifts down by one row
// (Top and Bottom both move by one), or, when bottomIsEnd, only Top
// moves down by one, so the target row is not left flush against a
// partially-visible edge.
func (r Range) ScrollToWithCorrection(row int, topIsFullVisible, bottomIsFullVisible, bottomIsEnd bool) Range {
	dst := r.scrollDelta(row)
	tmp := Range{Top: r.Top + dst, Bottom: r.Bottom + dst}

	dstTop, dstBottom := 0, 0
	if row == tmp.Bottom && !bottomIsFullVisible {
		dstTop = 1
		if !bottomIsEnd {
			dstBottom = 1
		}
	}
	_ = topIsFullVisible // reserved for symmetric top-edge correction, unused by the original rule
	return Range{
		Top:    max(0, tmp.Top+dstTop),
		Bottom: tmp.Bottom + dstBottom,
	}
}
