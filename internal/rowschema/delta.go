package rowschema

// Delta is a single row update: either a full row (insert-or-replace) or
// a delete-by-id. Exactly one of Row or DeleteID is set.
type Delta struct {
	Row      Row
	DeleteID int64
	IsDelete bool
}

// NewUpsert builds a delta that inserts or replaces a full row.
func NewUpsert(row Row) Delta {
	return Delta{Row: row}
}

// NewDelete builds a delta that removes a row by id.
func NewDelete(id int64) Delta {
	return Delta{DeleteID: id, IsDelete: true}
}

// DeltaBatch is an ordered sequence of deltas produced by one producer
// write, plus any explicit deleted ids that accompany it out of band.
type DeltaBatch struct {
	Deltas     []Delta
	DeletedIDs []int64
}

// IsEmpty reports whether the batch carries no changes at all.
func (b DeltaBatch) IsEmpty() bool {
	return len(b.Deltas) == 0 && len(b.DeletedIDs) == 0
}
