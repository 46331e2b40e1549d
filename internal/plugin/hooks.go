// Package plugin defines the extensibility surface the back cache calls
// into while processing heavy operations: a caller may veto or transform
// individual pending rows, react to deletes, contribute extra computed
// columns per window, and observe selection/clear events.
package plugin

import "github.com/rowcache/tablecache/internal/rowschema"

// Hooks is implemented by callers that want to participate in the back
// cache's write and selection pipeline. All methods are invoked on the
// back thread; implementations must not block on the front.
type Hooks interface {
	// AddPendingValue is called once per upserted row before it is
	// staged for insertion. Returning false vetoes the row entirely.
	AddPendingValue(row rowschema.Row) bool
	// DeletePendingValue is called once per deleted id, after the
	// delete has been staged.
	DeletePendingValue(id int64)
	// ProcessDataInserted runs inside the same transaction as the
	// staged insert/delete batch, after it has been applied. Returning
	// an error aborts and rolls back the transaction.
	ProcessDataInserted() error
	// IsInsertionNeeded reports whether ProcessDataInserted has
	// anything to do for the current batch; when false the back cache
	// may skip opening a transaction for hook purposes.
	IsInsertionNeeded() bool
	// ProcessDataSelected runs after a re-selection query completes.
	ProcessDataSelected()
	// ProcessClear runs when the cache is cleared.
	ProcessClear()
	// MakeExtraData lets the hook attach a caller-defined value to a
	// window snapshot before it is sent to the front.
	MakeExtraData() any
}

// NoopHooks implements Hooks with no side effects; it is the default
// when no plugin is configured.
type NoopHooks struct{}

var _ Hooks = NoopHooks{}

func (NoopHooks) AddPendingValue(rowschema.Row) bool { return true }
func (NoopHooks) DeletePendingValue(int64)           {}
func (NoopHooks) ProcessDataInserted() error         { return nil }
func (NoopHooks) IsInsertionNeeded() bool            { return false }
func (NoopHooks) ProcessDataSelected()               {}
func (NoopHooks) ProcessClear()                      {}
func (NoopHooks) MakeExtraData() any                 { return nil }
