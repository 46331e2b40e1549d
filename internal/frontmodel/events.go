package frontmodel

import (
	"github.com/rowcache/tablecache/internal/rangealgebra"
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/rowcache/tablecache/internal/windowsnapshot"
)

// Range is a local alias so callers outside backcache don't need to
// import rangealgebra directly.
type Range = rangealgebra.Range

// View receives the front model's notifications synchronously, on the
// same goroutine that is driving the model's event loop — exactly the
// way plugin.Hooks is invoked on the back thread. A view is free to
// call back into the model from one of these methods (e.g. a widget's
// selection-changed handler re-asserting the selection); the model's
// blocked-actions latch absorbs the resulting recursive call so it
// does not re-enter the same diff application.
type View interface {
	// RowsRemoved reports the trailing range dropped when the record
	// count shrinks, before any content change is reported.
	RowsRemoved(r Range)
	// RowsChanged reports the range whose materialized content may
	// have changed, after removals and before additions.
	RowsChanged(r Range)
	// RowsAdded reports the trailing range gained when the record
	// count grows, after any content change is reported.
	RowsAdded(r Range)
	// SelectionChanged reports a new selection/current-row pair.
	SelectionChanged(selection []Range, currentRow int)
	// ViewWindowChanged reports the full new snapshot, called once at
	// the end of every applied response. A response that carries an
	// error, or is older than the snapshot already held, is not applied
	// and produces no call.
	ViewWindowChanged(snapshot windowsnapshot.ViewWindowValues)
	// BusyChanged reports a transition of the busy-cursor predicate.
	BusyChanged(busy bool)
	// QueryCompleted reports the outcome of a PerformSelect pass-through.
	QueryCompleted(requestID string, rows []rowschema.Row, err error)
	// TerminalError reports an unrecoverable storage failure; no
	// further operations will be dispatched after this call.
	TerminalError(err error)
}

// NoopView implements View with no side effects. Embed it to satisfy
// the interface while overriding only the methods a caller cares
// about.
type NoopView struct{}

func (NoopView) RowsRemoved(Range)                                 {}
func (NoopView) RowsChanged(Range)                                 {}
func (NoopView) RowsAdded(Range)                                   {}
func (NoopView) SelectionChanged([]Range, int)                     {}
func (NoopView) ViewWindowChanged(windowsnapshot.ViewWindowValues) {}
func (NoopView) BusyChanged(bool)                                  {}
func (NoopView) QueryCompleted(string, []rowschema.Row, error)     {}
func (NoopView) TerminalError(error)                               {}

var _ View = NoopView{}
