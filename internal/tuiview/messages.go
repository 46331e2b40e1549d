package tuiview

import (
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/rowcache/tablecache/internal/windowsnapshot"
)

// snapshotMsg carries a new window snapshot from the front model onto
// the bubbletea event loop.
type snapshotMsg struct {
	snapshot windowsnapshot.ViewWindowValues
}

// busyMsg reports a busy-cursor transition.
type busyMsg struct {
	busy bool
}

// terminalErrorMsg reports an unrecoverable storage failure.
type terminalErrorMsg struct {
	err error
}

// queryCompletedMsg reports the outcome of a pass-through query.
type queryCompletedMsg struct {
	requestID string
	rows      []rowschema.Row
	err       error
}

// exportDoneMsg reports the outcome of an ExportAsync call, delivered
// through Adapter.Notify since export completion isn't a
// frontmodel.View callback.
type exportDoneMsg struct {
	path string
	err  error
}
