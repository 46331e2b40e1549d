package tuiview

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rowcache/tablecache/internal/frontmodel"
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/rowcache/tablecache/internal/windowsnapshot"
)

// Sender is the subset of *tea.Program an adapter needs; satisfied by
// *tea.Program itself, narrowed for testability.
type Sender interface {
	Send(msg tea.Msg)
}

// Adapter implements frontmodel.View by translating each synchronous
// notification into a tea.Msg delivered to the running program. The
// program is not available until after tea.NewProgram runs, so it is
// attached with SetProgram once construction finishes; notifications
// that arrive first are silently dropped rather than blocking the
// back thread, which frontmodel.New starts right away.
type Adapter struct {
	mu      sync.RWMutex
	program Sender
}

var _ frontmodel.View = (*Adapter)(nil)

// NewAdapter returns an Adapter with no program attached yet.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// SetProgram attaches the running program. Call once, after
// tea.NewProgram constructs it.
func (a *Adapter) SetProgram(p Sender) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.program = p
}

// Notify delivers an arbitrary tea.Msg through the same channel as
// the View callbacks, for command-level events (export completion,
// ad-hoc query dispatch) that don't fit the frontmodel.View surface.
func (a *Adapter) Notify(msg tea.Msg) {
	a.send(msg)
}

func (a *Adapter) send(msg tea.Msg) {
	a.mu.RLock()
	p := a.program
	a.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// RowsRemoved, RowsChanged and RowsAdded are intentionally no-ops:
// this view re-renders in full from ViewWindowChanged's snapshot
// rather than patching a differential widget.
func (a *Adapter) RowsRemoved(frontmodel.Range) {}
func (a *Adapter) RowsChanged(frontmodel.Range) {}
func (a *Adapter) RowsAdded(frontmodel.Range)   {}

func (a *Adapter) SelectionChanged([]frontmodel.Range, int) {}

func (a *Adapter) ViewWindowChanged(snapshot windowsnapshot.ViewWindowValues) {
	a.send(snapshotMsg{snapshot: snapshot})
}

func (a *Adapter) BusyChanged(busy bool) {
	a.send(busyMsg{busy: busy})
}

func (a *Adapter) QueryCompleted(requestID string, rows []rowschema.Row, err error) {
	a.send(queryCompletedMsg{requestID: requestID, rows: rows, err: err})
}

func (a *Adapter) TerminalError(err error) {
	a.send(terminalErrorMsg{err: err})
}
