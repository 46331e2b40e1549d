package frontmodel

import (
	"github.com/rowcache/tablecache/internal/backcache"
	"github.com/rowcache/tablecache/internal/rowschema"
)

// pendingDataIncoming accumulates producer-driven work: deltas not yet
// handed to the back, a loading-status transition, and the two
// suspend/resume flags that piggyback on the next heavy dispatch
// instead of sending one of their own.
type pendingDataIncoming struct {
	deltas           rowschema.DeltaBatch
	loading          backcache.LoadingStatus
	suspendRequested bool
	resumeUpdates    bool
}

func (p *pendingDataIncoming) isEmpty() bool {
	return p.deltas.IsEmpty() && p.loading == backcache.LoadingNotChanged &&
		!p.resumeUpdates
}

// swap hands the accumulated batch to the caller by ownership transfer
// and resets the bucket to empty, the way a write buffer changes hands
// at dispatch time rather than being copied.
func (p *pendingDataIncoming) swap() (rowschema.DeltaBatch, backcache.LoadingStatus, bool) {
	batch := p.deltas
	loading := p.loading
	suspend := p.suspendRequested && !p.resumeUpdates
	p.deltas = rowschema.DeltaBatch{}
	p.loading = backcache.LoadingNotChanged
	p.suspendRequested = p.suspendRequested && !p.resumeUpdates
	p.resumeUpdates = false
	return batch, loading, suspend
}

// pendingUserHeavy holds the user-initiated sort/filter/report-selected
// change not yet dispatched.
type pendingUserHeavy struct {
	sort           *backcache.SortSpec
	filter         *string
	reportSelected bool
}

func (p *pendingUserHeavy) isEmpty() bool {
	return p.sort == nil && p.filter == nil && !p.reportSelected
}

func (p *pendingUserHeavy) swap() (*backcache.SortSpec, *string, bool) {
	sort, filter, report := p.sort, p.filter, p.reportSelected
	*p = pendingUserHeavy{}
	return sort, filter, report
}

// pendingUserEasy holds the window/selection/hints adjustment not yet
// dispatched; any of the three may be nil.
type pendingUserEasy struct {
	row       *backcache.RowRequest
	selection *backcache.SelectionRequest
	hints     *backcache.HintsRequest
}

func (p *pendingUserEasy) isEmpty() bool {
	return p.row == nil && p.selection == nil && p.hints == nil
}

func (p *pendingUserEasy) swap() (*backcache.RowRequest, *backcache.SelectionRequest, *backcache.HintsRequest) {
	row, sel, hints := p.row, p.selection, p.hints
	*p = pendingUserEasy{}
	return row, sel, hints
}

// pendingUserQuery holds a single not-yet-dispatched pass-through
// query; sql == "" means nothing pending.
type pendingUserQuery struct {
	sql       string
	params    []any
	requestID string
}

func (p *pendingUserQuery) isEmpty() bool { return p.sql == "" }

func (p *pendingUserQuery) swap() (string, []any, string) {
	sql, params, id := p.sql, p.params, p.requestID
	*p = pendingUserQuery{}
	return sql, params, id
}

// blockedKind names a class of front-model event that can be
// re-entered by a view reacting synchronously to a notification the
// model is in the middle of delivering.
type blockedKind int

const (
	blockedRow blockedKind = iota
	blockedSelection
)

// SetRowWindow requests a different materialized row window. It is a
// no-op while row-window notifications are blocked, i.e. while the
// model is itself applying a snapshot's row window back onto the
// view — this is the feedback-loop guard a synchronous view's
// scroll-position callback would otherwise trip.
func (m *Model) SetRowWindow(window Range, refreshAll bool) {
	m.mu.Lock()
	if m.blocked[blockedRow] {
		m.mu.Unlock()
		return
	}
	m.easy.row = &backcache.RowRequest{Window: window, RefreshAll: refreshAll}
	m.mu.Unlock()
	m.process()
}

// SetSelection requests a new selection and current row, computed
// against the version the caller last observed.
func (m *Model) SetSelection(selection []Range, currentRow int, version int64) {
	m.mu.Lock()
	if m.blocked[blockedSelection] {
		m.mu.Unlock()
		return
	}
	m.easy.selection = &backcache.SelectionRequest{Selection: selection, CurrentRow: currentRow, Version: version}
	m.mu.Unlock()
	m.process()
}

// SetSelectionAndRowWindow is SetSelection and SetRowWindow combined
// into a single easy-operation dispatch, for a view that changes both
// at once (e.g. a click that both selects and scrolls).
func (m *Model) SetSelectionAndRowWindow(selection []Range, currentRow int, version int64, window Range, refreshAll bool) {
	m.mu.Lock()
	if m.blocked[blockedRow] && m.blocked[blockedSelection] {
		m.mu.Unlock()
		return
	}
	if !m.blocked[blockedSelection] {
		m.easy.selection = &backcache.SelectionRequest{Selection: selection, CurrentRow: currentRow, Version: version}
	}
	if !m.blocked[blockedRow] {
		m.easy.row = &backcache.RowRequest{Window: window, RefreshAll: refreshAll}
	}
	m.mu.Unlock()
	m.process()
}

// SetHints adjusts the scroll-alignment hints used the next time the
// visible window is recomputed.
func (m *Model) SetHints(hint backcache.HintsRequest) {
	m.mu.Lock()
	m.easy.hints = &hint
	m.mu.Unlock()
	m.process()
}

// SetSort requests a new user sort column; nil clears it back to the
// configured default sequences.
func (m *Model) SetSort(sort *backcache.SortSpec) {
	m.mu.Lock()
	m.heavy.sort = sort
	m.mu.Unlock()
	m.process()
}

// SetFilter requests a new filter text; an empty string clears it.
func (m *Model) SetFilter(text string) {
	m.mu.Lock()
	m.heavy.filter = &text
	m.mu.Unlock()
	m.process()
}

// SetReportSelected requests that the next heavy response include the
// ids selected before it ran.
func (m *Model) SetReportSelected(report bool) {
	m.mu.Lock()
	m.heavy.reportSelected = report
	m.mu.Unlock()
	m.process()
}

// SetSuspendUpdates toggles write suspension. Turning it on does not
// send a request by itself — it is consumed by whichever heavy op
// dispatches next, diverting new writes to the shadow table. Turning
// it off marks the shadow for draining on the next heavy op even if
// no new deltas have arrived.
func (m *Model) SetSuspendUpdates(suspend bool) {
	m.mu.Lock()
	if suspend {
		m.data.suspendRequested = true
	} else {
		m.data.resumeUpdates = true
	}
	m.mu.Unlock()
	m.process()
}

// SetAutoScroll toggles the back's row-window scroll policy for the
// next re-selection.
func (m *Model) SetAutoScroll(enabled bool) {
	m.mu.Lock()
	m.autoScroll = enabled
	m.autoScrollDirty = true
	m.mu.Unlock()
	m.process()
}

// IngestDeltas queues a producer-delivered batch of upserts/deletes
// for the next heavy dispatch.
func (m *Model) IngestDeltas(batch rowschema.DeltaBatch) {
	m.mu.Lock()
	m.data.deltas.Deltas = append(m.data.deltas.Deltas, batch.Deltas...)
	m.data.deltas.DeletedIDs = append(m.data.deltas.DeletedIDs, batch.DeletedIDs...)
	m.mu.Unlock()
	m.process()
}

// SetLoadingStatus records a producer-reported transition in the
// overall initial-load state.
func (m *Model) SetLoadingStatus(status backcache.LoadingStatus) {
	m.mu.Lock()
	m.data.loading = status
	m.mu.Unlock()
	m.process()
}

// SetUserQuery requests a one-off pass-through SELECT; requestID
// correlates the eventual View.QueryCompleted call. An empty sql
// clears any not-yet-dispatched query.
func (m *Model) SetUserQuery(sql string, params []any, requestID string) {
	m.mu.Lock()
	m.query = pendingUserQuery{sql: sql, params: params, requestID: requestID}
	m.mu.Unlock()
	m.process()
}
