package frontmodel

import (
	"context"
	"time"

	"github.com/rowcache/tablecache/internal/backcache"
	"github.com/rowcache/tablecache/internal/eventproc"
	"github.com/rowcache/tablecache/internal/windowsnapshot"
)

// process runs one round of the decision loop: it checks for a
// pending clear first, gates everything on FrontendReady and the
// single-in-flight rule, then asks eventproc.Decide what to send.
// It is safe to call from any goroutine at any time — Set* methods,
// the response pump, and the debounce timer's own goroutine all call
// it after changing something that might unblock a send.
func (m *Model) process() {
	m.mu.Lock()
	if m.terminalErr != nil || m.inFlight {
		m.mu.Unlock()
		return
	}
	if m.pendingClear {
		m.pendingClear = false
		m.mu.Unlock()
		m.dispatchClear()
		return
	}

	if !m.frontendReady {
		needHeavy := !m.data.isEmpty()
		m.mu.Unlock()
		if needHeavy {
			m.dispatchHeavy()
		}
		m.refreshBusy()
		return
	}

	state := eventproc.State{
		BackendReady:        true,
		FrontendReady:       true,
		PendingUserQuery:    !m.query.isEmpty(),
		PendingUserEasy:     !m.easy.isEmpty(),
		PendingUserHeavy:    !m.heavy.isEmpty(),
		PendingDataIncoming: !m.data.isEmpty(),
	}
	if state.PendingUserHeavy || state.PendingDataIncoming {
		m.timer.Request()
	}
	state.TimerElapsed = m.timer.CheckAndPrepare()
	m.mu.Unlock()

	switch eventproc.Decide(state) {
	case eventproc.SendUserQuery:
		m.dispatchQuery()
	case eventproc.SendEasy:
		m.dispatchEasy()
	case eventproc.SendHeavy:
		m.dispatchHeavy()
	}
	m.refreshBusy()
}

func (m *Model) dispatchHeavy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return
	}
	batch, loading, suspend := m.data.swap()
	sort, filter, report := m.heavy.swap()
	autoScroll, autoScrollDirty := m.autoScroll, m.autoScrollDirty
	m.autoScrollDirty = false
	m.requestSeq++
	reqID := m.requestSeq
	m.inFlight = true
	m.timer.Allow(false)

	req := backcache.HeavyRequest{
		RequestId:      reqID,
		Deltas:         batch,
		Loading:        loading,
		Sort:           sort,
		Filter:         filter,
		ReportSelected: report,
		SuspendUpdates: suspend,
	}

	m.send(func(ctx context.Context, b *backcache.Back) {
		if autoScrollDirty {
			b.SetAutoScroll(autoScroll)
		}
		res, err := b.ProcessHeavy(ctx, req)
		m.respCh <- backResponse{kind: respHeavy, requestID: reqID, heavy: res, err: err}
	})
}

func (m *Model) dispatchEasy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return
	}
	row, selection, hints := m.easy.swap()
	m.requestSeq++
	reqID := m.requestSeq
	m.inFlight = true

	req := backcache.EasyRequest{RequestId: reqID, Row: row, Selection: selection, Hints: hints}
	m.send(func(ctx context.Context, b *backcache.Back) {
		res, err := b.ProcessEasy(ctx, req)
		m.respCh <- backResponse{kind: respEasy, requestID: reqID, easy: res, err: err}
	})
}

func (m *Model) dispatchQuery() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return
	}
	sql, params, id := m.query.swap()
	m.requestSeq++
	reqID := m.requestSeq
	m.inFlight = true

	m.send(func(ctx context.Context, b *backcache.Back) {
		rows, err := b.PerformSelect(ctx, sql, params)
		m.respCh <- backResponse{kind: respQuery, requestID: reqID, queryRows: rows, queryID: id, err: err}
	})
}

func (m *Model) dispatchClear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return
	}
	final := m.clearFinal
	m.requestSeq++
	reqID := m.requestSeq
	m.inFlight = true

	m.send(func(ctx context.Context, b *backcache.Back) {
		err := b.ClearTable(ctx, final)
		m.respCh <- backResponse{kind: respClear, requestID: reqID, err: err}
	})
}

// handleResponse applies a back-thread response. It always clears the
// in-flight gate and re-arms the debounce timer before anything else,
// so a view callback triggered below can itself cause the next
// dispatch.
func (m *Model) handleResponse(resp backResponse) {
	m.mu.Lock()
	m.inFlight = false
	m.timer.Allow(true)
	m.mu.Unlock()

	switch resp.kind {
	case respInit:
		m.handleInit(resp)
	case respClear:
		m.handleClear(resp)
	case respHeavy:
		m.timer.ProcessComplete()
		m.applySnapshot(resp.heavy.Snapshot, resp.err)
	case respEasy:
		m.applySnapshot(resp.easy.Snapshot, resp.err)
	case respQuery:
		m.view.QueryCompleted(resp.queryID, resp.queryRows, resp.err)
	}
	m.refreshBusy()
}

func (m *Model) handleInit(resp backResponse) {
	if resp.err != nil {
		m.setTerminal(resp.err)
		return
	}
	m.mu.Lock()
	m.frontendReady = true
	m.mu.Unlock()
}

func (m *Model) handleClear(resp backResponse) {
	if resp.err != nil {
		m.setTerminal(resp.err)
		return
	}
	empty := windowsnapshot.Empty()
	empty.RequestId = resp.requestID
	m.applySnapshot(empty, nil)
}

func (m *Model) setTerminal(err error) {
	m.mu.Lock()
	m.terminalErr = err
	m.mu.Unlock()
	m.log.Error("backcache reported a terminal failure", "err", err)
	m.view.TerminalError(err)
}

// applySnapshot runs the diff-and-notify sequence: remove the
// trailing rows dropped by a shrinking record count, report the
// changed span, add the trailing rows gained by a growing record
// count, then report a selection change, then ask the back to drop
// id-mappings older than the new version, and finally always report
// the new snapshot in full. Each row/selection notification is
// wrapped with the blocked-actions latch so a view that reacts to it
// by calling SetRowWindow/SetSelection synchronously doesn't start a
// second round trip for data it is only being told about, not asking
// to change.
func (m *Model) applySnapshot(next windowsnapshot.ViewWindowValues, err error) {
	if err != nil {
		m.setTerminal(err)
		return
	}

	m.mu.Lock()
	old := m.snapshot
	if next.RequestId < old.RequestId {
		m.mu.Unlock()
		return
	}
	m.snapshot = next
	m.mu.Unlock()

	if r, ok := windowsnapshot.PrepareRemoveRows(old.RecordsCount, next.RecordsCount); ok {
		m.notify(blockedRow, func() { m.view.RowsRemoved(r) })
	}
	if r, ok := windowsnapshot.PrepareChangeRows(old, next); ok {
		m.notify(blockedRow, func() { m.view.RowsChanged(r) })
	}
	if r, ok := windowsnapshot.PrepareAddRows(old.RecordsCount, next.RecordsCount); ok {
		m.notify(blockedRow, func() { m.view.RowsAdded(r) })
	}

	if !rangeSliceEqual(old.Selection, next.Selection) || old.CurrentRow != next.CurrentRow {
		m.notify(blockedSelection, func() { m.view.SelectionChanged(next.Selection, next.CurrentRow) })
	}

	if next.Version != old.Version {
		m.ConfirmVersionAsync(next.Version)
	}

	m.view.ViewWindowChanged(next)
}

// notify sets the given latch, runs call with the model unlocked, and
// clears the latch again — call must not itself hold m.mu.
func (m *Model) notify(kind blockedKind, call func()) {
	m.mu.Lock()
	m.blocked[kind] = true
	m.mu.Unlock()

	call()

	m.mu.Lock()
	m.blocked[kind] = false
	m.mu.Unlock()
}

func rangeSliceEqual(a, b []Range) bool {
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

// refreshBusy starts or stops the busy-cursor delay timer based on
// eventproc.Busy, and notifies the view immediately when the busy
// state clears (there is no point debouncing the relief).
func (m *Model) refreshBusy() {
	m.mu.Lock()
	want := m.busyWantLocked()
	var notifyOff bool
	switch {
	case want && m.busyTimer == nil && !m.busy:
		m.busyTimer = time.AfterFunc(m.busyDelay, m.onBusyTimer)
	case !want:
		if m.busyTimer != nil {
			m.busyTimer.Stop()
			m.busyTimer = nil
		}
		if m.busy {
			m.busy = false
			notifyOff = true
		}
	}
	m.mu.Unlock()

	if notifyOff {
		m.view.BusyChanged(false)
	}
}

func (m *Model) onBusyTimer() {
	m.mu.Lock()
	m.busyTimer = nil
	becomingBusy := m.busyWantLocked() && !m.busy
	if becomingBusy {
		m.busy = true
	}
	m.mu.Unlock()

	if becomingBusy {
		m.view.BusyChanged(true)
	}
}

// busyWantLocked evaluates eventproc.Busy against the current state.
// Callers must hold m.mu.
func (m *Model) busyWantLocked() bool {
	return eventproc.Busy(eventproc.State{
		FrontendReady:       m.frontendReady,
		BackendReady:        !m.inFlight,
		PendingUserHeavy:    !m.heavy.isEmpty(),
		PendingDataIncoming: !m.data.isEmpty(),
	})
}
