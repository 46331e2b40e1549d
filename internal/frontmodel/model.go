// Package frontmodel is the coordination core sitting on top of
// internal/backcache: it holds the pending-work buckets a view
// mutates synchronously, decides via internal/eventproc what to send
// next, and owns the dedicated back thread that exclusively drives
// the backcache.Back instance across a request/response channel
// pair. A Model is safe for concurrent use from any number of
// goroutines — a UI callback, a producer goroutine, a timer — the
// same way a single cooperative front thread would be, except the
// serialization is a mutex instead of goroutine affinity.
package frontmodel

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rowcache/tablecache/internal/backcache"
	"github.com/rowcache/tablecache/internal/eventproc"
	"github.com/rowcache/tablecache/internal/logging"
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/rowcache/tablecache/internal/windowsnapshot"
)

// Config parameterizes a Model.
type Config struct {
	// DB is the connection the back thread will own exclusively.
	DB *sql.DB
	// Back configures the backcache.Back instance.
	Back backcache.Config
	// View receives the model's notifications. Defaults to NoopView.
	View View
	// Logger receives operational tracing. Defaults to logging.GetGlobal().
	Logger logging.Logger
	// BusyDelay is how long the busy predicate must stay true before
	// View.BusyChanged(true) fires. Defaults to one second.
	BusyDelay time.Duration
}

type backJob func(ctx context.Context, back *backcache.Back)

type responseKind int

const (
	respInit responseKind = iota
	respClear
	respHeavy
	respEasy
	respQuery
)

type backResponse struct {
	kind      responseKind
	requestID int64
	heavy     backcache.HeavyResult
	easy      backcache.EasyResult
	queryRows []rowschema.Row
	queryID   string
	err       error
}

// Model is the front model: pending-work buckets, the decision loop,
// and the channel to the back thread.
type Model struct {
	mu sync.Mutex

	data  pendingDataIncoming
	heavy pendingUserHeavy
	easy  pendingUserEasy
	query pendingUserQuery

	autoScroll      bool
	autoScrollDirty bool

	frontendReady bool
	terminalErr   error
	snapshot      windowsnapshot.ViewWindowValues

	inFlight     bool
	pendingClear bool
	clearFinal   bool

	blocked map[blockedKind]bool

	timer *eventproc.DebounceTimer

	busy      bool
	busyTimer *time.Timer
	busyDelay time.Duration

	view View
	log  logging.Logger

	reqCh    chan backJob
	respCh   chan backResponse
	backDone chan struct{}

	requestSeq int64
	stopped    bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Model and its back thread. The back thread starts
// immediately; call InitDbTableAsync to create the tables before
// issuing any other operation.
func New(cfg Config) (*Model, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("frontmodel: Config.DB is required")
	}
	back, err := backcache.New(cfg.DB, cfg.Back)
	if err != nil {
		return nil, err
	}

	view := cfg.View
	if view == nil {
		view = NoopView{}
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetGlobal()
	}
	busyDelay := cfg.BusyDelay
	if busyDelay <= 0 {
		busyDelay = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		blocked:   make(map[blockedKind]bool, 2),
		view:      view,
		log:       log,
		busyDelay: busyDelay,
		reqCh:     make(chan backJob, 4),
		respCh:    make(chan backResponse, 4),
		backDone:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.timer = eventproc.NewDebounceTimer(func() {
		m.log.Debug("debounce timer fired")
		m.process()
	})
	m.timer.Allow(true)

	go m.runBackThread(back)
	go m.pump()

	return m, nil
}

// runBackThread is the back thread: it exclusively owns back and runs
// every job handed to it, strictly in send order, until reqCh closes.
func (m *Model) runBackThread(back *backcache.Back) {
	defer close(m.backDone)
	for job := range m.reqCh {
		job(m.ctx, back)
	}
}

// pump delivers back-thread responses to handleResponse and re-runs
// the decision loop after each one, all on its own goroutine so a
// slow view notification never blocks the back thread.
func (m *Model) pump() {
	for resp := range m.respCh {
		m.handleResponse(resp)
		m.process()
	}
}

// Snapshot returns the most recently applied window snapshot.
func (m *Model) Snapshot() windowsnapshot.ViewWindowValues {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Busy reports the current busy-cursor state.
func (m *Model) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// TerminalError returns the unrecoverable storage failure, if any.
func (m *Model) TerminalError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminalErr
}

// Ready reports whether InitDbTableAsync has completed successfully.
func (m *Model) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frontendReady
}

// send enqueues job for the back thread while holding m.mu, so it can
// never race Stop's close(m.reqCh) with a send on a closed channel.
// Callers must already hold m.mu and must not call send again before
// releasing it.
func (m *Model) send(job backJob) {
	if m.stopped {
		return
	}
	m.reqCh <- job
}

// InitDbTableAsync creates the main and suspended tables. Its
// completion flips FrontendReady, the gate that lets easy operations
// and user-initiated heavy operations through for the first time.
func (m *Model) InitDbTableAsync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return
	}
	m.requestSeq++
	reqID := m.requestSeq
	m.inFlight = true
	m.send(func(ctx context.Context, b *backcache.Back) {
		err := b.InitDbTable(ctx)
		m.respCh <- backResponse{kind: respInit, requestID: reqID, err: err}
	})
}

// ClearTableAsync requests both tables be emptied and all versioning
// state reset. It takes priority over any other pending work once
// dispatched.
func (m *Model) ClearTableAsync(isFinal bool) {
	m.mu.Lock()
	m.pendingClear = true
	m.clearFinal = isFinal
	m.mu.Unlock()
	m.process()
}

// ConfirmVersionAsync tells the back it no longer needs id-mappings
// older than v. It carries no response; the back thread's FIFO
// ordering is enough to know it has been applied once a later
// response arrives.
func (m *Model) ConfirmVersionAsync(v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.send(func(ctx context.Context, b *backcache.Back) {
		b.ConfirmVersion(v)
	})
}

// ExportAsync streams the table to a CSV file on the back thread,
// serialized with every other data operation by virtue of sharing the
// same request channel. done is called with the outcome once the
// write finishes or cancelled reports true.
func (m *Model) ExportAsync(path string, columnIndexes []int, chunkSize int, progress func(done, total int), cancelled func() bool, done func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.send(func(ctx context.Context, b *backcache.Back) {
		err := b.OnExport(ctx, path, columnIndexes, chunkSize, progress, cancelled)
		if done != nil {
			done(err)
		}
	})
}

// Stop requests the back thread stop and waits for it, in 500ms
// increments, up to 50 seconds. Go has no way to forcibly terminate a
// goroutine, so past that budget Stop gives up waiting and returns;
// the goroutine finishes whatever SQL call it was blocked on and
// exits on its own once reqCh is drained.
func (m *Model) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.reqCh)
	m.mu.Unlock()

	m.cancel()

	const step = 500 * time.Millisecond
	const budget = 50 * time.Second
	waited := time.Duration(0)
	for waited < budget {
		select {
		case <-m.backDone:
			close(m.respCh)
			return
		case <-time.After(step):
			waited += step
		}
	}
	m.log.Warn("back thread did not stop within the shutdown budget; abandoning the wait")
}
