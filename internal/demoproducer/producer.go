// Package demoproducer feeds a frontmodel.Model from two independent
// sources: a debounced filesystem watch over a drop directory (csv
// files containing rows to upsert) and a cron-scheduled synthetic
// churn generator, for exercising the pipeline without a real
// upstream system. Both sources bracket their bursts with
// SetLoadingStatus(LoadingStarted)/(LoadingFinished) the way a real
// producer would mark the boundaries of one write.
package demoproducer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/rowcache/tablecache/internal/backcache"
	"github.com/rowcache/tablecache/internal/frontmodel"
	"github.com/rowcache/tablecache/internal/logging"
	"github.com/rowcache/tablecache/internal/rowschema"
)

// Model is the subset of frontmodel.Model the producer depends on.
type Model interface {
	IngestDeltas(batch rowschema.DeltaBatch)
	SetLoadingStatus(status backcache.LoadingStatus)
}

var _ Model = (*frontmodel.Model)(nil)

// Config parameterizes a Producer.
type Config struct {
	// WatchDir is scanned for *.csv files on startup and watched for
	// new/changed ones afterward. Empty disables the file source.
	WatchDir string
	// Schema describes the columns each CSV row must supply, in order.
	Schema rowschema.Schema
	// ChurnCronSpec schedules the synthetic churn generator, standard
	// five-field cron syntax. Empty disables the cron source.
	ChurnCronSpec string
	// ChurnRowCount is how many rows the churn generator upserts per
	// scheduled run.
	ChurnRowCount int
	// DebounceDelay groups filesystem events arriving within this
	// window into a single burst, mirroring a hot-loader's coalescing.
	DebounceDelay time.Duration
	Logger        logging.Logger
}

// Producer owns a fsnotify watcher and a cron scheduler, both feeding
// the same Model.
type Producer struct {
	cfg   Config
	model Model
	log   logging.Logger

	watcher *fsnotify.Watcher
	cron    *cron.Cron

	debounceMu     sync.Mutex
	pendingReloads map[string]time.Time

	nextID int64
	idMu   sync.Mutex

	done chan struct{}
}

// New constructs a Producer. Call Start to begin watching/scheduling.
func New(model Model, cfg Config) (*Producer, error) {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 150 * time.Millisecond
	}
	if cfg.ChurnRowCount <= 0 {
		cfg.ChurnRowCount = 5
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetGlobal()
	}
	p := &Producer{
		cfg:            cfg,
		model:          model,
		log:            log,
		pendingReloads: make(map[string]time.Time),
		done:           make(chan struct{}),
	}
	return p, nil
}

// Start begins both sources. It is an error to call Start twice.
func (p *Producer) Start(ctx context.Context) error {
	if p.cfg.WatchDir != "" {
		if err := p.startFileWatch(ctx); err != nil {
			return fmt.Errorf("demoproducer: %w", err)
		}
	}
	if p.cfg.ChurnCronSpec != "" {
		p.startCron()
	}
	return nil
}

// Stop tears down both sources. Safe to call even if Start was never
// called or one source was disabled.
func (p *Producer) Stop() {
	select {
	case <-p.done:
		return
	default:
		close(p.done)
	}
	if p.watcher != nil {
		p.watcher.Close()
	}
	if p.cron != nil {
		p.cron.Stop()
	}
}

func (p *Producer) startFileWatch(ctx context.Context) error {
	if err := os.MkdirAll(p.cfg.WatchDir, 0755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	p.watcher = watcher
	if err := watcher.Add(p.cfg.WatchDir); err != nil {
		watcher.Close()
		return err
	}

	entries, err := os.ReadDir(p.cfg.WatchDir)
	if err == nil {
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".csv") {
				p.queueReload(filepath.Join(p.cfg.WatchDir, e.Name()))
			}
		}
	}

	go p.eventLoop()
	go p.debounceLoop()
	p.log.Info("demoproducer: watching directory", "dir", p.cfg.WatchDir)
	_ = ctx
	return nil
}

func (p *Producer) eventLoop() {
	for {
		select {
		case <-p.done:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".csv") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				p.queueReload(event.Name)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.log.Warn("demoproducer: watcher error", "err", err)
		}
	}
}

func (p *Producer) queueReload(path string) {
	p.debounceMu.Lock()
	p.pendingReloads[path] = time.Now()
	p.debounceMu.Unlock()
}

func (p *Producer) debounceLoop() {
	ticker := time.NewTicker(p.cfg.DebounceDelay / 2)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.flushDueReloads()
		}
	}
}

func (p *Producer) flushDueReloads() {
	p.debounceMu.Lock()
	now := time.Now()
	var due []string
	for path, queuedAt := range p.pendingReloads {
		if now.Sub(queuedAt) >= p.cfg.DebounceDelay {
			due = append(due, path)
			delete(p.pendingReloads, path)
		}
	}
	p.debounceMu.Unlock()

	for _, path := range due {
		p.loadCSVFile(path)
	}
}

func (p *Producer) loadCSVFile(path string) {
	burstID := uuid.NewString()
	f, err := os.Open(path)
	if err != nil {
		p.log.Warn("demoproducer: cannot open dropped file", "path", path, "burst", burstID, "err", err)
		return
	}
	defer f.Close()

	reader := csv.NewReader(f)
	batch := rowschema.DeltaBatch{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.log.Warn("demoproducer: malformed csv row", "path", path, "burst", burstID, "err", err)
			break
		}
		row, err := p.parseRow(record)
		if err != nil {
			p.log.Warn("demoproducer: skipping row", "path", path, "burst", burstID, "err", err)
			continue
		}
		batch.Deltas = append(batch.Deltas, rowschema.NewUpsert(row))
	}
	if batch.IsEmpty() {
		return
	}

	p.log.Info("demoproducer: ingesting file burst", "path", path, "burst", burstID, "rows", len(batch.Deltas))
	p.model.SetLoadingStatus(backcache.LoadingStarted)
	p.model.IngestDeltas(batch)
	p.model.SetLoadingStatus(backcache.LoadingFinished)
}

func (p *Producer) parseRow(record []string) (rowschema.Row, error) {
	fields := p.cfg.Schema.Fields
	if len(record) != len(fields) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(fields), len(record))
	}
	row := make(rowschema.Row, len(fields))
	for i, f := range fields {
		cell, err := cellFromString(f.Kind, record[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		row[i] = cell
	}
	return row, nil
}

func cellFromString(kind rowschema.FieldKind, value string) (rowschema.Cell, error) {
	if value == "" {
		return rowschema.CellNull(kind), nil
	}
	switch kind {
	case rowschema.Integer:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return rowschema.Cell{}, err
		}
		return rowschema.CellInt64(n), nil
	case rowschema.Double:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return rowschema.Cell{}, err
		}
		return rowschema.CellFloat64(f), nil
	case rowschema.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return rowschema.Cell{}, err
		}
		return rowschema.CellBool(b), nil
	default:
		return rowschema.CellString(value), nil
	}
}

func (p *Producer) startCron() {
	c := cron.New()
	_, err := c.AddFunc(p.cfg.ChurnCronSpec, p.runChurn)
	if err != nil {
		p.log.Warn("demoproducer: invalid cron expression", "spec", p.cfg.ChurnCronSpec, "err", err)
		return
	}
	c.Start()
	p.cron = c
	p.log.Info("demoproducer: scheduled synthetic churn", "spec", p.cfg.ChurnCronSpec, "rows", p.cfg.ChurnRowCount)
}

func (p *Producer) runChurn() {
	burstID := uuid.NewString()
	batch := rowschema.DeltaBatch{}
	for i := 0; i < p.cfg.ChurnRowCount; i++ {
		row := p.syntheticRow()
		batch.Deltas = append(batch.Deltas, rowschema.NewUpsert(row))
	}
	p.log.Debug("demoproducer: churn burst", "burst", burstID, "rows", len(batch.Deltas))
	p.model.SetLoadingStatus(backcache.LoadingStarted)
	p.model.IngestDeltas(batch)
	p.model.SetLoadingStatus(backcache.LoadingFinished)
}

func (p *Producer) syntheticRow() rowschema.Row {
	fields := p.cfg.Schema.Fields
	row := make(rowschema.Row, len(fields))
	row[0] = rowschema.CellInt64(p.nextSyntheticID())
	for i := 1; i < len(fields); i++ {
		switch fields[i].Kind {
		case rowschema.Integer:
			row[i] = rowschema.CellInt64(rand.Int63n(1000))
		case rowschema.Double:
			row[i] = rowschema.CellFloat64(rand.Float64() * 1000)
		case rowschema.Bool:
			row[i] = rowschema.CellBool(rand.Intn(2) == 0)
		default:
			row[i] = rowschema.CellString(fmt.Sprintf("%s-%d", fields[i].Name, rand.Intn(10000)))
		}
	}
	return row
}

func (p *Producer) nextSyntheticID() int64 {
	p.idMu.Lock()
	defer p.idMu.Unlock()
	p.nextID++
	return p.nextID
}
