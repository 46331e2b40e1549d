// Package exportcsv streams the full contents of a cache table to a
// CSV file on the back thread: cancellable, chunked, progress-reporting.
package exportcsv

import (
	"encoding/csv"
	"fmt"
	"os"

	tcerrors "github.com/rowcache/tablecache/internal/errors"
	"github.com/rowcache/tablecache/internal/rowschema"
)

// RowProvider fetches one chunk of rows starting at offset. It
// returns fewer than limit rows only on the final chunk.
type RowProvider func(offset, limit int) ([]rowschema.Row, error)

// Options configures one export run.
type Options struct {
	Columns   []string
	Total     int
	ChunkSize int
	// Progress, if set, is called after each chunk with done/total.
	Progress func(done, total int)
	// Cancelled, if set, is polled before each chunk and before each
	// row is written; when it returns
	// true the export stops and the partial file is removed.
	Cancelled func() bool
}

// WriteCSV writes header followed by every row fetch returns, in
// chunks of opts.ChunkSize, to path. On cancellation it removes the
// partial file and returns ErrExportCancelled.
func WriteCSV(path string, opts Options, fetch RowProvider) error {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 500
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exportcsv: create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(opts.Columns); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("exportcsv: write header: %w", err)
	}

	done := 0
	for offset := 0; ; offset += chunkSize {
		if opts.Cancelled != nil && opts.Cancelled() {
			w.Flush()
			f.Close()
			os.Remove(path)
			return tcerrors.ErrExportCancelled
		}

		rows, err := fetch(offset, chunkSize)
		if err != nil {
			w.Flush()
			f.Close()
			os.Remove(path)
			return fmt.Errorf("exportcsv: fetch rows at %d: %w", offset, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			if opts.Cancelled != nil && opts.Cancelled() {
				w.Flush()
				f.Close()
				os.Remove(path)
				return tcerrors.ErrExportCancelled
			}
			record := make([]string, len(row))
			for i, cell := range row {
				record[i] = cellText(cell)
			}
			if err := w.Write(record); err != nil {
				w.Flush()
				f.Close()
				os.Remove(path)
				return fmt.Errorf("exportcsv: write row: %w", err)
			}
		}

		done += len(rows)
		if opts.Progress != nil {
			opts.Progress(done, opts.Total)
		}
		if len(rows) < chunkSize {
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("exportcsv: flush: %w", err)
	}
	return f.Close()
}

// cellText renders a cell for CSV output; a null cell becomes an
// empty field rather than Cell.String's debug "<null>" marker.
func cellText(c rowschema.Cell) string {
	if c.Null {
		return ""
	}
	return c.String()
}
