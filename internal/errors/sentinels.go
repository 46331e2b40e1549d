package errors

import "errors"

// Sentinel errors for the cache's failure taxonomy. Callers wrap these
// with fmt.Errorf("...: %w", ErrX) so errors.Is still matches them.
var (
	// ErrStorageFailure wraps any SQL error on prepare/exec/fetch.
	ErrStorageFailure = errors.New("storage failure")
	// ErrInvalidSortOrder is returned at construction when default
	// sort sequences contain duplicate or out-of-range columns.
	ErrInvalidSortOrder = errors.New("invalid sort order")
	// ErrFieldCountExceeded is returned at construction when the field
	// list exceeds the backing engine's bound-parameter limit.
	ErrFieldCountExceeded = errors.New("field count exceeded")
	// ErrUserQueryNotSelect is returned when a pass-through query is
	// not a read-only SELECT.
	ErrUserQueryNotSelect = errors.New("user query is not a select statement")
	// ErrExportCancelled is returned by exportcsv.WriteCSV when a
	// cooperative export cancel was observed; backcache.OnExport turns
	// it into a nil result, so it is not surfaced as a failure.
	ErrExportCancelled = errors.New("export cancelled")
)
