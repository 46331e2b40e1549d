package backcache

import (
	"fmt"
	"strings"

	tcerrors "github.com/rowcache/tablecache/internal/errors"
	"github.com/rowcache/tablecache/internal/rowschema"
)

// SortSpec names a single-column sort: the column's index into the
// schema's field list and its direction.
type SortSpec struct {
	Column int
	Desc   bool
}

// SortSequence is a configured multi-column default sort strategy
// (e.g. "by category, then by name").
type SortSequence struct {
	Columns []SortSpec
}

// validateSortSequences is a construction-time check: no duplicate
// columns within a sequence, no out-of-range column indexes.
func validateSortSequences(schema rowschema.Schema, sequences []SortSequence) error {
	for _, seq := range sequences {
		seen := make(map[int]bool, len(seq.Columns))
		for _, c := range seq.Columns {
			if c.Column < 0 || c.Column >= len(schema.Fields) {
				return fmt.Errorf("backcache: %w: column %d out of range", tcerrors.ErrInvalidSortOrder, c.Column)
			}
			if seen[c.Column] {
				return fmt.Errorf("backcache: %w: duplicate column %d in default sort sequence", tcerrors.ErrInvalidSortOrder, c.Column)
			}
			seen[c.Column] = true
		}
	}
	return nil
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

// buildOrderBy composes the ORDER BY clause:
//   - user column inside a default sequence → that sequence verbatim,
//     every column using the user's direction; other sequences follow
//     using their own default directions.
//   - user column outside any sequence → the column alone in the
//     user's direction, then every default sequence in its own
//     direction.
//   - no user column → every default sequence in its own direction.
func (b *Back) buildOrderBy(user *SortSpec) (string, error) {
	fields := b.cfg.Schema.Fields
	colName := func(i int) (string, error) {
		if i < 0 || i >= len(fields) {
			return "", fmt.Errorf("backcache: %w: column %d out of range", tcerrors.ErrInvalidSortOrder, i)
		}
		return fields[i].Name, nil
	}

	emitSequence := func(seq SortSequence, overrideDir *string) ([]string, error) {
		out := make([]string, 0, len(seq.Columns))
		for _, c := range seq.Columns {
			name, err := colName(c.Column)
			if err != nil {
				return nil, err
			}
			dir := direction(c.Desc)
			if overrideDir != nil {
				dir = *overrideDir
			}
			out = append(out, fmt.Sprintf("%s %s", name, dir))
		}
		return out, nil
	}

	var clauses []string

	usedSeq := -1
	if user != nil {
		for si, seq := range b.cfg.DefaultSequences {
			for _, c := range seq.Columns {
				if c.Column == user.Column {
					usedSeq = si
					break
				}
			}
			if usedSeq >= 0 {
				break
			}
		}
	}

	switch {
	case user != nil && usedSeq >= 0:
		userDir := direction(user.Desc)
		part, err := emitSequence(b.cfg.DefaultSequences[usedSeq], &userDir)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, part...)
		for si, seq := range b.cfg.DefaultSequences {
			if si == usedSeq {
				continue
			}
			part, err := emitSequence(seq, nil)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, part...)
		}
	case user != nil:
		name, err := colName(user.Column)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, fmt.Sprintf("%s %s", name, direction(user.Desc)))
		for _, seq := range b.cfg.DefaultSequences {
			part, err := emitSequence(seq, nil)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, part...)
		}
	default:
		for _, seq := range b.cfg.DefaultSequences {
			part, err := emitSequence(seq, nil)
			if err != nil {
				return "", err
			}
			clauses = append(clauses, part...)
		}
	}

	return strings.Join(clauses, ", "), nil
}
