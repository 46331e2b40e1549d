// Package filtergrammar translates a user-entered text filter into a SQL
// predicate over a column expression; the match runs inside the embedded
// SQL engine instead of Go.
package filtergrammar

import (
	"fmt"
	"strings"
)

// Mode selects which SQL operator a filter compiles to.
type Mode int

const (
	// Substring matches via SQL GLOB with '*' wildcards on both ends.
	Substring Mode = iota
	// WholeWords matches the filter text as a whole word via REGEXP.
	WholeWords
	// RegExp matches the filter text as a raw regular expression.
	RegExp
)

// Options configures how a filter compiles against a column expression.
type Options struct {
	Mode          Mode
	CaseSensitive bool
}

// DefaultOptions returns the substring, case-insensitive default.
func DefaultOptions() Options {
	return Options{Mode: Substring, CaseSensitive: false}
}

// Compile builds a SQL boolean expression that tests columnExpr against
// filterText per opts. An empty filterText compiles to the literal TRUE,
// matching the cache table wrapper's $filter$ placeholder convention.
func Compile(columnExpr, filterText string, opts Options) string {
	if filterText == "" {
		return "TRUE"
	}

	expr := columnExpr
	text := filterText
	if !opts.CaseSensitive {
		expr = fmt.Sprintf("LOWER(%s)", columnExpr)
		text = strings.ToLower(filterText)
	}

	switch opts.Mode {
	case WholeWords:
		return fmt.Sprintf("%s REGEXP '\\b%s\\b'", expr, escapeRegexLiteral(text))
	case RegExp:
		return fmt.Sprintf("%s REGEXP '%s'", expr, escapeRegexLiteral(text))
	default:
		return fmt.Sprintf("%s GLOB '*%s*'", expr, escapeGlobLiteral(text))
	}
}

// escapeRegexLiteral doubles single quotes so the pattern survives being
// embedded inside a single-quoted SQL string literal.
func escapeRegexLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// escapeGlobLiteral doubles single quotes for the same reason; GLOB's own
// wildcard characters ('*', '?', '[') are intentionally left alone so a
// user can embed them, matching the teacher's un-sanitized substring
// search strategy.
func escapeGlobLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
