package filtergrammar

import "strings"

// BuildCommonText concatenates the values at the given field indexes into
// the single string stored in a row's common full-text column. Each value
// is preceded by a ']' delimiter, matching the original cache's
// full-text projection so a whole-word filter can't accidentally span two
// adjacent fields.
func BuildCommonText(values []string, indexes []int) string {
	var b strings.Builder
	for _, idx := range indexes {
		if idx < 0 || idx >= len(values) {
			continue
		}
		b.WriteByte(']')
		b.WriteString(values[idx])
	}
	return b.String()
}
