// Package flow implements flow script management and the conversation
// execution engine for waflow.
package flow

import "regexp"

var placeholderRegex = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// Render substitutes {{identifier}} placeholders in text with values from
// data. Absent fields render as an empty string. Text that does not match
// the placeholder syntax is left untouched; no escaping is applied since
// the output is plain chat text.
func Render(text string, data map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderRegex.FindStringSubmatch(match)[1]
		return data[key]
	})
}
