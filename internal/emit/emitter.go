// Package emit renders captured-request records as PowerShell snippets.
// Rendering is deterministic: structurally equal records always produce
// identical text.
package emit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dgnsrekt/portal_scribe/internal/types"
)

// DisclaimerHeader opens every bulk export.
const DisclaimerHeader = `# Generated by portal_scribe from observed portal traffic.
# These commands were reconstructed from network captures and have not
# been validated or executed. Review each line before running.

`

// Render produces the script text for one record. Matched records emit
// the cmdlet with flag-style arguments; unmatched ones fall back to the
// generic invocation carrying URL, method and body.
func Render(rec types.CapturedRequestRecord) string {
	if rec.Command == "" || rec.Command == types.FallbackCommand || rec.Arguments == nil {
		return renderFallback(rec)
	}

	var b strings.Builder
	b.WriteString(rec.Command)

	for _, name := range sortedArgNames(rec.Arguments) {
		value := rec.Arguments[name]
		if value == nil {
			continue
		}
		fmt.Fprintf(&b, " -%s \"%s\"", name, escapeQuotes(argString(value)))
	}
	return b.String()
}

// RenderAll concatenates the rendered form of every record under the
// disclaimer header, one command per line.
func RenderAll(recs []types.CapturedRequestRecord) string {
	var b strings.Builder
	b.WriteString(DisclaimerHeader)
	for _, rec := range recs {
		b.WriteString(Render(rec))
		b.WriteString("\n")
	}
	return b.String()
}

func renderFallback(rec types.CapturedRequestRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -Uri \"%s\" -Method \"%s\"", types.FallbackCommand, escapeQuotes(rec.URL), rec.Method)
	if rec.Body != nil {
		fmt.Fprintf(&b, " -Body \"%s\"", escapeQuotes(jsonString(rec.Body)))
	}
	return b.String()
}

func sortedArgNames(args map[string]any) []string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// argString renders an argument value. Strings pass through verbatim;
// everything else, scalar or not, is JSON-serialized.
func argString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return jsonString(value)
}

func jsonString(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}

// escapeQuotes prefixes every double quote with a backtick, matching
// PowerShell's escape character inside double-quoted strings.
// Backslashes are deliberately passed through untouched; a
// backslash-quote sequence therefore round-trips imperfectly, which
// matches the observed portal tooling rather than fixing it.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "`\"")
}
