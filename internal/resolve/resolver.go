// Package resolve turns a rule's declared extraction sources into
// concrete argument values for one composed request.
package resolve

import (
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dgnsrekt/portal_scribe/internal/rules"
	"github.com/dgnsrekt/portal_scribe/internal/types"
)

const (
	literalPrefix = "literal:"
	headerPrefix  = "header:"
)

// Request is the composed request a rule's parameter specs read from.
type Request struct {
	Method  string
	URL     string
	Headers types.Headers
	Body    string // raw body text, empty when none was captured
}

// Resolve applies each parameter spec of rule to req and returns the
// argument map. A spec that resolves to nothing is simply absent from
// the result; nothing here is an error. When the rule declares no specs
// at all, heuristic extraction from the query string and the body's
// top-level scalar fields kicks in instead.
func Resolve(rule *rules.Rule, req Request) map[string]any {
	if len(rule.Parameters) == 0 {
		return resolveHeuristic(req)
	}

	args := make(map[string]any, len(rule.Parameters))
	for name, spec := range rule.Parameters {
		if value, ok := resolveSpec(spec, req); ok {
			args[name] = value
		}
	}
	return args
}

func resolveSpec(spec string, req Request) (any, bool) {
	switch {
	case strings.HasPrefix(spec, literalPrefix):
		return strings.TrimPrefix(spec, literalPrefix), true
	case strings.HasPrefix(spec, headerPrefix):
		v, ok := req.Headers.Get(strings.TrimPrefix(spec, headerPrefix))
		if !ok {
			return nil, false
		}
		return v, true
	default:
		return resolvePath(spec, req)
	}
}

// resolvePath walks a dotted path over the composed request. The first
// segment selects method, url, headers or body; any missing
// intermediate short-circuits to "no value".
func resolvePath(path string, req Request) (any, bool) {
	root, rest, _ := strings.Cut(path, ".")

	switch strings.ToLower(root) {
	case "method":
		if rest != "" || req.Method == "" {
			return nil, false
		}
		return req.Method, true
	case "url":
		if rest != "" || req.URL == "" {
			return nil, false
		}
		return req.URL, true
	case "headers":
		if rest == "" {
			return nil, false
		}
		v, ok := req.Headers.Get(rest)
		if !ok {
			return nil, false
		}
		return v, true
	case "body":
		return resolveBodyPath(rest, req.Body)
	default:
		return nil, false
	}
}

func resolveBodyPath(path, body string) (any, bool) {
	if body == "" {
		return nil, false
	}
	if path == "" {
		if gjson.Valid(body) {
			return gjson.Parse(body).Value(), true
		}
		return body, true
	}
	if !gjson.Valid(body) {
		return nil, false
	}
	result := gjson.Get(body, path)
	if !result.Exists() || result.Type == gjson.Null {
		return nil, false
	}
	return result.Value(), true
}

// resolveHeuristic runs only for rules without explicit specs: every
// URL query parameter and every top-level scalar body field becomes an
// argument named by capitalizing its first letter.
func resolveHeuristic(req Request) map[string]any {
	args := make(map[string]any)

	if parsed, err := url.Parse(req.URL); err == nil {
		for name, values := range parsed.Query() {
			if name == "" || len(values) == 0 {
				continue
			}
			args[capitalize(name)] = values[0]
		}
	}

	if req.Body != "" && gjson.Valid(req.Body) {
		parsed := gjson.Parse(req.Body)
		if parsed.IsObject() {
			parsed.ForEach(func(key, value gjson.Result) bool {
				if isScalar(value) {
					args[capitalize(key.String())] = value.Value()
				}
				return true
			})
		}
	}

	return args
}

func isScalar(v gjson.Result) bool {
	switch v.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return true
	default:
		return false
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
