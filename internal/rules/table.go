// Package rules maps observed portal URLs onto a cmdlet vocabulary via
// a static table of parameterized URL templates.
package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

//go:embed default_rules.json
var defaultRules []byte

// Rule is one immutable command-mapping entry. ApiUri is a full URL
// template whose {name} placeholders mark variable path segments;
// Parameters maps argument names to extraction-source expressions
// ("literal:...", "header:...", or a dotted path into the composed
// request).
type Rule struct {
	ApiUri     string            `json:"ApiUri"`
	Cmdlet     string            `json:"Cmdlet"`
	Parameters map[string]string `json:"Parameters,omitempty"`

	path    string
	pattern *regexp.Regexp
}

// TemplatePath returns the path portion of the rule's URL template.
func (r *Rule) TemplatePath() string { return r.path }

// Table is an ordered rule set. Matching is strictly table-order,
// first-match-wins: authors put more specific templates before general
// ones. Rules are never ranked by specificity.
type Table struct {
	rules []*Rule
}

// Load reads a rule table from a JSON file. An empty path loads the
// embedded default table.
func Load(path string) (*Table, error) {
	if path == "" {
		return Parse(defaultRules)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and compiles a rule table from JSON.
func Parse(data []byte) (*Table, error) {
	var entries []*Rule
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode rule table: %w", err)
	}

	for i, r := range entries {
		if r.Cmdlet == "" {
			return nil, fmt.Errorf("rule %d: missing Cmdlet", i)
		}
		if err := r.compile(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Cmdlet, err)
		}
	}
	return &Table{rules: entries}, nil
}

// Match returns the first rule whose compiled template accepts
// urlPath. A template accepts the path when its placeholder pattern
// matches case-insensitively as an anchored expression, or when the
// template path equals the path case-insensitively.
func (t *Table) Match(urlPath string) (*Rule, bool) {
	for _, r := range t.rules {
		if strings.EqualFold(r.path, urlPath) {
			return r, true
		}
		if r.pattern != nil && r.pattern.MatchString(urlPath) {
			return r, true
		}
	}
	return nil, false
}

// Rules returns the table entries in order.
func (t *Table) Rules() []*Rule { return t.rules }

// Len reports the number of rules.
func (t *Table) Len() int { return len(t.rules) }

var placeholderRe = regexp.MustCompile(`^\{[^/{}]+\}$`)

// compile extracts the template path and builds the anchored,
// case-insensitive matcher with each {name} placeholder replaced by a
// single-path-segment wildcard.
func (r *Rule) compile() error {
	parsed, err := url.Parse(r.ApiUri)
	if err != nil {
		return fmt.Errorf("parse template %q: %w", r.ApiUri, err)
	}
	r.path = parsed.Path
	if r.path == "" {
		r.path = r.ApiUri
	}

	segments := strings.Split(r.path, "/")
	for i, seg := range segments {
		if placeholderRe.MatchString(seg) {
			segments[i] = "[^/]+"
		} else {
			segments[i] = regexp.QuoteMeta(seg)
		}
	}

	r.pattern, err = regexp.Compile("(?i)^" + strings.Join(segments, "/") + "$")
	if err != nil {
		return fmt.Errorf("compile template %q: %w", r.ApiUri, err)
	}
	return nil
}
