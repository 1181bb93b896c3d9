package resolve

import (
	"reflect"
	"testing"

	"github.com/dgnsrekt/portal_scribe/internal/rules"
	"github.com/dgnsrekt/portal_scribe/internal/types"
)

func ruleWithParams(t *testing.T, params string) *rules.Rule {
	t.Helper()
	table, err := rules.Parse([]byte(`[{"ApiUri": "https://x/a/{id}", "Cmdlet": "Test-Cmd", "Parameters": ` + params + `}]`))
	if err != nil {
		t.Fatalf("rules.Parse() error = %v", err)
	}
	return table.Rules()[0]
}

func TestResolveLiteralSpec(t *testing.T) {
	rule := ruleWithParams(t, `{"Force": "literal:$true"}`)

	args := Resolve(rule, Request{Method: "POST", URL: "https://x/a/1"})
	if got := args["Force"]; got != "$true" {
		t.Fatalf(`args["Force"] = %v; want "$true"`, got)
	}
}

func TestResolveHeaderSpecCaseInsensitive(t *testing.T) {
	rule := ruleWithParams(t, `{"Correlation": "header:X-MS-Correlation-Id", "Missing": "header:x-not-there"}`)

	args := Resolve(rule, Request{
		Headers: types.Headers{"x-ms-correlation-id": "abc-123"},
	})
	if got := args["Correlation"]; got != "abc-123" {
		t.Fatalf(`args["Correlation"] = %v; want "abc-123"`, got)
	}
	if _, ok := args["Missing"]; ok {
		t.Fatal("absent header resolved to a value; want omitted")
	}
}

func TestResolveDottedBodyPath(t *testing.T) {
	rule := ruleWithParams(t, `{"Id": "body.id", "Nested": "body.meta.owner", "Gone": "body.meta.absent.deep"}`)

	args := Resolve(rule, Request{
		Body: `{"id": 42, "meta": {"owner": "ops"}}`,
	})
	if got := args["Id"]; got != float64(42) {
		t.Fatalf(`args["Id"] = %v (%T); want 42`, got, got)
	}
	if got := args["Nested"]; got != "ops" {
		t.Fatalf(`args["Nested"] = %v; want "ops"`, got)
	}
	if _, ok := args["Gone"]; ok {
		t.Fatal("missing path resolved to a value; want omitted")
	}
}

func TestResolveMethodAndURL(t *testing.T) {
	rule := ruleWithParams(t, `{"Verb": "method", "Target": "url"}`)

	args := Resolve(rule, Request{Method: "PUT", URL: "https://x/a/1"})
	want := map[string]any{"Verb": "PUT", "Target": "https://x/a/1"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("Resolve() = %v; want %v", args, want)
	}
}

func TestResolveNeverFailsOnMalformedBody(t *testing.T) {
	rule := ruleWithParams(t, `{"Id": "body.id"}`)

	args := Resolve(rule, Request{Body: "foo=bar"})
	if len(args) != 0 {
		t.Fatalf("Resolve() = %v; want empty map for non-JSON body", args)
	}
}

func TestHeuristicsApplyOnlyWithoutExplicitSpecs(t *testing.T) {
	table, err := rules.Parse([]byte(`[{"ApiUri": "https://x/a", "Cmdlet": "Get-Thing"}]`))
	if err != nil {
		t.Fatalf("rules.Parse() error = %v", err)
	}

	args := Resolve(table.Rules()[0], Request{
		URL:  "https://x/a?skip=10&filter=active",
		Body: `{"count": 3, "label": "b", "nested": {"x": 1}, "none": null}`,
	})

	want := map[string]any{
		"Skip":   "10",
		"Filter": "active",
		"Count":  float64(3),
		"Label":  "b",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("Resolve() = %v; want %v", args, want)
	}
}

func TestExplicitSpecsSuppressHeuristics(t *testing.T) {
	rule := ruleWithParams(t, `{"Id": "body.id"}`)

	args := Resolve(rule, Request{
		URL:  "https://x/a/1?noise=yes",
		Body: `{"id": 1, "noise": "yes"}`,
	})
	if _, ok := args["Noise"]; ok {
		t.Fatal("heuristic argument produced despite explicit specs")
	}
	if got := args["Id"]; got != float64(1) {
		t.Fatalf(`args["Id"] = %v; want 1`, got)
	}
}
