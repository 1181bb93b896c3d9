package rules

import (
	"testing"
)

func mustParse(t *testing.T, data string) *Table {
	t.Helper()
	table, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return table
}

func TestMatchPlaceholderSingleSegment(t *testing.T) {
	table := mustParse(t, `[
		{"ApiUri": "https://x/apiproxy/mtp/devices/{id}", "Cmdlet": "Set-Device"}
	]`)

	rule, ok := table.Match("/apiproxy/mtp/devices/42")
	if !ok {
		t.Fatal("Match() = false; want true")
	}
	if rule.Cmdlet != "Set-Device" {
		t.Fatalf("Match() cmdlet = %q; want Set-Device", rule.Cmdlet)
	}

	// A placeholder covers exactly one path segment.
	if _, ok := table.Match("/apiproxy/mtp/devices/42/restart"); ok {
		t.Fatal("Match() across segment boundary = true; want false")
	}
	if _, ok := table.Match("/apiproxy/mtp/devices"); ok {
		t.Fatal("Match() with missing segment = true; want false")
	}
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	table := mustParse(t, `[
		{"ApiUri": "https://x/ApiProxy/MTP/Devices", "Cmdlet": "Get-DeviceList"}
	]`)

	if _, ok := table.Match("/apiproxy/mtp/devices"); !ok {
		t.Fatal("Match() = false; want case-insensitive match")
	}
}

func TestMatchIsTableOrderFirstWins(t *testing.T) {
	// The broad template is listed first on purpose: matching must not
	// rank by specificity.
	table := mustParse(t, `[
		{"ApiUri": "https://x/apiproxy/mtp/devices/{id}", "Cmdlet": "Broad"},
		{"ApiUri": "https://x/apiproxy/mtp/devices/special", "Cmdlet": "Narrow"}
	]`)

	rule, ok := table.Match("/apiproxy/mtp/devices/special")
	if !ok {
		t.Fatal("Match() = false; want true")
	}
	if rule.Cmdlet != "Broad" {
		t.Fatalf("Match() cmdlet = %q; want first rule in table order", rule.Cmdlet)
	}
}

func TestMatchNoRuleIsNotFound(t *testing.T) {
	table := mustParse(t, `[
		{"ApiUri": "https://x/apiproxy/mtp/devices", "Cmdlet": "Get-DeviceList"}
	]`)

	if _, ok := table.Match("/apiproxy/unknown/path"); ok {
		t.Fatal("Match() = true; want false for unmapped path")
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	table := mustParse(t, `[
		{"ApiUri": "https://x/a/{p}", "Cmdlet": "First"},
		{"ApiUri": "https://x/a/{q}", "Cmdlet": "Second"}
	]`)

	for i := 0; i < 10; i++ {
		rule, ok := table.Match("/a/value")
		if !ok || rule.Cmdlet != "First" {
			t.Fatalf("Match() run %d = %v; want First every time", i, rule)
		}
	}
}

func TestParseRejectsMissingCmdlet(t *testing.T) {
	if _, err := Parse([]byte(`[{"ApiUri": "https://x/a"}]`)); err == nil {
		t.Fatal("Parse() error = nil; want missing Cmdlet error")
	}
}

func TestDefaultTableLoadsAndMatches(t *testing.T) {
	table, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Len() == 0 {
		t.Fatal("Load() default table is empty")
	}

	rule, ok := table.Match("/apiproxy/mtp/devices/42")
	if !ok || rule.Cmdlet != "Set-Device" {
		t.Fatalf("Match() = %v, %v; want Set-Device", rule, ok)
	}
}
