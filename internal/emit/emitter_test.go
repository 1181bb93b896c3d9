package emit

import (
	"strings"
	"testing"

	"github.com/dgnsrekt/portal_scribe/internal/types"
)

func TestRenderMatchedCommand(t *testing.T) {
	rec := types.CapturedRequestRecord{
		Method:    "PUT",
		URL:       "https://x/apiproxy/mtp/devices/42",
		Command:   "Set-Device",
		Arguments: map[string]any{"Id": "42"},
		Body:      map[string]any{"id": float64(42)},
	}

	if got := Render(rec); got != `Set-Device -Id "42"` {
		t.Fatalf("Render() = %q; want %q", got, `Set-Device -Id "42"`)
	}
}

func TestRenderSortsArgumentsForDeterminism(t *testing.T) {
	rec := types.CapturedRequestRecord{
		Command: "Grant-UserPolicy",
		Arguments: map[string]any{
			"UserId":   "u1",
			"PolicyId": "p9",
			"Force":    "$true",
		},
	}

	want := `Grant-UserPolicy -Force "$true" -PolicyId "p9" -UserId "u1"`
	for i := 0; i < 20; i++ {
		if got := Render(rec); got != want {
			t.Fatalf("Render() run %d = %q; want %q", i, got, want)
		}
	}
}

func TestRenderOmitsNilArguments(t *testing.T) {
	rec := types.CapturedRequestRecord{
		Command:   "Set-Device",
		Arguments: map[string]any{"Id": "42", "Tag": nil},
	}

	got := Render(rec)
	if strings.Contains(got, "Tag") {
		t.Fatalf("Render() = %q; nil argument must be absent", got)
	}
}

func TestRenderNonScalarArgumentIsJSONSerialized(t *testing.T) {
	rec := types.CapturedRequestRecord{
		Command:   "Set-Policy",
		Arguments: map[string]any{"Settings": map[string]any{"mode": "strict"}},
	}

	want := "Set-Policy -Settings \"{`\"mode`\":`\"strict`\"}\""
	if got := Render(rec); got != want {
		t.Fatalf("Render() = %q; want %q", got, want)
	}
}

func TestRenderFallbackWithBody(t *testing.T) {
	rec := types.CapturedRequestRecord{
		Method:  "POST",
		URL:     "https://x/apiproxy/unknown/path",
		Command: types.FallbackCommand,
		Body:    map[string]any{"id": float64(42)},
	}

	want := "Invoke-PortalRequest -Uri \"https://x/apiproxy/unknown/path\" -Method \"POST\" -Body \"{`\"id`\":42}\""
	if got := Render(rec); got != want {
		t.Fatalf("Render() = %q; want %q", got, want)
	}
}

func TestRenderFallbackWithoutBodyHasNoBodyClause(t *testing.T) {
	rec := types.CapturedRequestRecord{
		Method:  "GET",
		URL:     "https://x/apiproxy/unknown/path",
		Command: types.FallbackCommand,
	}

	got := Render(rec)
	if !strings.HasPrefix(got, types.FallbackCommand) {
		t.Fatalf("Render() = %q; want fallback command prefix", got)
	}
	if !strings.Contains(got, "https://x/apiproxy/unknown/path") || !strings.Contains(got, "GET") {
		t.Fatalf("Render() = %q; want URL and method included", got)
	}
	if strings.Contains(got, "-Body") {
		t.Fatalf("Render() = %q; GET without body must have no body clause", got)
	}
}

func TestBackslashesPassThroughUnescaped(t *testing.T) {
	rec := types.CapturedRequestRecord{
		Command:   "Set-Device",
		Arguments: map[string]any{"Path": `C:\Temp\dev`},
	}

	want := "Set-Device -Path \"C:\\Temp\\dev\""
	if got := Render(rec); got != want {
		t.Fatalf("Render() = %q; want backslashes untouched", got)
	}
}

func TestRenderAllStartsWithDisclaimer(t *testing.T) {
	recs := []types.CapturedRequestRecord{
		{Command: "Get-DeviceList", Arguments: map[string]any{}},
		{Command: types.FallbackCommand, Method: "GET", URL: "https://x/y"},
	}

	got := RenderAll(recs)
	if !strings.HasPrefix(got, DisclaimerHeader) {
		t.Fatal("RenderAll() missing disclaimer header")
	}
	if !strings.Contains(got, "Get-DeviceList\n") {
		t.Fatalf("RenderAll() = %q; want one command per line", got)
	}
}
