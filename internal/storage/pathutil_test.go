package storage

import "testing"

func TestHostSegment(t *testing.T) {
	cases := []struct {
		rawURL string
		want   string
	}{
		{"https://admin.portal.example/devices", "admin_portal_example"},
		{"https://admin.portal.example:8443/x", "admin_portal_example_8443"},
		{"not-a-url", "unknown_host"},
	}
	for _, tc := range cases {
		got, err := HostSegment(tc.rawURL)
		if err != nil {
			t.Fatalf("HostSegment(%q) error = %v", tc.rawURL, err)
		}
		if got != tc.want {
			t.Fatalf("HostSegment(%q) = %q; want %q", tc.rawURL, got, tc.want)
		}
	}
}

func TestShortTargetID(t *testing.T) {
	if got := ShortTargetID("B0D5A8E8FFAA0011"); got != "B0D5A8E8" {
		t.Fatalf("ShortTargetID() = %q; want B0D5A8E8", got)
	}
	if got := ShortTargetID("AB"); got != "AB" {
		t.Fatalf("ShortTargetID() = %q; want AB", got)
	}
}
