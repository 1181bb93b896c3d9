package storage

import (
	"net/url"
	"strings"
)

// HostSegment turns a tab URL's host into a filesystem-safe directory
// segment, e.g. "admin.portal.example:443" -> "admin_portal_example_443".
func HostSegment(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := parsed.Host
	if host == "" {
		return "unknown_host", nil
	}
	host = strings.ReplaceAll(host, ".", "_")
	host = strings.ReplaceAll(host, ":", "_")
	return host, nil
}

// ShortTargetID returns the first 8 chars of a CDP target ID, used as a
// stable filename stem per tab.
func ShortTargetID(targetID string) string {
	if len(targetID) >= 8 {
		return targetID[:8]
	}
	return targetID
}
