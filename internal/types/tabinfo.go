package types

// TabInfo holds metadata about an attached portal tab, used to route
// session-log records to per-host writers.
type TabInfo struct {
	TargetID    string
	URL         string
	HostSegment string // Filesystem-safe portal host, e.g. "admin_portal_example"
	ShortID     string // Short ID derived from the target ID, e.g. "B0D5A8E8"
}

// TabInfoProvider looks up tab metadata by tab ID. It exists so the
// session layer does not import the cdp package directly.
type TabInfoProvider interface {
	GetByStringID(tabID string) (*TabInfo, bool)
}
