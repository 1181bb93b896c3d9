package types

import (
	"strings"
	"time"
)

// FallbackCommand is the generic invocation used when no mapping rule
// matches an observed URL. The emitter renders it with the raw URL,
// method and body instead of named arguments.
const FallbackCommand = "Invoke-PortalRequest"

// Headers is a case-insensitive header map. Keys keep the casing they
// were observed with; lookups ignore case.
type Headers map[string]string

// Get returns the value for name, matching case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	if v, ok := h[name]; ok {
		return v, true
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// RequestFinished is the post-completion signal for one network
// transaction. It carries the request-era metadata that is still visible
// once the response has arrived, but not the request body.
type RequestFinished struct {
	TabID     string
	URL       string
	Method    string
	Headers   Headers
	Timestamp time.Time
}

// CapturedRequestRecord is the immutable result of correlating a
// finished request with its captured body and a mapping rule. It is
// never mutated after the correlator hands it off; rendering a record
// into script text is a pure function of its fields.
type CapturedRequestRecord struct {
	ID         string    `json:"id"`
	ObservedAt time.Time `json:"observed_at"`
	TabID      string    `json:"tab_id,omitempty"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Headers    Headers   `json:"headers,omitempty"`

	// Command is the matched cmdlet name, or FallbackCommand when no
	// rule accepted the URL path.
	Command string `json:"command"`

	// Arguments holds the resolved cmdlet arguments. Nil when no rule
	// matched; values resolved to "no value" are simply absent.
	Arguments map[string]any `json:"arguments,omitempty"`

	// Body is the parsed JSON value of the captured request body, the
	// raw body text when it is not valid JSON, or nil when no body was
	// captured for this URL.
	Body any `json:"body,omitempty"`
}
