// Package correlate joins the two independently-timed capture signals
// for a request: the pre-send body capture and the post-completion
// metadata event.
package correlate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/portal_scribe/internal/msgchan"
	"github.com/dgnsrekt/portal_scribe/internal/resolve"
	"github.com/dgnsrekt/portal_scribe/internal/rules"
	"github.com/dgnsrekt/portal_scribe/internal/types"
)

// BodySource fetches the pending body captured for a URL, best effort.
// ok=false means no body is known for the URL, which is normal for
// bodyless requests. A non-nil error is a channel failure; the record
// is still built with a nil body.
type BodySource interface {
	FetchBody(ctx context.Context, url string) (body, method string, ok bool, err error)
}

// Correlator builds one immutable record per finished request. It holds
// no per-request state of its own: the capture store is the only bridge
// between the two signals, and it is keyed by URL alone, so concurrent
// identical URLs are not told apart.
type Correlator struct {
	bodies BodySource
	table  *rules.Table
}

func New(bodies BodySource, table *rules.Table) *Correlator {
	return &Correlator{bodies: bodies, table: table}
}

// Process turns a request-finished signal into a captured-request
// record. Nothing here is fatal: a missing body, an unmatched URL or a
// failed body fetch all degrade the record instead of erroring.
func (c *Correlator) Process(ctx context.Context, fin types.RequestFinished) types.CapturedRequestRecord {
	var bodyText string
	body, _, ok, err := c.bodies.FetchBody(ctx, fin.URL)
	if err != nil {
		slog.Warn("pending body fetch failed", "url", fin.URL, "error", err)
	} else if ok {
		bodyText = body
	}

	rec := types.CapturedRequestRecord{
		ID:         uuid.NewString(),
		ObservedAt: fin.Timestamp,
		TabID:      fin.TabID,
		Method:     fin.Method,
		URL:        fin.URL,
		Headers:    fin.Headers,
		Command:    types.FallbackCommand,
		Body:       parseBody(bodyText),
	}
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now().UTC()
	}

	rule, matched := c.table.Match(urlPath(fin.URL))
	if matched {
		rec.Command = rule.Cmdlet
		rec.Arguments = resolve.Resolve(rule, resolve.Request{
			Method:  fin.Method,
			URL:     fin.URL,
			Headers: fin.Headers,
			Body:    bodyText,
		})
	}
	return rec
}

// parseBody keeps the parsed JSON value when the body text is valid
// JSON, the raw text otherwise, and nil when there was no body.
func parseBody(bodyText string) any {
	if bodyText == "" {
		return nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(bodyText), &parsed); err != nil {
		return bodyText
	}
	return parsed
}

func urlPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" {
		return rawURL
	}
	return parsed.Path
}

// ChannelBodySource fetches pending bodies over the typed message
// channel, for deployments where body capture runs in a different
// execution context than correlation.
type ChannelBodySource struct {
	channel *msgchan.Channel
}

func NewChannelBodySource(channel *msgchan.Channel) *ChannelBodySource {
	return &ChannelBodySource{channel: channel}
}

func (s *ChannelBodySource) FetchBody(ctx context.Context, url string) (string, string, bool, error) {
	resp, err := s.channel.Call(ctx, msgchan.Request{Type: msgchan.TypeGetRequestBody, URL: url})
	if err != nil {
		return "", "", false, err
	}
	if !resp.Success {
		return "", "", false, nil
	}
	return resp.Body, resp.Method, true, nil
}
