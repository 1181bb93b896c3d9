package cdp

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/portal_scribe/internal/capture"
	"github.com/dgnsrekt/portal_scribe/internal/config"
	"github.com/dgnsrekt/portal_scribe/internal/types"
)

// Sink consumes request-finished signals. Completion processing happens
// in the order the browser delivers loadingFinished events, which need
// not equal send order.
type Sink interface {
	OnRequestFinished(ctx context.Context, fin types.RequestFinished)
}

// Client attaches to portal tabs over CDP and feeds the two capture
// hooks: requestWillBeSent populates the pending-body store before
// send, loadingFinished drives the sink after completion.
type Client struct {
	cfg         *config.Config
	store       *capture.Store
	sink        Sink
	tabRegistry *TabRegistry

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabs        map[target.ID]*TabContext
	tabsMu      sync.RWMutex

	// pending tracks per-request metadata between requestWillBeSent
	// and loadingFinished, keyed by the CDP request ID.
	pending   map[network.RequestID]*pendingRequest
	pendingMu sync.Mutex

	done chan struct{}
}

type TabContext struct {
	ID     target.ID
	URL    string
	ctx    context.Context
	cancel context.CancelFunc
}

type pendingRequest struct {
	tabID        string
	url          string
	method       string
	headers      types.Headers
	resourceType string
	seen         time.Time
}

func NewClient(cfg *config.Config, store *capture.Store, sink Sink, tabRegistry *TabRegistry) *Client {
	c := &Client{
		cfg:         cfg,
		store:       store,
		sink:        sink,
		tabRegistry: tabRegistry,
		tabs:        make(map[target.ID]*TabContext),
		pending:     make(map[network.RequestID]*pendingRequest),
		done:        make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	cdpURL := c.cfg.GetCDPURL()
	slog.Info("Connecting to Chromium", "url", cdpURL)

	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cdpURL)

	tempCtx, tempCancel := chromedp.NewContext(c.allocCtx)
	defer tempCancel()

	if err := chromedp.Run(tempCtx); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	targets, err := chromedp.Targets(tempCtx)
	if err != nil {
		return fmt.Errorf("failed to enumerate targets: %w", err)
	}

	slog.Info("Found browser targets", "count", len(targets))

	attachedCount := 0
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if !c.matchesTabURL(t.URL) {
			slog.Debug("Skipping tab (url filter)", "url", t.URL)
			continue
		}
		if err := c.attachToTab(t.TargetID, t.URL); err != nil {
			slog.Error("Failed to attach to tab", "target_id", t.TargetID, "url", t.URL, "error", err)
			continue
		}
		attachedCount++
	}

	if attachedCount == 0 {
		return fmt.Errorf("no tabs found matching SCRIBE_TAB_URL_FILTER=%q", c.cfg.TabURLFilter)
	}

	slog.Info("Attached to tabs", "count", attachedCount, "tab_url_filter", c.cfg.TabURLFilter)
	return nil
}

func (c *Client) attachToTab(targetID target.ID, url string) error {
	tabInfo, err := c.tabRegistry.Register(targetID, url)
	if err != nil {
		return fmt.Errorf("failed to register tab: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(targetID))
	tab := &TabContext{ID: targetID, URL: url, ctx: tabCtx, cancel: tabCancel}

	c.tabsMu.Lock()
	c.tabs[targetID] = tab
	c.tabsMu.Unlock()

	if err := chromedp.Run(tabCtx, network.Enable(), network.SetCacheDisabled(true), page.Enable()); err != nil {
		tabCancel()
		c.tabRegistry.Remove(targetID)
		return fmt.Errorf("failed to enable network/page domains: %w", err)
	}

	slog.Info("Attached to tab", "target_id", targetID, "host", tabInfo.HostSegment, "url", truncateURL(url))
	chromedp.ListenTarget(tabCtx, c.createEventHandler(string(targetID)))

	if c.cfg.ReloadOnAttach {
		reloadCtx, reloadCancel := context.WithTimeout(tabCtx, 30*time.Second)
		defer reloadCancel()
		if err := chromedp.Run(reloadCtx, chromedp.Reload()); err != nil {
			slog.Warn("Failed to reload tab (continuing)", "target_id", targetID, "error", err)
		} else {
			slog.Info("Reloaded tab after attach", "target_id", targetID, "url", truncateURL(url))
		}
	}

	return nil
}

func (c *Client) createEventHandler(tabID string) func(ev interface{}) {
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame.ParentID == "" {
				if info, err := c.tabRegistry.Register(target.ID(tabID), e.Frame.URL); err == nil {
					slog.Info("Tab navigated (full)", "tab_id", tabID, "host", info.HostSegment, "url", truncateURL(e.Frame.URL))
				}
			}
		case *page.EventNavigatedWithinDocument:
			if info, err := c.tabRegistry.Register(target.ID(tabID), e.URL); err == nil {
				slog.Info("Tab navigated (SPA)", "tab_id", tabID, "host", info.HostSegment, "url", truncateURL(e.URL))
			}
		case *network.EventRequestWillBeSent:
			c.onRequestWillBeSent(tabID, e)
		case *network.EventResponseReceived:
			c.onResponseReceived(e)
		case *network.EventLoadingFinished:
			c.onLoadingFinished(e)
		case *network.EventLoadingFailed:
			c.onLoadingFailed(e)
		}
	}
}

// onRequestWillBeSent is the pre-send hook: it records the outgoing
// body in the pending-body store and remembers request metadata for the
// completion signal.
func (c *Client) onRequestWillBeSent(tabID string, ev *network.EventRequestWillBeSent) {
	if body := decodePostData(ev); body != "" {
		c.store.Put(ev.Request.URL, body, ev.Request.Method)
	}

	c.pendingMu.Lock()
	c.pending[ev.RequestID] = &pendingRequest{
		tabID:   tabID,
		url:     ev.Request.URL,
		method:  ev.Request.Method,
		headers: headerMapToHeaders(ev.Request.Headers),
		seen:    time.Now(),
	}
	c.pendingMu.Unlock()
}

// onResponseReceived merges in the response-era view of the request
// headers, which includes headers the browser added after
// requestWillBeSent fired.
func (c *Client) onResponseReceived(ev *network.EventResponseReceived) {
	c.pendingMu.Lock()
	if pending, ok := c.pending[ev.RequestID]; ok {
		pending.resourceType = string(ev.Type)
		for k, v := range headerMapToHeaders(ev.Response.RequestHeaders) {
			pending.headers[k] = v
		}
	}
	c.pendingMu.Unlock()
}

// onLoadingFinished is the request-finished hook. It hands the signal
// to the sink on its own goroutine so a slow body fetch never stalls
// the CDP event loop.
func (c *Client) onLoadingFinished(ev *network.EventLoadingFinished) {
	c.pendingMu.Lock()
	pending, ok := c.pending[ev.RequestID]
	if ok {
		delete(c.pending, ev.RequestID)
	}
	c.pendingMu.Unlock()

	if !ok || !isAPITraffic(pending.resourceType) {
		return
	}

	fin := types.RequestFinished{
		TabID:     pending.tabID,
		URL:       pending.url,
		Method:    pending.method,
		Headers:   pending.headers,
		Timestamp: time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		c.sink.OnRequestFinished(ctx, fin)
	}()
}

func (c *Client) onLoadingFailed(ev *network.EventLoadingFailed) {
	c.pendingMu.Lock()
	delete(c.pending, ev.RequestID)
	c.pendingMu.Unlock()
}

func (c *Client) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupStale()
		case <-c.done:
			return
		}
	}
}

func (c *Client) cleanupStale() {
	threshold := time.Now().Add(-5 * time.Minute)

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for id, pending := range c.pending {
		if pending.seen.Before(threshold) {
			delete(c.pending, id)
		}
	}
}

func (c *Client) Close() error {
	close(c.done)

	c.tabsMu.Lock()
	defer c.tabsMu.Unlock()
	c.tabs = make(map[target.ID]*TabContext)

	if c.allocCancel != nil {
		c.allocCancel()
	}

	slog.Info("CDP client closed")
	return nil
}

func (c *Client) GetTabCount() int {
	c.tabsMu.RLock()
	defer c.tabsMu.RUnlock()
	return len(c.tabs)
}

func (c *Client) matchesTabURL(url string) bool {
	if c.cfg.TabURLFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(c.cfg.TabURLFilter))
}

// decodePostData concatenates the request's post data entries,
// base64-decoding each part. Undecodable parts are kept verbatim.
func decodePostData(ev *network.EventRequestWillBeSent) string {
	if !ev.Request.HasPostData || len(ev.Request.PostDataEntries) == 0 {
		return ""
	}
	var decodedParts []byte
	for _, entry := range ev.Request.PostDataEntries {
		if entry.Bytes == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(entry.Bytes)
		if err != nil {
			decodedParts = append(decodedParts, []byte(entry.Bytes)...)
		} else {
			decodedParts = append(decodedParts, decoded...)
		}
	}
	return string(decodedParts)
}

// isAPITraffic filters out static resource loads; only API-shaped
// transactions reach the correlator.
func isAPITraffic(resourceType string) bool {
	switch resourceType {
	case "Script", "Stylesheet", "Image", "Font", "Media", "Manifest":
		return false
	default:
		return true
	}
}

func headerMapToHeaders(headers map[string]any) types.Headers {
	result := make(types.Headers, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}
	return result
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
