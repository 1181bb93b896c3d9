package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SessionSummary sends an end-of-session message to an ntfy-style
// endpoint, reporting how many requests were observed and mapped.
func SessionSummary(ctx context.Context, client *http.Client, endpoint string, total, matched int) error {
	msg := fmt.Sprintf("portal_scribe session finished: %d requests captured, %d mapped to cmdlets.", total, matched)
	return Send(ctx, client, endpoint, msg)
}

// Send posts a plain-text message to the requested endpoint.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
