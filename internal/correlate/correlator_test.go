package correlate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/portal_scribe/internal/capture"
	"github.com/dgnsrekt/portal_scribe/internal/emit"
	"github.com/dgnsrekt/portal_scribe/internal/msgchan"
	"github.com/dgnsrekt/portal_scribe/internal/rules"
	"github.com/dgnsrekt/portal_scribe/internal/types"
)

type failingBodySource struct{}

func (failingBodySource) FetchBody(context.Context, string) (string, string, bool, error) {
	return "", "", false, errors.New("channel down")
}

func testTable(t *testing.T) *rules.Table {
	t.Helper()
	table, err := rules.Parse([]byte(`[
		{"ApiUri": "https://x/apiproxy/mtp/devices/{id}", "Cmdlet": "Set-Device", "Parameters": {"Id": "body.id"}}
	]`))
	if err != nil {
		t.Fatalf("rules.Parse() error = %v", err)
	}
	return table
}

func storeBackedSource(t *testing.T) (*capture.Store, BodySource) {
	t.Helper()
	store := capture.NewStore(capture.Config{})
	t.Cleanup(store.Close)
	channel := msgchan.Pipe(capture.NewBodyHandler(store), time.Second)
	return store, NewChannelBodySource(channel)
}

func TestRoundTripMatchedRequest(t *testing.T) {
	store, bodies := storeBackedSource(t)
	c := New(bodies, testTable(t))

	url := "https://x/apiproxy/mtp/devices/42"
	store.Put(url, `{"id":42}`, "PUT")

	rec := c.Process(context.Background(), types.RequestFinished{
		URL:       url,
		Method:    "PUT",
		Headers:   types.Headers{"Content-Type": "application/json"},
		Timestamp: time.Now().UTC(),
	})

	if rec.Command != "Set-Device" {
		t.Fatalf("Command = %q; want Set-Device", rec.Command)
	}
	if got := rec.Arguments["Id"]; got != float64(42) {
		t.Fatalf(`Arguments["Id"] = %v; want 42`, got)
	}
	if got := emit.Render(rec); got != `Set-Device -Id "42"` {
		t.Fatalf("Render() = %q; want %q", got, `Set-Device -Id "42"`)
	}
}

func TestUnmatchedRequestFallsBack(t *testing.T) {
	_, bodies := storeBackedSource(t)
	c := New(bodies, testTable(t))

	rec := c.Process(context.Background(), types.RequestFinished{
		URL:    "https://x/apiproxy/unknown/path",
		Method: "GET",
	})

	if rec.Command != types.FallbackCommand {
		t.Fatalf("Command = %q; want fallback", rec.Command)
	}
	if rec.Arguments != nil {
		t.Fatalf("Arguments = %v; want nil when no rule matched", rec.Arguments)
	}
	if rec.Body != nil {
		t.Fatalf("Body = %v; want nil for bodyless GET", rec.Body)
	}
	if rec.ObservedAt.IsZero() {
		t.Fatal("ObservedAt not set")
	}
}

func TestMalformedBodyKeptAsRawText(t *testing.T) {
	store, bodies := storeBackedSource(t)
	c := New(bodies, testTable(t))

	url := "https://x/apiproxy/mtp/devices/7"
	store.Put(url, "foo=bar", "POST")

	rec := c.Process(context.Background(), types.RequestFinished{URL: url, Method: "POST"})
	if rec.Body != "foo=bar" {
		t.Fatalf("Body = %v; want raw text %q", rec.Body, "foo=bar")
	}
}

func TestChannelFailureStillBuildsRecord(t *testing.T) {
	c := New(failingBodySource{}, testTable(t))

	rec := c.Process(context.Background(), types.RequestFinished{
		URL:    "https://x/apiproxy/mtp/devices/42",
		Method: "PUT",
	})

	if rec.Command != "Set-Device" {
		t.Fatalf("Command = %q; want Set-Device despite channel failure", rec.Command)
	}
	if rec.Body != nil {
		t.Fatalf("Body = %v; want nil after channel failure", rec.Body)
	}
}

func TestBodyFetchTriggersGraceWindowDeletion(t *testing.T) {
	store := capture.NewStore(capture.Config{GraceWindow: 30 * time.Millisecond})
	t.Cleanup(store.Close)
	channel := msgchan.Pipe(capture.NewBodyHandler(store), time.Second)
	c := New(NewChannelBodySource(channel), testTable(t))

	url := "https://x/apiproxy/mtp/devices/42"
	store.Put(url, `{"id":42}`, "PUT")

	c.Process(context.Background(), types.RequestFinished{URL: url, Method: "PUT"})

	time.Sleep(100 * time.Millisecond)
	if _, ok := store.Take(url); ok {
		t.Fatal("entry still present; want grace-window deletion after retrieval")
	}
}
