package capture

import (
	"log/slog"
	"sync"
	"time"
)

// PendingBody is a request body observed before send, waiting for the
// completion signal of the same logical request. Entries are keyed by
// URL only: the URL is the observed destination, not a stable request
// identity, so two in-flight requests to the same URL are
// indistinguishable and the most recent capture wins.
type PendingBody struct {
	URL        string
	Body       string
	Method     string
	CapturedAt time.Time

	retrieved bool
}

// Config tunes the store's lifetime policy. The zero value is replaced
// by the defaults below; tests shrink the windows to milliseconds.
type Config struct {
	// GraceWindow is how long an entry survives after its first
	// retrieval, so pagination/polling consumers can re-read it.
	GraceWindow time.Duration
	// SweepInterval is how often the age sweep runs.
	SweepInterval time.Duration
	// MaxAge is the unconditional upper bound on entry lifetime,
	// independent of retrieval state.
	MaxAge time.Duration
	// MaxBodyBytes caps stored body text; longer bodies are truncated
	// on Put. Zero disables the cap.
	MaxBodyBytes int
}

const (
	defaultGraceWindow   = 5 * time.Second
	defaultSweepInterval = 1 * time.Minute
	defaultMaxAge        = 5 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.GraceWindow <= 0 {
		c.GraceWindow = defaultGraceWindow
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.MaxAge <= 0 {
		c.MaxAge = defaultMaxAge
	}
	return c
}

// Store holds request bodies captured before send, keyed by URL, with
// bounded lifetime. Writes overwrite without merging; reads arm a
// delayed deletion so a second consumer can still see the entry.
type Store struct {
	cfg Config

	mu      sync.Mutex
	entries map[string]*PendingBody

	done      chan struct{}
	closeOnce sync.Once
}

// NewStore creates a Store and starts its background age sweep.
func NewStore(cfg Config) *Store {
	s := &Store{
		cfg:     cfg.withDefaults(),
		entries: make(map[string]*PendingBody),
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Close stops the background sweep. Pending grace-window timers fire
// harmlessly after close.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Put records a pending body for url, overwriting any existing entry.
// Last write wins; there is no queueing of multiple in-flight bodies
// for the same URL.
func (s *Store) Put(url, body, method string) {
	body, truncated := truncateBody(body, s.cfg.MaxBodyBytes)
	if truncated {
		slog.Warn("pending body truncated", "url", url, "max_bytes", s.cfg.MaxBodyBytes)
	}

	s.mu.Lock()
	s.entries[url] = &PendingBody{
		URL:        url,
		Body:       body,
		Method:     method,
		CapturedAt: time.Now(),
	}
	s.mu.Unlock()
}

// Take returns the pending body for url if present. The first
// successful Take marks the entry retrieved and schedules its deletion
// after the grace window; further Takes inside the window still return
// the value. A missing key is not an error: many completed requests
// (GET, no body) never produce a pending entry.
func (s *Store) Take(url string) (PendingBody, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[url]
	if !ok {
		return PendingBody{}, false
	}

	if !entry.retrieved {
		entry.retrieved = true
		s.scheduleDelete(url, entry)
	}
	return *entry, true
}

// Len reports the number of pending entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// scheduleDelete arms the grace-window deletion for entry. The timer
// only removes the exact entry it was armed for; an overwrite by a
// newer Put survives it. Caller holds s.mu.
func (s *Store) scheduleDelete(url string, entry *PendingBody) {
	time.AfterFunc(s.cfg.GraceWindow, func() {
		s.mu.Lock()
		if current, ok := s.entries[url]; ok && current == entry {
			delete(s.entries, url)
		}
		s.mu.Unlock()
	})
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepStale()
		case <-s.done:
			return
		}
	}
}

// sweepStale removes entries older than MaxAge regardless of whether
// they were ever retrieved. This bounds memory for requests whose
// completion signal never arrives.
func (s *Store) sweepStale() {
	threshold := time.Now().Add(-s.cfg.MaxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	for url, entry := range s.entries {
		if entry.CapturedAt.Before(threshold) {
			delete(s.entries, url)
		}
	}
}

func truncateBody(body string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(body) <= maxBytes {
		return body, false
	}
	return body[:maxBytes], true
}
