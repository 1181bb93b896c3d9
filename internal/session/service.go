// Package session joins the capture pipeline to its consumers: it feeds
// finished requests through the correlator, keeps a bounded in-memory
// history for the presentation layer, publishes live events, and writes
// the session log.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/portal_scribe/internal/correlate"
	"github.com/dgnsrekt/portal_scribe/internal/emit"
	"github.com/dgnsrekt/portal_scribe/internal/relay"
	"github.com/dgnsrekt/portal_scribe/internal/rules"
	"github.com/dgnsrekt/portal_scribe/internal/scripts"
	"github.com/dgnsrekt/portal_scribe/internal/storage"
	"github.com/dgnsrekt/portal_scribe/internal/types"
)

const defaultHistoryLimit = 2000

// RuleInfo is the API-facing view of one mapping rule.
type RuleInfo struct {
	ApiUri     string            `json:"api_uri"`
	Cmdlet     string            `json:"cmdlet"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Stats summarizes the running session.
type Stats struct {
	TotalCaptured int `json:"total_captured"`
	Matched       int `json:"matched"`
	HistorySize   int `json:"history_size"`
	StreamClients int `json:"stream_clients"`
}

// Service implements the API surface over the capture pipeline.
// History is in-memory only; captures do not survive a restart.
type Service struct {
	correlator   *correlate.Correlator
	broker       *relay.Broker
	writers      *storage.WriterRegistry
	exports      *scripts.Store
	table        *rules.Table
	tabs         types.TabInfoProvider
	historyLimit int

	mu      sync.RWMutex
	records []types.CapturedRequestRecord
	index   map[string]int // record ID -> position in records
	total   int
	matched int
}

func NewService(
	correlator *correlate.Correlator,
	broker *relay.Broker,
	writers *storage.WriterRegistry,
	exports *scripts.Store,
	table *rules.Table,
	tabs types.TabInfoProvider,
	historyLimit int,
) *Service {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Service{
		correlator:   correlator,
		broker:       broker,
		writers:      writers,
		exports:      exports,
		table:        table,
		tabs:         tabs,
		historyLimit: historyLimit,
		index:        make(map[string]int),
	}
}

// OnRequestFinished is the completion entry point, invoked by the CDP
// client once per finished network transaction.
func (s *Service) OnRequestFinished(ctx context.Context, fin types.RequestFinished) {
	rec := s.correlator.Process(ctx, fin)
	script := emit.Render(rec)

	s.mu.Lock()
	s.total++
	if rec.Command != types.FallbackCommand {
		s.matched++
	}
	s.append(rec)
	s.mu.Unlock()

	s.publish(rec, script)
	s.persist(rec)
}

// append keeps the newest historyLimit records. Caller holds s.mu.
func (s *Service) append(rec types.CapturedRequestRecord) {
	if len(s.records) >= s.historyLimit {
		drop := len(s.records) - s.historyLimit + 1
		for _, old := range s.records[:drop] {
			delete(s.index, old.ID)
		}
		s.records = s.records[drop:]
		for i, r := range s.records {
			s.index[r.ID] = i
		}
	}
	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
}

func (s *Service) publish(rec types.CapturedRequestRecord, script string) {
	payload, err := json.Marshal(rec)
	if err != nil {
		slog.Error("record marshal for stream failed", "record_id", rec.ID, "error", err)
	} else {
		s.broker.Publish(relay.Event{Feed: relay.FeedRecords, Payload: string(payload)})
	}

	scriptEvt, err := json.Marshal(map[string]string{"record_id": rec.ID, "script": script})
	if err == nil {
		s.broker.Publish(relay.Event{Feed: relay.FeedScripts, Payload: string(scriptEvt)})
	}
}

func (s *Service) persist(rec types.CapturedRequestRecord) {
	if s.writers == nil {
		return
	}

	host := "unknown_host"
	stem := ""
	if info, ok := s.tabInfo(rec.TabID); ok {
		host = info.HostSegment
		stem = info.ShortID
	} else if seg, err := storage.HostSegment(rec.URL); err == nil {
		host = seg
	}

	writer := s.writers.GetWriter(host, "records", stem)
	if err := writer.Write(rec); err != nil {
		slog.Debug("session log write failed", "record_id", rec.ID, "error", err)
	}
}

func (s *Service) tabInfo(tabID string) (*types.TabInfo, bool) {
	if s.tabs == nil || tabID == "" {
		return nil, false
	}
	return s.tabs.GetByStringID(tabID)
}

// ListRecords returns the history, newest first.
func (s *Service) ListRecords(ctx context.Context) ([]types.CapturedRequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.CapturedRequestRecord, len(s.records))
	for i, rec := range s.records {
		out[len(s.records)-1-i] = rec
	}
	return out, nil
}

// GetRecord fetches one record by ID.
func (s *Service) GetRecord(ctx context.Context, id string) (types.CapturedRequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return types.CapturedRequestRecord{}, newError(CodeRecordNotFound, fmt.Sprintf("no record with id %s", id), nil)
	}
	return s.records[pos], nil
}

// RenderRecord re-renders a stored record. Rendering is a pure function
// of the record, so repeated calls always return identical text.
func (s *Service) RenderRecord(ctx context.Context, id string) (string, error) {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		return "", err
	}
	return emit.Render(rec), nil
}

// ExportAll renders the whole history under the disclaimer header and
// saves it as a stored script.
func (s *Service) ExportAll(ctx context.Context, description string) (scripts.Meta, string, error) {
	s.mu.RLock()
	recs := make([]types.CapturedRequestRecord, len(s.records))
	copy(recs, s.records)
	s.mu.RUnlock()

	text := emit.RenderAll(recs)
	meta := scripts.Meta{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		RecordCount:  len(recs),
		SizeBytes:    len(text),
		Description:  description,
		PortalHosts:  hostsOf(recs),
		CommandNames: commandsOf(recs),
	}

	if err := s.exports.Save(meta, text); err != nil {
		return scripts.Meta{}, "", newError(CodeExportFailure, "saving export script", err)
	}
	return meta, text, nil
}

// ListExports returns stored export metadata, newest first.
func (s *Service) ListExports(ctx context.Context) ([]scripts.Meta, error) {
	metas, err := s.exports.List()
	if err != nil {
		return nil, newError(CodeExportFailure, "listing exports", err)
	}
	return metas, nil
}

// GetExport returns one stored export with its script text.
func (s *Service) GetExport(ctx context.Context, id string) (scripts.Meta, string, error) {
	meta, err := s.exports.Get(id)
	if err != nil {
		return scripts.Meta{}, "", mapExportErr(id, err)
	}
	text, err := s.exports.ReadScript(id)
	if err != nil {
		return scripts.Meta{}, "", mapExportErr(id, err)
	}
	return meta, text, nil
}

// DeleteExport removes a stored export.
func (s *Service) DeleteExport(ctx context.Context, id string) error {
	if err := s.exports.Delete(id); err != nil {
		return mapExportErr(id, err)
	}
	return nil
}

// Rules returns the loaded mapping table in match order.
func (s *Service) Rules(ctx context.Context) ([]RuleInfo, error) {
	out := make([]RuleInfo, 0, s.table.Len())
	for _, r := range s.table.Rules() {
		out = append(out, RuleInfo{ApiUri: r.ApiUri, Cmdlet: r.Cmdlet, Parameters: r.Parameters})
	}
	return out, nil
}

// Stats returns session counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalCaptured: s.total,
		Matched:       s.matched,
		HistorySize:   len(s.records),
		StreamClients: s.broker.ClientCount(),
	}, nil
}

// Counts reports total and matched capture counts, for the shutdown
// notification.
func (s *Service) Counts() (total, matched int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, s.matched
}

func mapExportErr(id string, err error) error {
	if errors.Is(err, scripts.ErrNotFound) {
		return newError(CodeExportNotFound, fmt.Sprintf("no export with id %s", id), nil)
	}
	return newError(CodeValidation, err.Error(), nil)
}

func hostsOf(recs []types.CapturedRequestRecord) []string {
	seen := make(map[string]bool)
	for _, rec := range recs {
		if parsed, err := url.Parse(rec.URL); err == nil && parsed.Host != "" {
			seen[parsed.Host] = true
		}
	}
	return sortedKeys(seen)
}

func commandsOf(recs []types.CapturedRequestRecord) []string {
	seen := make(map[string]bool)
	for _, rec := range recs {
		seen[rec.Command] = true
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
