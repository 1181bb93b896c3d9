package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JSONLWriter appends JSON lines to date-organized session-log files.
// Writes are queued and flushed by a background goroutine so the
// capture path never blocks on disk.
type JSONLWriter struct {
	baseDir   string
	subDir    string // e.g. "admin_portal_example/records"
	fileStem  string // filename base, e.g. the tab short ID
	maxSizeMB int

	writeCh chan any
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	sink        *lumberjack.Logger
}

// NewJSONLWriter creates an async writer. fileStem names the rotating
// file inside the date directory; an empty stem falls back to a
// timestamp.
func NewJSONLWriter(baseDir, subDir, fileStem string, bufferSize, maxSizeMB int) *JSONLWriter {
	w := &JSONLWriter{
		baseDir:   baseDir,
		subDir:    subDir,
		fileStem:  fileStem,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan any, bufferSize),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Write queues a record. A full buffer drops the record with a warning
// rather than stalling the caller.
func (w *JSONLWriter) Write(record any) error {
	select {
	case w.writeCh <- record:
		return nil
	case <-w.done:
		return fmt.Errorf("writer is closed")
	default:
		slog.Warn("session log buffer full, dropping record", "subdir", w.subDir)
		return fmt.Errorf("buffer full")
	}
}

// Close stops the writer, draining what it can within a bounded window.
func (w *JSONLWriter) Close() error {
	close(w.done)

	deadline := time.After(5 * time.Second)
drain:
	for {
		select {
		case record := <-w.writeCh:
			w.writeRecord(record)
		case <-deadline:
			slog.Warn("session log close timeout, records may be lost", "subdir", w.subDir)
			break drain
		default:
			break drain
		}
	}

	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sink != nil {
		return w.sink.Close()
	}
	return nil
}

func (w *JSONLWriter) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case record := <-w.writeCh:
			w.writeRecord(record)
		case <-w.done:
			return
		}
	}
}

func (w *JSONLWriter) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("session log marshal failed", "error", err, "subdir", w.subDir)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := time.Now().UTC().Format("2006-01-02")
	if date != w.currentDate || w.sink == nil {
		w.rotateForDate(date)
	}
	if w.sink == nil {
		return
	}

	if _, err := w.sink.Write(append(data, '\n')); err != nil {
		slog.Error("session log write failed", "error", err, "subdir", w.subDir)
	}
}

func (w *JSONLWriter) rotateForDate(date string) {
	if w.sink != nil {
		if err := w.sink.Close(); err != nil {
			slog.Debug("session log close on rotate failed", "error", err)
		}
	}

	dir := filepath.Join(w.baseDir, date, w.subDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("session log directory creation failed", "error", err, "dir", dir)
		w.sink = nil
		return
	}

	stem := w.fileStem
	if stem == "" {
		stem = fmt.Sprintf("%d", time.Now().Unix())
	}

	w.sink = &lumberjack.Logger{
		Filename:   filepath.Join(dir, stem+".jsonl"),
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		LocalTime:  false,
	}
	w.currentDate = date

	slog.Info("opened session log file", "file", w.sink.Filename, "subdir", w.subDir)
}
