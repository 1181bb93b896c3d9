package storage

import (
	"log/slog"
	"sync"
)

// WriterRegistry hands out one JSONLWriter per portal host and data
// type, so each attached portal's records land in their own directory.
type WriterRegistry struct {
	baseDir    string
	maxSizeMB  int
	bufferSize int

	mu      sync.RWMutex
	writers map[string]map[string]*JSONLWriter // hostSegment -> dataType -> writer
}

func NewWriterRegistry(baseDir string, bufferSize, maxSizeMB int) *WriterRegistry {
	return &WriterRegistry{
		baseDir:    baseDir,
		maxSizeMB:  maxSizeMB,
		bufferSize: bufferSize,
		writers:    make(map[string]map[string]*JSONLWriter),
	}
}

// GetWriter returns (or creates) the writer for hostSegment/dataType.
// fileStem is used for the filename, typically the tab short ID.
func (r *WriterRegistry) GetWriter(hostSegment, dataType, fileStem string) *JSONLWriter {
	r.mu.RLock()
	if byType, ok := r.writers[hostSegment]; ok {
		if w, ok := byType[dataType]; ok {
			r.mu.RUnlock()
			return w
		}
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if byType, ok := r.writers[hostSegment]; ok {
		if w, ok := byType[dataType]; ok {
			return w
		}
	}
	if r.writers[hostSegment] == nil {
		r.writers[hostSegment] = make(map[string]*JSONLWriter)
	}

	w := NewJSONLWriter(r.baseDir, hostSegment+"/"+dataType, fileStem, r.bufferSize, r.maxSizeMB)
	r.writers[hostSegment][dataType] = w

	slog.Info("created session log writer", "host", hostSegment, "data_type", dataType, "file_stem", fileStem)
	return w
}

// Close closes all managed writers.
func (r *WriterRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for host, byType := range r.writers {
		for dataType, w := range byType {
			if err := w.Close(); err != nil {
				slog.Error("session log writer close failed", "host", host, "data_type", dataType, "error", err)
				lastErr = err
			}
		}
	}
	r.writers = make(map[string]map[string]*JSONLWriter)
	return lastErr
}
