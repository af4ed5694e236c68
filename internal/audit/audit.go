// Package audit records an optional trail of pipeline events: every chunk
// pushed or pulled, every file completed, every stored object unwrapped.
// Events are buffered in a bounded in-memory ring for the admin surface
// and handed to a configurable sink (stdout, file, HTTP) for persistence.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/kenneth/fs2cloud/internal/config"
)

// EventType discriminates audit events.
type EventType string

const (
	EventChunkPushed  EventType = "chunk_pushed"
	EventChunkPulled  EventType = "chunk_pulled"
	EventFileDone     EventType = "file_done"
	EventFileRestored EventType = "file_restored"
	EventUnwrap       EventType = "unwrap"
)

// Event is one audit record.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"type"`
	FilePath  string                 `json:"file_path,omitempty"`
	FileUUID  string                 `json:"file_uuid,omitempty"`
	ChunkUUID string                 `json:"chunk_uuid,omitempty"`
	ChunkIdx  uint64                 `json:"chunk_idx"`
	Bytes     int64                  `json:"bytes"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// EventWriter persists events; implementations live in sink.go.
type EventWriter interface {
	WriteEvent(event *Event) error
}

// Logger accepts events from the pipeline and fans them out to the ring
// buffer and the configured writer.
type Logger interface {
	Log(event *Event) error
	ChunkPushed(filePath, fileUUID, chunkUUID string, idx uint64, bytes int64, err error)
	ChunkPulled(filePath, fileUUID, chunkUUID string, idx uint64, bytes int64, err error)
	FileDone(filePath, fileUUID, sha256 string)
	FileRestored(filePath, fileUUID string, bytes int64, err error)
	Unwrap(chunkUUID string, bytes int64, err error)
	Events() []*Event
	Close() error
}

type logger struct {
	mu         sync.Mutex
	events     []*Event
	maxEvents  int
	writer     EventWriter
	redactKeys map[string]struct{}
}

// NewLogger builds a Logger keeping at most maxEvents in memory and
// persisting through writer. A nil writer keeps the ring buffer only.
func NewLogger(maxEvents int, writer EventWriter) Logger {
	return NewLoggerWithRedaction(maxEvents, writer, nil)
}

// NewLoggerWithRedaction additionally replaces the values of the named
// metadata keys with "[REDACTED]" before an event is stored or written.
func NewLoggerWithRedaction(maxEvents int, writer EventWriter, redactKeys []string) Logger {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	keys := make(map[string]struct{}, len(redactKeys))
	for _, k := range redactKeys {
		keys[k] = struct{}{}
	}
	return &logger{
		maxEvents:  maxEvents,
		writer:     writer,
		redactKeys: keys,
	}
}

// NewLoggerFromConfig assembles the Logger described by cfg, or returns
// nil when auditing is disabled.
func NewLoggerFromConfig(cfg config.AuditConfig) (Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var writer EventWriter
	switch cfg.Sink.Type {
	case "", "stdout":
		writer = &StdoutSink{}
	case "file":
		if cfg.Sink.FilePath == "" {
			return nil, fmt.Errorf("audit: sink.file_path is required for the file sink")
		}
		writer = NewFileSink(cfg.Sink.FilePath)
	case "http":
		if cfg.Sink.Endpoint == "" {
			return nil, fmt.Errorf("audit: sink.endpoint is required for the http sink")
		}
		writer = NewHTTPSink(cfg.Sink.Endpoint, cfg.Sink.Headers)
	default:
		return nil, fmt.Errorf("audit: unknown sink type %q", cfg.Sink.Type)
	}

	if cfg.Sink.BatchSize > 0 {
		writer = NewBatchSink(writer, cfg.Sink.BatchSize, cfg.Sink.FlushInterval.Std(), cfg.Sink.RetryCount, cfg.Sink.RetryBackoff.Std())
	}

	return NewLoggerWithRedaction(cfg.MaxEvents, writer, cfg.RedactMetadataKeys), nil
}

func (l *logger) Log(event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Metadata = l.redact(event.Metadata)

	l.mu.Lock()
	l.events = append(l.events, event)
	if len(l.events) > l.maxEvents {
		l.events = l.events[len(l.events)-l.maxEvents:]
	}
	writer := l.writer
	l.mu.Unlock()

	if writer != nil {
		return writer.WriteEvent(event)
	}
	return nil
}

func (l *logger) redact(metadata map[string]interface{}) map[string]interface{} {
	if len(metadata) == 0 || len(l.redactKeys) == 0 {
		return metadata
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		if _, ok := l.redactKeys[k]; ok {
			out[k] = "[REDACTED]"
		} else {
			out[k] = v
		}
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (l *logger) ChunkPushed(filePath, fileUUID, chunkUUID string, idx uint64, bytes int64, err error) {
	l.Log(&Event{
		Type:      EventChunkPushed,
		FilePath:  filePath,
		FileUUID:  fileUUID,
		ChunkUUID: chunkUUID,
		ChunkIdx:  idx,
		Bytes:     bytes,
		Success:   err == nil,
		Error:     errString(err),
	})
}

func (l *logger) ChunkPulled(filePath, fileUUID, chunkUUID string, idx uint64, bytes int64, err error) {
	l.Log(&Event{
		Type:      EventChunkPulled,
		FilePath:  filePath,
		FileUUID:  fileUUID,
		ChunkUUID: chunkUUID,
		ChunkIdx:  idx,
		Bytes:     bytes,
		Success:   err == nil,
		Error:     errString(err),
	})
}

func (l *logger) FileDone(filePath, fileUUID, sha256 string) {
	l.Log(&Event{
		Type:     EventFileDone,
		FilePath: filePath,
		FileUUID: fileUUID,
		Success:  true,
		Metadata: map[string]interface{}{"sha256": sha256},
	})
}

func (l *logger) FileRestored(filePath, fileUUID string, bytes int64, err error) {
	l.Log(&Event{
		Type:     EventFileRestored,
		FilePath: filePath,
		FileUUID: fileUUID,
		Bytes:    bytes,
		Success:  err == nil,
		Error:    errString(err),
	})
}

func (l *logger) Unwrap(chunkUUID string, bytes int64, err error) {
	l.Log(&Event{
		Type:      EventUnwrap,
		ChunkUUID: chunkUUID,
		Bytes:     bytes,
		Success:   err == nil,
		Error:     errString(err),
	})
}

// Events returns a copy of the buffered events, oldest first.
func (l *logger) Events() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Event, len(l.events))
	copy(out, l.events)
	return out
}

// Close flushes the writer when it supports flushing.
func (l *logger) Close() error {
	l.mu.Lock()
	writer := l.writer
	l.mu.Unlock()

	if closer, ok := writer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
