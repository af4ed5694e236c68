package audit

import (
	"errors"
	"testing"

	"github.com/kenneth/fs2cloud/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	events []*Event
}

func (w *captureWriter) WriteEvent(event *Event) error {
	w.events = append(w.events, event)
	return nil
}

func TestLogger_ChunkPushed(t *testing.T) {
	w := &captureWriter{}
	l := NewLogger(10, w)

	l.ChunkPushed("docs/a.txt", "file-1", "chunk-1", 2, 4096, nil)
	l.ChunkPushed("docs/a.txt", "file-1", "chunk-2", 3, 4096, errors.New("store put: timeout"))

	require.Len(t, w.events, 2)
	assert.Equal(t, EventChunkPushed, w.events[0].Type)
	assert.True(t, w.events[0].Success)
	assert.Equal(t, uint64(2), w.events[0].ChunkIdx)
	assert.False(t, w.events[1].Success)
	assert.Equal(t, "store put: timeout", w.events[1].Error)
	assert.False(t, w.events[0].Timestamp.IsZero())
}

func TestLogger_RingBuffer(t *testing.T) {
	l := NewLogger(3, nil)
	for i := 0; i < 5; i++ {
		l.Unwrap("chunk", int64(i), nil)
	}

	events := l.Events()
	require.Len(t, events, 3)
	assert.Equal(t, int64(2), events[0].Bytes)
	assert.Equal(t, int64(4), events[2].Bytes)
}

func TestLogger_Redaction(t *testing.T) {
	w := &captureWriter{}
	l := NewLoggerWithRedaction(10, w, []string{"sha256"})

	l.FileDone("docs/a.txt", "file-1", "deadbeef")

	require.Len(t, w.events, 1)
	assert.Equal(t, "[REDACTED]", w.events[0].Metadata["sha256"])
}

func TestNewLoggerFromConfig_Disabled(t *testing.T) {
	l, err := NewLoggerFromConfig(config.AuditConfig{})
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestNewLoggerFromConfig_UnknownSink(t *testing.T) {
	_, err := NewLoggerFromConfig(config.AuditConfig{
		Enabled: true,
		Sink:    config.AuditSinkConfig{Type: "syslog"},
	})
	require.Error(t, err)
}

func TestNewLoggerFromConfig_FileSinkRequiresPath(t *testing.T) {
	_, err := NewLoggerFromConfig(config.AuditConfig{
		Enabled: true,
		Sink:    config.AuditSinkConfig{Type: "file"},
	})
	require.Error(t, err)
}
