package engine

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ataraxie68/pixelscope/pixelbase/appbase"
	"github.com/ataraxie68/pixelscope/pixelbase/timestamp"
	jsoniter "github.com/json-iterator/go"
)

// Record types emitted through the sink.
const (
	RecordTypePixelEvent     = "marketing_pixel_event"
	RecordTypeCustomTracking = "custom_tracking"
	RecordTypeStatusUpdate   = "request_status_update"
	RecordTypeWarning        = "warning"
	RecordTypeCookie         = "cookie"
)

// Record is one emitted event: a fixed-prefix line followed by this object
// as compact JSON.
type Record struct {
	Timestamp float64        `json:"timestamp"`
	Type      string         `json:"type"`
	Event     string         `json:"event"`
	Data      any            `json:"data"`
	Metadata  map[string]any `json:"metadata"`
}

// NewRecord stamps a record with the current time.
func NewRecord(recordType, event string, data any, metadata map[string]any) *Record {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Record{
		Timestamp: timestamp.UnixSeconds(timestamp.Now()),
		Type:      recordType,
		Event:     event,
		Data:      data,
		Metadata:  metadata,
	}
}

// RecordSink is the engine's only side-effect boundary.
type RecordSink interface {
	Post(record *Record)
	Close() error
}

const structuredLinePrefix = "[STRUCTURED] "

// StreamSink writes newline-delimited structured records to a writer,
// stdout by default.
type StreamSink struct {
	appbase.Service
	mu     sync.Mutex
	writer io.Writer
}

func NewStreamSink(writer io.Writer) *StreamSink {
	if writer == nil {
		writer = os.Stdout
	}
	return &StreamSink{
		Service: appbase.NewServiceBase("record-sink"),
		writer:  writer,
	}
}

func (s *StreamSink) Post(record *Record) {
	payload, err := jsoniter.Marshal(record)
	if err != nil {
		s.Errorf("failed to serialize %s record: %v", record.Type, err)
		return
	}
	recordsEmitted(record.Type).Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.writer, structuredLinePrefix+string(payload))
}

func (s *StreamSink) Close() error {
	return nil
}

// MultiSink fans a record out to several sinks.
type MultiSink struct {
	Sinks []RecordSink
}

func (m *MultiSink) Post(record *Record) {
	for _, sink := range m.Sinks {
		sink.Post(record)
	}
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, sink := range m.Sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DummySink discards records.
type DummySink struct{}

func (DummySink) Post(*Record) {}

func (DummySink) Close() error { return nil }
