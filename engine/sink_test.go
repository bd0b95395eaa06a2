package engine

import (
	"bytes"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink collects posted records for assertions.
type captureSink struct {
	records []*Record
}

func (c *captureSink) Post(record *Record) {
	c.records = append(c.records, record)
}

func (c *captureSink) Close() error { return nil }

func (c *captureSink) byType(recordType string) []*Record {
	var matched []*Record
	for _, record := range c.records {
		if record.Type == recordType {
			matched = append(matched, record)
		}
	}
	return matched
}

func TestStreamSinkLineFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewStreamSink(buf)
	sink.Post(NewRecord(RecordTypePixelEvent, "purchase", map[string]any{"platform": "GA4"}, map[string]any{"request_path": "/g/collect"}))

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "[STRUCTURED] "), "line: %s", line)
	require.True(t, strings.HasSuffix(line, "\n"))

	var decoded Record
	payload := strings.TrimPrefix(strings.TrimSuffix(line, "\n"), "[STRUCTURED] ")
	require.NoError(t, jsoniter.UnmarshalFromString(payload, &decoded))
	assert.Equal(t, RecordTypePixelEvent, decoded.Type)
	assert.Equal(t, "purchase", decoded.Event)
	assert.Greater(t, decoded.Timestamp, 0.0)
}

func TestMultiSinkFansOut(t *testing.T) {
	first := &captureSink{}
	second := &captureSink{}
	multi := &MultiSink{Sinks: []RecordSink{first, second}}
	multi.Post(NewRecord(RecordTypeCookie, "cookie_set", nil, nil))
	assert.Len(t, first.records, 1)
	assert.Len(t, second.records, 1)
	assert.NoError(t, multi.Close())
}
