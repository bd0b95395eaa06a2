package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(sink RecordSink) *Builder {
	registry := DefaultRegistry()
	return NewBuilder(registry, NewDispatch(registry), sink)
}

func TestRequestHash(t *testing.T) {
	hash := RequestHash("GET", "https://www.facebook.com/tr?id=1", "")
	assert.Len(t, hash, 12)
	assert.Equal(t, hash, RequestHash("GET", "https://www.facebook.com/tr?id=1", ""))
	assert.NotEqual(t, hash, RequestHash("POST", "https://www.facebook.com/tr?id=1", ""))
	assert.NotEqual(t, hash, RequestHash("GET", "https://www.facebook.com/tr?id=2", ""))
	assert.NotEqual(t, hash, RequestHash("GET", "https://www.facebook.com/tr?id=1", "ev=Lead"))
}

func TestProcessEventEmitsPixelEvent(t *testing.T) {
	sink := &captureSink{}
	builder := newTestBuilder(sink)
	req := &RequestInfo{
		Method: "GET",
		URL:    "https://www.facebook.com/tr?id=123456789012345&ev=Purchase&cd[value]=19.99&cd[currency]=EUR&dl=https://shop.example.com/done",
		Host:   "www.facebook.com",
		Path:   "/tr",
	}
	params := requestParams("/tr", map[string]string{
		"id": "123456789012345", "ev": "Purchase",
		"cd[value]": "19.99", "cd[currency]": "EUR",
		"dl": "https://shop.example.com/done",
	})

	requestHash := builder.ProcessEvent(params, PlatformFacebook, req)
	require.Len(t, sink.records, 1)
	record := sink.records[0]
	assert.Equal(t, RecordTypePixelEvent, record.Type)
	assert.Equal(t, "Purchase", record.Event)

	event, ok := record.Data.(*CanonicalEvent)
	require.True(t, ok)
	assert.Equal(t, PlatformFacebook, event.Platform)
	assert.Equal(t, "123456789012345", event.PixelID)
	assert.Equal(t, "Facebook Pixel ID", event.PropertyType)
	assert.Equal(t, "E-commerce", event.EventType)
	assert.Equal(t, "https://shop.example.com/done", event.PageURL)
	assert.Equal(t, "19.99", event.MappedData["value"])
	assert.Equal(t, requestHash, event.RequestHash)
	assert.Len(t, requestHash, 12)

	metadata := record.Metadata
	assert.Equal(t, "/tr", metadata["request_path"])
	rawData, ok := metadata["raw_data"].(map[string]string)
	require.True(t, ok)
	assert.NotContains(t, rawData, requestPathKey, "internal keys are stripped from raw_data")
	assert.Contains(t, rawData, "ev")
}

func TestProcessEventMissingIdentifiers(t *testing.T) {
	sink := &captureSink{}
	builder := newTestBuilder(sink)
	req := &RequestInfo{
		Method: "GET",
		URL:    "https://api.shop.example/beacon",
		Host:   "api.shop.example",
		Path:   "/beacon",
	}

	builder.ProcessEvent(requestParams("/beacon", nil), PlatformCustomTracking, req)
	require.Len(t, sink.records, 1)
	record := sink.records[0]
	assert.Equal(t, RecordTypeCustomTracking, record.Type)
	assert.Equal(t, "not defined", record.Event)

	data, ok := record.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, PlatformCustomTracking, data["platform"])
	assert.Equal(t, "Missing Custom Tracking event name and pixel ID", data["message"])
	assert.Equal(t, "", data["pixel_id"])
}

func TestProcessEventKnownPixelUnknownEvent(t *testing.T) {
	sink := &captureSink{}
	builder := newTestBuilder(sink)
	req := &RequestInfo{
		Method: "GET",
		URL:    "https://www.facebook.com/tr?id=123456789012345",
		Host:   "www.facebook.com",
		Path:   "/tr",
	}
	builder.ProcessEvent(requestParams("/tr", map[string]string{"id": "123456789012345"}), PlatformFacebook, req)
	require.Len(t, sink.records, 1)
	assert.Equal(t, RecordTypePixelEvent, sink.records[0].Type)
	assert.Equal(t, "Unknown", sink.records[0].Event)
}
