package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(sink RecordSink) *Engine {
	return NewEngine(DefaultRegistry(), sink, "https://shop.example.com")
}

func TestProcessRequestPipeline(t *testing.T) {
	sink := &captureSink{}
	eng := newTestEngine(sink)
	eng.ProcessRequest(&RequestInfo{
		Method: "GET",
		URL:    "https://www.facebook.com/tr?id=123456789012345&ev=Purchase&cd[value]=19.99",
		Host:   "www.facebook.com",
		Path:   "/tr",
	})

	require.Len(t, sink.records, 1)
	assert.Equal(t, RecordTypePixelEvent, sink.records[0].Type)
	assert.Equal(t, "Purchase", sink.records[0].Event)
	assert.Equal(t, 1, eng.Correlator.PendingCount(), "request fingerprint is registered for correlation")
}

func TestProcessRequestSkipsStaticAssets(t *testing.T) {
	sink := &captureSink{}
	eng := newTestEngine(sink)
	eng.ProcessRequest(&RequestInfo{
		Method: "GET",
		URL:    "https://www.shop.example.com/assets/logo.png",
		Host:   "www.shop.example.com",
		Path:   "/assets/logo.png",
	})
	assert.Empty(t, sink.records)
}

func TestProcessRequestSkipsNonTrackingRequests(t *testing.T) {
	sink := &captureSink{}
	eng := newTestEngine(sink)
	eng.ProcessRequest(&RequestInfo{
		Method: "GET",
		URL:    "https://api.shop.example.com/search?q=shoes",
		Host:   "api.shop.example.com",
		Path:   "/search",
	})
	assert.Empty(t, sink.records)
}

func TestProcessRequestBatchEmitsOneRecordPerEvent(t *testing.T) {
	sink := &captureSink{}
	eng := newTestEngine(sink)
	eng.ProcessRequest(&RequestInfo{
		Method:  "POST",
		URL:     "https://www.google-analytics.com/mp/collect?tid=G-ABC123",
		Host:    "www.google-analytics.com",
		Path:    "/mp/collect",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"client_id":"1.2","events":[{"name":"add_to_cart"},{"name":"purchase"}]}`),
	})

	require.Len(t, sink.records, 2)
	assert.Equal(t, "add_to_cart", sink.records[0].Event)
	assert.Equal(t, "purchase", sink.records[1].Event)
}

func TestProcessRequestAndResponseRoundTrip(t *testing.T) {
	sink := &captureSink{}
	eng := newTestEngine(sink)
	req := RequestInfo{
		Method: "GET",
		URL:    "https://www.facebook.com/tr?id=123456789012345&ev=PageView",
		Host:   "www.facebook.com",
		Path:   "/tr",
	}
	eng.ProcessRequest(&req)
	eng.ProcessResponse(&ResponseInfo{
		Request:    req,
		StatusCode: 200,
		Headers:    map[string][]string{"Content-Type": {"image/gif"}},
		BodyLength: 43,
	})

	pixelEvents := sink.byType(RecordTypePixelEvent)
	statusUpdates := sink.byType(RecordTypeStatusUpdate)
	require.Len(t, pixelEvents, 1)
	require.Len(t, statusUpdates, 1)

	event := pixelEvents[0].Data.(*CanonicalEvent)
	status := statusUpdates[0].Data.(map[string]any)
	assert.Equal(t, event.RequestHash, status["request_hash"], "response references the request fingerprint")
	assert.Equal(t, 0, eng.Correlator.PendingCount())
}
