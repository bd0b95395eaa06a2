package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryParams(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected map[string]string
		order    []string
	}{
		{
			name:     "no query",
			url:      "https://example.com/collect",
			expected: map[string]string{},
		},
		{
			name:     "ordered params",
			url:      "https://example.com/collect?b=2&a=1&c=3",
			expected: map[string]string{"a": "1", "b": "2", "c": "3"},
			order:    []string{"b", "a", "c"},
		},
		{
			name:     "first value wins for repeated keys",
			url:      "https://example.com/collect?en=purchase&en=refund",
			expected: map[string]string{"en": "purchase"},
		},
		{
			name:     "url-encoded values",
			url:      "https://example.com/collect?dl=https%3A%2F%2Fshop.example.com%2Fcart&dt=My+Cart",
			expected: map[string]string{"dl": "https://shop.example.com/cart", "dt": "My Cart"},
		},
		{
			name:     "fragment stripped",
			url:      "https://example.com/collect?a=1#b=2",
			expected: map[string]string{"a": "1"},
		},
		{
			name:     "flag without value",
			url:      "https://example.com/collect?npa",
			expected: map[string]string{"npa": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := parseQueryParams(tt.url)
			assert.Equal(t, len(tt.expected), params.Len())
			for key, value := range tt.expected {
				assert.Equal(t, value, params.Get(key), "key %s", key)
			}
			if tt.order != nil {
				assert.Equal(t, tt.order, params.Keys())
			}
		})
	}
}

func TestFlattenJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected map[string]string
	}{
		{
			name:     "nested objects use dotted keys",
			body:     `{"user":{"id":"u1","geo":{"country":"DE"}}}`,
			expected: map[string]string{"user.id": "u1", "user.geo.country": "DE"},
		},
		{
			name:     "arrays use bracketed indexes",
			body:     `{"items":[{"sku":"a"},{"sku":"b"}]}`,
			expected: map[string]string{"items[0].sku": "a", "items[1].sku": "b"},
		},
		{
			name:     "top-level array becomes item_i",
			body:     `["x","y"]`,
			expected: map[string]string{"item_0": "x", "item_1": "y"},
		},
		{
			name:     "null becomes empty string",
			body:     `{"uid":null,"value":12.5,"flag":true}`,
			expected: map[string]string{"uid": "", "value": "12.5", "flag": "true"},
		},
	}
	registry := DefaultRegistry()
	extractor := NewExtractor(registry)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &RequestInfo{
				Method:  "POST",
				URL:     "https://tracker.example.com/collect",
				Host:    "tracker.example.com",
				Path:    "/collect",
				Headers: map[string]string{"Content-Type": "application/json"},
				Body:    []byte(tt.body),
			}
			results := extractor.Extract(req, "")
			require.Len(t, results, 1)
			for key, value := range tt.expected {
				assert.Equal(t, value, results[0].Get(key), "key %s", key)
			}
		})
	}
}

func TestExtractBatchEvents(t *testing.T) {
	registry := DefaultRegistry()
	extractor := NewExtractor(registry)
	body := `{
		"client_id": "123.456",
		"non_personalized_ads": true,
		"events": [
			{"name": "purchase", "params": {"value": 19.99, "currency": "EUR", "items": ["shoe", "sock"]}},
			{"name": "refund", "params": {"session_id": "s-1"}}
		]
	}`
	req := &RequestInfo{
		Method:  "POST",
		URL:     "https://www.google-analytics.com/mp/collect?tid=G-ABC123",
		Host:    "www.google-analytics.com",
		Path:    "/mp/collect",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(body),
	}

	results := extractor.Extract(req, PlatformGA4)
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "G-ABC123", first.Get("tid"), "url params carry into each batch event")
	assert.Equal(t, "123.456", first.Get("cid"), "request-level fields go through the param map")
	assert.Equal(t, "1", first.Get("npa"))
	assert.Equal(t, "purchase", first.Get("en"))
	assert.Equal(t, "19.99", first.Get("ep.value"))
	assert.Equal(t, "EUR", first.Get("ep.currency"))
	assert.Equal(t, "shoe, sock", first.Get("ep.items"), "lists are joined with comma-space")

	second := results[1]
	assert.Equal(t, "refund", second.Get("en"))
	assert.Equal(t, "s-1", second.Get("sid"), "mapped event params use the wire key")
	assert.Equal(t, "", second.Get("ep.value"), "events do not leak params into each other")
}

func TestExtractBatchWithoutEventsFlattens(t *testing.T) {
	registry := DefaultRegistry()
	extractor := NewExtractor(registry)
	req := &RequestInfo{
		Method:  "POST",
		URL:     "https://www.google-analytics.com/mp/collect",
		Host:    "www.google-analytics.com",
		Path:    "/mp/collect",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"client_id":"c1","user":{"id":"u1"}}`),
	}
	results := extractor.Extract(req, PlatformGA4)
	require.Len(t, results, 1)
	assert.Equal(t, "u1", results[0].Get("user.id"))
}

func TestExtractFormBody(t *testing.T) {
	registry := DefaultRegistry()
	extractor := NewExtractor(registry)
	req := &RequestInfo{
		Method:  "POST",
		URL:     "https://www.facebook.com/tr?id=1111&ev=PageView",
		Host:    "www.facebook.com",
		Path:    "/tr",
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    []byte("ev=Purchase&cd%5Bvalue%5D=49.99"),
	}
	results := extractor.Extract(req, PlatformFacebook)
	require.Len(t, results, 1)
	assert.Equal(t, "1111", results[0].Get("id"))
	assert.Equal(t, "Purchase", results[0].Get("ev"), "body values overwrite query values")
	assert.Equal(t, "49.99", results[0].Get("cd[value]"))
}

func TestExtractMalformedBodyFallsBackToQuery(t *testing.T) {
	registry := DefaultRegistry()
	extractor := NewExtractor(registry)
	req := &RequestInfo{
		Method:  "POST",
		URL:     "https://tracker.example.com/collect?en=page_view",
		Host:    "tracker.example.com",
		Path:    "/collect",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"broken`),
	}
	results := extractor.Extract(req, "")
	require.Len(t, results, 1)
	assert.Equal(t, "page_view", results[0].Get("en"))
}

func TestParamsVisibleStripsInternalKeys(t *testing.T) {
	params := NewParams()
	params.Set("en", "purchase")
	params.Set(requestPathKey, "/collect")
	params.Set(requestHostKey, "tracker.example.com")
	params.Set(requestURLKey, "https://tracker.example.com/collect")

	visible := params.Visible()
	assert.Equal(t, map[string]string{"en": "purchase"}, visible)
}

func TestExtractGetRequestIgnoresBody(t *testing.T) {
	registry := DefaultRegistry()
	extractor := NewExtractor(registry)
	req := &RequestInfo{
		Method: "GET",
		URL:    "https://tracker.example.com/collect?a=1",
		Host:   "tracker.example.com",
		Path:   "/collect",
		Body:   []byte(`{"b":"2"}`),
	}
	results := extractor.Extract(req, "")
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Get("a"))
	assert.False(t, results[0].Has("b"))
}
