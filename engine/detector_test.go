package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector() *Detector {
	registry := DefaultRegistry()
	return NewDetector(registry, NewScorer(registry))
}

func TestDetectPriorityOrder(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		path     string
		params   map[string]string
		expected string
	}{
		{
			name:     "privacy sandbox path wins over the host table",
			host:     "www.facebook.com",
			path:     "/privacy_sandbox/topics/registration",
			expected: PlatformPrivacySandbox,
		},
		{
			name:     "consent collection endpoint",
			host:     "www.google.com",
			path:     "/ccm/collect",
			expected: PlatformConsentCollection,
		},
		{
			name:     "ccm collect on unknown host is not consent collection",
			host:     "consent.example.com",
			path:     "/ccm/collect",
			expected: PlatformCustomTracking,
		},
		{
			name:     "regional analytics host",
			host:     "region1.analytics.google.com",
			path:     "/g/collect",
			expected: PlatformGA4,
		},
		{
			name:     "regional country-coded host",
			host:     "de2.google-analytics.com",
			path:     "/collect",
			expected: PlatformGA4,
		},
		{
			name:     "regional host without collection path falls through",
			host:     "region1.analytics.google.com",
			path:     "/settings",
			expected: PlatformCustomTracking,
		},
		{
			name:     "scored server-side relay on unknown host",
			host:     "metrics.shop.example",
			path:     "/data",
			params:   map[string]string{"gtm": "GTM-ABCDEFG", "en": "purchase", "value": "19.99"},
			expected: PlatformSGTM,
		},
		{
			name:     "known platform host never goes through the scorer",
			host:     "www.google-analytics.com",
			path:     "/g/collect",
			params:   map[string]string{"gtm": "GTM-ABCDEFG", "en": "purchase", "value": "19.99"},
			expected: PlatformGA4,
		},
		{
			name:     "host and path table match",
			host:     "www.facebook.com",
			path:     "/tr",
			expected: PlatformFacebook,
		},
		{
			name:     "gtm loader on any host",
			host:     "cdn.shop.example",
			path:     "/gtm.js",
			expected: PlatformGA4,
		},
		{
			name:     "taboola collect with id in path",
			host:     "trc.taboola.com",
			path:     "/trc/3/json",
			expected: PlatformTaboola,
		},
		{
			name:     "host-only fallback",
			host:     "connect.facebook.net",
			path:     "/en_US/fbevents.js",
			expected: PlatformFacebook,
		},
		{
			name:     "nothing matches",
			host:     "api.shop.example",
			path:     "/cart",
			expected: PlatformCustomTracking,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := newTestDetector()
			assert.Equal(t, tt.expected, detector.Detect(tt.host, tt.path, paramsFrom(tt.params)))
		})
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	detector := newTestDetector()
	params := paramsFrom(map[string]string{"en": "page_view", "cid": "1.2"})
	first := detector.Detect("www.google-analytics.com", "/g/collect", params)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, detector.Detect("www.google-analytics.com", "/g/collect", params))
	}
}

func TestDetectCachesTableVerdicts(t *testing.T) {
	detector := newTestDetector()
	detector.Detect("www.facebook.com", "/tr", NewParams())
	assert.Equal(t, 1, detector.CacheSize())

	detector.Detect("www.facebook.com", "/tr", NewParams())
	assert.Equal(t, uint64(1), detector.CacheHits.Load())
}

func TestDetectScoredVerdictsAreNotCached(t *testing.T) {
	detector := newTestDetector()
	relayParams := paramsFrom(map[string]string{"gtm": "GTM-ABCDEFG", "en": "purchase", "value": "19.99"})

	assert.Equal(t, PlatformSGTM, detector.Detect("metrics.shop.example", "/data", relayParams))
	assert.Equal(t, 0, detector.CacheSize(), "scored verdicts must not be memoized")

	// Same endpoint, no tracking parameters: the verdict is independent.
	assert.Equal(t, PlatformCustomTracking, detector.Detect("metrics.shop.example", "/data", NewParams()))
}

func TestDetectCacheEvictionKeepsMajorPlatforms(t *testing.T) {
	detector := newTestDetector()
	detector.Detect("www.facebook.com", "/tr", NewParams())
	detector.Detect("www.google-analytics.com", "/g/collect", NewParams())
	for i := 0; i <= detectionCacheLimit; i++ {
		detector.Detect(fmt.Sprintf("host%d.example.com", i), "/page", NewParams())
	}
	require.Greater(t, int(detector.CacheEvictions.Load()), 0)
	assert.LessOrEqual(t, detector.CacheSize(), detectionCacheLimit+2)

	// Major-platform verdicts survive the sweep.
	detector.Detect("www.facebook.com", "/tr", NewParams())
	detector.Detect("www.google-analytics.com", "/g/collect", NewParams())
	assert.Equal(t, uint64(2), detector.CacheHits.Load())
}

func TestIsTrackingRequest(t *testing.T) {
	detector := newTestDetector()
	tests := []struct {
		name     string
		host     string
		path     string
		params   map[string]string
		expected bool
	}{
		{
			name:     "parameter indicators on unknown host",
			host:     "api.shop.example",
			path:     "/submit",
			params:   map[string]string{"event": "signup"},
			expected: true,
		},
		{
			name:     "known host with tracking path",
			host:     "www.facebook.com",
			path:     "/tr",
			expected: true,
		},
		{
			name:     "known host with unrelated path",
			host:     "www.facebook.com",
			path:     "/home",
			expected: false,
		},
		{
			name:     "unknown host without indicators",
			host:     "api.shop.example",
			path:     "/submit",
			params:   map[string]string{"q": "search"},
			expected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detector.IsTrackingRequest(tt.host, tt.path, paramsFrom(tt.params)))
		})
	}
}
