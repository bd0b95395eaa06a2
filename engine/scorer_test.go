package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func paramsFrom(kv map[string]string) *Params {
	params := NewParams()
	for key, value := range kv {
		params.Set(key, value)
	}
	return params
}

func TestScorerBasicMode(t *testing.T) {
	scorer := NewScorer(DefaultRegistry())
	tests := []struct {
		name     string
		params   map[string]string
		expected bool
	}{
		{
			name:     "empty params",
			params:   map[string]string{},
			expected: false,
		},
		{
			name:     "two ga4 params",
			params:   map[string]string{"cid": "1.2", "dl": "https://example.com"},
			expected: true,
		},
		{
			name:     "single ga4 param is not enough",
			params:   map[string]string{"dl": "https://example.com"},
			expected: false,
		},
		{
			name:     "any event param",
			params:   map[string]string{"event": "signup"},
			expected: true,
		},
		{
			name:     "consent plus server container",
			params:   map[string]string{"gdpr": "1", "gtm": "GTM-XYZ"},
			expected: true,
		},
		{
			name:     "session plus value",
			params:   map[string]string{"session": "abc", "revenue": "10"},
			expected: true,
		},
		{
			name:     "two ecommerce params",
			params:   map[string]string{"currency": "EUR", "sku": "X-1"},
			expected: true,
		},
		{
			name:     "unrelated params",
			params:   map[string]string{"theme": "dark", "lang": "de"},
			expected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, scorer.HasTrackingIndicators(paramsFrom(tt.params)))
		})
	}
}

func TestScorerAdvancedMode(t *testing.T) {
	scorer := NewScorer(DefaultRegistry())
	tests := []struct {
		name         string
		params       map[string]string
		minScore     int
		isServerSide bool
		guess        string
	}{
		{
			name:         "empty params score zero",
			params:       map[string]string{},
			minScore:     0,
			isServerSide: false,
			guess:        PlatformNone,
		},
		{
			name:         "container id shape alone clears the relay bar",
			params:       map[string]string{"gtm": "GTM-ABCDEFG"},
			minScore:     4,
			isServerSide: true,
			guess:        PlatformSGTM,
		},
		{
			name:         "long opaque container id counts as container shape",
			params:       map[string]string{"gtm": "45je54d0v9141z8z"},
			minScore:     4,
			isServerSide: true,
			guess:        PlatformSGTM,
		},
		{
			name:         "relayed analytics hit",
			params:       map[string]string{"gtm": "GTM-ABCDEFG", "en": "purchase", "cid": "1.2", "sid": "9", "value": "19.99"},
			minScore:     10,
			isServerSide: true,
			guess:        PlatformSGTM,
		},
		{
			name:         "single weak signal is opaque custom tracking",
			params:       map[string]string{"ts": "1700000000"},
			minScore:     1,
			isServerSide: true,
			guess:        PlatformCustomTracking,
		},
		{
			name:         "tracking id prefix plus event name",
			params:       map[string]string{"tid": "G-ABC", "ev": "Lead"},
			minScore:     5,
			isServerSide: true,
			guess:        PlatformSGTM,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := scorer.Score(paramsFrom(tt.params))
			assert.GreaterOrEqual(t, result.Score, tt.minScore)
			assert.Equal(t, tt.isServerSide, result.IsServerSide)
			assert.Equal(t, tt.guess, result.PlatformGuess)
		})
	}
}

func TestScorerMoreSignalsNeverLowerTheScore(t *testing.T) {
	scorer := NewScorer(DefaultRegistry())
	params := NewParams()
	previous := 0
	for _, step := range [][2]string{
		{"gtm", "GTM-ABCDEFG"},
		{"en", "purchase"},
		{"cid", "1.2"},
		{"sid", "9"},
		{"value", "19.99"},
		{"currency", "EUR"},
		{"item_id", "X-1"},
		{"gcs", "G111"},
	} {
		params.Set(step[0], step[1])
		result := scorer.Score(params)
		assert.GreaterOrEqual(t, result.Score, previous, "adding %s lowered the score", step[0])
		previous = result.Score
	}
}
