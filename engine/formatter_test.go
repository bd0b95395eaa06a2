package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPixelID(t *testing.T) {
	tests := []struct {
		name     string
		pixelID  string
		platform string
		expected PropertyInfo
	}{
		{
			name:     "empty id",
			pixelID:  "",
			platform: PlatformGA4,
			expected: PropertyInfo{},
		},
		{
			name:     "ga4 measurement id",
			pixelID:  "G-ABC123",
			platform: PlatformGA4,
			expected: PropertyInfo{ID: "G-ABC123", Type: "GA4 Measurement ID", Formatted: "G-ABC123 (GA4)"},
		},
		{
			name:     "universal analytics id",
			pixelID:  "UA-12345-1",
			platform: PlatformGA4,
			expected: PropertyInfo{ID: "UA-12345-1", Type: "Universal Analytics ID", Formatted: "UA-12345-1 (UA)"},
		},
		{
			name:     "long opaque id on the analytics platform",
			pixelID:  "45je54d0v9141z8z",
			platform: PlatformGA4,
			expected: PropertyInfo{ID: "45je54d0v9141z8z", Type: "GTM Container (CCM)", Formatted: "45je54d0v9141z8z (GTM-CCM)"},
		},
		{
			name:     "google ads conversion id",
			pixelID:  "AW-123456789",
			platform: PlatformGoogleAds,
			expected: PropertyInfo{ID: "AW-123456789", Type: "Google Ads Conversion ID", Formatted: "AW-123456789 (Ads)"},
		},
		{
			name:     "facebook pixel id",
			pixelID:  "123456789012345",
			platform: PlatformFacebook,
			expected: PropertyInfo{ID: "123456789012345", Type: "Facebook Pixel ID", Formatted: "123456789012345 (FB)"},
		},
		{
			name:     "facebook id too short for the shape rule",
			pixelID:  "12345",
			platform: PlatformFacebook,
			expected: PropertyInfo{ID: "12345", Type: "Pixel/Property ID", Formatted: "12345 (Facebook)"},
		},
		{
			name:     "linkedin partner id",
			pixelID:  "1234567",
			platform: PlatformLinkedIn,
			expected: PropertyInfo{ID: "1234567", Type: "LinkedIn Partner ID", Formatted: "1234567 (LI)"},
		},
		{
			name:     "generic three letter platform",
			pixelID:  "tb-001",
			platform: PlatformTaboola,
			expected: PropertyInfo{ID: "tb-001", Type: "Taboola Pixel ID", Formatted: "tb-001 (TAB)"},
		},
		{
			name:     "fully generic fallback",
			pixelID:  "xyz",
			platform: "SomethingNew",
			expected: PropertyInfo{ID: "xyz", Type: "Pixel/Property ID", Formatted: "xyz (SomethingNew)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatPixelID(tt.pixelID, tt.platform))
		})
	}
}
