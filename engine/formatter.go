package engine

import (
	"strings"

	"github.com/ataraxie68/pixelscope/pixelbase/utils"
)

// PropertyInfo is the formatter's classification of a raw primary
// identifier.
type PropertyInfo struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Formatted string `json:"formatted"`
}

// idRule is one identifier-shape rule: the first matching rule in a
// platform's list wins. Prefix rules and shape predicates share this one
// form so the formatter has a single evaluation path.
type idRule struct {
	matches  func(id string) bool
	typeName string
	short    string
}

func prefixRule(prefix, typeName, short string) idRule {
	return idRule{
		matches:  func(id string) bool { return strings.HasPrefix(id, prefix) },
		typeName: typeName,
		short:    short,
	}
}

var platformIDRules = map[string][]idRule{
	PlatformGA4: {
		prefixRule("G-", "GA4 Measurement ID", "GA4"),
		prefixRule("UA-", "Universal Analytics ID", "UA"),
		prefixRule("CCM-", "GA4 Consent Mode", "CCM"),
		{
			// Long opaque ids on the analytics platform are hashed GTM
			// container ids surfaced by consent-mode hits.
			matches: func(id string) bool {
				return len(id) > 10 && !strings.HasPrefix(id, "G-") && !strings.HasPrefix(id, "UA-")
			},
			typeName: "GTM Container (CCM)",
			short:    "GTM-CCM",
		},
	},
	PlatformGoogleAds: {
		prefixRule("AW-", "Google Ads Conversion ID", "Ads"),
		prefixRule("G-", "GA4 → Google Ads", "GA4→Ads"),
	},
	PlatformFacebook: {
		{
			matches:  func(id string) bool { return utils.IsDigits(id) && len(id) >= 15 },
			typeName: "Facebook Pixel ID",
			short:    "FB",
		},
	},
	PlatformTikTok: {
		{
			matches:  func(id string) bool { return len(id) >= 10 },
			typeName: "TikTok Pixel Code",
			short:    "TT",
		},
	},
	PlatformSnapchat: {
		{
			matches:  func(id string) bool { return strings.Contains(id, "-") && len(id) >= 30 },
			typeName: "Snapchat Pixel ID",
			short:    "SC",
		},
	},
	PlatformPinterest: {
		{
			matches:  utils.IsDigits,
			typeName: "Pinterest Tag ID",
			short:    "PIN",
		},
	},
	PlatformLinkedIn: {
		{
			matches:  utils.IsDigits,
			typeName: "LinkedIn Partner ID",
			short:    "LI",
		},
	},
	PlatformTwitterX: {
		{
			matches:  func(string) bool { return true },
			typeName: "Twitter/X Pixel ID",
			short:    "X",
		},
	},
	PlatformBing: {
		{
			matches:  utils.IsDigits,
			typeName: "Bing UET Tag ID",
			short:    "UET",
		},
	},
}

// genericShortPlatforms take a "<id> (<first-3-letters-uppercased>)"
// rendering when no shape rule exists for them.
var genericShortPlatforms = utils.NewSet(PlatformAmazon, PlatformCriteo, PlatformReddit, PlatformQuora, PlatformOutbrain, PlatformTaboola)

// FormatPixelID classifies a raw primary identifier into its semantic
// sub-type and a display form. Independent of the detector.
func FormatPixelID(pixelID, platform string) PropertyInfo {
	if pixelID == "" {
		return PropertyInfo{}
	}

	for _, rule := range platformIDRules[platform] {
		if rule.matches(pixelID) {
			return PropertyInfo{
				ID:        pixelID,
				Type:      rule.typeName,
				Formatted: pixelID + " (" + rule.short + ")",
			}
		}
	}

	if genericShortPlatforms.Contains(platform) {
		short := strings.ToUpper(firstN(platform, 3))
		return PropertyInfo{
			ID:        pixelID,
			Type:      platform + " Pixel ID",
			Formatted: pixelID + " (" + short + ")",
		}
	}

	return PropertyInfo{
		ID:        pixelID,
		Type:      "Pixel/Property ID",
		Formatted: pixelID + " (" + platform + ")",
	}
}
