package engine

import (
	"fmt"
	"os"

	"github.com/ataraxie68/pixelscope/pixelbase/utils"
)

// Platform labels that detection branches and the cache policy refer to by
// name. Everything else is addressed through the registry table.
const (
	PlatformGA4               = "GA4"
	PlatformSGTM              = "sGTM"
	PlatformGoogleAds         = "Google Ads"
	PlatformDoubleClick       = "DoubleClick"
	PlatformFacebook          = "Facebook"
	PlatformTikTok            = "TikTok"
	PlatformSnapchat          = "Snapchat"
	PlatformPinterest         = "Pinterest"
	PlatformLinkedIn          = "LinkedIn"
	PlatformTwitterX          = "Twitter/X"
	PlatformBing              = "Microsoft/Bing"
	PlatformClarity           = "Microsoft Clarity"
	PlatformTaboola           = "Taboola"
	PlatformOutbrain          = "Outbrain"
	PlatformCriteo            = "Criteo"
	PlatformReddit            = "Reddit"
	PlatformAmazon            = "Amazon"
	PlatformQuora             = "Quora"
	PlatformPrivacySandbox    = "Privacy Sandbox"
	PlatformConsentCollection = "Google Consent Collection"
	PlatformCMP               = "Consent Management Platform"
	PlatformCustomTracking    = "Custom Tracking"
	PlatformNone              = "None"
)

// PlatformConfig describes one platform: how to recognize its endpoints and
// how to read its parameter encoding. Immutable after registry construction.
type PlatformConfig struct {
	Name         string            `mapstructure:"name" json:"name"`
	Hosts        []string          `mapstructure:"hosts" json:"hosts"`
	Paths        []string          `mapstructure:"paths" json:"paths"`
	ParamMap     map[string]string `mapstructure:"paramMap" json:"paramMap,omitempty"`
	PrimaryIDKey string            `mapstructure:"pixelIdKey" json:"pixelIdKey"`
	EventNameKey string            `mapstructure:"eventNameKey" json:"eventNameKey"`
}

// Indicators holds the parameter-name keyword lists the scorer matches
// against. Loaded once, read-only afterwards.
type Indicators struct {
	GA4Params          []string `mapstructure:"ga4Params" json:"ga4Params"`
	ConsentParams      []string `mapstructure:"consentParams" json:"consentParams"`
	GTMIDPrefixes      []string `mapstructure:"gtmIdPrefixes" json:"gtmIdPrefixes"`
	TrackingIDPrefixes []string `mapstructure:"trackingIdPrefixes" json:"trackingIdPrefixes"`
	EventParams        []string `mapstructure:"eventParams" json:"eventParams"`
	TrackingParams     []string `mapstructure:"trackingParams" json:"trackingParams"`
	SessionParams      []string `mapstructure:"sessionParams" json:"sessionParams"`
	ValueParams        []string `mapstructure:"valueParams" json:"valueParams"`
	EcommerceParams    []string `mapstructure:"ecommerceParams" json:"ecommerceParams"`
	TimestampParams    []string `mapstructure:"timestampParams" json:"timestampParams"`
	ServerGTMParams    []string `mapstructure:"serverGtmParams" json:"serverGtmParams"`
}

func DefaultIndicators() Indicators {
	return Indicators{
		GA4Params:          []string{"en", "cid", "sid", "_p", "dl", "dr", "dt"},
		ConsentParams:      []string{"gcs", "dma", "dma_cps", "gdpr", "gdpr_consent"},
		GTMIDPrefixes:      []string{"GTM-", "G-", "AW-", "DC-"},
		TrackingIDPrefixes: []string{"G-", "GA-", "GTM-", "AW-", "DC-"},
		EventParams:        []string{"event", "event_name", "en", "ev", "action", "event_action", "category", "event_category"},
		TrackingParams:     []string{"track", "tracking", "pixel", "pixel_id", "id", "user_id", "uid", "client_id", "cid"},
		SessionParams:      []string{"session", "session_id", "sid", "visit", "visit_id", "s"},
		ValueParams:        []string{"value", "revenue", "price", "amount", "val", "total"},
		EcommerceParams:    []string{"currency", "item_id", "product_id", "sku", "quantity", "product_name", "item_name"},
		TimestampParams:    []string{"timestamp", "time", "t", "_p", "ts"},
		ServerGTMParams:    []string{"gtm", "container_id", "gtm_container", "server_container_url"},
	}
}

// Registry is the loaded-once table of platform configurations. Slice order
// is the detection tie-break order.
type Registry struct {
	platforms  []*PlatformConfig
	byName     map[string]*PlatformConfig
	allHosts   utils.Set[string]
	allPaths   utils.Set[string]
	indicators Indicators
}

func NewRegistry(platforms []*PlatformConfig, indicators Indicators) *Registry {
	r := &Registry{
		platforms:  platforms,
		byName:     make(map[string]*PlatformConfig, len(platforms)),
		allHosts:   utils.NewSet[string](),
		allPaths:   utils.NewSet[string](),
		indicators: indicators,
	}
	for _, p := range platforms {
		r.byName[p.Name] = p
		r.allHosts.PutAll(p.Hosts)
		r.allPaths.PutAll(p.Paths)
	}
	return r
}

func (r *Registry) Get(name string) (*PlatformConfig, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Platforms returns the configured platforms in tie-break order.
func (r *Registry) Platforms() []*PlatformConfig {
	return r.platforms
}

func (r *Registry) Size() int {
	return len(r.platforms)
}

func (r *Registry) HostKnown(host string) bool {
	return r.allHosts.Contains(host)
}

func (r *Registry) AllHosts() utils.Set[string] {
	return r.allHosts
}

func (r *Registry) AllPaths() utils.Set[string] {
	return r.allPaths
}

func (r *Registry) Indicators() Indicators {
	return r.indicators
}

// PlatformKeyParams returns the primary-id and event-name parameter keys of
// every configured platform. The scorer counts matches against them.
func (r *Registry) PlatformKeyParams() []string {
	keys := make([]string, 0, len(r.platforms)*2)
	for _, p := range r.platforms {
		keys = append(keys, p.PrimaryIDKey, p.EventNameKey)
	}
	return keys
}

// registryFile is the on-disk override format. Platforms are a list, not a
// map, so the tie-break order survives the round trip.
type registryFile struct {
	Platforms  []*PlatformConfig `mapstructure:"platforms" json:"platforms"`
	Indicators *Indicators       `mapstructure:"indicators" json:"indicators,omitempty"`
}

// LoadRegistry reads a JSON or YAML registry file. An absent indicators
// section falls back to the built-in defaults.
func LoadRegistry(path string) (*Registry, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file %s: %w", path, err)
	}
	var file registryFile
	if err = utils.ParseObject(payload, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", path, err)
	}
	if len(file.Platforms) == 0 {
		return nil, fmt.Errorf("registry file %s defines no platforms", path)
	}
	indicators := DefaultIndicators()
	if file.Indicators != nil {
		indicators = *file.Indicators
	}
	return NewRegistry(file.Platforms, indicators), nil
}

// DefaultRegistry returns the built-in platform table. Order matters: the
// first platform whose hosts and paths both match wins a table lookup.
func DefaultRegistry() *Registry {
	return NewRegistry([]*PlatformConfig{
		{
			Name: PlatformGA4,
			Hosts: []string{
				"www.google-analytics.com", "google-analytics.com", "analytics.google.com",
				"www.googletagmanager.com", "googletagmanager.com",
			},
			Paths: []string{"/g/collect", "/g/s/collect", "/collect", "/r/collect", "/mp/collect", "/gtag/js", "/gtm.js", "/td", "/ccm/collect"},
			ParamMap: map[string]string{
				"client_id":            "cid",
				"user_id":              "uid",
				"session_id":           "sid",
				"timestamp_micros":     "_p",
				"non_personalized_ads": "npa",
			},
			PrimaryIDKey: "tid",
			EventNameKey: "en",
		},
		{
			Name:         PlatformSGTM,
			Hosts:        []string{},
			Paths:        []string{"/g/collect", "/collect", "/mp/collect", "/gtag/js", "/ccm/collect"},
			ParamMap:     map[string]string{"dl": "page_url", "dr": "referrer"},
			PrimaryIDKey: "tid",
			EventNameKey: "en",
		},
		{
			Name:  PlatformGoogleAds,
			Hosts: []string{"www.googleadservices.com", "googleads.g.doubleclick.net", "www.google.com"},
			Paths: []string{"/pagead/conversion", "/pagead/1p-conversion", "/pagead/1p-user-list", "/ads/conversion", "/pagead/landing", "/ga-audiences"},
			ParamMap: map[string]string{
				"label": "conversion_label",
				"gcs":   "consent_state",
				"value": "value",
				"url":   "page_url",
			},
			PrimaryIDKey: "tid",
			EventNameKey: "en",
		},
		{
			Name:  PlatformDoubleClick,
			Hosts: []string{"ad.doubleclick.net", "stats.g.doubleclick.net", "cm.g.doubleclick.net", "fls.doubleclick.net", "www.googletagservices.com"},
			Paths: []string{"/activity", "/ddm/activity", "/pagead/viewthroughconversion", "/g/collect", "/r/collect", "/google_com"},
			ParamMap: map[string]string{
				"label": "conversion_label",
				"cv":    "value",
				"dl":    "page_url",
			},
			PrimaryIDKey: "tid",
			EventNameKey: "t",
		},
		{
			Name:  PlatformFacebook,
			Hosts: []string{"www.facebook.com", "facebook.com", "connect.facebook.net"},
			Paths: []string{"/tr", "/tr/", "/privacy_sandbox"},
			ParamMap: map[string]string{
				"cd[content_name]":     "content_name",
				"cd[content_category]": "content_category",
				"cd[content_ids]":      "content_ids",
				"cd[value]":            "value",
				"cd[currency]":         "currency",
				"cd[num_items]":        "num_items",
				"dl":                   "page_url",
				"rl":                   "referrer",
			},
			PrimaryIDKey: "id",
			EventNameKey: "ev",
		},
		{
			Name:  PlatformTikTok,
			Hosts: []string{"analytics.tiktok.com", "analytics-sg.tiktok.com"},
			Paths: []string{"/api/v2/pixel", "/api/v1/pixel", "/i18n/pixel"},
			ParamMap: map[string]string{
				"value":    "value",
				"currency": "currency",
				"url":      "page_url",
			},
			PrimaryIDKey: "sdkid",
			EventNameKey: "event",
		},
		{
			Name:  PlatformSnapchat,
			Hosts: []string{"tr.snapchat.com", "tr-shadow.snapchat.com"},
			Paths: []string{"/p", "/gateway/p"},
			ParamMap: map[string]string{
				"pv": "value",
				"pc": "currency",
				"u":  "page_url",
			},
			PrimaryIDKey: "pid",
			EventNameKey: "ev",
		},
		{
			Name:  PlatformPinterest,
			Hosts: []string{"ct.pinterest.com"},
			Paths: []string{"/v3", "/user", "/ct"},
			ParamMap: map[string]string{
				"ed[value]":    "value",
				"ed[currency]": "currency",
				"ed[order_id]": "order_id",
			},
			PrimaryIDKey: "tid",
			EventNameKey: "event",
		},
		{
			Name:  PlatformLinkedIn,
			Hosts: []string{"px.ads.linkedin.com", "www.linkedin.com", "px4.ads.linkedin.com"},
			Paths: []string{"/collect", "/attribution_trigger", "/li.lms-analytics", "/px"},
			ParamMap: map[string]string{
				"fmt":          "format",
				"pid":          "partner_id",
				"conversionId": "conversion_id",
				"li_fat_id":    "li_fat_id",
				"v":            "value",
				"orderId":      "order_id",
				"url":          "page_url",
			},
			PrimaryIDKey: "pid",
			EventNameKey: "eventId",
		},
		{
			Name:  PlatformTwitterX,
			Hosts: []string{"analytics.twitter.com", "t.co", "ads-api.twitter.com"},
			Paths: []string{"/i/adsct", "/adsct"},
			ParamMap: map[string]string{
				"tw_sale_amount": "value",
				"tw_order_quantity": "num_items",
			},
			PrimaryIDKey: "txn_id",
			EventNameKey: "events",
		},
		{
			Name:  PlatformBing,
			Hosts: []string{"bat.bing.com", "bat.bing.net"},
			Paths: []string{"/action", "/actionp", "/p/insights", "/bat.js"},
			ParamMap: map[string]string{
				"gv": "goal_value",
				"gc": "goal_currency",
				"rv": "revenue",
				"p":  "page_url",
			},
			PrimaryIDKey: "ti",
			EventNameKey: "evt",
		},
		{
			Name:  PlatformClarity,
			Hosts: []string{"www.clarity.ms", "c.clarity.ms", "q.clarity.ms", "x.clarity.ms"},
			Paths: []string{"/collect", "/eus2-c"},
			ParamMap: map[string]string{
				"url":      "page_url",
				"referrer": "referrer",
			},
			PrimaryIDKey: "id",
			EventNameKey: "t",
		},
		{
			Name:  PlatformTaboola,
			Hosts: []string{"trc.taboola.com", "cdn.taboola.com", "trc-events.taboola.com"},
			Paths: []string{"/trc", "/actions", "/libtrc"},
			ParamMap: map[string]string{
				"data": "data",
				"u":    "page_url",
			},
			PrimaryIDKey: "id",
			EventNameKey: "name",
		},
		{
			Name:         PlatformOutbrain,
			Hosts:        []string{"tr.outbrain.com", "amplify.outbrain.com"},
			Paths:        []string{"/unifiedPixel"},
			ParamMap:     map[string]string{"dl": "page_url"},
			PrimaryIDKey: "marketerId",
			EventNameKey: "name",
		},
		{
			Name:         PlatformCriteo,
			Hosts:        []string{"widget.criteo.com", "sslwidget.criteo.com", "gum.criteo.com"},
			Paths:        []string{"/event", "/gum"},
			ParamMap:     map[string]string{"v": "version"},
			PrimaryIDKey: "a",
			EventNameKey: "e",
		},
		{
			Name:         PlatformReddit,
			Hosts:        []string{"alb.reddit.com", "pixel.redditmedia.com", "www.redditstatic.com"},
			Paths:        []string{"/rp.gif", "/ads/pixel"},
			ParamMap:     map[string]string{"url": "page_url"},
			PrimaryIDKey: "id",
			EventNameKey: "event",
		},
		{
			Name:         PlatformAmazon,
			Hosts:        []string{"s.amazon-adsystem.com", "aax.amazon-adsystem.com", "fls-eu.amazon-adsystem.com", "fls-na.amazon-adsystem.com"},
			Paths:        []string{"/iu3", "/x/px", "/e/ec", "/1/batch"},
			ParamMap:     map[string]string{"pg": "page_url"},
			PrimaryIDKey: "id",
			EventNameKey: "event",
		},
		{
			Name:         PlatformQuora,
			Hosts:        []string{"q.quora.com"},
			Paths:        []string{"/_/ad"},
			ParamMap:     map[string]string{"u": "page_url"},
			PrimaryIDKey: "id",
			EventNameKey: "event",
		},
		{
			Name:         PlatformPrivacySandbox,
			Hosts:        []string{},
			Paths:        []string{"/privacy_sandbox", "/privacy-sandbox"},
			ParamMap:     map[string]string{},
			PrimaryIDKey: "id",
			EventNameKey: "en",
		},
		{
			Name:         PlatformConsentCollection,
			Hosts:        []string{"www.google.com", "google.com", "www.googletagmanager.com", "googletagmanager.com"},
			Paths:        []string{"/ccm/collect"},
			ParamMap:     map[string]string{"gcs": "consent_state", "dl": "page_url"},
			PrimaryIDKey: "gtm",
			EventNameKey: "en",
		},
		{
			Name: PlatformCMP,
			Hosts: []string{
				"cdn.cookielaw.org", "geolocation.onetrust.com",
				"consent.cookiebot.com", "consentcdn.cookiebot.com",
				"app.usercentrics.eu", "api.usercentrics.eu", "aggregator.service.usercentrics.eu",
				"cdn.consentmanager.net", "cdn.iubenda.com",
				"cdn.cookie-script.com", "consent.cookie-script.com",
				"sdk.privacy-center.org", "consent.trustarc.com", "cmp.quantcast.com",
			},
			Paths: []string{"/browser-ui", "/otnotice", "/api", "/consent", "/groups", "/settings", "/latest", "/scripttemplates", "/cc.js", "/cs.js", "/uc.js", "/choice.js"},
			ParamMap: map[string]string{
				"v":            "version",
				"language":     "language",
				"location":     "location",
				"groupId":      "group_id",
				"domainId":     "domain_id",
				"websiteId":    "website_id",
				"cbid":         "cookiebot_id",
				"services":     "services",
				"consent":      "consent_data",
				"consentId":    "consent_id",
				"controllerId": "controller_id",
				"settingsId":   "settings_id",
			},
			PrimaryIDKey: "settingsId",
			EventNameKey: "action",
		},
	}, DefaultIndicators())
}
