package engine

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// EventHandler is one platform's extraction strategy. ExtractIdentifiers
// resolves the primary id, event name and event classification from the flat
// parameters; ExtractAttributes produces order-preserving human-readable
// secondary facts. Implementations may panic on malformed input, the
// builder contains panics at the dispatch boundary.
type EventHandler interface {
	ExtractIdentifiers(params *Params) (pixelID, eventName, eventType string)
	ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string
}

// Dispatch maps platform label to extraction strategy. Platforms without a
// specialized strategy get the default one; unknown labels get a synthetic
// configuration with generic parameter keys.
type Dispatch struct {
	registry *Registry
	handlers map[string]EventHandler
}

func NewDispatch(registry *Registry) *Dispatch {
	d := &Dispatch{
		registry: registry,
		handlers: make(map[string]EventHandler),
	}
	build := func(platform string, construct func(base baseHandler) EventHandler) {
		cfg, ok := registry.Get(platform)
		if !ok {
			return
		}
		base := baseHandler{config: cfg}
		if construct != nil {
			d.handlers[platform] = construct(base)
		} else {
			d.handlers[platform] = &base
		}
	}

	build(PlatformGA4, func(b baseHandler) EventHandler { return &ga4Handler{b} })
	build(PlatformSGTM, func(b baseHandler) EventHandler { return &serverSideGTMHandler{b} })
	build(PlatformFacebook, func(b baseHandler) EventHandler { return &facebookHandler{b} })
	build(PlatformGoogleAds, func(b baseHandler) EventHandler { return &googleAdsHandler{b} })
	build(PlatformDoubleClick, func(b baseHandler) EventHandler { return &doubleClickHandler{b} })
	build(PlatformLinkedIn, func(b baseHandler) EventHandler { return &linkedInHandler{b} })
	build(PlatformPinterest, func(b baseHandler) EventHandler { return &pinterestHandler{b} })
	build(PlatformBing, func(b baseHandler) EventHandler { return &bingHandler{b} })
	build(PlatformClarity, func(b baseHandler) EventHandler { return &clarityHandler{b} })
	build(PlatformTaboola, func(b baseHandler) EventHandler { return &taboolaHandler{b} })
	build(PlatformPrivacySandbox, func(b baseHandler) EventHandler { return &privacySandboxHandler{b} })
	build(PlatformConsentCollection, func(b baseHandler) EventHandler { return &consentCollectionHandler{b} })
	build(PlatformCMP, func(b baseHandler) EventHandler { return &cmpHandler{b} })

	for _, cfg := range registry.Platforms() {
		if _, ok := d.handlers[cfg.Name]; !ok {
			d.handlers[cfg.Name] = &baseHandler{config: cfg}
		}
	}
	return d
}

// Handler returns the strategy for a platform label, falling back to a
// generic strategy for labels outside the registry (e.g. Custom Tracking).
func (d *Dispatch) Handler(platform string) EventHandler {
	if handler, ok := d.handlers[platform]; ok {
		return handler
	}
	return &baseHandler{config: &PlatformConfig{
		Name:         platform,
		PrimaryIDKey: "pixel_id",
		EventNameKey: "event_name",
	}}
}

// baseHandler is the default strategy: read the configured id and event-name
// keys and surface the common commerce fields.
type baseHandler struct {
	config *PlatformConfig
}

func (h *baseHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	pixelID := params.Get(h.config.PrimaryIDKey)
	eventName := params.Get(h.config.EventNameKey)
	if eventName == "" {
		eventName = "Unknown"
	}
	return pixelID, eventName, "Standard Event"
}

func (h *baseHandler) ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string {
	var info []string
	if value := mapped["value"]; value != "" {
		info = append(info, formatValueCurrency(value, mapped["currency"]))
	}
	if contentName := mapped["content_name"]; contentName != "" {
		info = append(info, "content: "+truncateValue(contentName, 30))
	}
	if contentIDs := mapped["content_ids"]; contentIDs != "" {
		info = append(info, "ids: "+firstN(contentIDs, 20))
	}
	if numItems := mapped["num_items"]; numItems != "" {
		info = append(info, "items: "+numItems)
	}
	if orderID := mapped["order_id"]; orderID != "" {
		info = append(info, "order: "+orderID)
	}
	if pageURL := mapped["page_url"]; pageURL != "" {
		info = append(info, "domain: "+domainOf(pageURL))
	}
	return info
}

// ga4DisplayParams are the parameters worth surfacing verbatim on analytics
// hits, in display order.
var ga4DisplayParams = [][2]string{
	{"gcs", "GCS"}, {"ep.decision_id", "decision_id"}, {"ep.slot_id", "slot_id"},
	{"ep.item_name", "item_name"}, {"ep.type", "type"}, {"ep.hostname", "hostname"},
	{"ep.dy_user", "dy_user"}, {"ep.dy_session", "dy_session"},
}

// analyticsEventInfo extracts the shared analytics-hit attribute set: the
// display parameter list plus a product summary.
func analyticsEventInfo(params *Params) []string {
	var info []string
	for _, entry := range ga4DisplayParams {
		key, display := entry[0], entry[1]
		value := params.Get(key)
		if value == "" {
			continue
		}
		if key == "gcs" {
			info = append(info, display+": "+value)
		} else {
			info = append(info, display+": "+truncateValue(value, 50))
		}
	}

	products := parseProductData(params)
	if len(products) > 0 {
		switch {
		case len(products) == 1:
			info = append(info, "product: "+firstN(productName(products[0]), 15))
		case params.Get("en") == "view_item_list":
			names := make([]string, 0, 3)
			for _, product := range products[:min(3, len(products))] {
				names = append(names, firstN(productName(product), 12))
			}
			suffix := ""
			if len(products) > 3 {
				suffix = "..."
			}
			info = append(info, fmt.Sprintf("products (%d): %s%s", len(products), strings.Join(names, ", "), suffix))
		default:
			info = append(info, fmt.Sprintf("products: %d items", len(products)))
		}
	}
	return info
}

var productFieldPrefixes = map[string]string{
	"nm": "name", "id": "id", "pr": "price", "br": "brand", "ca": "category", "qt": "quantity",
}

// parseProductData decodes enhanced-ecommerce product parameters: every
// pr<digits> value is URL-unescaped and split on "~", each token pairing a
// two-character field prefix with its value.
func parseProductData(params *Params) []map[string]string {
	var productKeys []string
	for _, key := range params.Keys() {
		if len(key) > 2 && strings.HasPrefix(key, "pr") && isAllDigits(key[2:]) {
			productKeys = append(productKeys, key)
		}
	}
	sort.Strings(productKeys)

	var products []map[string]string
	for _, key := range productKeys {
		decoded := unquoteURLValue(params.Get(key))
		product := map[string]string{}
		for _, part := range strings.Split(decoded, "~") {
			if len(part) <= 2 {
				continue
			}
			if field, ok := productFieldPrefixes[part[:2]]; ok {
				product[field] = part[2:]
			}
		}
		if len(product) > 0 {
			products = append(products, product)
		}
	}
	return products
}

func productName(product map[string]string) string {
	if name := product["name"]; name != "" {
		return name
	}
	return "Unknown"
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func truncateValue(value string, maxLength int) string {
	if len(value) > maxLength {
		return value[:maxLength] + "..."
	}
	return value
}

func firstN(value string, n int) string {
	if len(value) > n {
		return value[:n]
	}
	return value
}

func formatValueCurrency(value, currency string) string {
	return strings.TrimSpace("value: " + value + " " + currency)
}

// domainOf extracts the host part of a URL-ish string for display.
func domainOf(pageURL string) string {
	if strings.Contains(pageURL, "//") {
		rest := pageURL[strings.Index(pageURL, "//")+2:]
		return strings.SplitN(rest, "/", 2)[0]
	}
	return pageURL
}

func unquoteURLValue(value string) string {
	if unescaped, err := url.PathUnescape(value); err == nil {
		return unescaped
	}
	return value
}
