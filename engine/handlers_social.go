package engine

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// facebookHandler buckets events into classification groups by name.
type facebookHandler struct {
	baseHandler
}

var facebookEventClasses = map[string]string{
	"PageView":             "Page Tracking",
	"Purchase":             "E-commerce",
	"InitiateCheckout":     "E-commerce",
	"AddToCart":            "E-commerce",
	"Lead":                 "Conversion",
	"CompleteRegistration": "Conversion",
	"Subscribe":            "Conversion",
	"ViewContent":          "Engagement",
	"Search":               "Engagement",
	"AddToWishlist":        "Engagement",
}

func (h *facebookHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	pixelID, eventName, _ := h.baseHandler.ExtractIdentifiers(params)
	eventType := facebookEventClasses[eventName]
	if eventType == "" {
		eventType = "Custom Event"
	}
	return pixelID, eventName, eventType
}

func (h *facebookHandler) ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string {
	var info []string
	if contentName := mapped["content_name"]; contentName != "" {
		info = append(info, "content: "+truncateValue(contentName, 30))
	}
	if category := mapped["content_category"]; category != "" {
		info = append(info, "category: "+category)
	}
	if value := mapped["value"]; value != "" {
		info = append(info, formatValueCurrency(value, mapped["currency"]))
	}
	if contentIDs := mapped["content_ids"]; contentIDs != "" {
		info = append(info, formatContentIDs(contentIDs))
	}
	if numItems := mapped["num_items"]; numItems != "" {
		info = append(info, "items: "+numItems)
	}
	return info
}

// formatContentIDs renders a JSON id list as up to three truncated ids, or
// falls back to the raw value.
func formatContentIDs(contentIDs string) string {
	if strings.HasPrefix(contentIDs, "[") && strings.HasSuffix(contentIDs, "]") {
		var ids []any
		if err := jsoniter.UnmarshalFromString(contentIDs, &ids); err == nil && len(ids) > 0 {
			parts := make([]string, 0, 3)
			for _, id := range ids[:min(3, len(ids))] {
				parts = append(parts, firstN(fmt.Sprint(id), 10))
			}
			return "ids: " + strings.Join(parts, ", ")
		}
	}
	return "id: " + firstN(contentIDs, 20)
}

// linkedInHandler classifies hits by path segment first, then by parameters,
// then by URL keyword groups, then a final generic label.
type linkedInHandler struct {
	baseHandler
}

func (h *linkedInHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	pixelID := params.Get(h.config.PrimaryIDKey)
	requestPath := params.Get(requestPathKey)

	var eventName, eventType string
	switch {
	case strings.Contains(requestPath, "/collect"):
		eventName, eventType = classifyLinkedInCollect(params)
	case strings.Contains(requestPath, "/attribution_trigger"):
		eventName, eventType = "Attribution Trigger", "Conversion Attribution"
	case strings.Contains(requestPath, "/li.lms-analytics/"):
		eventName, eventType = "LMS Analytics", "Learning Analytics"
	case strings.Contains(requestPath, "/px"):
		eventName, eventType = "Pixel Fire", "Pixel Tracking"
	default:
		eventName, eventType = classifyLinkedInByParams(params)
	}

	if liFatID := params.Get("li_fat_id"); liFatID != "" {
		eventName = fmt.Sprintf("%s (li_fat_id: %s)", eventName, liFatID)
	}
	return pixelID, eventName, eventType
}

func classifyLinkedInCollect(params *Params) (string, string) {
	format := params.Get("fmt")
	eventName, eventType := "Data Collection (Beacon)", "Beacon Tracking"
	if format == "js" {
		eventName, eventType = "Data Collection (JS)", "JavaScript Tracking"
	}

	style := defaultIfEmpty(format, "beacon")
	if params.Get("conversionId") != "" {
		return "Conversion Collection (" + style + ")", "Conversion Tracking"
	}
	if params.Get("eventId") != "" {
		return "Custom Event Collection (" + style + ")", "Custom Event Tracking"
	}
	if v := params.Get("v"); v != "" && v != "0" {
		return "Value Tracking (" + style + ")", "Value-based Tracking"
	}
	return eventName, eventType
}

// linkedInURLEvents are ordered keyword groups: the first group with any
// keyword present in the page URL wins.
var linkedInURLEvents = []struct {
	keywords  []string
	eventName string
	eventType string
}{
	{[]string{"checkout", "purchase", "order"}, "Purchase Page", "E-commerce Tracking"},
	{[]string{"cart", "basket"}, "Cart Page", "E-commerce Tracking"},
	{[]string{"contact", "form"}, "Lead Page", "Lead Generation"},
	{[]string{"signup", "register"}, "Registration Page", "Registration Tracking"},
	{[]string{"demo", "trial"}, "Demo Request", "Lead Generation"},
	{[]string{"download"}, "Download Page", "Content Engagement"},
}

func classifyLinkedInByParams(params *Params) (string, string) {
	if params.Get("conversionId") != "" {
		return "Conversion Event", "Conversion Tracking"
	}
	if eventID := params.Get("eventId"); eventID != "" {
		if len(eventID) > 10 {
			eventID = eventID[:8]
		}
		return "Custom Event_" + eventID, "Custom Event Tracking"
	}
	if v := params.Get("v"); v != "" && v != "0" {
		return "Value Event", "Value-based Tracking"
	}
	if pageURL := strings.ToLower(params.Get("url")); pageURL != "" {
		for _, group := range linkedInURLEvents {
			for _, keyword := range group.keywords {
				if strings.Contains(pageURL, keyword) {
					return group.eventName, group.eventType
				}
			}
		}
		return "Page View", "Page Tracking"
	}
	if params.Get("tm") == "gtmv2" {
		return "GTM Integration", "Tag Manager Event"
	}
	return "Insight Tag", "General Tracking"
}

func (h *linkedInHandler) ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string {
	var info []string
	requestPath := params.Get(requestPathKey)

	if strings.Contains(requestPath, "/collect") {
		if format := mapped["format"]; format != "" {
			info = append(info, "format: "+format)
		}
		info = append(info, "timing: page load")
		switch {
		case strings.Contains(eventName, "GTM"):
			info = append(info, "usage: base pixel tag")
		case strings.Contains(eventName, "Custom Event"):
			info = append(info, "usage: custom trigger")
		case strings.Contains(eventName, "Conversion"):
			info = append(info, "usage: conversion trigger")
		default:
			info = append(info, "usage: audience building")
		}
	} else if strings.Contains(requestPath, "/attribution_trigger") {
		info = append(info, "type: conversion attribution", "timing: user conversion", "style: beacon-only")
	}

	if value := mapped["value"]; value != "" {
		info = append(info, formatValueCurrency(value, mapped["currency"]))
	}
	if orderID := mapped["order_id"]; orderID != "" {
		info = append(info, "order: "+orderID)
	}
	if pageURL := mapped["page_url"]; pageURL != "" {
		info = append(info, "domain: "+domainOf(pageURL))
	}
	if partnerID := mapped["partner_id"]; partnerID != "" {
		info = append(info, "partner: "+partnerID)
	}
	if conversionID := mapped["conversion_id"]; conversionID != "" {
		info = append(info, "conversion: "+conversionID)
	}
	if liFatID := mapped["li_fat_id"]; liFatID != "" {
		info = append(info, "fat_id: "+liFatID)
	}
	return info
}

// pinterestHandler maps the dep parameter onto event classes.
type pinterestHandler struct {
	baseHandler
}

var pinterestEvents = []struct {
	keyword   string
	eventName string
	eventType string
}{
	{"PAGE_LOAD", "page_load", "Page Tracking"},
	{"CONVERSION", "conversion", "Conversion"},
	{"CUSTOM", "custom", "Custom Event"},
}

func (h *pinterestHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	pixelID := params.Get(h.config.PrimaryIDKey)
	depValue := strings.ToUpper(params.Get("dep"))

	for _, entry := range pinterestEvents {
		if strings.Contains(depValue, entry.keyword) {
			return pixelID, entry.eventName, entry.eventType
		}
	}
	eventName := defaultIfEmpty(params.Get(h.config.EventNameKey), "Unknown")
	return pixelID, eventName, "Pinterest Event"
}

// bingHandler classifies UET hits by path segment with an evt-parameter
// fallback.
type bingHandler struct {
	baseHandler
}

var bingInsightsPattern = regexp.MustCompile(`/p/insights/t/(\d+)`)

func (h *bingHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	requestPath := params.Get(requestPathKey)
	pixelID := params.Get(h.config.PrimaryIDKey)
	eventName := params.Get(h.config.EventNameKey)

	switch {
	case strings.Contains(requestPath, "/p/insights/t/"):
		if match := bingInsightsPattern.FindStringSubmatch(requestPath); match != nil {
			pixelID = match[1]
		}
		return pixelID, "UET_Insights", "Analytics Insights"

	case strings.Contains(requestPath, "/p/insights/c/j"):
		return pixelID, "UET_JavaScript", "JavaScript Library"

	case strings.Contains(requestPath, "/action/"):
		evt := params.Get("evt")
		eventName = defaultIfEmpty(evt, "UET_Action")
		switch strings.ToLower(evt) {
		case "conversion", "goal", "purchase":
			return pixelID, eventName, "Conversion Tracking"
		}
		return pixelID, eventName, "Action Tracking"

	case strings.Contains(requestPath, "/bat.js") || strings.Contains(requestPath, "/uet.js"):
		return pixelID, "UET_Library_Load", "JavaScript Library"

	default:
		if eventName == "" || eventName == "Unknown" {
			eventName = "UET_Event"
		}
		return pixelID, eventName, "UET Tracking"
	}
}

func (h *bingHandler) ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string {
	var info []string
	if goalValue := mapped["goal_value"]; goalValue != "" {
		info = append(info, formatValueCurrency(goalValue, mapped["goal_currency"]))
	}
	if revenue := mapped["revenue"]; revenue != "" {
		info = append(info, "revenue: "+revenue)
	}
	if pageURL := mapped["page_url"]; pageURL != "" {
		info = append(info, "domain: "+domainOf(pageURL))
	}
	return info
}

// clarityHandler reads the session-replay project id and event type.
type clarityHandler struct {
	baseHandler
}

func (h *clarityHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	pixelID := params.Get("id")
	eventName := params.Get("t")
	if eventName == "" || eventName == "Unknown" {
		eventName = "session_collect"
	}
	return pixelID, eventName, "Clarity Event"
}

func (h *clarityHandler) ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string {
	var info []string
	if sessionID := params.Get("sid"); sessionID != "" {
		info = append(info, "session: "+firstN(sessionID, 12)+"...")
	}
	if userID := params.Get("uid"); userID != "" {
		info = append(info, "user: "+firstN(userID, 12)+"...")
	}
	if timestamp := params.Get("ts"); timestamp != "" {
		info = append(info, "timestamp: "+timestamp)
	}
	if pageURL := params.Get("url"); pageURL != "" {
		info = append(info, "domain: "+domainOf(pageURL))
	}
	if referrer := params.Get("referrer"); referrer != "" {
		info = append(info, "referrer: "+domainOf(referrer))
	}
	return info
}

// taboolaHandler pulls the publisher id out of the path and unwraps the
// URL-encoded JSON payload carried in the data parameter.
type taboolaHandler struct {
	baseHandler
}

func (h *taboolaHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	pixelID := params.Get(h.config.PrimaryIDKey)
	requestPath := params.Get(requestPathKey)

	segments := strings.Split(requestPath, "/")
	if len(segments) > 1 && isAllDigits(segments[1]) {
		publisherID := segments[1]
		if pixelID == "" {
			pixelID = publisherID
		} else {
			pixelID = pixelID + " (pub:" + publisherID + ")"
		}
	}

	switch {
	case strings.Contains(requestPath, "/trc/"):
		if strings.Contains(requestPath, "/json") {
			return pixelID, "Taboola Tracking Event", "JSON Tracking"
		}
		return pixelID, "Taboola Pixel Fire", "Pixel Tracking"
	case strings.Contains(requestPath, "/actions/"):
		return pixelID, "Taboola Action Event", "Action Tracking"
	case strings.Contains(requestPath, "/libtrc/"):
		return pixelID, "Taboola Library Load", "Library Loading"
	default:
		return pixelID, "Taboola Activity", "General Tracking"
	}
}

func (h *taboolaHandler) ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string {
	var info []string

	if trackingData := params.Get("data"); trackingData != "" {
		var payload map[string]any
		if err := jsoniter.UnmarshalFromString(unquoteURLValue(trackingData), &payload); err == nil {
			if pageURL, ok := payload["u"].(string); ok {
				info = append(info, "domain: "+domainOf(pageURL))
			}
			if version, ok := payload["cv"]; ok {
				info = append(info, "version: "+fmt.Sprint(version))
			}
			if cmp, ok := payload["cbp"]; ok {
				info = append(info, "cmp: "+fmt.Sprint(cmp))
			}
			if mpvd, ok := payload["mpvd"].(map[string]any); ok {
				if event, ok := mpvd["en"]; ok {
					info = append(info, "event: "+fmt.Sprint(event))
				}
				if itemType, ok := mpvd["it"]; ok {
					info = append(info, "type: "+fmt.Sprint(itemType))
				}
			}
		}
	}

	if value := mapped["value"]; value != "" {
		info = append(info, formatValueCurrency(value, mapped["currency"]))
	}
	if pageURL := mapped["page_url"]; pageURL != "" {
		info = append(info, "domain: "+domainOf(pageURL))
	}
	return info
}

// cmpHandler covers consent-management vendors sharing one strategy; the
// provider is recovered from the hostname.
type cmpHandler struct {
	baseHandler
}

var cmpProviders = []struct {
	hostPattern string
	provider    string
}{
	{"usercentrics", "Usercentrics"},
	{"cookielaw.org", "OneTrust"},
	{"onetrust.com", "OneTrust"},
	{"optanon", "OneTrust"},
	{"cookiebot.com", "Cookiebot"},
	{"consentmanager", "ConsentManager"},
	{"consensu.org", "ConsentManager"},
	{"iubenda.com", "Iubenda"},
	{"cookie-script.com", "CookieScript"},
	{"quantcast.com", "Quantcast"},
	{"trustarc.com", "TrustArc"},
	{"didomi", "Didomi"},
	{"privacy-center.org", "Didomi"},
}

func detectCMPProvider(host string) string {
	lower := strings.ToLower(host)
	for _, entry := range cmpProviders {
		if strings.Contains(lower, entry.hostPattern) {
			return entry.provider
		}
	}
	return "CMP"
}

func (h *cmpHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	pixelID := params.Get(h.config.PrimaryIDKey)
	requestPath := params.Get(requestPathKey)
	provider := detectCMPProvider(params.Get(requestHostKey))
	lowerPath := strings.ToLower(requestPath)

	containsAny := func(patterns ...string) bool {
		for _, p := range patterns {
			if strings.Contains(requestPath, p) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny("/browser-ui/", "/otnotice/", "/cc.js", "/cs.js", "/uc.js"):
		return pixelID, provider + " Banner Load", "Banner Display"
	case containsAny("/api/", "/consent/", "/groups/", "/choice.js"):
		if strings.Contains(lowerPath, "consent") {
			return pixelID, provider + " Consent API", "Consent Processing"
		}
		if strings.Contains(lowerPath, "settings") || strings.Contains(lowerPath, "groups") {
			return pixelID, provider + " Settings Load", "Configuration"
		}
		return pixelID, provider + " API Request", "API Communication"
	case containsAny("/settings/", "/latest/", "/scripttemplates/"):
		return pixelID, provider + " Configuration", "Settings"
	case containsAny("/privacy-notice/", "/cookie-policy/"):
		return pixelID, provider + " Policy Load", "Policy Display"
	default:
		return pixelID, provider + " Activity", "Consent Management"
	}
}

func (h *cmpHandler) ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string {
	var info []string
	if version := mapped["version"]; version != "" {
		info = append(info, "version: "+version)
	}
	if language := mapped["language"]; language != "" {
		info = append(info, "lang: "+language)
	}
	if location := mapped["location"]; location != "" {
		info = append(info, "location: "+location)
	}
	if groupID := mapped["group_id"]; groupID != "" {
		info = append(info, "group: "+groupID)
	}
	if domainID := mapped["domain_id"]; domainID != "" {
		info = append(info, "domain: "+domainID)
	}
	if websiteID := mapped["website_id"]; websiteID != "" {
		info = append(info, "site: "+websiteID)
	}
	if cookiebotID := mapped["cookiebot_id"]; cookiebotID != "" {
		info = append(info, "cbid: "+cookiebotID)
	}
	if services := mapped["services"]; services != "" {
		info = append(info, formatCMPServices(services))
	}
	if consentData := mapped["consent_data"]; consentData != "" {
		info = append(info, "consent: "+firstN(consentData, 15)+"...")
	}
	if consentID := mapped["consent_id"]; consentID != "" {
		info = append(info, "consent_id: "+consentID)
	}
	if controllerID := mapped["controller_id"]; controllerID != "" {
		info = append(info, "controller: "+controllerID)
	}
	if settingsID := mapped["settings_id"]; settingsID != "" {
		info = append(info, "settings: "+settingsID)
	}
	return info
}

func formatCMPServices(services string) string {
	if strings.HasPrefix(services, "[") && strings.HasSuffix(services, "]") {
		var list []any
		if err := jsoniter.UnmarshalFromString(services, &list); err == nil {
			return fmt.Sprintf("services: %d", len(list))
		}
	}
	return "services: " + firstN(services, 20)
}
