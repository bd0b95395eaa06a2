package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// ga4Handler disambiguates library loads, tag diagnostics and consent-mode
// hits from standard analytics events, all of which share the collection
// domains.
type ga4Handler struct {
	baseHandler
}

func (h *ga4Handler) ExtractIdentifiers(params *Params) (string, string, string) {
	requestPath := params.Get(requestPathKey)

	if strings.Contains(requestPath, "gtag/js") {
		return params.Get("id"), "gtag_library_load", "JavaScript Library"
	}

	if strings.Contains(requestPath, "/td") {
		return params.Get("id"), "tag_diagnostics", "Tag Diagnostics"
	}

	if strings.Contains(requestPath, "ccm/collect") {
		pixelID := params.Get("gtm")
		if pixelID == "" {
			pixelID = "CCM-" + defaultIfEmpty(params.Get("gcs"), "Unknown")
		}
		eventName := defaultIfEmpty(params.Get("en"), "consent_mode_event")
		return pixelID, eventName, "Consent Mode"
	}

	pixelID, eventName, _ := h.baseHandler.ExtractIdentifiers(params)
	return pixelID, eventName, "Analytics Event"
}

func (h *ga4Handler) ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string {
	switch {
	case eventName == "gtag_library_load":
		return libraryLoadInfo(params)
	case eventName == "tag_diagnostics":
		return tagDiagnosticsInfo(params)
	case strings.Contains(params.Get(requestPathKey), "ccm/collect"):
		return consentModeInfo(params)
	default:
		return analyticsEventInfo(params)
	}
}

// serverSideGTMHandler mirrors the GA4 strategy for relayed first-party
// endpoints, with its own event classification labels.
type serverSideGTMHandler struct {
	baseHandler
}

func (h *serverSideGTMHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	requestPath := params.Get(requestPathKey)

	if strings.Contains(requestPath, "gtag/js") {
		return params.Get("id"), "gtag_library_load (sGTM)", "JavaScript Library"
	}

	if strings.Contains(requestPath, "ccm/collect") {
		pixelID := params.Get("gtm")
		if pixelID == "" {
			pixelID = "CCM-" + defaultIfEmpty(params.Get("gcs"), "Unknown")
		}
		eventName := defaultIfEmpty(params.Get("en"), "consent_mode_event")
		return pixelID, eventName, "Consent Mode"
	}

	pixelID, eventName, _ := h.baseHandler.ExtractIdentifiers(params)
	return pixelID, eventName, "Server-side Analytics"
}

func (h *serverSideGTMHandler) ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string {
	switch {
	case eventName == "gtag_library_load (sGTM)":
		return libraryLoadInfo(params)
	case strings.Contains(params.Get(requestPathKey), "ccm/collect"):
		return consentModeInfo(params)
	default:
		return analyticsEventInfo(params)
	}
}

func libraryLoadInfo(params *Params) []string {
	var info []string
	if gtmID := params.Get("gtm"); gtmID != "" {
		info = append(info, "GTM: "+gtmID)
	}
	if containerID := params.Get("cx"); containerID != "" {
		info = append(info, "Container: "+containerID)
	}
	if experiments := params.Get("tag_exp"); experiments != "" {
		info = append(info, fmt.Sprintf("Experiments: %d", len(strings.Split(experiments, "~"))))
	}
	return info
}

func tagDiagnosticsInfo(params *Params) []string {
	var info []string
	if version := params.Get("v"); version != "" {
		info = append(info, "Version: "+version)
	}
	if eventType := params.Get("t"); eventType != "" {
		info = append(info, "Type: "+eventType)
	}
	if pageID := params.Get("pid"); pageID != "" {
		info = append(info, "Page ID: "+pageID)
	}
	if sequence := params.Get("seq"); sequence != "" {
		info = append(info, "Sequence: "+sequence)
	}
	if experiments := params.Get("exp"); experiments != "" {
		info = append(info, fmt.Sprintf("Experiments: %d", len(strings.Split(experiments, "~"))))
	}
	if tagData := params.Get("tdp"); tagData != "" {
		info = append(info, "Tag Data: "+truncateValue(tagData, 20))
	}
	if mbc := params.Get("mbc"); mbc != "" {
		info = append(info, "MBC: "+mbc)
	}
	if pageURL := params.Get("dl"); pageURL != "" {
		info = append(info, "Domain: "+domainOf(pageURL))
	}
	return info
}

func consentModeInfo(params *Params) []string {
	var info []string
	if gcs := params.Get("gcs"); gcs != "" {
		info = append(info, "GCS: "+gcs)
	}
	if gdpr := params.Get("gdpr"); gdpr != "" {
		info = append(info, "GDPR: "+yesNo(gdpr == "1"))
	}
	if consent := params.Get("gdpr_consent"); consent != "" {
		info = append(info, "Consent: "+truncateValue(consent, 10))
	}
	if npa := params.Get("npa"); npa != "" {
		info = append(info, "Non-Personalized: "+yesNo(npa == "1"))
	}
	if dma := params.Get("dma"); dma != "" {
		info = append(info, "DMA: "+dma)
	}
	if dmaCPS := params.Get("dma_cps"); dmaCPS != "" {
		info = append(info, "DMA-CPS: "+dmaCPS)
	}
	if pageURL := params.Get("dl"); pageURL != "" {
		info = append(info, "Domain: "+domainOf(pageURL))
	}
	return info
}

// googleAdsHandler classifies conversion endpoints by path first, then by
// hit type, then by path context keywords.
type googleAdsHandler struct {
	baseHandler
}

var adwordsIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/pagead/1p-conversion/(\d+)(?:/|\?|$)`),
	regexp.MustCompile(`/pagead/conversion/(\d+)(?:/|\?|$)`),
	regexp.MustCompile(`/pagead/1p-user-list/(\d+)(?:/|\?|$)`),
	regexp.MustCompile(`/ads/conversion/(\d+)(?:/|\?|$)`),
}

func extractAdwordsID(requestPath string) string {
	for _, pattern := range adwordsIDPatterns {
		if match := pattern.FindStringSubmatch(requestPath); match != nil {
			return match[1]
		}
	}
	return ""
}

var adsPathEvents = []struct {
	pathPattern string
	eventName   string
}{
	{"/pagead/1p-conversion/", "enhanced_conversion"},
	{"/pagead/conversion/", "conversion_tracking"},
	{"/ads/conversion/", "conversion_tracking"},
	{"/pagead/1p-user-list/", "remarketing_user_list"},
}

func (h *googleAdsHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	pixelID := params.Get(h.config.PrimaryIDKey)
	requestPath := params.Get(requestPathKey)

	if adwordsID := extractAdwordsID(requestPath); adwordsID != "" && pixelID == "" {
		pixelID = "AW-" + adwordsID
	}

	for _, entry := range adsPathEvents {
		if strings.Contains(requestPath, entry.pathPattern) {
			eventType := "Conversion Tracking"
			if strings.Contains(entry.eventName, "enhanced") {
				eventType = "Enhanced Conversion"
			}
			return pixelID, entry.eventName, eventType
		}
	}

	switch params.Get("t") {
	case "sr":
		return pixelID, "remarketing_audience", "Remarketing"
	case "pageview":
		return pixelID, "pageview_tracking", "Page Tracking"
	case "event":
		return pixelID, "custom_event", "Custom Event"
	}

	if strings.Contains(requestPath, "ga-audiences") {
		return pixelID, "audience_building", "Audience Building"
	}
	if strings.Contains(requestPath, "conversion") {
		return pixelID, "conversion_tracking", "Conversion Tracking"
	}
	if hitType := params.Get("t"); hitType != "" {
		return pixelID, "hit_type_" + hitType, "Ads Activity Tracking"
	}
	return pixelID, "Ads Activity", "Ads Activity Tracking"
}

func (h *googleAdsHandler) ExtractAttributes(params *Params, mapped map[string]string, eventName string) []string {
	var info []string
	if label := mapped["conversion_label"]; label != "" {
		info = append(info, "label: "+label)
	}
	if gcs := mapped["consent_state"]; gcs != "" {
		info = append(info, "gcs: "+gcs)
	}
	return info
}

// doubleClickHandler covers Floodlight activity pixels, which encode their
// parameters in semicolon-delimited path segments, plus view-through
// conversions and cookie matching.
type doubleClickHandler struct {
	baseHandler
}

var viewThroughConversionPattern = regexp.MustCompile(`/pagead/viewthroughconversion/(\d+)/`)

func (h *doubleClickHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	requestPath := params.Get(requestPathKey)
	requestURL := params.Get(requestURLKey)

	switch {
	case strings.Contains(requestPath, "/ddm/activity/"):
		block := requestPath[strings.Index(requestPath, "/ddm/activity/")+len("/ddm/activity/"):]
		block = strings.SplitN(block, "?", 2)[0]
		pixelID, eventName := parseFloodlightActivity(block)
		return pixelID, eventName, "Floodlight Activity"

	case strings.Contains(requestPath, "activity"):
		pixelID, eventName := parseFloodlightActivityURL(requestURL)
		return pixelID, eventName, "Floodlight Activity"

	case strings.Contains(requestPath, "google_com"):
		return "", "Cookie Matching", "Cookie Matching"

	case strings.Contains(requestPath, "/pagead/viewthroughconversion/"):
		if match := viewThroughConversionPattern.FindStringSubmatch(requestPath); match != nil {
			eventName := "View-Through Conversion"
			if cv := params.Get("cv"); cv != "" {
				eventName += " ($" + cv + ")"
			}
			return match[1], eventName, "View-Through Conversion"
		}
		return "", "View-Through Conversion", "View-Through Conversion"

	case strings.Contains(requestPath, "/g/collect"):
		pixelID := params.Get("tid")
		hitType := params.Get("t")
		eventName := "GA4 Event"
		if hitType == "dc" {
			eventName = "GA Signals"
		} else if hitType != "" {
			eventName = "GA4 " + hitType
		}
		return pixelID, eventName, "Enhanced Conversion"

	default:
		pixelID := defaultIfEmpty(params.Get("tid"), params.Get("label"))
		eventName := defaultIfEmpty(params.Get("t"), defaultIfEmpty(params.Get("label"), "DoubleClick Event"))
		return pixelID, eventName, "Display Tracking"
	}
}

// parseFloodlightActivityURL pulls the activity parameter block out of a
// full ad-server URL of the form .../activity;src=...;type=...;cat=...
func parseFloodlightActivityURL(requestURL string) (string, string) {
	marker := "/activity;"
	idx := strings.Index(requestURL, marker)
	if idx < 0 {
		return "Unknown", "Floodlight_Activity"
	}
	return parseFloodlightActivity(requestURL[idx+len(marker):])
}

// parseFloodlightActivity parses a semicolon-separated parameter block and
// synthesizes the source id and event name from src/type/cat/ord.
func parseFloodlightActivity(paramBlock string) (string, string) {
	values := map[string]string{}
	for _, part := range strings.Split(paramBlock, ";") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		values[key] = unquoteURLValue(value)
	}

	pixelID := defaultIfEmpty(values["src"], "Unknown")
	activityType := values["type"]
	category := values["cat"]
	orderID := values["ord"]

	eventName := "Floodlight_Activity"
	switch {
	case activityType != "" && category != "":
		eventName = "Floodlight_" + activityType + "_" + category
	case activityType != "":
		eventName = "Floodlight_" + activityType
	}
	if orderID != "" && orderID != "1" {
		eventName += "_ord" + orderID
	}
	return pixelID, eventName
}

// privacySandboxHandler attributes sandbox API calls to the platform that
// issued them, derived from the request host.
type privacySandboxHandler struct {
	baseHandler
}

var sandboxEvents = []struct {
	pathPattern string
	eventName   string
}{
	{"/privacy_sandbox/topics/registration", "Topics Registration"},
	{"/privacy_sandbox/pixel/register/trigger", "Pixel Registration"},
	{"/privacy_sandbox/topics/", "Topics API"},
	{"/privacy_sandbox/fledge/", "FLEDGE"},
	{"/privacy_sandbox/attribution_reporting/", "Attribution Reporting"},
	{"/privacy_sandbox/trust_tokens/", "Trust Tokens"},
	{"/privacy_sandbox/private_aggregation/", "Private Aggregation"},
	{"/privacy_sandbox/shared_storage/", "Shared Storage"},
	{"/privacy_sandbox/", "Privacy Sandbox"},
}

var googleSandboxHosts = []string{"google.com", "doubleclick.net", "googlesyndication.com", "region1.google-analytics.com"}

func (h *privacySandboxHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	pixelID := params.Get(h.config.PrimaryIDKey)
	requestPath := params.Get(requestPathKey)
	host := params.Get(requestHostKey)

	platformName := "Privacy Sandbox"
	if strings.Contains(host, "facebook.com") {
		platformName = "Facebook"
	} else {
		for _, pattern := range googleSandboxHosts {
			if strings.Contains(host, pattern) {
				platformName = "Google"
				break
			}
		}
	}

	eventTypeName := "Privacy Sandbox Event"
	for _, entry := range sandboxEvents {
		if strings.Contains(requestPath, entry.pathPattern) {
			eventTypeName = entry.eventName
			break
		}
	}

	if params.Get("ev") == "PageView" {
		return pixelID, platformName + " PageView", "Privacy-Enhanced Tracking"
	}
	if eventName := params.Get("en"); eventName != "" {
		return pixelID, platformName + " " + eventTypeName + " " + eventName, "Privacy Sandbox"
	}
	return pixelID, platformName + " " + eventTypeName, "Privacy Sandbox"
}

// consentCollectionHandler classifies first-party consent endpoint hits by
// the consent-state flags they carry.
type consentCollectionHandler struct {
	baseHandler
}

func (h *consentCollectionHandler) ExtractIdentifiers(params *Params) (string, string, string) {
	pixelID := params.Get(h.config.PrimaryIDKey)

	if consentState := params.Get("gcs"); consentState != "" {
		switch {
		case strings.Contains(consentState, "G1"):
			return pixelID, "Consent Granted", "Consent Update"
		case strings.Contains(consentState, "G0"):
			return pixelID, "Consent Denied", "Consent Update"
		default:
			return pixelID, "Consent State Change", "Consent Update"
		}
	}
	if params.Get("gdpr") != "" {
		return pixelID, "GDPR Compliance Check", "Privacy Compliance"
	}
	if params.Get("dma") != "" {
		return pixelID, "DMA Consent Processing", "Privacy Compliance"
	}
	return pixelID, "Consent Collection", "Privacy Data Collection"
}

func defaultIfEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func yesNo(flag bool) string {
	if flag {
		return "Yes"
	}
	return "No"
}
