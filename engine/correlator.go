package engine

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ataraxie68/pixelscope/pixelbase/appbase"
	"github.com/ataraxie68/pixelscope/pixelbase/utils"
	"golang.org/x/net/publicsuffix"
)

const pendingCorrelationLimit = 500

// successStatusCodes are the statuses that produce a success record.
// Anything >= 400 produces a warning; everything else is ignored.
var successStatusCodes = utils.NewSet(200, 204, 302)

var trackingHostFragments = []string{"google", "facebook", "analytics", "doubleclick", "googlesyndication"}

// CookieRecord describes one cookie set by a response.
type CookieRecord struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Domain     string `json:"domain"`
	Path       string `json:"path"`
	Host       string `json:"host"`
	Accessible bool   `json:"accessible"`
	Source     string `json:"source"`
	Type       string `json:"type"`
	HTTPOnly   bool   `json:"http_only"`
	Secure     bool   `json:"secure"`
	SameSite   string `json:"same_site"`
	Expires    string `json:"expires"`
	MaxAge     string `json:"max_age"`
}

// Correlator matches responses back to request fingerprints and monitors
// Set-Cookie headers on relevant hosts. The pending map is the only state it
// keeps: bounded, pruned by dropping the oldest half.
type Correlator struct {
	appbase.Service
	registry     *Registry
	detector     *Detector
	extractor    *Extractor
	sink         RecordSink
	targetHost   string
	targetSuffix string

	mu      sync.Mutex
	pending map[string]time.Time
}

func NewCorrelator(registry *Registry, detector *Detector, extractor *Extractor, sink RecordSink, targetDomain string) *Correlator {
	c := &Correlator{
		Service:   appbase.NewServiceBase("response-correlator"),
		registry:  registry,
		detector:  detector,
		extractor: extractor,
		sink:      sink,
		pending:   make(map[string]time.Time),
	}
	if targetDomain != "" {
		host := targetDomain
		if parsed, err := url.Parse(targetDomain); err == nil && parsed.Host != "" {
			host = parsed.Host
		}
		c.targetHost = host
		if suffix, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			c.targetSuffix = suffix
		}
	}
	return c
}

// TrackRequest registers a request fingerprint for later correlation.
func (c *Correlator) TrackRequest(requestHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) >= pendingCorrelationLimit {
		c.dropOldestHalf()
	}
	if _, ok := c.pending[requestHash]; !ok {
		c.pending[requestHash] = time.Now()
	}
}

// dropOldestHalf prunes the pending map by insertion timestamp. Caller holds
// the lock.
func (c *Correlator) dropOldestHalf() {
	type entry struct {
		hash string
		at   time.Time
	}
	entries := make([]entry, 0, len(c.pending))
	for hash, at := range c.pending {
		entries = append(entries, entry{hash, at})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	for _, e := range entries[:len(entries)/2] {
		delete(c.pending, e.hash)
	}
}

func (c *Correlator) takePending(requestHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[requestHash]; ok {
		delete(c.pending, requestHash)
		return true
	}
	return false
}

// PendingCount reports the number of in-flight fingerprints.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// ProcessResponse classifies the response status, emits the correlated
// status or warning record, and monitors Set-Cookie headers. A fingerprint
// never seen as a request still yields a standalone status record.
func (c *Correlator) ProcessResponse(resp *ResponseInfo) {
	req := &resp.Request

	if IsStaticAsset(req.Path) {
		c.handleCookies(resp)
		return
	}

	params := c.extractor.Extract(req, "")[0]
	platform := c.detector.Detect(req.Host, req.Path, params)
	isJS := isJavaScriptContent(resp.Header("Content-Type"), req.Path)

	requestHash := RequestHash(req.Method, req.URL, req.BodyText())
	if c.takePending(requestHash) {
		correlations("matched").Inc()
	} else {
		correlations("miss").Inc()
	}

	switch {
	case resp.StatusCode >= 400:
		c.sink.Post(NewRecord(RecordTypeWarning, "tracking_request_failed", map[string]any{
			"platform":     platform,
			"status_code":  resp.StatusCode,
			"url":          req.URL,
			"method":       req.Method,
			"message":      fmt.Sprintf("Tracking request failed with HTTP %d", resp.StatusCode),
			"request_hash": requestHash,
		}, c.responseMetadata(resp, nil)))

	case successStatusCodes.Contains(resp.StatusCode):
		responseInfo := c.buildResponseInfo(resp, isJS)
		statusData := map[string]any{
			"request_url":  req.URL,
			"platform":     platform,
			"status_code":  resp.StatusCode,
			"method":       req.Method,
			"success":      true,
			"request_hash": requestHash,
		}
		for k, v := range responseInfo {
			statusData[k] = v
		}
		eventName := "status_received"
		if isJS {
			description := platform + " JavaScript Library"
			statusData["javascript_endpoint"] = true
			statusData["js_description"] = description
			c.Infof("%s JavaScript Library (%s)", platform, description)
			eventName = "javascript_endpoint_detected"
		}
		c.sink.Post(NewRecord(RecordTypeStatusUpdate, eventName, statusData, c.responseMetadata(resp, responseInfo)))
	}

	c.handleCookies(resp)
}

// buildResponseInfo collects display metadata about the response itself.
func (c *Correlator) buildResponseInfo(resp *ResponseInfo, isJS bool) map[string]any {
	responseType := "Data"
	if isJS {
		responseType = "JavaScript"
	}
	info := map[string]any{
		"response_type":  responseType,
		"content_type":   resp.Header("Content-Type"),
		"status_code":    resp.StatusCode,
		"response_size":  fmt.Sprintf("%d bytes", resp.BodyLength),
		"request_method": resp.Request.Method,
	}
	if resp.TimestampEnd > 0 && resp.Request.TimestampStart > 0 {
		elapsed := (resp.TimestampEnd - resp.Request.TimestampStart) * 1000
		info["response_time"] = fmt.Sprintf("%.0fms", elapsed)
	}
	if cacheControl := resp.Header("Cache-Control"); cacheControl != "" {
		info["cache_control"] = cacheControl
	}
	if etag := resp.Header("ETag"); etag != "" {
		info["etag"] = utils.ShortenStringWithEllipsis(etag, 20)
	}
	return info
}

func (c *Correlator) responseMetadata(resp *ResponseInfo, responseInfo map[string]any) map[string]any {
	headers := map[string]string{}
	for name, values := range resp.Headers {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	if responseInfo == nil {
		responseInfo = map[string]any{}
	}
	return map[string]any{
		"request_path":     resp.Request.Path,
		"raw_data":         map[string]string{},
		"request_url":      resp.Request.URL,
		"response_headers": headers,
		"response_info":    responseInfo,
	}
}

func (c *Correlator) handleCookies(resp *ResponseInfo) {
	setCookieHeaders := resp.HeaderValues("Set-Cookie")
	if len(setCookieHeaders) == 0 {
		return
	}

	host := resp.Request.Host
	if !c.isRelevantDomain(host) {
		c.Debugf("ignoring cookies from non-relevant domain: %s", host)
		return
	}

	isTrackingDomain := c.isTrackingDomain(host)
	path := resp.Request.Path

	var cookieNames []string
	var detailed []*CookieRecord
	seen := utils.NewSet[uint64]()
	for _, header := range setCookieHeaders {
		record := parseSetCookie(header, host, path)
		if record.Name == "" {
			continue
		}
		if digest, err := utils.HashAny(record); err == nil {
			if seen.Contains(digest) {
				continue
			}
			seen.Put(digest)
		}
		cookieNames = append(cookieNames, record.Name)
		detailed = append(detailed, record)
	}
	if len(cookieNames) == 0 {
		return
	}

	cookieType := "target_domain"
	if isTrackingDomain {
		cookieType = "tracking"
	}
	httpOnlyCount, secureCount := 0, 0
	for _, record := range detailed {
		if record.HTTPOnly {
			httpOnlyCount++
		}
		if record.Secure {
			secureCount++
		}
	}

	cookieData := map[string]any{
		"host":                    host,
		"domain":                  host,
		"path":                    path,
		"action":                  "set",
		"cookies":                 cookieNames,
		"cookie_count":            len(cookieNames),
		"cookie_type":             cookieType,
		"full_cookies":            setCookieHeaders,
		"detailed_cookies":        detailed,
		"http_only_cookies_count": httpOnlyCount,
		"secure_cookies_count":    secureCount,
		"tracking_domain":         isTrackingDomain,
	}
	if len(cookieNames) == 1 {
		cookieData["cookie_name"] = cookieNames[0]
	}

	c.sink.Post(NewRecord(RecordTypeCookie, "cookie_set", cookieData, map[string]any{
		"request_path": path,
		"raw_data":     map[string]string{},
		"request_url":  resp.Request.URL,
	}))
}

func (c *Correlator) isRelevantDomain(host string) bool {
	return c.isTrackingDomain(host) || c.isTargetDomain(host)
}

func (c *Correlator) isTrackingDomain(host string) bool {
	if c.registry.HostKnown(host) {
		return true
	}
	for _, fragment := range trackingHostFragments {
		if strings.Contains(host, fragment) {
			return true
		}
	}
	return false
}

func (c *Correlator) isTargetDomain(host string) bool {
	if c.targetHost == "" {
		return false
	}
	if host == c.targetHost || strings.HasSuffix(host, "."+c.targetHost) {
		return true
	}
	if c.targetSuffix != "" {
		if suffix, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil && suffix == c.targetSuffix {
			return true
		}
	}
	return false
}

// parseSetCookie reads one Set-Cookie header into a cookie record. SameSite
// defaults to "None"; absent expiry attributes stay empty.
func parseSetCookie(header, host, path string) *CookieRecord {
	record := &CookieRecord{
		Domain:   host,
		Path:     path,
		Host:     host,
		Source:   "server_side",
		Type:     "server_side",
		SameSite: "None",
	}
	parts := strings.Split(header, ";")
	if len(parts) == 0 {
		return record
	}

	nameValue := strings.TrimSpace(parts[0])
	record.Name, record.Value, _ = strings.Cut(nameValue, "=")

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		lower := strings.ToLower(part)
		switch {
		case lower == "httponly":
			record.HTTPOnly = true
		case lower == "secure":
			record.Secure = true
		case strings.HasPrefix(lower, "samesite="):
			record.SameSite = titleCase(part[len("samesite="):])
		case strings.HasPrefix(lower, "expires="):
			record.Expires = part[len("expires="):]
		case strings.HasPrefix(lower, "max-age="):
			record.MaxAge = part[len("max-age="):]
		}
	}
	record.Accessible = !record.HTTPOnly
	return record
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
