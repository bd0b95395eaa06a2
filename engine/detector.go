package engine

import (
	"regexp"
	"strings"
	"sync"

	"github.com/ataraxie68/pixelscope/pixelbase/appbase"
	"github.com/ataraxie68/pixelscope/pixelbase/utils"
	"go.uber.org/atomic"
)

const detectionCacheLimit = 200

// cacheRetainedPlatforms survive an eviction sweep once the cache exceeds
// its bound. Everything else is discarded.
var cacheRetainedPlatforms = utils.NewSet(PlatformGA4, PlatformFacebook, PlatformTikTok, PlatformGoogleAds, PlatformSGTM)

var consentCollectionHosts = utils.NewSet("www.google.com", "google.com", "www.googletagmanager.com", "googletagmanager.com")

var regionalAnalyticsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^region\d+\.analytics\.google\.com$`),
	regexp.MustCompile(`^region\d+\.google-analytics\.com$`),
	regexp.MustCompile(`^[a-z]{2,5}\d*\.analytics\.google\.com$`),
	regexp.MustCompile(`^[a-z]{2,5}\d*\.google-analytics\.com$`),
}

var regionalAnalyticsPaths = []string{"/g/collect", "/g/s/collect", "/collect", "/r/collect", "/gtag/js", "/mp/collect", "/td"}

// Detector resolves a platform label for a request. Detection runs a strict
// priority order: privacy-sandbox path signature, consent-collection
// endpoint, regional analytics hostname pattern, the parameter scorer, then
// the registry table, with Custom Tracking as the final fallback.
//
// The cache keys on host:path. Verdicts produced by the scorer are never
// cached: the same endpoint can legitimately score differently per request,
// so only host/path/pattern verdicts are memoized.
type Detector struct {
	appbase.Service
	registry *Registry
	scorer   *Scorer

	mu    sync.Mutex
	cache map[string]string

	CacheHits      atomic.Uint64
	CacheEvictions atomic.Uint64
}

func NewDetector(registry *Registry, scorer *Scorer) *Detector {
	return &Detector{
		Service:  appbase.NewServiceBase("platform-detector"),
		registry: registry,
		scorer:   scorer,
		cache:    make(map[string]string),
	}
}

// Detect returns the platform label for a request. First matching branch
// wins and is terminal.
func (d *Detector) Detect(host, path string, params *Params) string {
	cacheKey := host + ":" + path

	d.mu.Lock()
	if cached, ok := d.cache[cacheKey]; ok {
		d.mu.Unlock()
		d.CacheHits.Inc()
		detections(cached).Inc()
		return cached
	}
	d.mu.Unlock()

	if strings.Contains(path, "/privacy-sandbox") || strings.Contains(path, "/privacy_sandbox") {
		return d.remember(cacheKey, PlatformPrivacySandbox)
	}

	if path == "/ccm/collect" && consentCollectionHosts.Contains(host) {
		return d.remember(cacheKey, PlatformConsentCollection)
	}

	if isRegionalAnalyticsHost(host, path) {
		return d.remember(cacheKey, PlatformGA4)
	}

	// Scored branch. Skipped for known platform hosts so first-party relays
	// never shadow a table match. Not cached: the verdict is
	// parameter-dependent and can change between requests to the same
	// endpoint.
	if params != nil && !d.registry.HostKnown(host) && !isTaboolaCollect(host, path) {
		result := d.scorer.Score(params)
		if result.IsServerSide && result.PlatformGuess == PlatformSGTM {
			d.Debugf("server-side relay detected host=%s path=%s score=%d", host, path, result.Score)
			detections(PlatformSGTM).Inc()
			return PlatformSGTM
		}
	}

	return d.remember(cacheKey, d.tableLookup(host, path))
}

func (d *Detector) tableLookup(host, path string) string {
	if isTaboolaCollect(host, path) {
		return PlatformTaboola
	}

	// GTM loader endpoints belong to the GA4 ecosystem whatever the domain.
	if path == "/gtm.js" || strings.HasPrefix(path, "/gtm.js?") {
		return PlatformGA4
	}

	// First pass: host and path both match. Table order breaks ties.
	for _, cfg := range d.registry.Platforms() {
		if !utils.ArrayContains(cfg.Hosts, host) {
			continue
		}
		for _, prefix := range cfg.Paths {
			if strings.HasPrefix(path, prefix) {
				return cfg.Name
			}
		}
	}

	// Second pass: host-only fallback.
	for _, cfg := range d.registry.Platforms() {
		if utils.ArrayContains(cfg.Hosts, host) {
			return cfg.Name
		}
	}

	return PlatformCustomTracking
}

func (d *Detector) remember(cacheKey, platform string) string {
	d.mu.Lock()
	if len(d.cache) > detectionCacheLimit {
		for key, value := range d.cache {
			if !cacheRetainedPlatforms.Contains(value) {
				delete(d.cache, key)
				d.CacheEvictions.Inc()
			}
		}
	}
	d.cache[cacheKey] = platform
	d.mu.Unlock()
	detections(platform).Inc()
	return platform
}

// CacheSize reports the current number of memoized verdicts.
func (d *Detector) CacheSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}

// IsTrackingRequest is the router-level pre-filter: parameter indicators
// first, then known hosts with flexible path matching.
func (d *Detector) IsTrackingRequest(host, path string, params *Params) bool {
	if d.scorer.HasTrackingIndicators(params) {
		return true
	}
	if !d.registry.HostKnown(host) {
		return false
	}
	cleanRequestPath := strings.TrimRight(strings.SplitN(path, "?", 2)[0], "/")
	for _, trackingPath := range d.registry.AllPaths().ToSlice() {
		if strings.HasPrefix(path, trackingPath) {
			return true
		}
		cleanTrackingPath := strings.TrimRight(trackingPath, "/")
		if cleanTrackingPath == "" {
			continue
		}
		if strings.Contains(cleanRequestPath, cleanTrackingPath) || strings.HasPrefix(cleanRequestPath, cleanTrackingPath) {
			return true
		}
	}
	return false
}

func isRegionalAnalyticsHost(host, path string) bool {
	pathMatches := false
	for _, prefix := range regionalAnalyticsPaths {
		if strings.HasPrefix(path, prefix) {
			pathMatches = true
			break
		}
	}
	if !pathMatches {
		return false
	}
	for _, pattern := range regionalAnalyticsPatterns {
		if pattern.MatchString(host) {
			return true
		}
	}
	return false
}

// Taboola's collection endpoint nests ids in the path, which defeats prefix
// matching and trips the relay scorer.
func isTaboolaCollect(host, path string) bool {
	return host == "trc.taboola.com" && strings.Contains(path, "/trc/")
}
