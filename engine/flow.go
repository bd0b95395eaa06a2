package engine

import (
	"strings"
)

// RequestInfo is the request-phase payload supplied by the interception
// layer. Headers are not assumed to be case-normalized.
type RequestInfo struct {
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	Host           string            `json:"host"`
	Path           string            `json:"path"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           []byte            `json:"body,omitempty"`
	TimestampStart float64           `json:"timestamp_start,omitempty"`
}

// Header returns the first header with the given name, case-insensitively.
func (r *RequestInfo) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (r *RequestInfo) BodyText() string {
	return string(r.Body)
}

// ResponseInfo is the response-phase payload for the same logical flow.
// The originating request rides along so the correlation fingerprint can be
// recomputed without the engine retaining per-flow state.
type ResponseInfo struct {
	Request      RequestInfo         `json:"request"`
	StatusCode   int                 `json:"status_code"`
	Headers      map[string][]string `json:"headers,omitempty"`
	BodyLength   int                 `json:"body_length"`
	TimestampEnd float64             `json:"timestamp_end,omitempty"`
}

// Header returns the first value of the named response header,
// case-insensitively.
func (r *ResponseInfo) Header(name string) string {
	values := r.HeaderValues(name)
	if len(values) > 0 {
		return values[0]
	}
	return ""
}

// HeaderValues returns all values of the named response header,
// case-insensitively. Needed for repeated Set-Cookie headers.
func (r *ResponseInfo) HeaderValues(name string) []string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

var staticAssetExtensions = []string{
	".js", ".html", ".css", ".js.map", ".css.map",
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
	".woff", ".woff2", ".ttf", ".eot",
}

// IsStaticAsset reports whether the path points at a static asset that must
// be excluded from event processing. Response-side cookie monitoring still
// runs for such paths.
func IsStaticAsset(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range staticAssetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

var jsContentTypes = map[string]bool{
	"javascript":               true,
	"application/js":           true,
	"text/js":                  true,
	"application/javascript":   true,
	"text/javascript":          true,
	"application/x-javascript": true,
	"text/x-javascript":        true,
}

var jsPathPatterns = []string{"/gtm.js", "/gtag/js", "/analytics.js", "/ga.js", "/bat.js", "/uet.js"}

// isJavaScriptContent reports whether a response carries a JavaScript
// library rather than a tracking data payload.
func isJavaScriptContent(contentType, path string) bool {
	mainType := strings.ToLower(contentType)
	if i := strings.Index(mainType, ";"); i >= 0 {
		mainType = mainType[:i]
	}
	mainType = strings.TrimSpace(mainType)
	if jsContentTypes[mainType] {
		return true
	}
	if strings.HasSuffix(path, ".js") {
		return true
	}
	for _, pattern := range jsPathPatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}
