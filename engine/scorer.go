package engine

import (
	"strings"
)

// ScoreResult is the scorer's verdict for one request's parameters.
// Recomputed per request, never cached.
type ScoreResult struct {
	IsServerSide  bool
	PlatformGuess string
	Score         int
}

// Scorer decides from parameters alone whether a request at an unrecognized
// host is a relayed analytics hit. Host and path never participate: relays
// look first-party on both, only the parameter shape gives them away.
type Scorer struct {
	indicators       Indicators
	platformKeyParams []string
}

func NewScorer(registry *Registry) *Scorer {
	return &Scorer{
		indicators:        registry.Indicators(),
		platformKeyParams: registry.PlatformKeyParams(),
	}
}

// HasTrackingIndicators is the basic mode: a fast yes/no without a platform
// guess, used as the router-level tracking pre-filter.
func (s *Scorer) HasTrackingIndicators(params *Params) bool {
	ind := s.indicators
	if countMatching(params, ind.GA4Params) >= 2 {
		return true
	}
	if hasAny(params, ind.EventParams) {
		return true
	}
	if countMatching(params, ind.TrackingParams) >= 2 {
		return true
	}
	if hasAny(params, ind.ConsentParams) && hasAny(params, ind.ServerGTMParams) {
		return true
	}
	if hasAny(params, ind.SessionParams) && hasAny(params, ind.ValueParams) {
		return true
	}
	if countMatching(params, ind.EcommerceParams) >= 2 {
		return true
	}
	if countMatching(params, s.platformKeyParams) >= 2 {
		return true
	}
	return false
}

// Score is the advanced mode used by the detector. Weighted signals sum to
// an integer score: >=3 is a likely server-side relay, 1..2 is opaque custom
// tracking, 0 is not tracking.
func (s *Scorer) Score(params *Params) ScoreResult {
	ind := s.indicators

	gtmID := params.Get("gtm")
	hasGTMContainer := gtmID != "" && (hasAnyPrefix(gtmID, ind.GTMIDPrefixes) || len(gtmID) > 10)

	tid := params.Get("tid")
	hasTrackingID := tid != "" && hasAnyPrefix(tid, ind.TrackingIDPrefixes)

	score := 0
	if hasGTMContainer {
		score += 4
	}
	if hasTrackingID {
		score += 2
	}
	if countMatching(params, ind.GA4Params) >= 3 {
		score += 2
	}
	if hasAny(params, ind.ConsentParams) {
		score += 1
	}
	if countMatching(params, ind.ServerGTMParams) >= 1 {
		score += 2
	}
	if hasAny(params, ind.EventParams) {
		score += 3
	}
	if countMatching(params, ind.TrackingParams) >= 2 {
		score += 2
	}
	if hasAny(params, ind.SessionParams) {
		score += 1
	}
	if hasAny(params, ind.ValueParams) {
		score += 1
	}
	if countMatching(params, ind.EcommerceParams) >= 2 {
		score += 2
	}
	if hasAny(params, ind.TimestampParams) {
		score += 1
	}
	if params.Has("en") && params.Has("cid") {
		score += 1
	}
	if params.Has("gcs") {
		score += 1
	}

	result := ScoreResult{
		IsServerSide: score >= 1,
		Score:        score,
	}
	switch {
	case score >= 3:
		result.PlatformGuess = PlatformSGTM
	case score >= 1:
		result.PlatformGuess = PlatformCustomTracking
	default:
		result.PlatformGuess = PlatformNone
	}
	return result
}

func countMatching(params *Params, indicators []string) int {
	count := 0
	for _, key := range indicators {
		if params.Has(key) {
			count++
		}
	}
	return count
}

func hasAny(params *Params, indicators []string) bool {
	for _, key := range indicators {
		if params.Has(key) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
