package engine

import (
	"github.com/ataraxie68/pixelscope/pixelbase/appbase"
)

// Engine wires the detection and normalization pipeline together. It is
// invoked synchronously, once per request and once per response, and keeps
// no per-flow state: the detection cache and the pending-correlation map are
// the only structures shared across calls.
type Engine struct {
	appbase.Service
	Registry   *Registry
	Extractor  *Extractor
	Scorer     *Scorer
	Detector   *Detector
	Dispatch   *Dispatch
	Builder    *Builder
	Correlator *Correlator
	sink       RecordSink
}

func NewEngine(registry *Registry, sink RecordSink, targetDomain string) *Engine {
	scorer := NewScorer(registry)
	detector := NewDetector(registry, scorer)
	extractor := NewExtractor(registry)
	dispatch := NewDispatch(registry)
	builder := NewBuilder(registry, dispatch, sink)
	correlator := NewCorrelator(registry, detector, extractor, sink, targetDomain)
	return &Engine{
		Service:    appbase.NewServiceBase("engine"),
		Registry:   registry,
		Extractor:  extractor,
		Scorer:     scorer,
		Detector:   detector,
		Dispatch:   dispatch,
		Builder:    builder,
		Correlator: correlator,
		sink:       sink,
	}
}

// ProcessRequest runs the request-phase pipeline: static-asset and tracking
// pre-filters, platform detection, parameter extraction (one map per batch
// event), then event building. Never fails the caller: malformed flows
// degrade to logged warnings.
func (e *Engine) ProcessRequest(req *RequestInfo) {
	defer func() {
		if r := recover(); r != nil {
			e.SystemErrorf("request processing panic for %s%s: %v", req.Host, req.Path, r)
		}
	}()

	if IsStaticAsset(req.Path) {
		return
	}

	probe := e.Extractor.Extract(req, "")[0]
	if !e.Detector.IsTrackingRequest(req.Host, req.Path, probe) {
		return
	}

	platform := e.Detector.Detect(req.Host, req.Path, probe)
	for _, params := range e.Extractor.Extract(req, platform) {
		requestHash := e.Builder.ProcessEvent(params, platform, req)
		e.Correlator.TrackRequest(requestHash)
	}
}

// ProcessResponse runs the response-phase pipeline.
func (e *Engine) ProcessResponse(resp *ResponseInfo) {
	defer func() {
		if r := recover(); r != nil {
			e.SystemErrorf("response processing panic for %s%s: %v", resp.Request.Host, resp.Request.Path, r)
		}
	}()
	e.Correlator.ProcessResponse(resp)
}

// Close releases the sink.
func (e *Engine) Close() error {
	return e.sink.Close()
}
