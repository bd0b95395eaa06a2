package engine

import (
	"fmt"

	"github.com/ataraxie68/pixelscope/pixelbase/appbase"
	"github.com/ataraxie68/pixelscope/pixelbase/utils"
)

const requestHashLength = 12

// RequestHash is the correlation fingerprint of a request: a fast
// non-cryptographic digest of method, url and body, truncated. Collisions
// are acceptable, it is a correlation hint, not an identity.
func RequestHash(method, url, body string) string {
	return utils.HashStringHex(method + "|" + url + "|" + body)[:requestHashLength]
}

// CanonicalEvent is the platform-agnostic record extracted from one tracking
// request (or one batch sub-event). Immutable once built.
type CanonicalEvent struct {
	Platform          string            `json:"platform"`
	PixelID           string            `json:"pixel_id"`
	PropertyID        string            `json:"property_id"`
	PropertyType      string            `json:"property_type"`
	PropertyFormatted string            `json:"property_formatted"`
	EventType         string            `json:"event_type"`
	ExtraInfo         []string          `json:"extra_info"`
	PageURL           string            `json:"page_url"`
	ReferrerURL       string            `json:"referrer_url"`
	MappedData        map[string]string `json:"mapped_data"`
	RequestHash       string            `json:"request_hash"`
	RequestMethod     string            `json:"request_method"`
}

// Builder assembles canonical events from handler outputs and emits them
// through the sink. Handler failures never propagate: extraction panics are
// contained here and replaced with the generic fallback so a best-effort
// record still goes out.
type Builder struct {
	appbase.Service
	registry *Registry
	dispatch *Dispatch
	sink     RecordSink
}

func NewBuilder(registry *Registry, dispatch *Dispatch, sink RecordSink) *Builder {
	return &Builder{
		Service:  appbase.NewServiceBase("event-builder"),
		registry: registry,
		dispatch: dispatch,
		sink:     sink,
	}
}

// ProcessEvent runs extraction for one parameter map and emits the resulting
// record. Returns the request fingerprint so the caller can register it for
// response correlation.
func (b *Builder) ProcessEvent(params *Params, platform string, req *RequestInfo) string {
	handler := b.dispatch.Handler(platform)
	pixelID, eventName, eventType := b.safeExtractIdentifiers(handler, platform, params)
	requestHash := RequestHash(req.Method, req.URL, req.BodyText())

	if eventName == "Unknown" && pixelID == "" {
		b.sink.Post(NewRecord(RecordTypeCustomTracking, "not defined", map[string]any{
			"platform":     platform,
			"pixel_id":     "",
			"event_type":   "",
			"message":      fmt.Sprintf("Missing %s event name and pixel ID", platform),
			"request_hash": requestHash,
		}, recordMetadata(req, params)))
		return requestHash
	}

	if eventName == "Unknown" {
		b.Debugf("%s pixel id %s found but event name is unknown", platform, pixelID)
	}

	mapped := b.mapParams(params, platform)
	extraInfo := b.safeExtractAttributes(handler, platform, params, mapped, eventName)

	property := b.formatProperty(pixelID, platform)
	b.Infof("%s %s (%s)", platform, eventName, utils.DefaultString(property.Formatted, pixelID))

	event := &CanonicalEvent{
		Platform:          platform,
		PixelID:           pixelID,
		PropertyID:        property.ID,
		PropertyType:      property.Type,
		PropertyFormatted: property.Formatted,
		EventType:         eventType,
		ExtraInfo:         extraInfo,
		PageURL:           utils.NvlString(params.Get("dl"), params.Get("url"), params.Get("u")),
		ReferrerURL:       utils.NvlString(params.Get("rl"), params.Get("ref"), params.Get("rf")),
		MappedData:        mapped,
		RequestHash:       requestHash,
		RequestMethod:     req.Method,
	}
	b.sink.Post(NewRecord(RecordTypePixelEvent, eventName, event, recordMetadata(req, params)))
	return requestHash
}

// mapParams projects the raw parameters through the platform's paramMap
// into canonical attribute names.
func (b *Builder) mapParams(params *Params, platform string) map[string]string {
	paramMap := map[string]string{
		"pixel_id": "pixel_id", "event": "event_name", "value": "value",
		"currency": "currency", "url": "page_url", "ref": "referrer",
	}
	if cfg, ok := b.registry.Get(platform); ok {
		paramMap = cfg.ParamMap
	}
	mapped := make(map[string]string, len(paramMap))
	for wireKey, canonical := range paramMap {
		if value, ok := params.GetOk(wireKey); ok {
			mapped[canonical] = value
		}
	}
	return mapped
}

func (b *Builder) safeExtractIdentifiers(handler EventHandler, platform string, params *Params) (pixelID, eventName, eventType string) {
	defer func() {
		if r := recover(); r != nil {
			handlerPanics(platform, "identifiers").Inc()
			b.SystemErrorf("identifier extraction panic for %s: %v", platform, r)
			pixelID, eventName, eventType = b.dispatch.defaultIdentifiers(platform, params)
		}
	}()
	return handler.ExtractIdentifiers(params)
}

func (b *Builder) safeExtractAttributes(handler EventHandler, platform string, params *Params, mapped map[string]string, eventName string) (info []string) {
	defer func() {
		if r := recover(); r != nil {
			handlerPanics(platform, "attributes").Inc()
			b.SystemErrorf("attribute extraction panic for %s: %v", platform, r)
			info = nil
		}
	}()
	return handler.ExtractAttributes(params, mapped, eventName)
}

func (b *Builder) formatProperty(pixelID, platform string) (property PropertyInfo) {
	defer func() {
		if r := recover(); r != nil {
			b.Errorf("property detection error for %s: %v", platform, r)
			property = PropertyInfo{ID: pixelID, Type: "Unknown", Formatted: pixelID}
		}
	}()
	return FormatPixelID(pixelID, platform)
}

// recordMetadata builds the shared metadata envelope: request context plus
// the raw parameters with internal keys stripped.
func recordMetadata(req *RequestInfo, params *Params) map[string]any {
	return map[string]any{
		"request_path": req.Path,
		"raw_data":     params.Visible(),
		"request_url":  req.URL,
	}
}

// defaultIdentifiers is the containment fallback: the base strategy over the
// platform's configured keys.
func (d *Dispatch) defaultIdentifiers(platform string, params *Params) (string, string, string) {
	cfg, ok := d.registry.Get(platform)
	if !ok {
		cfg = &PlatformConfig{Name: platform, PrimaryIDKey: "pixel_id", EventNameKey: "event_name"}
	}
	base := baseHandler{config: cfg}
	return base.ExtractIdentifiers(params)
}
