package engine

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ataraxie68/pixelscope/pixelbase/appbase"
	jsoniter "github.com/json-iterator/go"
)

// Synthetic keys carrying request context into the handler strategies.
// Stripped from raw_data before a record is emitted.
const (
	requestPathKey    = "_request_path"
	requestHostKey    = "_request_host"
	requestURLKey     = "_request_url"
	internalKeyPrefix = "_request_"
)

// Params is an insertion-ordered string map scoped to a single request.
type Params struct {
	keys   []string
	values map[string]string
}

func NewParams() *Params {
	return &Params{values: map[string]string{}}
}

func (p *Params) Set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

func (p *Params) Get(key string) string {
	return p.values[key]
}

func (p *Params) GetOk(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

func (p *Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

func (p *Params) Len() int {
	return len(p.keys)
}

func (p *Params) Keys() []string {
	return p.keys
}

func (p *Params) Clone() *Params {
	clone := &Params{
		keys:   make([]string, len(p.keys)),
		values: make(map[string]string, len(p.values)),
	}
	copy(clone.keys, p.keys)
	for k, v := range p.values {
		clone.values[k] = v
	}
	return clone
}

// Visible returns a copy of the params with the synthetic request-context
// keys stripped, in insertion order of the underlying map.
func (p *Params) Visible() map[string]string {
	visible := make(map[string]string, len(p.values))
	for k, v := range p.values {
		if !strings.HasPrefix(k, internalKeyPrefix) {
			visible[k] = v
		}
	}
	return visible
}

// Extractor turns a request into one or more flat parameter maps.
// Parse failures never propagate: the query-string-only result is the floor.
type Extractor struct {
	appbase.Service
	registry *Registry
}

func NewExtractor(registry *Registry) *Extractor {
	return &Extractor{
		Service:  appbase.NewServiceBase("param-extractor"),
		registry: registry,
	}
}

// Extract builds the parameter maps for a request. The result has more than
// one element only for batched analytics payloads, where each batch event
// becomes its own map.
func (e *Extractor) Extract(req *RequestInfo, platform string) []*Params {
	params := parseQueryParams(req.URL)
	params.Set(requestPathKey, req.Path)
	params.Set(requestHostKey, req.Host)
	params.Set(requestURLKey, req.URL)

	if req.Method != "POST" && req.Method != "PUT" && req.Method != "PATCH" {
		return []*Params{params}
	}
	if len(req.Body) == 0 {
		return []*Params{params}
	}

	bodyText := req.BodyText()
	contentType := strings.ToLower(req.Header("Content-Type"))
	trimmed := strings.TrimSpace(bodyText)

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") || strings.Contains(contentType, "application/json") {
		if result, ok := e.extractJSON(trimmed, platform, params); ok {
			return result
		}
		parseFallbacks("json").Inc()
	}

	if err := mergeFormParams(bodyText, params); err != nil {
		e.Debugf("form body fallback failed: %v", err)
		parseFallbacks("form").Inc()
	}
	return []*Params{params}
}

func (e *Extractor) extractJSON(body, platform string, params *Params) ([]*Params, bool) {
	decoder := jsoniter.NewDecoder(strings.NewReader(body))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, false
	}

	if platform == PlatformGA4 {
		if obj, ok := payload.(map[string]any); ok {
			if rawEvents, ok := obj["events"].([]any); ok {
				batch := make([]*Params, 0, len(rawEvents))
				for _, rawEvent := range rawEvents {
					event, ok := rawEvent.(map[string]any)
					if !ok {
						continue
					}
					batch = append(batch, e.expandBatchEvent(obj, event, params))
				}
				if len(batch) > 0 {
					return batch, true
				}
				return []*Params{params}, true
			}
		}
	}

	flattenJSON(payload, "", params)
	return []*Params{params}, true
}

// expandBatchEvent seeds one parameter map per batch event: the outer URL
// params, request-level fields mapped through the platform's paramMap, the
// event name, and the event's own params either mapped or namespaced as
// ep.<key>. List values are joined with ", ".
func (e *Extractor) expandBatchEvent(payload, event map[string]any, urlParams *Params) *Params {
	eventParams := urlParams.Clone()
	paramMap := map[string]string{}
	if cfg, ok := e.registry.Get(PlatformGA4); ok {
		paramMap = cfg.ParamMap
	}

	for jsonKey, wireKey := range paramMap {
		value, ok := payload[jsonKey]
		if !ok {
			continue
		}
		if jsonKey == "non_personalized_ads" {
			if flag, ok := value.(bool); ok && flag {
				eventParams.Set("npa", "1")
			} else {
				eventParams.Set("npa", "0")
			}
			continue
		}
		eventParams.Set(wireKey, stringifyJSONValue(value))
	}

	if name, ok := event["name"]; ok {
		eventParams.Set("en", stringifyJSONValue(name))
	}

	if rawParams, ok := event["params"].(map[string]any); ok {
		for key, value := range rawParams {
			if wireKey, mapped := paramMap[key]; mapped {
				eventParams.Set(wireKey, stringifyJSONValue(value))
				continue
			}
			prefixed := "ep." + key
			if list, isList := value.([]any); isList {
				parts := make([]string, 0, len(list))
				for _, item := range list {
					parts = append(parts, stringifyJSONValue(item))
				}
				eventParams.Set(prefixed, strings.Join(parts, ", "))
			} else {
				eventParams.Set(prefixed, stringifyJSONValue(value))
			}
		}
	}
	return eventParams
}

// flattenJSON folds nested JSON into dotted/bracketed keys: parent.child for
// objects, parent[i] for arrays (item_i at the top level). Null becomes "".
func flattenJSON(value any, prefix string, out *Params) {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			childKey := key
			if prefix != "" {
				childKey = prefix + "." + key
			}
			flattenJSON(child, childKey, out)
		}
	case []any:
		for i, item := range typed {
			childKey := fmt.Sprintf("%s[%d]", prefix, i)
			if prefix == "" {
				childKey = fmt.Sprintf("item_%d", i)
			}
			flattenJSON(item, childKey, out)
		}
	default:
		key := prefix
		if key == "" {
			key = "value"
		}
		out.Set(key, stringifyJSONValue(value))
	}
}

func stringifyJSONValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		if typed {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(typed)
	}
}

// parseQueryParams parses the URL's query string preserving parameter order.
// The first value wins for repeated keys.
func parseQueryParams(rawURL string) *Params {
	params := NewParams()
	rawQuery := ""
	if i := strings.Index(rawURL, "?"); i >= 0 {
		rawQuery = rawURL[i+1:]
	}
	if i := strings.Index(rawQuery, "#"); i >= 0 {
		rawQuery = rawQuery[:i]
	}
	if rawQuery == "" {
		return params
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescapeComponent(key)
		if params.Has(key) {
			continue
		}
		params.Set(key, unescapeComponent(value))
	}
	return params
}

// mergeFormParams parses a form-urlencoded body into the params, taking the
// first value per repeated key. Body values overwrite query-level keys.
func mergeFormParams(body string, params *Params) error {
	values, err := url.ParseQuery(body)
	if err != nil {
		return err
	}
	for key, list := range values {
		if len(list) > 0 {
			params.Set(key, list[0])
		}
	}
	return nil
}

func unescapeComponent(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if unescaped, err := url.PathUnescape(s); err == nil {
		return unescaped
	}
	return s
}
