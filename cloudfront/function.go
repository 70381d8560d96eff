package cloudfront

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/zalando-incubator/canary-edge/canary"
)

// FunctionValue is a header, query or cookie value of a CloudFront
// Functions event.
type FunctionValue struct {
	Value      string          `json:"value"`
	MultiValue []FunctionValue `json:"multiValue,omitempty"`

	// Attributes are only set on response cookies.
	Attributes string `json:"attributes,omitempty"`
}

// FunctionRequest is the request object of a CloudFront Functions event.
type FunctionRequest struct {
	Method      string                   `json:"method"`
	URI         string                   `json:"uri"`
	Querystring json.RawMessage          `json:"querystring,omitempty"`
	Headers     map[string]FunctionValue `json:"headers"`
	Cookies     map[string]FunctionValue `json:"cookies,omitempty"`
}

// FunctionEvent is the viewer request event of CloudFront Functions.
type FunctionEvent struct {
	Version string           `json:"version,omitempty"`
	Context json.RawMessage  `json:"context,omitempty"`
	Viewer  json.RawMessage  `json:"viewer,omitempty"`
	Request *FunctionRequest `json:"request"`
}

func functionRecords(name string, v FunctionValue) []canary.HeaderValue {
	if len(v.MultiValue) == 0 {
		return []canary.HeaderValue{{Key: name, Value: v.Value}}
	}

	records := make([]canary.HeaderValue, len(v.MultiValue))
	for i, mv := range v.MultiValue {
		records[i] = canary.HeaderValue{Key: name, Value: mv.Value}
	}

	return records
}

// cookieHeader composes a raw cookie header from the parsed cookies, the
// way CloudFront Functions provide them. Sorted by name, so the same
// cookies always result in the same header.
func cookieHeader(cookies map[string]FunctionValue) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}

	sort.Strings(names)

	var pairs []string
	for _, name := range names {
		for _, r := range functionRecords(name, cookies[name]) {
			pairs = append(pairs, name+"="+r.Value)
		}
	}

	return strings.Join(pairs, "; ")
}

// canaryRequest converts the request. The second return value tells
// whether the cookie header was composed from the parsed cookies.
func (r *FunctionRequest) canaryRequest() (*canary.Request, bool) {
	h := make(canary.Header, len(r.Headers))
	for name, v := range r.Headers {
		key := strings.ToLower(name)
		h[key] = append(h[key], functionRecords(key, v)...)
	}

	var composed bool
	if len(h["cookie"]) == 0 && len(r.Cookies) > 0 {
		h.Set("cookie", cookieHeader(r.Cookies))
		composed = true
	}

	return &canary.Request{Method: r.Method, URI: r.URI, Headers: h}, composed
}

func functionValue(records []canary.HeaderValue) FunctionValue {
	v := FunctionValue{Value: records[0].Value}
	if len(records) > 1 {
		v.MultiValue = make([]FunctionValue, len(records))
		for i, r := range records {
			v.MultiValue[i] = FunctionValue{Value: r.Value}
		}
	}

	return v
}

// update returns a copy of the event request with the routing applied.
func (r *FunctionRequest) update(cr *canary.Request) *FunctionRequest {
	out := *r
	out.URI = cr.URI
	out.Headers = make(map[string]FunctionValue, len(cr.Headers))
	for name, records := range cr.Headers {
		if len(records) == 0 {
			continue
		}

		out.Headers[name] = functionValue(records)
	}

	return &out
}
