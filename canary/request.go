package canary

import (
	"errors"
	"fmt"
	"net/textproto"
	"strings"
)

// ErrInvalidRequest is returned when the input does not describe a
// request at all, e.g. the hosting platform passed no request object.
// Callers should let their own fallback handle it.
var ErrInvalidRequest = errors.New("invalid request")

// HeaderValue is a single header record. Key keeps the casing used on the
// wire, while the Header map is keyed by the lowercase name.
type HeaderValue struct {
	Key   string
	Value string
}

// Header maps lowercase header names to one or more header records.
type Header map[string][]HeaderValue

// Origin describes the upstream serving a build.
type Origin struct {
	Host       string `json:"host" yaml:"host"`
	Region     string `json:"region,omitempty" yaml:"region"`
	AuthMethod string `json:"authMethod,omitempty" yaml:"auth-method"`
	BasePath   string `json:"basePath,omitempty" yaml:"base-path"`
}

// OriginChanged tells whether routing out of in replaced the origin.
func OriginChanged(in, out *Request) bool {
	return out.Origin != nil && (in.Origin == nil || *out.Origin != *in.Origin)
}

// Request is the unit being routed. It is owned by the caller for the
// duration of one request.
type Request struct {
	Method  string
	URI     string
	Headers Header

	// Origin is only used by the origin swapping strategy.
	Origin *Origin
}

// Get returns the first value of the header, or "".
func (h Header) Get(name string) string {
	v := h[strings.ToLower(name)]
	if len(v) == 0 {
		return ""
	}

	return v[0].Value
}

// Values returns all the values of the header.
func (h Header) Values(name string) []string {
	v := h[strings.ToLower(name)]
	if len(v) == 0 {
		return nil
	}

	values := make([]string, len(v))
	for i, hv := range v {
		values[i] = hv.Value
	}

	return values
}

// Set replaces all records of the header with a single one.
func (h Header) Set(name, value string) {
	h[strings.ToLower(name)] = []HeaderValue{{
		Key:   textproto.CanonicalMIMEHeaderKey(name),
		Value: value,
	}}
}

// Add appends a record to the header.
func (h Header) Add(name, value string) {
	key := strings.ToLower(name)
	h[key] = append(h[key], HeaderValue{
		Key:   textproto.CanonicalMIMEHeaderKey(name),
		Value: value,
	})
}

func (h Header) Del(name string) {
	delete(h, strings.ToLower(name))
}

// Cookie looks up a cookie in the cookie header records. Multiple records
// are treated as one header joined by "; ".
func (h Header) Cookie(name string) (string, bool) {
	return Cookie(strings.Join(h.Values("cookie"), "; "), name)
}

func (h Header) Clone() Header {
	if h == nil {
		return nil
	}

	c := make(Header, len(h))
	for k, v := range h {
		c[k] = append([]HeaderValue(nil), v...)
	}

	return c
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := *r
	c.Headers = r.Headers.Clone()
	if r.Origin != nil {
		o := *r.Origin
		c.Origin = &o
	}

	return &c
}

func validate(r *Request) error {
	if r == nil {
		return fmt.Errorf("%w: missing request", ErrInvalidRequest)
	}

	if !strings.HasPrefix(r.URI, "/") {
		return fmt.Errorf("%w: uri must start with '/': %q", ErrInvalidRequest, r.URI)
	}

	return nil
}
