package cloudfront

import (
	"encoding/json"
	"strings"

	"github.com/zalando-incubator/canary-edge/canary"
)

// LambdaHeader is a header record of a Lambda@Edge event.
type LambdaHeader struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

// S3Origin is the S3 origin descriptor of a Lambda@Edge request.
type S3Origin struct {
	AuthMethod    string                    `json:"authMethod"`
	CustomHeaders map[string][]LambdaHeader `json:"customHeaders"`
	DomainName    string                    `json:"domainName"`
	Path          string                    `json:"path"`
	Region        string                    `json:"region"`
}

// LambdaOrigin holds either an S3 or a custom origin.
type LambdaOrigin struct {
	S3     *S3Origin       `json:"s3,omitempty"`
	Custom json.RawMessage `json:"custom,omitempty"`
}

// LambdaRequest is the request object of a Lambda@Edge event.
type LambdaRequest struct {
	ClientIP    string                    `json:"clientIp,omitempty"`
	Method      string                    `json:"method"`
	URI         string                    `json:"uri"`
	Querystring string                    `json:"querystring"`
	Headers     map[string][]LambdaHeader `json:"headers"`
	Origin      *LambdaOrigin             `json:"origin,omitempty"`
	Body        json.RawMessage           `json:"body,omitempty"`
}

type LambdaCF struct {
	Config  json.RawMessage `json:"config,omitempty"`
	Request *LambdaRequest  `json:"request"`
}

type LambdaRecord struct {
	CF LambdaCF `json:"cf"`
}

// LambdaEvent is the origin request event of Lambda@Edge.
type LambdaEvent struct {
	Records []LambdaRecord `json:"Records"`
}

func (r *LambdaRequest) canaryRequest() *canary.Request {
	h := make(canary.Header, len(r.Headers))
	for name, records := range r.Headers {
		key := strings.ToLower(name)
		for _, rec := range records {
			k := rec.Key
			if k == "" {
				k = name
			}

			h[key] = append(h[key], canary.HeaderValue{Key: k, Value: rec.Value})
		}
	}

	cr := &canary.Request{Method: r.Method, URI: r.URI, Headers: h}
	if r.Origin != nil && r.Origin.S3 != nil {
		cr.Origin = &canary.Origin{
			Host:       r.Origin.S3.DomainName,
			Region:     r.Origin.S3.Region,
			AuthMethod: r.Origin.S3.AuthMethod,
			BasePath:   r.Origin.S3.Path,
		}
	}

	return cr
}

func s3Origin(o *canary.Origin) *LambdaOrigin {
	return &LambdaOrigin{S3: &S3Origin{
		AuthMethod:    o.AuthMethod,
		CustomHeaders: map[string][]LambdaHeader{},
		DomainName:    o.Host,
		Path:          o.BasePath,
		Region:        o.Region,
	}}
}

// update returns a copy of the event request with the routing applied.
// When the origin was swapped, the origin is replaced as a whole, and
// the host header follows it, as S3 requires.
func (r *LambdaRequest) update(cr *canary.Request, swapped bool) *LambdaRequest {
	out := *r
	out.URI = cr.URI
	out.Headers = make(map[string][]LambdaHeader, len(cr.Headers))
	for name, records := range cr.Headers {
		headers := make([]LambdaHeader, len(records))
		for i, rec := range records {
			headers[i] = LambdaHeader{Key: rec.Key, Value: rec.Value}
		}

		out.Headers[name] = headers
	}

	if swapped && cr.Origin != nil {
		out.Origin = s3Origin(cr.Origin)
		out.Headers["host"] = []LambdaHeader{{Key: "Host", Value: cr.Origin.Host}}
	}

	return &out
}
