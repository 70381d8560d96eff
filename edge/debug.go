package edge

import (
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/zalando-incubator/canary-edge/canary"
)

const (
	DebugRoutePath = "/debug/route"
	HealthzPath    = "/healthz"
)

type (
	debugRequest struct {
		Method  string              `json:"method"`
		URI     string              `json:"uri"`
		Host    string              `json:"host,omitempty"`
		Headers map[string][]string `json:"headers,omitempty"`
	}

	debugDecision struct {
		Build   string `json:"build"`
		Version string `json:"version"`
		OrgID   string `json:"org_id"`
	}

	debugDocument struct {
		Strategy string         `json:"strategy"`
		Incoming *debugRequest  `json:"incoming,omitempty"`
		Outgoing *debugRequest  `json:"outgoing,omitempty"`
		Decision *debugDecision `json:"decision,omitempty"`
		Upstream string         `json:"upstream,omitempty"`
		Error    string         `json:"error,omitempty"`
	}
)

func convertRequest(r *canary.Request) *debugRequest {
	d := &debugRequest{
		Method:  r.Method,
		URI:     r.URI,
		Headers: make(map[string][]string),
	}

	for name := range r.Headers {
		d.Headers[name] = r.Headers.Values(name)
	}

	if r.Origin != nil {
		d.Host = r.Origin.Host
	}

	return d
}

// debugInput builds the request to route from the query of a debug
// request: uri defaults to /, and orgId, when set, replaces the cookies
// of the debug request.
func debugInput(r *http.Request) *canary.Request {
	in := requestFromHTTP(r)
	q := r.URL.Query()

	in.URI = q.Get("uri")
	if in.URI == "" {
		in.URI = "/"
	}

	if q.Has("orgId") {
		in.Headers.Set("cookie", canary.OrgCookie+"="+strings.TrimSpace(q.Get("orgId")))
	}

	return in
}

// DebugHandler returns the routing outcome of the request described by
// the query parameters as a JSON document, without forwarding it.
func (p *Proxy) DebugHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		in := debugInput(r)
		doc := debugDocument{
			Strategy: p.strategy.Name(),
			Incoming: convertRequest(in),
		}

		status := http.StatusOK
		out, d, err := canary.Route(in, p.policies.Current(), p.strategy)
		if err != nil {
			status = http.StatusBadRequest
			doc.Error = err.Error()
		} else {
			doc.Outgoing = convertRequest(out)
			doc.Decision = &debugDecision{
				Build:   d.Build.String(),
				Version: d.Build.Version(),
				OrgID:   d.OrgID,
			}

			if u, err := p.target(out); err != nil {
				doc.Error = err.Error()
			} else {
				doc.Upstream = u.String()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		if err := enc.Encode(doc); err != nil {
			log.Errorf("error while encoding debug document: %v", err)
		}
	})
}

// HealthzHandler reports ok as long as the process serves requests.
func HealthzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
}

// RegisterSupportHandlers registers the debug and health endpoints.
func (p *Proxy) RegisterSupportHandlers(mux *http.ServeMux) {
	mux.Handle(DebugRoutePath, p.DebugHandler())
	mux.Handle(HealthzPath, HealthzHandler())
}
