package edge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	ot "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	log "github.com/sirupsen/logrus"

	"github.com/zalando-incubator/canary-edge/canary"
	"github.com/zalando-incubator/canary-edge/logging"
	"github.com/zalando-incubator/canary-edge/metrics"
	"github.com/zalando-incubator/canary-edge/rollout"
)

const (
	ingressOperation = "ingress"
	componentName    = "canary-edge"

	BuildTag = "canary.build"
	OrgTag   = "canary.org"
)

// ErrNoUpstream is returned when the routed request cannot be mapped to
// an upstream URL.
var ErrNoUpstream = errors.New("no upstream")

// Options configure the edge proxy.
type Options struct {

	// Policies provides the current rollout policy for every request.
	// When not set, the default organizations are rolled out.
	Policies rollout.Provider

	// Topology selects the strategy: path rewrites against Upstream,
	// or origin swaps between StableOrigin and NextOrigin.
	Topology canary.Topology

	// Upstream is the base URL of the single origin of the path
	// topology.
	Upstream string

	StableOrigin canary.Origin
	NextOrigin   canary.Origin

	// OriginScheme is used for the origins of the origin topology.
	// Defaults to https.
	OriginScheme string

	// Transport used for the upstream requests. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper

	Metrics metrics.Metrics

	// Tracer for the ingress spans. Defaults to the noop tracer.
	Tracer ot.Tracer

	Breakers BreakerSettings
}

// Proxy is an http.Handler routing every request to the stable or the
// next build, and forwarding it to the selected upstream.
type Proxy struct {
	policies rollout.Provider
	strategy canary.Strategy
	upstream *url.URL
	scheme   string
	metrics  metrics.Metrics
	tracer   ot.Tracer
	breakers *breakers
	flowIDs  *flowIDGenerator
	reverse  *httputil.ReverseProxy
}

type routedKey struct{}

type routed struct {
	target  *url.URL
	request *canary.Request
	flowID  string
	span    ot.Span
	done    func(bool)
}

// New creates an edge proxy.
func New(o Options) (*Proxy, error) {
	p := &Proxy{
		policies: o.Policies,
		scheme:   o.OriginScheme,
		metrics:  o.Metrics,
		tracer:   o.Tracer,
		breakers: newBreakers(o.Breakers),
		flowIDs:  newFlowIDGenerator(),
	}

	if p.policies == nil {
		p.policies = rollout.NewStatic(rollout.DefaultOrgs...)
	}

	if p.scheme == "" {
		p.scheme = "https"
	}

	if p.metrics == nil {
		p.metrics = metrics.Void
	}

	if p.tracer == nil {
		p.tracer = &ot.NoopTracer{}
	}

	switch o.Topology {
	case canary.PathTopology:
		if o.Upstream == "" {
			return nil, fmt.Errorf("path topology: %w", ErrNoUpstream)
		}

		u, err := url.Parse(o.Upstream)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream: %w", err)
		}

		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid upstream %q: %w", o.Upstream, ErrNoUpstream)
		}

		p.upstream = u
		p.strategy = canary.PathRewrite{}
	case canary.OriginTopology:
		s, err := canary.NewOriginSwap(o.StableOrigin, o.NextOrigin)
		if err != nil {
			return nil, err
		}

		p.strategy = s
	default:
		return nil, fmt.Errorf("unsupported topology: %v", o.Topology)
	}

	p.reverse = &httputil.ReverseProxy{
		Rewrite:        p.rewrite,
		Transport:      o.Transport,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.handleError,
	}

	return p, nil
}

// Strategy returns the strategy selected by the topology.
func (p *Proxy) Strategy() canary.Strategy { return p.strategy }

func requestFromHTTP(r *http.Request) *canary.Request {
	h := make(canary.Header, len(r.Header))
	for name, values := range r.Header {
		key := strings.ToLower(name)
		for _, v := range values {
			h[key] = append(h[key], canary.HeaderValue{Key: name, Value: v})
		}
	}

	return &canary.Request{
		Method:  r.Method,
		URI:     r.URL.EscapedPath(),
		Headers: h,
	}
}

// target returns the upstream URL of the routed request.
func (p *Proxy) target(r *canary.Request) (*url.URL, error) {
	var base string
	switch {
	case r.Origin != nil:
		if r.Origin.Host == "" {
			return nil, ErrNoUpstream
		}

		base = p.scheme + "://" + r.Origin.Host + strings.TrimSuffix(r.Origin.BasePath, "/")
	case p.upstream != nil:
		base = p.upstream.Scheme + "://" + p.upstream.Host + strings.TrimSuffix(p.upstream.Path, "/")
	default:
		return nil, ErrNoUpstream
	}

	u, err := url.Parse(base + r.URI)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoUpstream, err)
	}

	return u, nil
}

func (p *Proxy) flowID(r *http.Request) string {
	if id := r.Header.Get(FlowIDHeader); isValidFlowID(id) {
		return id
	}

	id, err := p.flowIDs.Generate()
	if err != nil {
		log.Errorf("failed to generate flow id: %v", err)
		return ""
	}

	return id
}

func (p *Proxy) startSpan(r *http.Request) ot.Span {
	wireContext, err := p.tracer.Extract(ot.HTTPHeaders, ot.HTTPHeadersCarrier(r.Header))
	if err != nil && !errors.Is(err, ot.ErrSpanContextNotFound) {
		log.Debugf("failed to extract span context: %v", err)
	}

	span := p.tracer.StartSpan(ingressOperation, ext.RPCServerOption(wireContext))
	ext.Component.Set(span, componentName)
	ext.HTTPMethod.Set(span, r.Method)
	ext.HTTPUrl.Set(span, r.URL.String())
	return span
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	rt := pr.In.Context().Value(routedKey{}).(*routed)

	pr.Out.URL.Scheme = rt.target.Scheme
	pr.Out.URL.Host = rt.target.Host
	pr.Out.URL.Path = rt.target.Path
	pr.Out.URL.RawPath = rt.target.RawPath
	pr.Out.URL.RawQuery = pr.In.URL.RawQuery
	pr.Out.Host = rt.target.Host
	pr.SetXForwarded()

	pr.Out.Header.Set(canary.BuildHeader, rt.request.Headers.Get(canary.BuildHeader))
	pr.Out.Header.Set(canary.OrgHeader, rt.request.Headers.Get(canary.OrgHeader))
	if rt.flowID != "" {
		pr.Out.Header.Set(FlowIDHeader, rt.flowID)
	}

	if err := p.tracer.Inject(rt.span.Context(), ot.HTTPHeaders, ot.HTTPHeadersCarrier(pr.Out.Header)); err != nil {
		log.Debugf("failed to inject span context: %v", err)
	}
}

func (p *Proxy) modifyResponse(rsp *http.Response) error {
	rt := rsp.Request.Context().Value(routedKey{}).(*routed)
	rt.done(rsp.StatusCode < http.StatusInternalServerError)
	return nil
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	rt := r.Context().Value(routedKey{}).(*routed)
	rt.done(false)

	if errors.Is(err, context.Canceled) {
		log.Debugf("client canceled request to %s: %v", rt.target.Host, err)
	} else {
		log.WithFields(log.Fields{
			"origin": rt.target.Host,
			"flowid": rt.flowID,
		}).Errorf("error while proxying: %v", err)
	}

	ext.Error.Set(rt.span, true)
	rt.span.LogKV("event", "error", "message", err.Error())
	w.WriteHeader(http.StatusBadGateway)
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lw := &loggingWriter{writer: w}

	span := p.startSpan(r)
	defer span.Finish()

	entry := &logging.AccessEntry{
		Request:     r,
		RequestTime: start,
		FlowID:      p.flowID(r),
	}

	defer func() {
		entry.StatusCode = lw.code
		entry.ResponseSize = lw.bytes
		entry.Duration = time.Since(start)
		logging.LogAccess(entry)
		ext.HTTPStatusCode.Set(span, uint16(lw.code))
	}()

	out, d, err := canary.Route(requestFromHTTP(r), p.policies.Current(), p.strategy)
	if err != nil {
		p.metrics.IncInvalidRequest()
		ext.Error.Set(span, true)
		log.Debugf("invalid request %s %s: %v", r.Method, r.RequestURI, err)
		http.Error(lw, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	entry.Build = d.Build.String()
	entry.OrgID = d.OrgID
	span.SetTag(BuildTag, d.Build.String())
	span.SetTag(OrgTag, d.OrgID)

	p.metrics.IncDecision(d.Build.String())
	if p.strategy.Name() == canary.PathRewriteName {
		p.metrics.IncRewrite(canary.Classify(r.URL.EscapedPath()).String())
	}

	target, err := p.target(out)
	if err != nil {
		log.Errorf("failed to map request to upstream: %v", err)
		ext.Error.Set(span, true)
		http.Error(lw, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	done, ok := p.breakers.allow(target.Host)
	if !ok {
		p.metrics.IncBreakerOpen(target.Host)
		span.SetTag("canary.breaker", "open")
		http.Error(lw, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	rt := &routed{
		target:  target,
		request: out,
		flowID:  entry.FlowID,
		span:    span,
		done:    done,
	}

	originStart := time.Now()
	p.reverse.ServeHTTP(lw, r.WithContext(context.WithValue(r.Context(), routedKey{}, rt)))
	p.metrics.MeasureOrigin(d.Build.String(), lw.code, originStart)
}
