package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace        = "canary_edge"
	promRoutingSubsystem = "routing"
	promPolicySubsystem  = "policy"
	promOriginSubsystem  = "origin"
	promRefreshSuccess   = "success"
	promRefreshFailure   = "failure"
)

// Prometheus implements the prometheus metrics backend.
type Prometheus struct {
	decisionM       *prometheus.CounterVec
	rewriteM        *prometheus.CounterVec
	invalidRequestM prometheus.Counter
	policyRefreshM  *prometheus.CounterVec
	policyOrgsM     prometheus.Gauge
	originM         *prometheus.HistogramVec
	breakerOpenM    *prometheus.CounterVec

	opts     Options
	registry *prometheus.Registry
	handler  http.Handler
}

var _ Metrics = (*Prometheus)(nil)

// NewPrometheus returns a new Prometheus metric backend.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = strings.TrimSuffix(opts.Prefix, ".")
	}

	if len(opts.HistogramBuckets) == 0 {
		opts.HistogramBuckets = prometheus.DefBuckets
	}

	decision := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promRoutingSubsystem,
		Name:      "decision_total",
		Help:      "Total number of routing decisions by target build.",
	}, []string{"build"})

	rewrite := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promRoutingSubsystem,
		Name:      "rewrite_total",
		Help:      "Total number of path rewrites by matching rule.",
	}, []string{"rule"})

	invalidRequest := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promRoutingSubsystem,
		Name:      "invalid_request_total",
		Help:      "Total number of requests rejected as structurally invalid.",
	})

	policyRefresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promPolicySubsystem,
		Name:      "refresh_total",
		Help:      "Total number of rollout policy refreshes by source and result.",
	}, []string{"source", "result"})

	policyOrgs := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: promPolicySubsystem,
		Name:      "orgs",
		Help:      "Number of organizations in the current rollout policy.",
	})

	origin := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promOriginSubsystem,
		Name:      "duration_seconds",
		Help:      "Duration in seconds of the origin round trips.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"build", "code"})

	breakerOpen := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promOriginSubsystem,
		Name:      "breaker_open_total",
		Help:      "Total number of requests rejected by an open circuit breaker.",
	}, []string{"origin"})

	p := &Prometheus{
		decisionM:       decision,
		rewriteM:        rewrite,
		invalidRequestM: invalidRequest,
		policyRefreshM:  policyRefresh,
		policyOrgsM:     policyOrgs,
		originM:         origin,
		breakerOpenM:    breakerOpen,
		opts:            opts,
		registry:        prometheus.NewRegistry(),
	}

	p.registerMetrics()
	return p
}

func (p *Prometheus) registerMetrics() {
	p.registry.MustRegister(p.decisionM)
	p.registry.MustRegister(p.rewriteM)
	p.registry.MustRegister(p.invalidRequestM)
	p.registry.MustRegister(p.policyRefreshM)
	p.registry.MustRegister(p.policyOrgsM)
	p.registry.MustRegister(p.originM)
	p.registry.MustRegister(p.breakerOpenM)

	if p.opts.EnableRuntimeMetrics {
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p.registry.MustRegister(collectors.NewGoCollector())
	}
}

func (p *Prometheus) sinceS(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / float64(time.Second)
}

func (p *Prometheus) CreateHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) getHandler() http.Handler {
	if p.handler != nil {
		return p.handler
	}

	p.handler = p.CreateHandler()
	return p.handler
}

func (p *Prometheus) RegisterHandler(path string, mux *http.ServeMux) {
	mux.Handle(path, p.getHandler())
}

func (p *Prometheus) IncDecision(build string) {
	p.decisionM.WithLabelValues(build).Inc()
}

func (p *Prometheus) IncRewrite(rule string) {
	p.rewriteM.WithLabelValues(rule).Inc()
}

func (p *Prometheus) IncInvalidRequest() {
	p.invalidRequestM.Inc()
}

func (p *Prometheus) IncPolicyRefresh(source string, success bool) {
	result := promRefreshSuccess
	if !success {
		result = promRefreshFailure
	}

	p.policyRefreshM.WithLabelValues(source, result).Inc()
}

func (p *Prometheus) UpdatePolicyOrgs(n int) {
	p.policyOrgsM.Set(float64(n))
}

func (p *Prometheus) MeasureOrigin(build string, code int, start time.Time) {
	p.originM.WithLabelValues(build, strconv.Itoa(code)).Observe(p.sinceS(start))
}

func (p *Prometheus) IncBreakerOpen(origin string) {
	p.breakerOpenM.WithLabelValues(origin).Inc()
}

// Registry returns the registry of the collected metrics.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }
