package metrics

import (
	"net/http"
	"time"
)

// Options for initializing metrics collection.
type Options struct {
	// Common prefix for the metrics. Defaults to canary_edge.
	Prefix string

	// If set, Go runtime and process metrics are collected in
	// addition to the routing metrics.
	EnableRuntimeMetrics bool

	// Buckets of the origin duration histogram. Defaults to
	// prometheus.DefBuckets.
	HistogramBuckets []float64
}

// Metrics is implemented by the metrics backends.
type Metrics interface {
	IncDecision(build string)
	IncRewrite(rule string)
	IncInvalidRequest()
	IncPolicyRefresh(source string, success bool)
	UpdatePolicyOrgs(n int)
	MeasureOrigin(build string, code int, start time.Time)
	IncBreakerOpen(origin string)
	RegisterHandler(path string, mux *http.ServeMux)
}

type void struct{}

// Void is a Metrics implementation that does nothing.
var Void Metrics = void{}

func (void) IncDecision(string)                     {}
func (void) IncRewrite(string)                      {}
func (void) IncInvalidRequest()                     {}
func (void) IncPolicyRefresh(string, bool)          {}
func (void) UpdatePolicyOrgs(int)                   {}
func (void) MeasureOrigin(string, int, time.Time)   {}
func (void) IncBreakerOpen(string)                  {}
func (void) RegisterHandler(string, *http.ServeMux) {}
