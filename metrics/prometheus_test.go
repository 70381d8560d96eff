package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zalando-incubator/canary-edge/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	tests := []struct {
		name       string
		opts       metrics.Options
		addMetrics func(*metrics.Prometheus)
		expMetrics []string
	}{
		{
			name: "Incrementing the decisions should get the total by build.",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncDecision("stable")
				pm.IncDecision("next")
				pm.IncDecision("stable")
			},
			expMetrics: []string{
				`canary_edge_routing_decision_total{build="next"} 1`,
				`canary_edge_routing_decision_total{build="stable"} 2`,
			},
		},
		{
			name: "Incrementing the rewrites should get the total by rule.",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncRewrite("index")
				pm.IncRewrite("build-scoped")
			},
			expMetrics: []string{
				`canary_edge_routing_rewrite_total{rule="build-scoped"} 1`,
				`canary_edge_routing_rewrite_total{rule="index"} 1`,
			},
		},
		{
			name: "Incrementing the invalid requests should get the total.",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncInvalidRequest()
				pm.IncInvalidRequest()
			},
			expMetrics: []string{
				`canary_edge_routing_invalid_request_total 2`,
			},
		},
		{
			name: "Policy refreshes are split by source and result.",
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncPolicyRefresh("redis", true)
				pm.IncPolicyRefresh("redis", false)
				pm.IncPolicyRefresh("file", true)
				pm.UpdatePolicyOrgs(4)
			},
			expMetrics: []string{
				`canary_edge_policy_refresh_total{result="failure",source="redis"} 1`,
				`canary_edge_policy_refresh_total{result="success",source="redis"} 1`,
				`canary_edge_policy_refresh_total{result="success",source="file"} 1`,
				`canary_edge_policy_orgs 4`,
			},
		},
		{
			name: "Measuring the origin should get the duration by build and status code.",
			opts: metrics.Options{HistogramBuckets: []float64{0.01, 0.1}},
			addMetrics: func(pm *metrics.Prometheus) {
				pm.MeasureOrigin("next", 200, time.Now().Add(-15*time.Millisecond))
				pm.MeasureOrigin("next", 200, time.Now().Add(-3*time.Millisecond))
			},
			expMetrics: []string{
				`canary_edge_origin_duration_seconds_bucket{build="next",code="200",le="0.01"} 1`,
				`canary_edge_origin_duration_seconds_bucket{build="next",code="200",le="0.1"} 2`,
				`canary_edge_origin_duration_seconds_count{build="next",code="200"} 2`,
			},
		},
		{
			name: "Custom prefix.",
			opts: metrics.Options{Prefix: "edge."},
			addMetrics: func(pm *metrics.Prometheus) {
				pm.IncBreakerOpen("app-next.s3.amazonaws.com")
			},
			expMetrics: []string{
				`edge_origin_breaker_open_total{origin="app-next.s3.amazonaws.com"} 1`,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			pm := metrics.NewPrometheus(test.opts)
			path := "/awesome-metrics"

			mux := http.NewServeMux()
			pm.RegisterHandler(path, mux)

			test.addMetrics(pm)

			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("metrics service returned an incorrect status code, should be: %d, got: %d", http.StatusOK, resp.StatusCode)
			}

			body, _ := io.ReadAll(resp.Body)
			for _, expMetric := range test.expMetrics {
				if !strings.Contains(string(body), expMetric) {
					t.Errorf("'%s' metric not present on the result of metrics service", expMetric)
				}
			}
		})
	}
}

func TestPrometheusRuntimeMetrics(t *testing.T) {
	pm := metrics.NewPrometheus(metrics.Options{EnableRuntimeMetrics: true})
	if n, err := testutil.GatherAndCount(pm.Registry(), "go_goroutines"); err != nil || n != 1 {
		t.Errorf("runtime metrics not collected: %d, %v", n, err)
	}
}

func TestVoid(t *testing.T) {
	mux := http.NewServeMux()
	metrics.Void.IncDecision("next")
	metrics.Void.MeasureOrigin("next", 200, time.Now())
	metrics.Void.RegisterHandler("/metrics", mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("void metrics must not register a handler, got: %d", w.Code)
	}
}
