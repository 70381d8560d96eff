/*
Package metrics implements the collection of the canary routing metrics.

It uses the Prometheus client library. The collected metrics include the
routing decisions per build, the path rewrite rules that fired, the
requests rejected as invalid, the refreshes of the rollout policy and the
duration of the origin round trips of the edge proxy.

To expose the metrics, register the handler on the support listener:

	m := metrics.NewPrometheus(metrics.Options{})
	mux := http.NewServeMux()
	m.RegisterHandler("/metrics", mux)
*/
package metrics
