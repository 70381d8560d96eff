/*
Package canaryedge runs the canary edge proxy: an HTTP reverse proxy
routing the requests of the organizations in the rollout policy to the
next build of a frontend application, and everyone else to the stable
build.

The routing itself is implemented by the canary package, and it is the
same decision that the CloudFront handlers of the cloudfront package
make at the edge. The proxy adds the self hosted parts around it:
loading the rollout policy from a static list, a YAML file or Redis,
forwarding to the selected upstream, circuit breakers per origin,
metrics, access log and tracing.

For the list of command line options, run:

	canary-edge -help

The support listener serves the Prometheus metrics on /metrics, a health
check on /healthz, and the routing debug endpoint on /debug/route:

	curl 'localhost:9911/debug/route?uri=/&orgId=ORG_ABC'
*/
package canaryedge
