/*
Package canary implements the edge routing decision for canary rollouts
of a web build.

Two parallel deployments of the same application exist, the stable build
and the next build. Requests of users whose organization takes part in
the rollout are routed to the next build, every other request goes to the
stable build. The organization is read from the orgId cookie, and the set
of participating organizations is provided by the caller as a Policy.

The decision is a pure function of the request and the policy, so edge
nodes evaluating the same client independently always converge on the
same build.

After deciding, the request is mutated by one of two strategies, chosen
by the deployment topology:

  - PathRewrite, when both builds are served from one origin under the
    /stable/ and /next/ path prefixes,
  - OriginSwap, when each build is served from its own origin.

Finally two diagnostic headers are set on the request:

	x-canary-build: next
	x-canary-org: ORG_ABC

Example:

	r := &canary.Request{
		Method: "GET",
		URI:    "/",
		Headers: canary.Header{
			"cookie": {{Key: "Cookie", Value: "orgId=ORG_ABC"}},
		},
	}

	routed, d, err := canary.Route(r, canary.NewPolicy("ORG_ABC"), canary.PathRewrite{})
	// routed.URI == "/next/index.html", d.Build == canary.Next
*/
package canary
