package canary

import "strings"

// RewriteRule is the classification of a URI by the path rewriting
// strategy. The first matching rule wins.
type RewriteRule int

const (
	RuleIndex RewriteRule = iota
	RuleStatic
	RuleBuildScoped
	RuleDefault
)

var ruleNames = [...]string{"index", "static", "build-scoped", "default"}

func (r RewriteRule) String() string {
	if r < 0 || int(r) >= len(ruleNames) {
		return "unknown"
	}

	return ruleNames[r]
}

// PathRewrite prefixes the request URI with the build segment, for
// deployments that serve both builds from one origin:
//
//	/ and /index.html    ->  /{build}/index.html
//	/static/...          ->  /{build}/static/...
//	/stable/... /next/...  unchanged
//	anything else        ->  /{build}{uri}
//
// URIs already scoped to a build are left alone independent of the
// decision, which makes the rewrite idempotent on edge retries.
type PathRewrite struct{}

// Classify returns the rule applying to a URI.
func Classify(uri string) RewriteRule {
	switch {
	case uri == "/" || uri == "/index.html":
		return RuleIndex
	case strings.HasPrefix(uri, "/static/"):
		return RuleStatic
	case strings.HasPrefix(uri, "/"+string(Stable)+"/"), strings.HasPrefix(uri, "/"+string(Next)+"/"):
		return RuleBuildScoped
	default:
		return RuleDefault
	}
}

// RewritePath returns the URI rewritten for the build.
func RewritePath(b Build, uri string) string {
	switch Classify(uri) {
	case RuleIndex:
		return "/" + string(b) + "/index.html"
	case RuleBuildScoped:
		return uri
	default:
		return "/" + string(b) + uri
	}
}

func (PathRewrite) Name() string { return PathRewriteName }

func (PathRewrite) Apply(d Decision, r *Request) {
	r.URI = RewritePath(d.Build, r.URI)
}
