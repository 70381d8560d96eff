package canary

import "testing"

func TestRewritePath(t *testing.T) {
	for _, ti := range []struct {
		msg    string
		build  Build
		uri    string
		rule   RewriteRule
		expect string
	}{
		{"root to stable", Stable, "/", RuleIndex, "/stable/index.html"},
		{"root to next", Next, "/", RuleIndex, "/next/index.html"},
		{"index to stable", Stable, "/index.html", RuleIndex, "/stable/index.html"},
		{"index to next", Next, "/index.html", RuleIndex, "/next/index.html"},
		{"static asset", Stable, "/static/app.js", RuleStatic, "/stable/static/app.js"},
		{"static asset to next", Next, "/static/css/main.css", RuleStatic, "/next/static/css/main.css"},
		{"stable scoped, next decided", Next, "/stable/bundle.js", RuleBuildScoped, "/stable/bundle.js"},
		{"next scoped, stable decided", Stable, "/next/bundle.js", RuleBuildScoped, "/next/bundle.js"},
		{"next scoped index", Next, "/next/index.html", RuleBuildScoped, "/next/index.html"},
		{"other path", Stable, "/dashboard", RuleDefault, "/stable/dashboard"},
		{"other nested path", Next, "/org/settings/users", RuleDefault, "/next/org/settings/users"},
		{"build name without slash", Stable, "/next", RuleDefault, "/stable/next"},
		{"build name as part of a segment", Next, "/nextgen/x", RuleDefault, "/next/nextgen/x"},
		{"static without trailing slash", Stable, "/static", RuleDefault, "/stable/static"},
		{"nested index", Stable, "/app/index.html", RuleDefault, "/stable/app/index.html"},
	} {
		t.Run(ti.msg, func(t *testing.T) {
			if rule := Classify(ti.uri); rule != ti.rule {
				t.Errorf("invalid rule, expected: %v, got: %v", ti.rule, rule)
			}

			if rewritten := RewritePath(ti.build, ti.uri); rewritten != ti.expect {
				t.Errorf("invalid rewrite, expected: %s, got: %s", ti.expect, rewritten)
			}
		})
	}
}

func TestRewritePathIdempotent(t *testing.T) {
	for _, uri := range []string{"/", "/index.html", "/static/app.js", "/dashboard", "/next/x", "/stable/y"} {
		for _, b := range []Build{Stable, Next} {
			once := RewritePath(b, uri)
			for _, other := range []Build{Stable, Next} {
				if twice := RewritePath(other, once); twice != once {
					t.Errorf("rewrite not idempotent for %s: %s -> %s", uri, once, twice)
				}
			}
		}
	}
}

func TestPathRewriteApply(t *testing.T) {
	r := &Request{URI: "/", Origin: &Origin{Host: "site.s3.amazonaws.com"}}
	PathRewrite{}.Apply(Decision{Build: Next, OrgID: "ORG_ABC"}, r)

	if r.URI != "/next/index.html" {
		t.Errorf("failed to rewrite uri: %s", r.URI)
	}

	if r.Origin == nil || r.Origin.Host != "site.s3.amazonaws.com" {
		t.Error("path rewrite must not touch the origin")
	}
}

func TestRewriteRuleString(t *testing.T) {
	if RuleBuildScoped.String() != "build-scoped" {
		t.Error("invalid rule name", RuleBuildScoped.String())
	}

	if RewriteRule(42).String() != "unknown" {
		t.Error("invalid name for unknown rule")
	}
}
