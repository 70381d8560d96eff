package cloudfront

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalando-incubator/canary-edge/canary"
	"github.com/zalando-incubator/canary-edge/metrics"
	"github.com/zalando-incubator/canary-edge/rollout"
)

var (
	stableBucket = canary.Origin{
		Host:       "app-stable.s3.us-east-1.amazonaws.com",
		Region:     "us-east-1",
		AuthMethod: "origin-access-identity",
	}

	nextBucket = canary.Origin{
		Host:       "app-next.s3.us-east-1.amazonaws.com",
		Region:     "us-east-1",
		AuthMethod: "origin-access-identity",
	}
)

func testHandler(t *testing.T, s canary.Strategy) *Handler {
	h, err := NewHandler(Options{
		Policies: rollout.NewStatic("ORG_ABC", "ORG_TEST"),
		Strategy: s,
	})
	require.NoError(t, err)
	return h
}

func originSwap(t *testing.T) canary.Strategy {
	s, err := canary.NewOriginSwap(stableBucket, nextBucket)
	require.NoError(t, err)
	return s
}

func readFunctionEvent(t *testing.T) *FunctionEvent {
	b, err := os.ReadFile("testdata/function-viewer-request.json")
	require.NoError(t, err)

	var e FunctionEvent
	require.NoError(t, json.Unmarshal(b, &e))
	return &e
}

func readLambdaEvent(t *testing.T) *LambdaEvent {
	b, err := os.ReadFile("testdata/lambda-origin-request.json")
	require.NoError(t, err)

	var e LambdaEvent
	require.NoError(t, json.Unmarshal(b, &e))
	return &e
}

func TestNewHandlerRequiresOptions(t *testing.T) {
	_, err := NewHandler(Options{Strategy: canary.PathRewrite{}})
	assert.Error(t, err)

	_, err = NewHandler(Options{Policies: rollout.NewStatic()})
	assert.Error(t, err)
}

func TestHandleFunction(t *testing.T) {
	e := readFunctionEvent(t)
	out, d, err := testHandler(t, canary.PathRewrite{}).HandleFunction(e)
	require.NoError(t, err)

	assert.Equal(t, canary.Decision{Build: canary.Next, OrgID: "ORG_ABC"}, d)
	assert.Equal(t, "/next/index.html", out.URI)
	assert.Equal(t, FunctionValue{Value: "next"}, out.Headers["x-canary-build"])
	assert.Equal(t, FunctionValue{Value: "ORG_ABC"}, out.Headers["x-canary-org"])
	assert.Equal(t, "app.example.org", out.Headers["host"].Value)
	assert.Len(t, out.Headers["accept"].MultiValue, 2)
	assert.JSONEq(t, `{"lang": {"value": "en"}}`, string(out.Querystring))
	assert.Equal(t, e.Request.Cookies, out.Cookies)

	// the event itself is not modified
	assert.Equal(t, "/", e.Request.URI)
	assert.Equal(t, "stable", e.Request.Headers["x-canary-build"].Value)
}

func TestHandleFunctionParsedCookies(t *testing.T) {
	e := readFunctionEvent(t)
	delete(e.Request.Headers, "cookie")

	out, d, err := testHandler(t, canary.PathRewrite{}).HandleFunction(e)
	require.NoError(t, err)

	assert.Equal(t, canary.Next, d.Build)
	assert.Equal(t, "/next/index.html", out.URI)
	_, hasCookie := out.Headers["cookie"]
	assert.False(t, hasCookie, "composed cookie header must not be forwarded")
}

func TestHandleFunctionScenarios(t *testing.T) {
	for _, ti := range []struct {
		msg       string
		uri       string
		cookie    string
		expectURI string
		expectOrg string
		expect    canary.Build
	}{{
		msg:       "no cookie, static asset",
		uri:       "/static/app.js",
		expectURI: "/stable/static/app.js",
		expectOrg: "unknown",
		expect:    canary.Stable,
	}, {
		msg:       "org outside the rollout, build scoped uri",
		uri:       "/next/bundle.js",
		cookie:    "orgId=ORG_XYZ",
		expectURI: "/next/bundle.js",
		expectOrg: "ORG_XYZ",
		expect:    canary.Stable,
	}} {
		t.Run(ti.msg, func(t *testing.T) {
			e := &FunctionEvent{Request: &FunctionRequest{
				Method:  "GET",
				URI:     ti.uri,
				Headers: map[string]FunctionValue{},
			}}

			if ti.cookie != "" {
				e.Request.Headers["cookie"] = FunctionValue{Value: ti.cookie}
			}

			out, d, err := testHandler(t, canary.PathRewrite{}).HandleFunction(e)
			require.NoError(t, err)
			assert.Equal(t, ti.expect, d.Build)
			assert.Equal(t, ti.expectURI, out.URI)
			assert.Equal(t, string(ti.expect), out.Headers["x-canary-build"].Value)
			assert.Equal(t, ti.expectOrg, out.Headers["x-canary-org"].Value)
		})
	}
}

func TestHandleLambdaOriginSwap(t *testing.T) {
	e := readLambdaEvent(t)
	out, d, err := testHandler(t, originSwap(t)).HandleLambda(e)
	require.NoError(t, err)

	assert.Equal(t, canary.Decision{Build: canary.Next, OrgID: "ORG_ABC"}, d)
	assert.Equal(t, "/index.html", out.URI)
	assert.Equal(t, "lang=en", out.Querystring)
	assert.Equal(t, "203.0.113.178", out.ClientIP)

	expectOrigin := &LambdaOrigin{S3: &S3Origin{
		AuthMethod:    "origin-access-identity",
		CustomHeaders: map[string][]LambdaHeader{},
		DomainName:    "app-next.s3.us-east-1.amazonaws.com",
		Path:          "",
		Region:        "us-east-1",
	}}

	if diff := cmp.Diff(expectOrigin, out.Origin); diff != "" {
		t.Errorf("invalid origin (-want +got):\n%s", diff)
	}

	assert.Equal(t, []LambdaHeader{{Key: "Host", Value: "app-next.s3.us-east-1.amazonaws.com"}}, out.Headers["host"])
	assert.Equal(t, []LambdaHeader{{Key: "X-Canary-Build", Value: "next"}}, out.Headers["x-canary-build"])
	assert.Equal(t, []LambdaHeader{{Key: "X-Canary-Org", Value: "ORG_ABC"}}, out.Headers["x-canary-org"])
	assert.Len(t, out.Headers["cookie"], 2)
}

type countingStrategy struct {
	*canary.OriginSwap
	applied int
}

func (s *countingStrategy) Apply(d canary.Decision, r *canary.Request) {
	s.applied++
	s.OriginSwap.Apply(d, r)
}

func TestHandleLambdaDecoratedOriginSwap(t *testing.T) {
	swap, err := canary.NewOriginSwap(stableBucket, nextBucket)
	require.NoError(t, err)

	e := readLambdaEvent(t)
	s := &countingStrategy{OriginSwap: swap}
	out, d, err := testHandler(t, s).HandleLambda(e)
	require.NoError(t, err)

	assert.Equal(t, 1, s.applied)
	assert.Equal(t, canary.Next, d.Build)
	assert.Equal(t, "/index.html", out.URI)
	require.NotNil(t, out.Origin)
	require.NotNil(t, out.Origin.S3)
	assert.Equal(t, "app-next.s3.us-east-1.amazonaws.com", out.Origin.S3.DomainName)
	assert.Equal(t, []LambdaHeader{{Key: "Host", Value: "app-next.s3.us-east-1.amazonaws.com"}}, out.Headers["host"])
}

func TestHandleLambdaPathRewrite(t *testing.T) {
	e := readLambdaEvent(t)
	out, _, err := testHandler(t, canary.PathRewrite{}).HandleLambda(e)
	require.NoError(t, err)

	assert.Equal(t, "/next/index.html", out.URI)
	assert.Equal(t, e.Records[0].CF.Request.Origin, out.Origin)
	assert.Equal(t, "app-stable.s3.us-east-1.amazonaws.com", out.Headers["host"][0].Value)
}

func TestHandleInvalidEvents(t *testing.T) {
	m := metrics.NewPrometheus(metrics.Options{})
	h, err := NewHandler(Options{
		Policies: rollout.NewStatic(),
		Strategy: canary.PathRewrite{},
		Metrics:  m,
	})
	require.NoError(t, err)

	_, _, err = h.HandleFunction(&FunctionEvent{})
	assert.True(t, errors.Is(err, canary.ErrInvalidRequest))

	_, _, err = h.HandleFunction(nil)
	assert.True(t, errors.Is(err, ErrInvalidEvent))

	_, _, err = h.HandleLambda(&LambdaEvent{})
	assert.True(t, errors.Is(err, canary.ErrInvalidRequest))

	_, _, err = h.HandleLambda(&LambdaEvent{Records: []LambdaRecord{{}}})
	assert.True(t, errors.Is(err, ErrInvalidEvent))

	_, _, err = h.HandleFunction(&FunctionEvent{Request: &FunctionRequest{URI: "index.html"}})
	assert.True(t, errors.Is(err, canary.ErrInvalidRequest))

	for _, doc := range []string{"null", "{", `{"request": null}`} {
		_, err = h.HandleJSON(FunctionEventKind, []byte(doc))
		assert.True(t, errors.Is(err, canary.ErrInvalidRequest), doc)
	}

	_, err = h.HandleJSON(LambdaEventKind, []byte(`{"Records": []}`))
	assert.True(t, errors.Is(err, canary.ErrInvalidRequest))
}

func TestHandleJSON(t *testing.T) {
	b, err := os.ReadFile("testdata/lambda-origin-request.json")
	require.NoError(t, err)

	out, err := testHandler(t, originSwap(t)).HandleJSON(LambdaEventKind, b)
	require.NoError(t, err)

	var req LambdaRequest
	require.NoError(t, json.Unmarshal(out, &req))
	assert.Equal(t, "app-next.s3.us-east-1.amazonaws.com", req.Origin.S3.DomainName)
	assert.Empty(t, req.Origin.S3.CustomHeaders)
	assert.Empty(t, req.Origin.S3.Path)

	b, err = os.ReadFile("testdata/function-viewer-request.json")
	require.NoError(t, err)

	out, err = testHandler(t, canary.PathRewrite{}).HandleJSON(FunctionEventKind, b)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"uri":"/next/index.html"`)
	assert.Contains(t, string(out), `"x-canary-build":{"value":"next"}`)
}

func TestParseEventKind(t *testing.T) {
	k, err := ParseEventKind("lambda")
	require.NoError(t, err)
	assert.Equal(t, LambdaEventKind, k)
	assert.Equal(t, "lambda", k.String())

	k, err = ParseEventKind("function")
	require.NoError(t, err)
	assert.Equal(t, FunctionEventKind, k)

	_, err = ParseEventKind("edge")
	assert.Error(t, err)
}
