package cloudfront

import (
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/zalando-incubator/canary-edge/canary"
	"github.com/zalando-incubator/canary-edge/metrics"
	"github.com/zalando-incubator/canary-edge/rollout"
)

// ErrInvalidEvent is returned for events without a request. It wraps
// canary.ErrInvalidRequest.
var ErrInvalidEvent = fmt.Errorf("%w: invalid event", canary.ErrInvalidRequest)

// EventKind selects the runtime of the events.
type EventKind int

const (
	FunctionEventKind EventKind = iota
	LambdaEventKind
)

func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "function":
		return FunctionEventKind, nil
	case "lambda":
		return LambdaEventKind, nil
	default:
		return 0, fmt.Errorf("invalid event kind: %q, expected function or lambda", s)
	}
}

func (k EventKind) String() string {
	if k == LambdaEventKind {
		return "lambda"
	}

	return "function"
}

type Options struct {
	// Policies provides the current rollout policy. Required.
	Policies rollout.Provider

	// Strategy applies the routing decision. Required.
	Strategy canary.Strategy

	Metrics metrics.Metrics
}

// Handler routes the requests of CloudFront events.
type Handler struct {
	policies rollout.Provider
	strategy canary.Strategy
	metrics  metrics.Metrics
}

func NewHandler(o Options) (*Handler, error) {
	if o.Policies == nil {
		return nil, errors.New("cloudfront handler: missing rollout policy provider")
	}

	if o.Strategy == nil {
		return nil, errors.New("cloudfront handler: missing routing strategy")
	}

	if o.Metrics == nil {
		o.Metrics = metrics.Void
	}

	return &Handler{policies: o.Policies, strategy: o.Strategy, metrics: o.Metrics}, nil
}

func (h *Handler) route(r *canary.Request) (*canary.Request, canary.Decision, error) {
	out, d, err := canary.Route(r, h.policies.Current(), h.strategy)
	if err != nil {
		h.metrics.IncInvalidRequest()
		return nil, d, err
	}

	h.metrics.IncDecision(string(d.Build))
	if h.strategy.Name() == canary.PathRewriteName {
		h.metrics.IncRewrite(canary.Classify(r.URI).String())
	}

	log.WithFields(log.Fields{
		"build": d.Build,
		"org":   d.OrgID,
		"uri":   r.URI,
		"to":    out.URI,
	}).Debug("routed edge request")

	return out, d, nil
}

// HandleFunction routes the request of a CloudFront Functions event and
// returns the request object to forward.
func (h *Handler) HandleFunction(e *FunctionEvent) (*FunctionRequest, canary.Decision, error) {
	if e == nil || e.Request == nil {
		h.metrics.IncInvalidRequest()
		return nil, canary.Decision{}, fmt.Errorf("%w: missing request", ErrInvalidEvent)
	}

	in, composed := e.Request.canaryRequest()
	out, d, err := h.route(in)
	if err != nil {
		return nil, d, err
	}

	if composed {
		out.Headers.Del("cookie")
	}

	return e.Request.update(out), d, nil
}

// HandleLambda routes the request of a Lambda@Edge event and returns the
// request object to forward.
func (h *Handler) HandleLambda(e *LambdaEvent) (*LambdaRequest, canary.Decision, error) {
	if e == nil || len(e.Records) == 0 || e.Records[0].CF.Request == nil {
		h.metrics.IncInvalidRequest()
		return nil, canary.Decision{}, fmt.Errorf("%w: missing request record", ErrInvalidEvent)
	}

	req := e.Records[0].CF.Request
	in := req.canaryRequest()
	out, d, err := h.route(in)
	if err != nil {
		return nil, d, err
	}

	return req.update(out, canary.OriginChanged(in, out)), d, nil
}

// HandleJSON decodes an event, routes it, and encodes the request object
// to forward.
func (h *Handler) HandleJSON(kind EventKind, data []byte) ([]byte, error) {
	var (
		out interface{}
		err error
	)

	switch kind {
	case LambdaEventKind:
		var e *LambdaEvent
		if err := json.Unmarshal(data, &e); err != nil {
			h.metrics.IncInvalidRequest()
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}

		out, _, err = h.HandleLambda(e)
	default:
		var e *FunctionEvent
		if err := json.Unmarshal(data, &e); err != nil {
			h.metrics.IncInvalidRequest()
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}

		out, _, err = h.HandleFunction(e)
	}

	if err != nil {
		return nil, err
	}

	return json.Marshal(out)
}
