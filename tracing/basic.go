package tracing

import (
	"fmt"
	"strconv"
	"strings"

	basic "github.com/opentracing/basictracer-go"
	ot "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// logRecorder writes the sampled spans to the application log.
type logRecorder struct{}

func (logRecorder) RecordSpan(s basic.RawSpan) {
	if !s.Context.Sampled {
		return
	}

	fields := log.Fields{
		"trace_id":  strconv.FormatUint(s.Context.TraceID, 16),
		"span_id":   strconv.FormatUint(s.Context.SpanID, 16),
		"operation": s.Operation,
		"duration":  s.Duration,
	}

	if s.ParentSpanID != 0 {
		fields["parent_id"] = strconv.FormatUint(s.ParentSpanID, 16)
	}

	for k, v := range s.Tags {
		fields[k] = v
	}

	log.WithFields(fields).Info("span")
}

func missingArg(opt string) error {
	return fmt.Errorf("missing argument for %s option", opt)
}

func invalidArg(opt string, err error) error {
	return fmt.Errorf("invalid argument for %s option: %w", opt, err)
}

func parseBasicOptions(opts []string) (basic.Options, error) {
	var (
		o                   = basic.DefaultOptions()
		sampleModulo uint64 = 1
		err          error
	)

	o.Recorder = logRecorder{}
	for _, opt := range opts {
		k, v, _ := strings.Cut(opt, "=")
		switch k {
		case "drop-all-logs":
			o.DropAllLogs = true
		case "sample-modulo":
			if v == "" {
				return o, missingArg(k)
			}

			sampleModulo, err = strconv.ParseUint(v, 10, 64)
			if err != nil {
				return o, invalidArg(k, err)
			}

			if sampleModulo == 0 {
				return o, invalidArg(k, fmt.Errorf("must be positive"))
			}
		case "max-logs-per-span":
			if v == "" {
				return o, missingArg(k)
			}

			o.MaxLogsPerSpan, err = strconv.Atoi(v)
			if err != nil {
				return o, invalidArg(k, err)
			}
		default:
			return o, fmt.Errorf("unknown option for the basic tracer: %s", k)
		}
	}

	o.ShouldSample = func(traceID uint64) bool { return traceID%sampleModulo == 0 }
	return o, nil
}

func newBasicTracer(opts []string) (ot.Tracer, error) {
	o, err := parseBasicOptions(opts)
	if err != nil {
		return nil, err
	}

	return basic.NewWithOptions(o), nil
}
