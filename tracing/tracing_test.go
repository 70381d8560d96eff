package tracing

import (
	"errors"
	"testing"

	ot "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, ti := range []struct {
		msg  string
		opts []string
		fail bool
	}{{
		msg:  "no arguments",
		fail: true,
	}, {
		msg:  "noop",
		opts: []string{"noop"},
	}, {
		msg:  "basic",
		opts: []string{"basic"},
	}, {
		msg:  "basic with options",
		opts: []string{"basic", "sample-modulo=4", "max-logs-per-span=8", "drop-all-logs"},
	}, {
		msg:  "basic with invalid sample modulo",
		opts: []string{"basic", "sample-modulo=x"},
		fail: true,
	}, {
		msg:  "basic with zero sample modulo",
		opts: []string{"basic", "sample-modulo=0"},
		fail: true,
	}, {
		msg:  "basic with missing argument",
		opts: []string{"basic", "max-logs-per-span"},
		fail: true,
	}, {
		msg:  "basic with unknown option",
		opts: []string{"basic", "recorder=in-memory"},
		fail: true,
	}, {
		msg:  "missing plugin",
		opts: []string{"jaeger"},
		fail: true,
	}} {
		t.Run(ti.msg, func(t *testing.T) {
			tracer, err := New("testdata", ti.opts)
			if ti.fail {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.NotNil(t, tracer)
		})
	}
}

func TestMissingArguments(t *testing.T) {
	err := Init("", nil)
	assert.True(t, errors.Is(err, ErrMissingArguments))
}

func TestInitSetsGlobalTracer(t *testing.T) {
	defer ot.SetGlobalTracer(ot.NoopTracer{})

	require.NoError(t, Init("", []string{"basic"}))
	assert.True(t, ot.IsGlobalTracerRegistered())
}

func TestSampling(t *testing.T) {
	o, err := parseBasicOptions([]string{"sample-modulo=2"})
	require.NoError(t, err)
	assert.True(t, o.ShouldSample(4))
	assert.False(t, o.ShouldSample(3))
}

func TestLogRecorder(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	tracer, err := New("", []string{"basic"})
	require.NoError(t, err)

	parent := tracer.StartSpan("ingress")
	child := tracer.StartSpan("origin", ot.ChildOf(parent.Context()))
	child.SetTag("canary.build", "next")
	child.Finish()

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "span", entry.Message)
	assert.Equal(t, "origin", entry.Data["operation"])
	assert.Equal(t, "next", entry.Data["canary.build"])
	assert.NotEmpty(t, entry.Data["parent_id"])

	parent.Finish()
	entry = hook.LastEntry()
	assert.Equal(t, "ingress", entry.Data["operation"])
	assert.Nil(t, entry.Data["parent_id"])
}
