// Package tracing creates the opentracing tracer of the edge proxy.
//
// The tracer is selected by its name, followed by its options:
//
//	noop
//	basic sample-modulo=16 max-logs-per-span=32
//	<plugin> [options...]
//
// Any other name is loaded as a Go plugin from <plugin-dir>/<name>.so,
// exporting a Tracer symbol that implements the Tracer interface.
package tracing

import (
	"errors"
	"fmt"
	"path/filepath"
	"plugin"

	ot "github.com/opentracing/opentracing-go"
)

var (
	// ErrMissingArguments is returned when no tracer name is passed.
	ErrMissingArguments = errors.New("no arguments passed")

	// ErrUnsupportedTracer is returned when a plugin does not implement
	// Tracer.
	ErrUnsupportedTracer = errors.New("invalid argument, not a supported tracer")
)

// Tracer is required to be implemented by the tracer plugins.
type Tracer interface {
	InitTracer(opts []string) (ot.Tracer, error)
}

// New creates the tracer named by the first element of opts.
func New(pluginDir string, opts []string) (ot.Tracer, error) {
	if len(opts) == 0 {
		return nil, ErrMissingArguments
	}

	impl, opts := opts[0], opts[1:]
	switch impl {
	case "noop":
		return &ot.NoopTracer{}, nil
	case "basic":
		return newBasicTracer(opts)
	default:
		return loadPlugin(pluginDir, impl, opts)
	}
}

func loadPlugin(dir, name string, opts []string) (ot.Tracer, error) {
	mod, err := plugin.Open(filepath.Join(dir, name+".so"))
	if err != nil {
		return nil, fmt.Errorf("open module %s: %w", name, err)
	}

	sym, err := mod.Lookup("Tracer")
	if err != nil {
		return nil, fmt.Errorf("check module symbols %s: %w", name, err)
	}

	t, ok := sym.(Tracer)
	if !ok {
		return nil, fmt.Errorf("module %s: %w", name, ErrUnsupportedTracer)
	}

	tracer, err := t.InitTracer(opts)
	if err != nil {
		return nil, fmt.Errorf("module %s returned: %w", name, err)
	}

	return tracer, nil
}

// Init creates the tracer and sets it as the global tracer.
func Init(pluginDir string, opts []string) error {
	tracer, err := New(pluginDir, opts)
	if err != nil {
		return err
	}

	ot.SetGlobalTracer(tracer)
	return nil
}
