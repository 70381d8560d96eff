package canaryedge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	ot "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zalando-incubator/canary-edge/edge"
	"github.com/zalando-incubator/canary-edge/logging"
	"github.com/zalando-incubator/canary-edge/metrics"
	"github.com/zalando-incubator/canary-edge/rollout"
	"github.com/zalando-incubator/canary-edge/tracing"
)

const defaultShutdownTimeout = 10 * time.Second

// Options to start the edge proxy.
type Options struct {
	// Network address that the proxy should listen on.
	Address string

	// Network address for the /metrics, /healthz and /debug/route
	// endpoints. Empty disables the support listener.
	SupportListener string

	ReadTimeoutServer       time.Duration
	ReadHeaderTimeoutServer time.Duration
	WriteTimeoutServer      time.Duration
	IdleTimeoutServer       time.Duration

	// Maximum time to wait for the open connections on shutdown.
	ShutdownTimeout time.Duration

	// Edge options. The policies, the metrics, the transport and the
	// tracer are created by Run.
	Edge edge.Options

	ResponseHeaderTimeoutBackend time.Duration
	IdleTimeoutBackend           time.Duration
	MaxIdleConnsBackend          int

	// The rollout policy source. At most one of them is expected to be
	// set. When none is set, DefaultOrgs are rolled out.
	RolloutOrgs  []string
	RolloutFile  string
	RolloutRedis rollout.RedisOptions

	RolloutPollInterval time.Duration
	RolloutInitialTries uint

	// When set, failing to load the initial rollout policy stops the
	// startup.
	RolloutRequireInitial bool

	// Output files of the logs. Stderr when empty.
	ApplicationLogOutput string
	AccessLogOutput      string

	Logging logging.Options
	Metrics metrics.Options

	// Tracer name and options, see the tracing package. Empty
	// disables tracing.
	OpenTracing []string

	// Directory of the tracer plugins.
	PluginDir string
}

func openLogFile(name string) (io.Writer, error) {
	if name == "" {
		return nil, nil
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
	}

	return f, nil
}

func initLog(o Options) error {
	lo := o.Logging

	w, err := openLogFile(o.ApplicationLogOutput)
	if err != nil {
		return err
	}

	if w != nil {
		lo.ApplicationLogOutput = w
	}

	w, err = openLogFile(o.AccessLogOutput)
	if err != nil {
		return err
	}

	if w != nil {
		lo.AccessLogOutput = w
	}

	logging.Init(lo)
	return nil
}

func createTransport(o Options) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if o.ResponseHeaderTimeoutBackend > 0 {
		tr.ResponseHeaderTimeout = o.ResponseHeaderTimeoutBackend
	}

	if o.IdleTimeoutBackend > 0 {
		tr.IdleConnTimeout = o.IdleTimeoutBackend
	}

	if o.MaxIdleConnsBackend > 0 {
		tr.MaxIdleConns = o.MaxIdleConnsBackend
		tr.MaxIdleConnsPerHost = o.MaxIdleConnsBackend
	}

	return tr
}

// createPolicySource returns the configured source, and a close function
// releasing its connections.
func createPolicySource(ctx context.Context, o Options) (rollout.Source, func(), error) {
	switch {
	case o.RolloutRedis.Addr != "":
		s, err := rollout.NewRedisSource(ctx, o.RolloutRedis)
		if err != nil {
			return nil, nil, err
		}

		return s, func() {
			if err := s.Close(); err != nil {
				log.Errorf("Failed to close the Redis connection: %v", err)
			}
		}, nil
	case o.RolloutFile != "":
		return rollout.NewFileSource(o.RolloutFile), func() {}, nil
	case len(o.RolloutOrgs) > 0:
		return rollout.NewStatic(o.RolloutOrgs...), func() {}, nil
	default:
		log.Infof("No rollout source configured, using the default organizations: %v", rollout.DefaultOrgs)
		return rollout.NewStatic(rollout.DefaultOrgs...), func() {}, nil
	}
}

func listen(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return l, nil
}

func serve(srv *http.Server, l net.Listener) error {
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Run the edge proxy until the process receives a signal on sig. When
// sig is nil, Run blocks until a listener fails.
func RunWithShutdown(o Options, sig <-chan os.Signal) error {
	if err := initLog(o); err != nil {
		return err
	}

	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdownTimeout
	}

	mtr := metrics.NewPrometheus(o.Metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, closeSource, err := createPolicySource(ctx, o)
	if err != nil {
		if o.RolloutRequireInitial {
			return err
		}

		log.Errorf("Failed to create the rollout source, routing everyone to the stable build: %v", err)
		source, closeSource = rollout.NewStatic(), func() {}
	}

	defer closeSource()

	poller := rollout.NewPoller(source, rollout.PollerOptions{
		Interval:     o.RolloutPollInterval,
		InitialTries: o.RolloutInitialTries,
		Metrics:      mtr,
	})

	if err := poller.LoadInitial(ctx); err != nil {
		if o.RolloutRequireInitial {
			return err
		}

		log.Errorf("Routing everyone to the stable build until the rollout policy can be loaded: %v", err)
	}

	eo := o.Edge
	eo.Policies = poller
	eo.Metrics = mtr
	eo.Transport = createTransport(o)
	if len(o.OpenTracing) > 0 {
		if err := tracing.Init(o.PluginDir, o.OpenTracing); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}

		eo.Tracer = ot.GlobalTracer()
	}

	proxy, err := edge.New(eo)
	if err != nil {
		return err
	}

	l, err := listen(o.Address)
	if err != nil {
		return err
	}

	servers := []*http.Server{{
		Handler:           proxy,
		ReadTimeout:       o.ReadTimeoutServer,
		ReadHeaderTimeout: o.ReadHeaderTimeoutServer,
		WriteTimeout:      o.WriteTimeoutServer,
		IdleTimeout:       o.IdleTimeoutServer,
	}}

	listeners := []net.Listener{l}

	if o.SupportListener != "" {
		sl, err := listen(o.SupportListener)
		if err != nil {
			l.Close()
			return err
		}

		mux := http.NewServeMux()
		mtr.RegisterHandler("/metrics", mux)
		proxy.RegisterSupportHandlers(mux)

		servers = append(servers, &http.Server{Handler: mux, ReadHeaderTimeout: o.ReadHeaderTimeoutServer})
		listeners = append(listeners, sl)
		log.Infof("Support listener on %v", sl.Addr())
	}

	log.WithFields(log.Fields{
		"strategy": proxy.Strategy().Name(),
		"source":   source.Name(),
	}).Infof("Proxy listener on %v", l.Addr())

	g, gctx := errgroup.WithContext(ctx)
	for i := range servers {
		srv, l := servers[i], listeners[i]
		g.Go(func() error { return serve(srv, l) })
	}

	g.Go(func() error { return poller.Run(gctx) })

	g.Go(func() error {
		select {
		case s := <-sig:
			log.Infof("Got shutdown signal %v, shutting down", s)
		case <-gctx.Done():
		}

		cancel()

		sctx, scancel := context.WithTimeout(context.Background(), o.ShutdownTimeout)
		defer scancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(sctx); err != nil {
				errs = append(errs, err)
			}
		}

		return errors.Join(errs...)
	})

	return g.Wait()
}

// Run the edge proxy.
func Run(o Options) error {
	return RunWithShutdown(o, nil)
}
