package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	canaryedge "github.com/zalando-incubator/canary-edge"
	"github.com/zalando-incubator/canary-edge/canary"
	"github.com/zalando-incubator/canary-edge/edge"
	"github.com/zalando-incubator/canary-edge/logging"
	"github.com/zalando-incubator/canary-edge/metrics"
	"github.com/zalando-incubator/canary-edge/rollout"
)

type Config struct {
	ConfigFile string
	Flags      *flag.FlagSet

	// generic:
	Address                 string        `yaml:"address"`
	SupportListener         string        `yaml:"support-listener"`
	ReadTimeoutServer       time.Duration `yaml:"read-timeout-server"`
	ReadHeaderTimeoutServer time.Duration `yaml:"read-header-timeout-server"`
	WriteTimeoutServer      time.Duration `yaml:"write-timeout-server"`
	IdleTimeoutServer       time.Duration `yaml:"idle-timeout-server"`
	ShutdownTimeout         time.Duration `yaml:"shutdown-timeout"`

	// routing:
	TopologyString string          `yaml:"topology"`
	Topology       canary.Topology `yaml:"-"`
	Upstream       string          `yaml:"upstream"`
	OriginScheme   string          `yaml:"origin-scheme"`
	StableOrigin   *canary.Origin  `yaml:"stable-origin"`
	NextOrigin     *canary.Origin  `yaml:"next-origin"`

	// upstream transport:
	ResponseHeaderTimeoutBackend time.Duration `yaml:"response-header-timeout-backend"`
	IdleTimeoutBackend           time.Duration `yaml:"idle-timeout-backend"`
	MaxIdleConnsBackend          int           `yaml:"max-idle-connection-backend"`

	// circuit breakers:
	BreakerFailures         int           `yaml:"breaker-failures"`
	BreakerTimeout          time.Duration `yaml:"breaker-timeout"`
	BreakerHalfOpenRequests int           `yaml:"breaker-half-open-requests"`

	// rollout policy:
	RolloutOrgs           *listFlag     `yaml:"rollout-orgs"`
	RolloutFile           string        `yaml:"rollout-file"`
	RolloutRedisAddr      string        `yaml:"rollout-redis-addr"`
	RolloutRedisPassword  string        `yaml:"rollout-redis-password"`
	RolloutRedisDB        int           `yaml:"rollout-redis-db"`
	RolloutRedisKey       string        `yaml:"rollout-redis-key"`
	RolloutPollInterval   time.Duration `yaml:"rollout-poll-interval"`
	RolloutRequireInitial bool          `yaml:"rollout-require-initial"`
	RolloutInitialTries   uint          `yaml:"rollout-initial-tries"`

	// logging:
	ApplicationLogLevel       log.Level `yaml:"-"`
	ApplicationLogLevelString string    `yaml:"application-log-level"`
	ApplicationLog            string    `yaml:"application-log"`
	ApplicationLogPrefix      string    `yaml:"application-log-prefix"`
	ApplicationLogJSONEnabled bool      `yaml:"application-log-json-enabled"`
	AccessLog                 string    `yaml:"access-log"`
	AccessLogDisabled         bool      `yaml:"access-log-disabled"`
	AccessLogJSONEnabled      bool      `yaml:"access-log-json-enabled"`
	AccessLogStripQuery       bool      `yaml:"access-log-strip-query"`

	// metrics:
	MetricsPrefix                string    `yaml:"metrics-prefix"`
	EnableRuntimeMetrics         bool      `yaml:"runtime-metrics"`
	HistogramMetricBucketsString string    `yaml:"histogram-metric-buckets"`
	HistogramMetricBuckets       []float64 `yaml:"-"`

	// tracing:
	OpenTracing string `yaml:"opentracing"`
	PluginDir   string `yaml:"plugindir"`
}

const (
	defaultAddress         = ":9090"
	defaultSupportListener = ":9911"
	defaultShutdownTimeout = 10 * time.Second

	// environment keys:
	redisPasswordEnv = "CANARY_REDIS_PASSWORD"
)

func NewConfig() *Config {
	cfg := new(Config)
	cfg.RolloutOrgs = commaListFlag()

	flag := flag.NewFlagSet("", flag.ExitOnError)
	flag.StringVar(&cfg.ConfigFile, "config-file", "", "if provided the flags will be loaded/overwritten by the values on the file (yaml)")

	// generic:
	flag.StringVar(&cfg.Address, "address", defaultAddress, "network address that the edge proxy should listen on")
	flag.StringVar(&cfg.SupportListener, "support-listener", defaultSupportListener, "network address used for exposing the /metrics, /healthz and /debug/route endpoints. Empty disables the support listener")
	flag.DurationVar(&cfg.ReadTimeoutServer, "read-timeout-server", 5*time.Minute, "set ReadTimeout for http server connections")
	flag.DurationVar(&cfg.ReadHeaderTimeoutServer, "read-header-timeout-server", time.Minute, "set ReadHeaderTimeout for http server connections")
	flag.DurationVar(&cfg.WriteTimeoutServer, "write-timeout-server", 60*time.Second, "set WriteTimeout for http server connections")
	flag.DurationVar(&cfg.IdleTimeoutServer, "idle-timeout-server", 60*time.Second, "set IdleTimeout for http server connections")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "maximum time to wait for open connections when shutting down")

	// routing:
	flag.StringVar(&cfg.TopologyString, "topology", "path", "how the builds are served: path (one upstream, build prefixed paths) or origin (one origin per build)")
	flag.StringVar(&cfg.Upstream, "upstream", "", "base URL of the upstream serving both builds, used with the path topology")
	flag.StringVar(&cfg.OriginScheme, "origin-scheme", "https", "scheme used to connect the origins of the origin topology")
	flag.Var(newYamlFlag(&cfg.StableOrigin), "stable-origin", "origin of the stable build in YAML format, e.g. {host: app-stable.s3.amazonaws.com, region: eu-central-1}")
	flag.Var(newYamlFlag(&cfg.NextOrigin), "next-origin", "origin of the next build in YAML format, e.g. {host: app-next.s3.amazonaws.com, region: eu-central-1}")

	// upstream transport:
	flag.DurationVar(&cfg.ResponseHeaderTimeoutBackend, "response-header-timeout-backend", time.Minute, "sets the HTTP response header timeout for upstream connections")
	flag.DurationVar(&cfg.IdleTimeoutBackend, "idle-timeout-backend", time.Minute, "sets the idle timeout of upstream connections")
	flag.IntVar(&cfg.MaxIdleConnsBackend, "max-idle-connection-backend", 64, "sets the maximum idle connections for all upstream connections")

	// circuit breakers:
	flag.IntVar(&cfg.BreakerFailures, "breaker-failures", 0, "consecutive upstream failures opening the circuit breaker of an origin, 0 disables the breakers")
	flag.DurationVar(&cfg.BreakerTimeout, "breaker-timeout", time.Minute, "time an open circuit breaker waits before allowing trial requests")
	flag.IntVar(&cfg.BreakerHalfOpenRequests, "breaker-half-open-requests", 1, "number of trial requests allowed by a half open circuit breaker")

	// rollout policy:
	flag.Var(cfg.RolloutOrgs, "rollout-orgs", "comma separated list of the organization IDs routed to the next build")
	flag.StringVar(&cfg.RolloutFile, "rollout-file", "", "YAML file containing the organization IDs routed to the next build")
	flag.StringVar(&cfg.RolloutRedisAddr, "rollout-redis-addr", "", "address of the Redis server holding the rollout set")
	flag.StringVar(&cfg.RolloutRedisPassword, "rollout-redis-password", "", "password of the Redis server, can be set with the "+redisPasswordEnv+" environment variable")
	flag.IntVar(&cfg.RolloutRedisDB, "rollout-redis-db", 0, "database of the Redis server")
	flag.StringVar(&cfg.RolloutRedisKey, "rollout-redis-key", rollout.DefaultRedisKey, "key of the Redis set holding the organization IDs")
	flag.DurationVar(&cfg.RolloutPollInterval, "rollout-poll-interval", rollout.DefaultPollInterval, "interval of reloading the rollout policy from file or Redis")
	flag.BoolVar(&cfg.RolloutRequireInitial, "rollout-require-initial", false, "when set, failing to load the rollout policy at startup is fatal. Otherwise everyone is routed to the stable build until the first successful load")
	flag.UintVar(&cfg.RolloutInitialTries, "rollout-initial-tries", 3, "attempts of the initial rollout policy load")

	// logging:
	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", "INFO", "log level for application logs, possible values: PANIC, FATAL, ERROR, WARN, INFO, DEBUG")
	flag.StringVar(&cfg.ApplicationLog, "application-log", "", "output file for the application log. When not set, /dev/stderr is used")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", "[APP]", "prefix for each log entry")
	flag.BoolVar(&cfg.ApplicationLogJSONEnabled, "application-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.StringVar(&cfg.AccessLog, "access-log", "", "output file for the access log, When not set, /dev/stderr is used")
	flag.BoolVar(&cfg.AccessLogDisabled, "access-log-disabled", false, "when this flag is set, no access log is printed")
	flag.BoolVar(&cfg.AccessLogJSONEnabled, "access-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.BoolVar(&cfg.AccessLogStripQuery, "access-log-strip-query", false, "when this flag is set, the access log strips the query strings from the access log")

	// metrics:
	flag.StringVar(&cfg.MetricsPrefix, "metrics-prefix", "", "allows setting a custom namespace for the metrics, defaults to canary_edge")
	flag.BoolVar(&cfg.EnableRuntimeMetrics, "runtime-metrics", true, "enables Go runtime and process metrics")
	flag.StringVar(&cfg.HistogramMetricBucketsString, "histogram-metric-buckets", "", "use custom buckets for the origin duration histogram, comma separated seconds")

	// tracing:
	flag.StringVar(&cfg.OpenTracing, "opentracing", "", "tracer and its options, e.g. \"basic sample-modulo=16\". Empty disables tracing")
	flag.StringVar(&cfg.PluginDir, "plugindir", "./plugins", "directory of the tracer plugins")

	cfg.Flags = flag
	return cfg
}

func validate(c *Config) error {
	_, err := log.ParseLevel(c.ApplicationLogLevelString)
	if err != nil {
		return err
	}

	topology, err := canary.ParseTopology(c.TopologyString)
	if err != nil {
		return err
	}

	switch topology {
	case canary.PathTopology:
		if c.Upstream == "" {
			return fmt.Errorf("path topology requires -upstream")
		}
	case canary.OriginTopology:
		if c.StableOrigin == nil || c.NextOrigin == nil {
			return fmt.Errorf("origin topology requires -stable-origin and -next-origin")
		}

		if _, err := canary.NewOriginSwap(*c.StableOrigin, *c.NextOrigin); err != nil {
			return err
		}
	}

	sources := 0
	for _, set := range []bool{len(c.RolloutOrgs.Values()) > 0, c.RolloutFile != "", c.RolloutRedisAddr != ""} {
		if set {
			sources++
		}
	}

	if sources > 1 {
		return fmt.Errorf("only one of -rollout-orgs, -rollout-file and -rollout-redis-addr can be set")
	}

	if c.RolloutPollInterval <= 0 {
		return fmt.Errorf("invalid rollout poll interval: %v", c.RolloutPollInterval)
	}

	if c.BreakerFailures < 0 {
		return fmt.Errorf("invalid breaker failures: %d", c.BreakerFailures)
	}

	if c.BreakerHalfOpenRequests < 0 {
		return fmt.Errorf("invalid breaker half open requests: %d", c.BreakerHalfOpenRequests)
	}

	_, err = parseHistogramBuckets(c.HistogramMetricBucketsString)
	return err
}

func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	err := c.Flags.Parse(args)
	if err != nil {
		return err
	}

	// check if arguments were correctly parsed.
	if len(c.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", c.Flags.Args())
	}

	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}

		err = yaml.Unmarshal(yamlFile, c)
		if err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}

		err = c.Flags.Parse(args)
		if err != nil {
			return err
		}
	}

	c.parseEnv()

	if err := validate(c); err != nil {
		return err
	}

	c.ApplicationLogLevel, _ = log.ParseLevel(c.ApplicationLogLevelString)
	c.Topology, _ = canary.ParseTopology(c.TopologyString)
	c.HistogramMetricBuckets, _ = parseHistogramBuckets(c.HistogramMetricBucketsString)

	return nil
}

func (c *Config) parseEnv() {
	// Set Redis password from environment variable if not set earlier (flag or configuration file)
	if c.RolloutRedisPassword == "" {
		c.RolloutRedisPassword = os.Getenv(redisPasswordEnv)
	}
}

func parseHistogramBuckets(s string) ([]float64, error) {
	if s == "" {
		return prometheus.DefBuckets, nil
	}

	var buckets []float64
	for _, v := range strings.Split(s, ",") {
		value, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse histogram-metric-buckets: %w", err)
		}

		if len(buckets) > 0 && value <= buckets[len(buckets)-1] {
			return nil, fmt.Errorf("histogram-metric-buckets must be increasing: %s", s)
		}

		buckets = append(buckets, value)
	}

	return buckets, nil
}

func (c *Config) ToOptions() canaryedge.Options {
	return canaryedge.Options{
		Address:                 c.Address,
		SupportListener:         c.SupportListener,
		ReadTimeoutServer:       c.ReadTimeoutServer,
		ReadHeaderTimeoutServer: c.ReadHeaderTimeoutServer,
		WriteTimeoutServer:      c.WriteTimeoutServer,
		IdleTimeoutServer:       c.IdleTimeoutServer,
		ShutdownTimeout:         c.ShutdownTimeout,

		Edge: c.ToEdgeOptions(),

		ResponseHeaderTimeoutBackend: c.ResponseHeaderTimeoutBackend,
		IdleTimeoutBackend:           c.IdleTimeoutBackend,
		MaxIdleConnsBackend:          c.MaxIdleConnsBackend,

		RolloutOrgs:           c.RolloutOrgs.Values(),
		RolloutFile:           c.RolloutFile,
		RolloutRedis:          c.ToRedisOptions(),
		RolloutPollInterval:   c.RolloutPollInterval,
		RolloutInitialTries:   c.RolloutInitialTries,
		RolloutRequireInitial: c.RolloutRequireInitial,

		ApplicationLogOutput: c.ApplicationLog,
		AccessLogOutput:      c.AccessLog,
		Logging:              c.ToLoggingOptions(),
		Metrics:              c.ToMetricsOptions(),

		OpenTracing: strings.Fields(c.OpenTracing),
		PluginDir:   c.PluginDir,
	}
}

func (c *Config) ToLoggingOptions() logging.Options {
	return logging.Options{
		ApplicationLogPrefix:      c.ApplicationLogPrefix,
		ApplicationLogLevel:       c.ApplicationLogLevel,
		ApplicationLogLevelSet:    true,
		ApplicationLogJSONEnabled: c.ApplicationLogJSONEnabled,
		AccessLogDisabled:         c.AccessLogDisabled,
		AccessLogJSONEnabled:      c.AccessLogJSONEnabled,
		AccessLogStripQuery:       c.AccessLogStripQuery,
	}
}

func (c *Config) ToMetricsOptions() metrics.Options {
	return metrics.Options{
		Prefix:               c.MetricsPrefix,
		EnableRuntimeMetrics: c.EnableRuntimeMetrics,
		HistogramBuckets:     c.HistogramMetricBuckets,
	}
}

func (c *Config) ToRedisOptions() rollout.RedisOptions {
	return rollout.RedisOptions{
		Addr:     c.RolloutRedisAddr,
		Password: c.RolloutRedisPassword,
		DB:       c.RolloutRedisDB,
		Key:      c.RolloutRedisKey,
	}
}

// ToEdgeOptions returns the proxy options except the ones created at
// startup: the policy provider, the transport, the metrics and the
// tracer.
func (c *Config) ToEdgeOptions() edge.Options {
	o := edge.Options{
		Topology:     c.Topology,
		Upstream:     c.Upstream,
		OriginScheme: c.OriginScheme,
		Breakers: edge.BreakerSettings{
			Failures:         c.BreakerFailures,
			Timeout:          c.BreakerTimeout,
			HalfOpenRequests: c.BreakerHalfOpenRequests,
		},
	}

	if c.StableOrigin != nil {
		o.StableOrigin = *c.StableOrigin
	}

	if c.NextOrigin != nil {
		o.NextOrigin = *c.NextOrigin
	}

	return o
}
