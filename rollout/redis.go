package rollout

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/zalando-incubator/canary-edge/canary"
)

const (
	DefaultRedisKey          = "canary:rollout:orgs"
	defaultRedisTimeout      = 500 * time.Millisecond
	defaultRedisConnectTries = 7
)

// RedisOptions configure the Redis source.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Key of the Redis set holding the organization IDs.
	Key string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ConnectTries limits the initial ping attempts.
	ConnectTries uint
}

type redisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Close() error
}

// RedisSource loads the policy from the members of a Redis set.
type RedisSource struct {
	client redisClient
	key    string
}

// NewRedisSource connects to Redis. It retries the initial ping with
// exponential backoff.
func NewRedisSource(ctx context.Context, o RedisOptions) (*RedisSource, error) {
	o = o.withDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
	})

	s, err := newRedisSource(ctx, client, o)
	if err != nil {
		client.Close()
		return nil, err
	}

	return s, nil
}

func newRedisSource(ctx context.Context, client redisClient, o RedisOptions) (*RedisSource, error) {
	_, err := backoff.Retry(ctx, func() (string, error) {
		pong, err := client.Ping(ctx).Result()
		if err != nil {
			log.Infof("Failed to ping redis, retry with backoff: %v", err)
		}

		return pong, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(o.ConnectTries))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", o.Addr, err)
	}

	return &RedisSource{client: client, key: o.Key}, nil
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.Key == "" {
		o.Key = DefaultRedisKey
	}

	if o.DialTimeout == 0 {
		o.DialTimeout = defaultRedisTimeout
	}

	if o.ReadTimeout == 0 {
		o.ReadTimeout = defaultRedisTimeout
	}

	if o.WriteTimeout == 0 {
		o.WriteTimeout = defaultRedisTimeout
	}

	if o.ConnectTries == 0 {
		o.ConnectTries = defaultRedisConnectTries
	}

	return o
}

func (s *RedisSource) Name() string { return "redis" }

// Load reads the members of the rollout set. A missing key is the empty
// set in Redis, resulting in the empty policy.
func (s *RedisSource) Load(ctx context.Context) (canary.Policy, error) {
	orgs, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return canary.Policy{}, fmt.Errorf("failed to load rollout set %s: %w", s.key, err)
	}

	return canary.NewPolicy(orgs...), nil
}

func (s *RedisSource) Close() error {
	return s.client.Close()
}
