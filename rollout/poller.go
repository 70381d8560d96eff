package rollout

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"

	"github.com/zalando-incubator/canary-edge/canary"
	"github.com/zalando-incubator/canary-edge/metrics"
)

const DefaultPollInterval = 30 * time.Second

type PollerOptions struct {
	// Interval between two loads. Defaults to DefaultPollInterval.
	Interval time.Duration

	// InitialTries limits the attempts of the initial load.
	// Defaults to 1.
	InitialTries uint

	Metrics metrics.Metrics
}

// Poller loads the policy from a source periodically. Until the first
// successful load, the current policy is the empty policy, routing
// everyone to the stable build. When a load fails, the previous policy is
// kept.
type Poller struct {
	source  Source
	options PollerOptions
	current atomic.Pointer[canary.Policy]
}

var _ Provider = (*Poller)(nil)

func NewPoller(s Source, o PollerOptions) *Poller {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}

	if o.InitialTries == 0 {
		o.InitialTries = 1
	}

	if o.Metrics == nil {
		o.Metrics = metrics.Void
	}

	p := &Poller{source: s, options: o}
	p.current.Store(&canary.Policy{})
	return p
}

// Current returns the latest successfully loaded policy.
func (p *Poller) Current() canary.Policy {
	return *p.current.Load()
}

// Refresh loads the policy once.
func (p *Poller) Refresh(ctx context.Context) error {
	policy, err := p.source.Load(ctx)
	p.options.Metrics.IncPolicyRefresh(p.source.Name(), err == nil)
	if err != nil {
		return err
	}

	previous := p.current.Swap(&policy)
	p.options.Metrics.UpdatePolicyOrgs(policy.Len())
	if !slices.Equal(previous.Orgs(), policy.Orgs()) {
		log.WithFields(log.Fields{
			"source": p.source.Name(),
			"orgs":   policy.Len(),
		}).Info("rollout policy updated")
	}

	return nil
}

// LoadInitial loads the policy, retrying with exponential backoff up to
// the configured number of tries.
func (p *Poller) LoadInitial(ctx context.Context) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := p.Refresh(ctx)
		if err != nil {
			log.Warnf("Failed to load rollout policy from %s, retry with backoff: %v", p.source.Name(), err)
		}

		return struct{}{}, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(p.options.InitialTries))
	if err != nil {
		return fmt.Errorf("failed to load initial rollout policy: %w", err)
	}

	return nil
}

// Run refreshes the policy until the context is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.options.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				log.Errorf("Failed to refresh rollout policy from %s, keeping the previous one: %v", p.source.Name(), err)
			}
		}
	}
}
