/*
Package rollout provides the rollout policy to the canary routing.

The set of organizations taking part in the rollout can be loaded from
different sources: a static list, a YAML file or a Redis set. A Poller
reloads the policy from a source periodically, and provides the latest
successfully loaded policy to the request handlers. The routing itself
never waits for a source, it always uses the current snapshot.

YAML file format:

	orgs:
	- ORG_ABC
	- ORG_TEST
*/
package rollout

import (
	"context"
	"errors"

	"github.com/zalando-incubator/canary-edge/canary"
)

// DefaultOrgs is the rollout list of the reference deployment.
var DefaultOrgs = []string{
	"ORG_ABC",
	"ORG_TEST",
	"ORG_CANARY",
	"ORG_BETA",
}

// ErrNoOrgs is returned by sources whose document doesn't define the
// list of organizations at all. An empty list is valid.
var ErrNoOrgs = errors.New("rollout document without orgs")

// Provider provides the current rollout policy.
type Provider interface {
	Current() canary.Policy
}

// Source loads the rollout policy from its storage.
type Source interface {
	Name() string
	Load(context.Context) (canary.Policy, error)
}

// Static is a fixed policy, both a Source and a Provider.
type Static struct {
	policy canary.Policy
}

// NewStatic creates a fixed policy from a list of organizations.
func NewStatic(orgIDs ...string) *Static {
	return &Static{policy: canary.NewPolicy(orgIDs...)}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Load(context.Context) (canary.Policy, error) { return s.policy, nil }

func (s *Static) Current() canary.Policy { return s.policy }
