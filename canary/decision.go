package canary

import "sort"

// UnknownOrg is reported in the x-canary-org header when the request
// carries no orgId cookie.
const UnknownOrg = "unknown"

// Policy is the immutable set of organization IDs eligible for the next
// build. The zero value is the empty policy, routing everyone to stable.
type Policy struct {
	orgs map[string]struct{}
}

// Decision is the outcome of routing a single request.
type Decision struct {
	Build Build

	// OrgID is the organization read from the request, or UnknownOrg.
	OrgID string
}

// NewPolicy creates a policy from a list of organization IDs. Empty IDs
// and duplicates are ignored.
func NewPolicy(orgIDs ...string) Policy {
	orgs := make(map[string]struct{}, len(orgIDs))
	for _, id := range orgIDs {
		if id == "" {
			continue
		}

		orgs[id] = struct{}{}
	}

	return Policy{orgs: orgs}
}

// Contains tells whether an organization takes part in the rollout.
func (p Policy) Contains(orgID string) bool {
	_, ok := p.orgs[orgID]
	return ok
}

func (p Policy) Len() int { return len(p.orgs) }

// Orgs returns the organization IDs in sorted order.
func (p Policy) Orgs() []string {
	ids := make([]string, 0, len(p.orgs))
	for id := range p.orgs {
		ids = append(ids, id)
	}

	sort.Strings(ids)
	return ids
}

// Decide selects the build for an organization. When found is false, or
// the organization ID is empty, the request is treated as anonymous and
// always gets the stable build.
//
// Decide is deterministic: the same organization and policy always result
// in the same decision, on every edge node.
func Decide(orgID string, found bool, p Policy) Decision {
	if !found || orgID == "" {
		return Decision{Build: Stable, OrgID: UnknownOrg}
	}

	if p.Contains(orgID) {
		return Decision{Build: Next, OrgID: orgID}
	}

	return Decision{Build: Stable, OrgID: orgID}
}
