package canary

import "fmt"

// Strategy mutates a request according to a routing decision. The
// implementations differ in how the two builds are served.
type Strategy interface {
	Name() string

	// Apply rewrites the request in place. It is called only on a copy
	// owned by Route.
	Apply(d Decision, r *Request)
}

// Names of the built-in strategies.
const (
	PathRewriteName = "pathRewrite"
	OriginSwapName  = "originSwap"
)

// Topology tells how the builds are provisioned, and with that, which
// strategy applies.
type Topology int

const (
	// PathTopology serves both builds from one origin under build prefixed
	// paths.
	PathTopology Topology = iota

	// OriginTopology serves each build from a dedicated origin.
	OriginTopology
)

func ParseTopology(s string) (Topology, error) {
	switch s {
	case "path":
		return PathTopology, nil
	case "origin":
		return OriginTopology, nil
	default:
		return 0, fmt.Errorf("invalid topology: %q, expected path or origin", s)
	}
}

func (t Topology) String() string {
	switch t {
	case PathTopology:
		return "path"
	case OriginTopology:
		return "origin"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}
