package canary

import (
	"errors"
	"fmt"
)

// OriginSwap replaces the upstream origin of the request with the origin
// dedicated to the decided build. The dedicated origins don't use build
// prefixed paths, only the root is normalized to /index.html.
type OriginSwap struct {
	stable, next Origin
}

// NewOriginSwap creates the origin swapping strategy. It fails when the
// origins are misconfigured, which is a deployment time error.
func NewOriginSwap(stable, next Origin) (*OriginSwap, error) {
	if stable.Host == "" || next.Host == "" {
		return nil, errors.New("origin swap: both the stable and the next origin require a host")
	}

	if stable.Host == next.Host && stable.BasePath == next.BasePath {
		return nil, fmt.Errorf("origin swap: stable and next point to the same origin: %s%s", stable.Host, stable.BasePath)
	}

	return &OriginSwap{stable: stable, next: next}, nil
}

// Origin returns a copy of the origin bound to a build.
func (s *OriginSwap) Origin(b Build) Origin {
	if b == Next {
		return s.next
	}

	return s.stable
}

func (s *OriginSwap) Name() string { return OriginSwapName }

// Apply replaces the origin as a whole, so no setting of a previous origin
// leaks over to the other build.
func (s *OriginSwap) Apply(d Decision, r *Request) {
	o := s.Origin(d.Build)
	r.Origin = &o

	if r.URI == "/" {
		r.URI = "/index.html"
	}
}
