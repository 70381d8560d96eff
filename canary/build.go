package canary

import (
	"fmt"
	"strings"
)

// Build identifies one of the two parallel deployments.
type Build string

const (
	Stable Build = "stable"
	Next   Build = "next"
)

// ParseBuild accepts the build names case-insensitively.
func ParseBuild(s string) (Build, error) {
	switch strings.ToLower(s) {
	case string(Stable):
		return Stable, nil
	case string(Next):
		return Next, nil
	default:
		return "", fmt.Errorf("invalid build: %q", s)
	}
}

func (b Build) String() string { return string(b) }

// Version returns the application version served by the build.
func (b Build) Version() string {
	if b == Next {
		return "2.0.0-canary"
	}

	return "1.0.0"
}
