package rollout

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/zalando-incubator/canary-edge/canary"
)

type fileDocument struct {
	Orgs *[]string `yaml:"orgs"`
}

// FileSource loads the policy from a YAML file. The file is read on every
// load, so changes are picked up by the next poll.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Load(context.Context) (canary.Policy, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return canary.Policy{}, fmt.Errorf("failed to read rollout file: %w", err)
	}

	return ParseYAML(b)
}

// ParseYAML parses a rollout document.
func ParseYAML(b []byte) (canary.Policy, error) {
	var doc fileDocument
	if err := yaml.UnmarshalStrict(b, &doc); err != nil {
		return canary.Policy{}, fmt.Errorf("failed to parse rollout document: %w", err)
	}

	if doc.Orgs == nil {
		return canary.Policy{}, ErrNoOrgs
	}

	return canary.NewPolicy(*doc.Orgs...), nil
}
