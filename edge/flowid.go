package edge

import (
	"io"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

const FlowIDHeader = "X-Flow-Id"

var flowIDPattern = regexp.MustCompile(`^[0-9A-Za-z+\-]{8,64}$`)

type flowIDGenerator struct {
	sync.Mutex
	r io.Reader
}

func newFlowIDGenerator() *flowIDGenerator {
	return newFlowIDGeneratorWithEntropy(rand.New(rand.NewSource(time.Now().UTC().UnixNano())))
}

func newFlowIDGeneratorWithEntropy(r io.Reader) *flowIDGenerator {
	return &flowIDGenerator{r: r}
}

// Generate returns a new ULID flow ID.
func (g *flowIDGenerator) Generate() (string, error) {
	g.Lock()
	id, err := ulid.New(ulid.Now(), g.r)
	g.Unlock()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func isValidFlowID(id string) bool {
	return flowIDPattern.MatchString(id)
}
