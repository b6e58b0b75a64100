package analysis

import (
	"encoding/json"
	"hash/fnv"
	"math/rand/v2"
	"sync"
)

// SpeciesEstimate is a classifier's guess for one hit.
type SpeciesEstimate struct {
	Species    string
	Confidence float64
}

// SpeciesEstimator classifies the species felled in a search hit from the
// hit's metadata.
type SpeciesEstimator interface {
	Estimate(metadata json.RawMessage) SpeciesEstimate
}

// DiameterEstimator estimates the trunk diameter, in inches, of a felled tree.
type DiameterEstimator interface {
	Estimate() int
}

var hashSpeciesOptions = []string{"Oak", "Pine", "Maple", "Birch", "Spruce", "Fir"}

// HashSpeciesEstimator picks a species from a fixed list by hashing the
// metadata bytes. It is a placeholder: the choice carries no evidence, so
// Confidence is always 0.
type HashSpeciesEstimator struct{}

func (HashSpeciesEstimator) Estimate(metadata json.RawMessage) SpeciesEstimate {
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	h := fnv.New32a()
	h.Write(metadata)
	return SpeciesEstimate{Species: hashSpeciesOptions[h.Sum32()%uint32(len(hashSpeciesOptions))]}
}

const (
	minDiameterInches = 12
	maxDiameterInches = 24
)

// RandomDiameterEstimator draws a uniform diameter in [12, 24] inches. It
// is a placeholder until diameters are measured from frames.
type RandomDiameterEstimator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomDiameterEstimator uses rng, or a randomly seeded source when nil.
func NewRandomDiameterEstimator(rng *rand.Rand) *RandomDiameterEstimator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomDiameterEstimator{rng: rng}
}

func (e *RandomDiameterEstimator) Estimate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return minDiameterInches + e.rng.IntN(maxDiameterInches-minDiameterInches+1)
}
