package valuegeneration

import (
	"math"

	"github.com/holiman/uint256"
	"pgregory.net/rand"
)

// RandomProvider describes a source of uniformly distributed random numbers. *rand.Rand from pgregory.net/rand
// satisfies it, and tests may inject fixed sequences.
type RandomProvider interface {
	// Uint64n returns a uniformly distributed number in [0, n). n must be greater than zero.
	Uint64n(n uint64) uint64
}

// NewRandomProvider returns the default RandomProvider, seeded with the provided seed. A nil seed yields a randomly
// seeded provider.
func NewRandomProvider(seed *uint64) RandomProvider {
	if seed == nil {
		return rand.New()
	}
	return rand.New(*seed)
}

// ValueGenerator represents an interface for a provider used to generate call arguments for a method invocation.
type ValueGenerator interface {
	// GenerateAddress returns the address to use when populating address inputs.
	GenerateAddress(knownAddress string) string

	// GenerateInteger generates an unsigned integer in the closed range [lower, upper].
	GenerateInteger(lower uint64, upper uint64) *uint256.Int

	// GenerateString generates/selects a string to use when populating inputs.
	GenerateString() string

	// GenerateBool generates/selects a bool to use when populating inputs.
	GenerateBool() bool
}

// PlaceholderValueGeneratorConfig defines the operating parameters for a PlaceholderValueGenerator.
type PlaceholderValueGeneratorConfig struct {
	// StringPlaceholder is the value used for every string input.
	StringPlaceholder string
	// BoolPlaceholder is the value used for every boolean input.
	BoolPlaceholder bool
}

// PlaceholderValueGenerator is a ValueGenerator that draws integers at random and fills every other input with a fixed
// placeholder.
type PlaceholderValueGenerator struct {
	// config describes the configuration defining value generation parameters.
	config *PlaceholderValueGeneratorConfig

	// randomProvider offers a source of random data.
	randomProvider RandomProvider
}

// NewPlaceholderValueGenerator creates a new PlaceholderValueGenerator with the provided config and random provider.
func NewPlaceholderValueGenerator(config *PlaceholderValueGeneratorConfig, randomProvider RandomProvider) *PlaceholderValueGenerator {
	return &PlaceholderValueGenerator{
		config:         config,
		randomProvider: randomProvider,
	}
}

// GenerateAddress returns the known address unchanged. Synthesized address inputs are bound to the caller's account.
func (g *PlaceholderValueGenerator) GenerateAddress(knownAddress string) string {
	return knownAddress
}

// GenerateInteger generates a uniformly distributed integer in [lower, upper]. If upper is not above lower, lower is
// returned.
func (g *PlaceholderValueGenerator) GenerateInteger(lower uint64, upper uint64) *uint256.Int {
	if upper <= lower {
		return uint256.NewInt(lower)
	}

	span := upper - lower
	if span == math.MaxUint64 {
		// The full range does not fit in Uint64n's argument, so draw both halves separately.
		hi := g.randomProvider.Uint64n(1 << 32)
		lo := g.randomProvider.Uint64n(1 << 32)
		return uint256.NewInt(hi<<32 | lo)
	}
	return uint256.NewInt(lower + g.randomProvider.Uint64n(span+1))
}

// GenerateString returns the configured string placeholder.
func (g *PlaceholderValueGenerator) GenerateString() string {
	return g.config.StringPlaceholder
}

// GenerateBool returns the configured boolean placeholder.
func (g *PlaceholderValueGenerator) GenerateBool() bool {
	return g.config.BoolPlaceholder
}
