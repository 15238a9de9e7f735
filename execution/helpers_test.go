package execution

import (
	"testing"

	"github.com/crytic/abirunner/execution/valuegeneration"
	"github.com/crytic/abirunner/schema"
	"github.com/stretchr/testify/require"
)

const testWallet = "oct1abcWallet"

// fixedProvider is a RandomProvider always returning the same value, reduced modulo n.
type fixedProvider uint64

func (p fixedProvider) Uint64n(n uint64) uint64 {
	return uint64(p) % n
}

// mustParseSchema parses an inline JSON schema.
func mustParseSchema(t *testing.T, source string) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(source), schema.FormatJSON, "inline", false)
	require.NoError(t, err)
	return s
}

// newTestSynthesizer creates a Synthesizer drawing integers in [1, 100].
func newTestSynthesizer(provider valuegeneration.RandomProvider) *valuegeneration.Synthesizer {
	generator := valuegeneration.NewPlaceholderValueGenerator(&valuegeneration.PlaceholderValueGeneratorConfig{
		StringPlaceholder: "hello",
		BoolPlaceholder:   true,
	}, provider)
	return valuegeneration.NewSynthesizer(valuegeneration.SynthesizerConfig{IntegerMin: 1, IntegerMax: 100}, generator)
}
