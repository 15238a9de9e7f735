package valuegeneration

import (
	"fmt"
	"strconv"

	"github.com/crytic/abirunner/schema"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// SynthesizerConfig defines the integer bounds used when a parameter does not declare its own.
type SynthesizerConfig struct {
	// IntegerMin is the inclusive lower bound of synthesized integers.
	IntegerMin uint64
	// IntegerMax is the inclusive upper bound of synthesized integers, unless a parameter declares a max.
	IntegerMax uint64
}

// Synthesizer produces an argument list for a method from its declared parameter types.
type Synthesizer struct {
	config    SynthesizerConfig
	generator ValueGenerator
}

// NewSynthesizer creates a Synthesizer drawing values from the provided generator.
func NewSynthesizer(config SynthesizerConfig, generator ValueGenerator) *Synthesizer {
	return &Synthesizer{
		config:    config,
		generator: generator,
	}
}

// Synthesize produces one argument per declared parameter of the method, in declaration order. Address parameters
// are bound to knownAddress and parameters with an example use it verbatim. Returns a *SynthesisError for the first
// parameter that cannot be populated.
func (s *Synthesizer) Synthesize(method schema.MethodSpec, knownAddress string) (InvocationArgs, error) {
	args := make(InvocationArgs, 0, len(method.Params))
	for _, param := range method.Params {
		value, err := s.synthesizeParam(method, param, knownAddress)
		if err != nil {
			return nil, err
		}
		args = append(args, Argument{Name: param.Name, Type: param.Type, Value: value})
	}
	return args, nil
}

// synthesizeParam produces the value for a single parameter.
func (s *Synthesizer) synthesizeParam(method schema.MethodSpec, param schema.Param, knownAddress string) (any, error) {
	fail := func(reason string, cause error) error {
		return &SynthesisError{
			Method:  method.Name,
			Param:   param.Name,
			TypeTag: param.TypeTag,
			Reason:  reason,
			Cause:   cause,
		}
	}

	if param.Example != nil {
		switch param.Type {
		case schema.ParamTypeAddress, schema.ParamTypeString:
			return *param.Example, nil
		case schema.ParamTypeInteger:
			value, err := uint256.FromDecimal(*param.Example)
			if err != nil {
				return nil, fail("example is not an unsigned decimal integer", errors.WithStack(err))
			}
			return value, nil
		case schema.ParamTypeBoolean:
			value, err := strconv.ParseBool(*param.Example)
			if err != nil {
				return nil, fail("example is not a boolean", errors.WithStack(err))
			}
			return value, nil
		}
	}

	switch param.Type {
	case schema.ParamTypeAddress:
		return s.generator.GenerateAddress(knownAddress), nil
	case schema.ParamTypeInteger:
		upper := s.config.IntegerMax
		if param.Max != nil {
			upper = *param.Max
		}
		if upper < s.config.IntegerMin {
			return nil, fail(fmt.Sprintf("max %d is below the minimum %d", upper, s.config.IntegerMin), nil)
		}
		return s.generator.GenerateInteger(s.config.IntegerMin, upper), nil
	case schema.ParamTypeString:
		return s.generator.GenerateString(), nil
	case schema.ParamTypeBoolean:
		return s.generator.GenerateBool(), nil
	default:
		return nil, fail("unrecognized parameter type", nil)
	}
}
