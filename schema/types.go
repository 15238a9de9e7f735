package schema

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Mutability describes whether a contract method only reads state or changes it through a transaction.
type Mutability int

const (
	// MutabilityRead describes a method that is executed as a query and does not change state.
	MutabilityRead Mutability = iota
	// MutabilityWrite describes a method that changes state and must be submitted as a transaction.
	MutabilityWrite
)

// mutabilityTags maps every accepted source tag onto a Mutability. "view" and "call" are the tags used by
// Octra-style interface files.
var mutabilityTags = map[string]Mutability{
	"read":  MutabilityRead,
	"view":  MutabilityRead,
	"write": MutabilityWrite,
	"call":  MutabilityWrite,
}

// ParseMutability parses a source mutability tag. Tags are case-insensitive.
func ParseMutability(tag string) (Mutability, error) {
	m, ok := mutabilityTags[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return 0, errors.Errorf("unrecognized mutability %q", tag)
	}
	return m, nil
}

// String returns the canonical tag of the mutability.
func (m Mutability) String() string {
	switch m {
	case MutabilityRead:
		return "read"
	case MutabilityWrite:
		return "write"
	default:
		return fmt.Sprintf("mutability(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler so reports carry the canonical tag.
func (m Mutability) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mutability) UnmarshalText(text []byte) error {
	parsed, err := ParseMutability(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParamType is the closed set of parameter type tags a method may declare.
type ParamType int

const (
	// ParamTypeUnknown marks a parameter whose source type tag is not recognized. Such parameters load, but argument
	// synthesis fails for the method declaring them.
	ParamTypeUnknown ParamType = iota
	// ParamTypeAddress is an account address.
	ParamTypeAddress
	// ParamTypeInteger is an unsigned integer.
	ParamTypeInteger
	// ParamTypeString is a string.
	ParamTypeString
	// ParamTypeBoolean is a boolean.
	ParamTypeBoolean
)

// paramTypeTags maps every accepted source tag onto a ParamType.
var paramTypeTags = map[string]ParamType{
	"address": ParamTypeAddress,
	"integer": ParamTypeInteger,
	"int":     ParamTypeInteger,
	"uint":    ParamTypeInteger,
	"uint256": ParamTypeInteger,
	"number":  ParamTypeInteger,
	"string":  ParamTypeString,
	"boolean": ParamTypeBoolean,
	"bool":    ParamTypeBoolean,
}

// ParseParamType parses a source type tag. It returns false if the tag is not recognized.
func ParseParamType(tag string) (ParamType, bool) {
	t, ok := paramTypeTags[strings.ToLower(strings.TrimSpace(tag))]
	return t, ok
}

// String returns the canonical tag of the parameter type.
func (t ParamType) String() string {
	switch t {
	case ParamTypeAddress:
		return "address"
	case ParamTypeInteger:
		return "integer"
	case ParamTypeString:
		return "string"
	case ParamTypeBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Param describes a single declared method parameter.
type Param struct {
	// Name is the parameter name.
	Name string
	// Type is the parsed type tag.
	Type ParamType
	// TypeTag is the type tag exactly as it appeared in the source.
	TypeTag string
	// Example is a fixed value to use instead of a synthesized one, if provided.
	Example *string
	// Max is an upper bound for synthesized integers, if provided.
	Max *uint64
}

// MethodSpec describes one declared contract method.
type MethodSpec struct {
	// Name is the method identifier used on chain. It is unique within a Schema.
	Name string
	// Label is a human-readable name for reports. It defaults to Name.
	Label string
	// Mutability describes whether the method is a query or a transaction.
	Mutability Mutability
	// Params are the declared parameters, in order.
	Params []Param
}

// DisplayName returns the label of the method, falling back to its name.
func (m MethodSpec) DisplayName() string {
	if m.Label != "" {
		return m.Label
	}
	return m.Name
}

// clone returns a deep copy of the method.
func (m MethodSpec) clone() MethodSpec {
	c := m
	c.Params = slices.Clone(m.Params)
	return c
}

// Schema is an ordered, immutable sequence of MethodSpec describing a single contract.
type Schema struct {
	contract string
	version  *semver.Version
	methods  []MethodSpec
	digest   string
}

// Contract returns the address of the contract the schema describes.
func (s *Schema) Contract() string {
	return s.contract
}

// Version returns the declared schema format version, or nil if none was declared.
func (s *Schema) Version() *semver.Version {
	return s.version
}

// Digest returns the hex-encoded keccak-256 hash of the schema source.
func (s *Schema) Digest() string {
	return s.digest
}

// Len returns the number of declared methods.
func (s *Schema) Len() int {
	return len(s.methods)
}

// Methods returns a copy of the declared methods in declaration order.
func (s *Schema) Methods() []MethodSpec {
	methods := make([]MethodSpec, len(s.methods))
	for i, m := range s.methods {
		methods[i] = m.clone()
	}
	return methods
}

// Method returns a copy of the method declared with the provided name.
func (s *Schema) Method(name string) (MethodSpec, bool) {
	idx := slices.IndexFunc(s.methods, func(m MethodSpec) bool { return m.Name == name })
	if idx < 0 {
		return MethodSpec{}, false
	}
	return s.methods[idx].clone(), true
}
