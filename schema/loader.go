package schema

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
	"gopkg.in/yaml.v3"
)

// SupportedVersions is the range of schema format versions this loader understands. Sources that do not declare a
// version are accepted as-is.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

// Format describes the serialization format of a schema source.
type Format string

const (
	// FormatJSON describes a JSON schema source.
	FormatJSON Format = "json"
	// FormatYAML describes a YAML schema source.
	FormatYAML Format = "yaml"
)

// FormatFromPath determines the source format from a file extension. Anything that is not .yaml or .yml is treated
// as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// rawSchema is the source representation of a schema.
type rawSchema struct {
	Contract string      `json:"contract"`
	Version  string      `json:"version"`
	Methods  []rawMethod `json:"methods"`
}

// rawMethod is the source representation of a method. Octra-style interface files put the mutability under "type".
type rawMethod struct {
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Mutability string     `json:"mutability"`
	Type       string     `json:"type"`
	Params     []rawParam `json:"params"`
}

// rawParam is the source representation of a method parameter.
type rawParam struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Example json.RawMessage `json:"example"`
	Max     *uint64         `json:"max"`
}

// Load reads and parses the schema at the provided path. If strict is true, unrecognized parameter type tags are
// rejected with a SchemaError instead of failing synthesis for the declaring method.
func Load(path string, strict bool) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SchemaError{Source: path, Reason: "unable to read source", Cause: errors.WithStack(err)}
	}
	return Parse(data, FormatFromPath(path), path, strict)
}

// Parse parses schema source data in the provided format. The source argument is only used in error messages.
// Returns a *SchemaError if the data is not valid structured data, does not match the interface schema, declares a
// duplicate or unnamed method, an unknown mutability, or an unsupported version.
func Parse(data []byte, format Format, source string, strict bool) (*Schema, error) {
	digest := sha3.NewLegacyKeccak256()
	digest.Write(data)

	jsonData := data
	if format == FormatYAML {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &SchemaError{Source: source, Reason: "source is not valid YAML", Cause: errors.WithStack(err)}
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, &SchemaError{Source: source, Reason: "source cannot be represented as JSON", Cause: errors.WithStack(err)}
		}
		jsonData = converted
	}

	var doc any
	decoder := json.NewDecoder(bytes.NewReader(jsonData))
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, &SchemaError{Source: source, Reason: "source is not valid JSON", Cause: errors.WithStack(err)}
	}
	if err := validateStructure(doc); err != nil {
		return nil, &SchemaError{Source: source, Reason: "source does not match the interface schema", Cause: err}
	}

	var raw rawSchema
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil, &SchemaError{Source: source, Reason: "unable to decode source", Cause: errors.WithStack(err)}
	}

	s := &Schema{
		contract: raw.Contract,
		methods:  make([]MethodSpec, 0, len(raw.Methods)),
		digest:   hex.EncodeToString(digest.Sum(nil)),
	}

	if raw.Version != "" {
		version, err := semver.NewVersion(raw.Version)
		if err != nil {
			return nil, &SchemaError{Source: source, Reason: "malformed version " + raw.Version, Cause: errors.WithStack(err)}
		}
		constraint, err := semver.NewConstraint(SupportedVersions)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if !constraint.Check(version) {
			return nil, &SchemaError{Source: source, Reason: "version " + raw.Version + " is outside the supported range " + SupportedVersions}
		}
		s.version = version
	}

	seen := make(map[string]struct{}, len(raw.Methods))
	for i, rm := range raw.Methods {
		method, err := parseMethod(rm, strict)
		if err != nil {
			return nil, &SchemaError{Source: source, Reason: fmt.Sprintf("method #%d is invalid", i), Cause: err}
		}
		if _, exists := seen[method.Name]; exists {
			return nil, &SchemaError{Source: source, Reason: fmt.Sprintf("duplicate method name %q", method.Name)}
		}
		seen[method.Name] = struct{}{}
		s.methods = append(s.methods, method)
	}

	return s, nil
}

// parseMethod converts a source method into a MethodSpec.
func parseMethod(rm rawMethod, strict bool) (MethodSpec, error) {
	if strings.TrimSpace(rm.Name) == "" {
		return MethodSpec{}, errors.New("method has no name")
	}

	tag := rm.Mutability
	if tag == "" {
		tag = rm.Type
	}
	if tag == "" {
		return MethodSpec{}, errors.Errorf("method %q declares no mutability", rm.Name)
	}
	mutability, err := ParseMutability(tag)
	if err != nil {
		return MethodSpec{}, errors.Wrapf(err, "method %q", rm.Name)
	}

	method := MethodSpec{
		Name:       rm.Name,
		Label:      rm.Label,
		Mutability: mutability,
		Params:     make([]Param, 0, len(rm.Params)),
	}
	for _, rp := range rm.Params {
		paramType, ok := ParseParamType(rp.Type)
		if !ok {
			if strict {
				return MethodSpec{}, errors.Errorf("method %q parameter %q has unrecognized type %q", rm.Name, rp.Name, rp.Type)
			}
			paramType = ParamTypeUnknown
		}
		example, err := parseExample(rp.Example)
		if err != nil {
			return MethodSpec{}, errors.Wrapf(err, "method %q parameter %q", rm.Name, rp.Name)
		}
		method.Params = append(method.Params, Param{
			Name:    rp.Name,
			Type:    paramType,
			TypeTag: rp.Type,
			Example: example,
			Max:     rp.Max,
		})
	}
	return method, nil
}

// parseExample turns a raw example value into its string form. Strings are unquoted; numbers and booleans keep their
// literal text.
func parseExample(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, errors.WithStack(err)
		}
		return &s, nil
	}
	s := string(trimmed)
	return &s, nil
}
