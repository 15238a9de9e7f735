package schema

import (
	"bytes"
	_ "embed"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// interfaceSchemaURL is the resource name the embedded JSON Schema is registered under.
const interfaceSchemaURL = "https://abirunner.local/schema/interface.schema.json"

//go:embed interface.schema.json
var interfaceSchemaSource []byte

var (
	interfaceSchemaOnce     sync.Once
	interfaceSchema         *jsonschema.Schema
	interfaceSchemaCompiled error
)

// compiledInterfaceSchema compiles the embedded JSON Schema once and returns it.
func compiledInterfaceSchema() (*jsonschema.Schema, error) {
	interfaceSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(interfaceSchemaURL, bytes.NewReader(interfaceSchemaSource)); err != nil {
			interfaceSchemaCompiled = errors.WithStack(err)
			return
		}
		interfaceSchema, interfaceSchemaCompiled = c.Compile(interfaceSchemaURL)
	})
	return interfaceSchema, interfaceSchemaCompiled
}

// validateStructure checks a decoded schema document against the embedded JSON Schema. The document must have been
// decoded with json.Number for numbers so the validator sees integers exactly.
func validateStructure(doc any) error {
	compiled, err := compiledInterfaceSchema()
	if err != nil {
		return err
	}
	return compiled.Validate(doc)
}
