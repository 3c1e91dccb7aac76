package decision

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/decision.schema.json
var decisionSchemaRaw string

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("decision.schema.json", strings.NewReader(decisionSchemaRaw)); err != nil {
			schemaErr = fmt.Errorf("add decision schema: %w", err)
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("decision.schema.json")
	})
	return schemaCompiled, schemaErr
}

// ValidateSchema checks a normalized result document against the embedded
// JSON schema.
func ValidateSchema(doc string) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(doc)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode decisions: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("decision schema: %w", err)
	}
	return nil
}
