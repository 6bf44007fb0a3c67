package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://veracity.schemas.local/registry.schema.json"

// registrySchema describes the VAR payload. SSR and VAR are accepted as
// aliases of SOURCES and REASONING.
const registrySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "SOURCES":   {"$ref": "#/$defs/sources"},
    "SSR":       {"$ref": "#/$defs/sources"},
    "REASONING": {"$ref": "#/$defs/reasoning"},
    "VAR":       {"$ref": "#/$defs/reasoning"}
  },
  "anyOf": [
    {"required": ["SOURCES"]},
    {"required": ["SSR"]}
  ],
  "$defs": {
    "sources": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["SHI", "Canonical_URI"],
        "properties": {
          "SHI":                 {"type": "string", "pattern": "^[0-9a-fA-F]{10,128}$"},
          "Type":                {"type": "string"},
          "Canonical_URI":       {"type": "string", "minLength": 1},
          "Location_Type":       {"type": "string"},
          "Loc_Selector":        {"type": "string"},
          "Verification_Status": {"enum": ["UNVERIFIED", "VERIFIED"]}
        }
      }
    },
    "reasoning": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["RELATION_ID", "TYPE", "DEP_CLAIMS"],
        "properties": {
          "RELATION_ID":     {"type": "string", "pattern": "^R[0-9]+$"},
          "TYPE":            {"type": "string", "minLength": 1},
          "DEP_CLAIMS":      {"type": "array", "minItems": 1, "items": {"type": "string"}},
          "LOGIC_MODEL":     {"type": "string"},
          "SYNTHESIS_PROSE": {"type": "string"},
          "AUDIT_STATUS":    {"enum": ["PENDING", "AWAITING_JUDGMENT", "VERIFIED_LOGIC", "INSUFFICIENT_LOGIC", "INSUFFICIENT_PREMISE"]},
          "TIMESTAMP":       {"type": "string"},
          "ACTION":          {"enum": ["retained", "removed", "flagged"]}
        }
      }
    }
  }
}`

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, strings.NewReader(registrySchema)); err != nil {
			compileErr = fmt.Errorf("registry schema load failed: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("registry schema compile failed: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}
