package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// mappingSchema validates custom layout-pair definition files before any
// characters reach the table builder. Each pair entry must carry exactly one
// character on each side.
const mappingSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "pairs"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "pairs": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": {"type": "string", "minLength": 1},
          "to": {"type": "string", "minLength": 1}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var compiledMappingSchema = jsonschema.MustCompileString("mapping.schema.json", mappingSchema)

// mappingFile is the on-disk shape of a custom layout pair definition.
type mappingFile struct {
	Name  string `json:"name"`
	Pairs []struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"pairs"`
}

// LoadCustomMapping reads a custom positional mapping from a JSON file,
// validates it against the embedded schema, and builds a Mapping with the
// same involution check applied to the built-in tables. from-side characters
// are the Latin-layout keys, to-side the Cyrillic-layout ones.
func LoadCustomMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mapping file: %w", err)
	}
	if err := compiledMappingSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate mapping file: %w", err)
	}

	var mf mappingFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse mapping file: %w", err)
	}

	forward := make(map[rune]rune, len(mf.Pairs))
	for _, p := range mf.Pairs {
		from, fromLen := utf8.DecodeRuneInString(p.From)
		to, toLen := utf8.DecodeRuneInString(p.To)
		if fromLen != len(p.From) || toLen != len(p.To) {
			return nil, fmt.Errorf("mapping %q: pair %q -> %q must be single characters", mf.Name, p.From, p.To)
		}
		if _, dup := forward[from]; dup {
			return nil, fmt.Errorf("mapping %q: duplicate key %q", mf.Name, p.From)
		}
		forward[from] = to
	}

	m, err := newMapping(forward)
	if err != nil {
		return nil, fmt.Errorf("mapping %q: %w", mf.Name, err)
	}
	return m, nil
}
