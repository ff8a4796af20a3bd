package relation

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
)

// catalogSchema validates operator-supplied kind files before they
// reach Kind.Validate, so a typoed field name fails loading instead of
// being silently ignored.
const catalogSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["kinds"],
  "additionalProperties": false,
  "properties": {
    "kinds": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "ownerProperty"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "ownerProperty": {"type": "string", "minLength": 1},
          "targetProperty": {"type": "string"},
          "ownerIsArray": {"type": "boolean"},
          "targetIsArray": {"type": "boolean"},
          "statusSide": {"enum": ["", "owner", "target"]},
          "exclusiveWith": {"type": "array", "items": {"type": "string"}},
          "exclusiveMessage": {"type": "string"}
        }
      }
    }
  }
}`

type catalogFile struct {
	Kinds []Kind `yaml:"kinds"`
}

// ParseCatalog reads a YAML kind catalog and merges it over the
// built-in kinds, so deployments can add or override relation kinds
// without a rebuild.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse catalog: %v", errors.ErrInvalidConfig, err)
	}

	jsonDoc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: encode catalog for validation: %v", errors.ErrInvalidConfig, err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(catalogSchema),
		gojsonschema.NewBytesLoader(jsonDoc),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: validate catalog: %v", errors.ErrInvalidConfig, err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("%w: catalog schema violation: %s", errors.ErrInvalidConfig, result.Errors()[0])
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %v", errors.ErrInvalidConfig, err)
	}

	catalog := DefaultCatalog()
	for _, k := range file.Kinds {
		if err := catalog.Register(k); err != nil {
			return nil, fmt.Errorf("%w: kind %q: %v", errors.ErrInvalidConfig, k.Name, err)
		}
	}
	return catalog, nil
}

// LoadCatalog reads a kind catalog from disk. An empty path returns
// the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read catalog %s: %v", errors.ErrInvalidConfig, path, err)
	}
	return ParseCatalog(data)
}
