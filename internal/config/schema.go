package config

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/clapforge.v1.schema.json
var schemaFS embed.FS

const schemaPath = "schemas/clapforge.v1.schema.json"

// Violation is one schema error in a project file.
type Violation struct {
	Field       string
	Description string
}

// SchemaError reports a project file that does not match the schema.
type SchemaError struct {
	Path       string
	Violations []Violation
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Description
	}
	return fmt.Sprintf("%s: %d schema violation(s): %s", e.Path, len(e.Violations), strings.Join(parts, "; "))
}

// ValidateSchema checks YAML project file content against the embedded
// JSON schema. path is only used in the error.
func ValidateSchema(path string, data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	// An empty file is a valid empty object.
	if doc == nil {
		doc = map[string]any{}
	}

	schemaBytes, err := schemaFS.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to load JSON schema: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	schemaErr := &SchemaError{Path: path}
	for _, desc := range result.Errors() {
		schemaErr.Violations = append(schemaErr.Violations, Violation{
			Field:       desc.Field(),
			Description: desc.Description(),
		})
	}
	return schemaErr
}
