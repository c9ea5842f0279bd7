package fhir_etl

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://fhir-etl.fhir-aggregator.org/schemas/"

var ErrUnknownResourceType = errors.New("unknown resource type")

// Validator checks a resource against the grammar of its type and returns
// the normalized resource.
type Validator interface {
	Validate(resourceType string, r Resource) (Resource, error)
}

// SchemaError reports why a resource failed validation. Path is the dotted
// location of the offending field, empty for the resource itself.
type SchemaError struct {
	ResourceType string
	Path         string
	Message      string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.ResourceType, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.ResourceType, e.Path, e.Message)
}

// SchemaValidator validates resources against the JSON schemas embedded in
// the binary, one per supported resource type.
type SchemaValidator struct {
	schemas map[string]*jsonschema.Schema
}

func NewSchemaValidator() (*SchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("Failed to read embedded schemas: %w", err)
	}
	var types []string
	for _, e := range entries {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("Failed to read schema %s: %w", e.Name(), err)
		}
		if err := c.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("Failed to add schema %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if name != "datatypes" {
			types = append(types, name)
		}
	}
	schemas := make(map[string]*jsonschema.Schema, len(types))
	for _, t := range types {
		s, err := c.Compile(schemaBaseURL + t + ".json")
		if err != nil {
			return nil, fmt.Errorf("Failed to compile schema %s: %w", t, err)
		}
		schemas[t] = s
	}
	return &SchemaValidator{schemas: schemas}, nil
}

// Types returns the resource types the validator knows, sorted.
func (v *SchemaValidator) Types() []string {
	types := make([]string, 0, len(v.schemas))
	for t := range v.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (v *SchemaValidator) Validate(resourceType string, r Resource) (Resource, error) {
	schema, ok := v.schemas[resourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, resourceType)
	}
	if rt := r.ResourceType(); rt != resourceType {
		return nil, &SchemaError{ResourceType: resourceType, Path: "resourceType", Message: fmt.Sprintf("expected %q, got %q", resourceType, rt)}
	}
	normalized, err := ToResource(r)
	if err != nil {
		return nil, &SchemaError{ResourceType: resourceType, Message: err.Error()}
	}
	if err := schema.Validate(map[string]any(normalized)); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := deepestCause(ve)
			return nil, &SchemaError{ResourceType: resourceType, Path: pointerToPath(leaf.InstanceLocation), Message: leaf.Message}
		}
		return nil, &SchemaError{ResourceType: resourceType, Message: err.Error()}
	}
	return normalized, nil
}

func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return ve
	}
	var best *jsonschema.ValidationError
	for _, c := range ve.Causes {
		leaf := deepestCause(c)
		if best == nil || len(leaf.InstanceLocation) > len(best.InstanceLocation) {
			best = leaf
		}
	}
	return best
}

// pointerToPath turns "/extension/0/url" into "extension.0.url".
func pointerToPath(pointer string) string {
	p := strings.TrimPrefix(pointer, "/")
	p = strings.ReplaceAll(p, "/", ".")
	p = strings.ReplaceAll(p, "~1", "/")
	return strings.ReplaceAll(p, "~0", "~")
}
