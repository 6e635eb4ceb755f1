package completion

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// The registry publishes its schemas in its own dialect: per-field
// "required": true, "list"/"dict" types with a nested "schema", and
// "min"/"max"/"minlength" bounds. convertRegistrySchema maps that dialect
// onto an openapi3 schema; keys with no counterpart are dropped.
func convertRegistrySchema(raw []byte) (*openapi3.Schema, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing registry schema: %w", err)
	}
	return convertObject(doc), nil
}

func convertObject(def map[string]any) *openapi3.Schema {
	s := openapi3.NewObjectSchema()

	props, _ := def["properties"].(map[string]any)
	if props == nil {
		// dict fields nest their members under "schema"
		props, _ = def["schema"].(map[string]any)
	}

	required := map[string]bool{}
	if list, ok := def["required"].([]any); ok {
		for _, r := range list {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		field, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		if req, ok := field["required"].(bool); ok && req {
			required[name] = true
		}
		s.WithProperty(name, convertField(field))
	}

	for name := range required {
		s.Required = append(s.Required, name)
	}
	sort.Strings(s.Required)
	return s
}

func convertField(def map[string]any) *openapi3.Schema {
	var s *openapi3.Schema
	kind, _ := def["type"].(string)
	switch kind {
	case "string", "uuid", "datetime", "date":
		s = openapi3.NewStringSchema()
	case "integer":
		s = openapi3.NewIntegerSchema()
	case "number", "float":
		s = openapi3.NewFloat64Schema()
	case "boolean":
		s = openapi3.NewBoolSchema()
	case "list", "array":
		s = openapi3.NewArraySchema()
		item, _ := def["schema"].(map[string]any)
		if item == nil {
			item, _ = def["items"].(map[string]any)
		}
		if item != nil {
			s.WithItems(convertField(item))
		} else {
			s.WithItems(&openapi3.Schema{})
		}
	case "dict", "object":
		s = convertObject(def)
	default:
		s = &openapi3.Schema{}
	}

	if values, ok := def["enum"].([]any); ok && len(values) > 0 {
		s.WithEnum(values...)
	}
	if v, ok := number(def, "min", "minimum"); ok {
		s.WithMin(v)
	}
	if v, ok := number(def, "max", "maximum"); ok {
		s.WithMax(v)
	}
	if v, ok := number(def, "minlength", "minLength"); ok && v >= 0 {
		s.WithMinLength(int64(v))
	}
	if v, ok := number(def, "maxlength", "maxLength"); ok && v >= 0 {
		s.WithMaxLength(int64(v))
	}
	return s
}

func number(def map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := def[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}
