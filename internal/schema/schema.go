package schema

// JSONSchema represents a JSON Schema for validation compatible with draft-07.
// It doubles as the response-schema contract handed to model providers.
type JSONSchema struct {
	Type                 string                 `json:"type"`
	Description          string                 `json:"description,omitempty"`
	Properties           map[string]SchemaField `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Items                *SchemaField           `json:"items,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
}

// SchemaField represents a field within a schema.
type SchemaField struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Default     any                    `json:"default,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
	MinItems    *int                   `json:"minItems,omitempty"`
	MaxItems    *int                   `json:"maxItems,omitempty"`
	Items       *SchemaField           `json:"items,omitempty"`
	Properties  map[string]SchemaField `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
}

// NewObjectSchema creates a new object schema with the given properties and required fields.
func NewObjectSchema(properties map[string]SchemaField, required []string) JSONSchema {
	return JSONSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// NewStringField creates a new string field with the given description.
func NewStringField(description string) SchemaField {
	return SchemaField{
		Type:        "string",
		Description: description,
	}
}

// NewBooleanField creates a new boolean field with the given description.
func NewBooleanField(description string) SchemaField {
	return SchemaField{
		Type:        "boolean",
		Description: description,
	}
}

// NewArrayField creates a new array field whose elements match items.
func NewArrayField(description string, items SchemaField) SchemaField {
	return SchemaField{
		Type:        "array",
		Description: description,
		Items:       &items,
	}
}

// NewObjectField creates a nested object field.
func NewObjectField(description string, properties map[string]SchemaField, required []string) SchemaField {
	return SchemaField{
		Type:        "object",
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// WithEnum adds enum constraint to the field.
func (f SchemaField) WithEnum(values ...string) SchemaField {
	f.Enum = values
	return f
}

// WithItemBounds adds minItems/maxItems constraints to array fields.
func (f SchemaField) WithItemBounds(min, max int) SchemaField {
	f.MinItems = &min
	f.MaxItems = &max
	return f
}

// ToMap converts the schema to a generic map, the shape most provider SDKs
// accept for tool parameter definitions.
func (s JSONSchema) ToMap() map[string]any {
	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, field := range s.Properties {
			props[name] = field.toMap()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Items != nil {
		out["items"] = s.Items.toMap()
	}
	if s.AdditionalProperties != nil {
		out["additionalProperties"] = *s.AdditionalProperties
	}
	return out
}

func (f SchemaField) toMap() map[string]any {
	out := map[string]any{"type": f.Type}
	if f.Description != "" {
		out["description"] = f.Description
	}
	if len(f.Enum) > 0 {
		out["enum"] = f.Enum
	}
	if f.Default != nil {
		out["default"] = f.Default
	}
	if f.Minimum != nil {
		out["minimum"] = *f.Minimum
	}
	if f.Maximum != nil {
		out["maximum"] = *f.Maximum
	}
	if f.MinItems != nil {
		out["minItems"] = *f.MinItems
	}
	if f.MaxItems != nil {
		out["maxItems"] = *f.MaxItems
	}
	if f.Items != nil {
		out["items"] = f.Items.toMap()
	}
	if len(f.Properties) > 0 {
		props := make(map[string]any, len(f.Properties))
		for name, field := range f.Properties {
			props[name] = field.toMap()
		}
		out["properties"] = props
	}
	if len(f.Required) > 0 {
		out["required"] = f.Required
	}
	return out
}
