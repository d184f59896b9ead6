package llm

import "sort"

// Schema is a provider-neutral subset of JSON schema used to constrain model output.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Enum        []string
	Minimum     *float64
	Maximum     *float64
}

type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
)

func String(desc string) *Schema { return &Schema{Type: TypeString, Description: desc} }

func Bool(desc string) *Schema { return &Schema{Type: TypeBoolean, Description: desc} }

func Enum(desc string, values ...string) *Schema {
	return &Schema{Type: TypeString, Description: desc, Enum: values}
}

// IntRange is an integer constrained to [min, max].
func IntRange(desc string, min, max float64) *Schema {
	return &Schema{Type: TypeInteger, Description: desc, Minimum: &min, Maximum: &max}
}

func ArrayOf(desc string, items *Schema) *Schema {
	return &Schema{Type: TypeArray, Description: desc, Items: items}
}

// Object builds an object schema in which every listed property is required.
func Object(desc string, props map[string]*Schema) *Schema {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	sort.Strings(required)
	return &Schema{Type: TypeObject, Description: desc, Properties: props, Required: required}
}
