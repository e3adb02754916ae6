package llm

import (
	"sort"

	"github.com/google/generative-ai-go/genai"

	"github.com/jonathan/company-insights/internal/schemas"
)

// toGenaiSchema converts a JSON Schema node into the subset Gemini accepts for
// response schemas. Open-ended maps keep only their declared properties.
func toGenaiSchema(node *schemas.Node) *genai.Schema {
	if node == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        genaiType(node.Type.Primary()),
		Description: node.Description,
		Nullable:    node.Type.Nullable(),
		Enum:        node.Enum,
		Required:    node.Required,
	}

	if node.Items != nil {
		out.Items = toGenaiSchema(node.Items)
	}

	if len(node.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(node.Properties))
		names := make([]string, 0, len(node.Properties))
		for name := range node.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out.Properties[name] = toGenaiSchema(node.Properties[name])
		}
	}

	return out
}

func genaiType(name string) genai.Type {
	switch name {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeUnspecified
	}
}
