package schemas

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

//go:embed *.schema.json
var schemaFiles embed.FS

// Embedded schema documents.
const (
	CompanyInfo       = "company_info.schema.json"
	ConversationReply = "conversation_reply.schema.json"
)

var (
	cache   = make(map[string]*Definition)
	cacheMu sync.RWMutex
)

// Definition is a loaded schema document. Raw feeds gojsonschema; Root is the
// same document decoded into the subset the LLM provider understands.
type Definition struct {
	Name string
	Raw  string
	Root *Node
}

// Node is one level of a JSON Schema document.
type Node struct {
	Type        TypeList         `json:"type"`
	Description string           `json:"description,omitempty"`
	Properties  map[string]*Node `json:"properties,omitempty"`
	Items       *Node            `json:"items,omitempty"`
	Required    []string         `json:"required,omitempty"`
	Enum        []string         `json:"enum,omitempty"`
}

// TypeList holds a JSON Schema "type", which may be a single name or a list.
type TypeList []string

// UnmarshalJSON accepts both "string" and ["string", "null"].
func (t *TypeList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TypeList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("type must be a string or an array of strings: %w", err)
	}
	*t = many
	return nil
}

// Primary returns the first non-null type name.
func (t TypeList) Primary() string {
	for _, name := range t {
		if name != "null" {
			return name
		}
	}
	return ""
}

// Nullable reports whether "null" is one of the allowed types.
func (t TypeList) Nullable() bool {
	for _, name := range t {
		if name == "null" {
			return true
		}
	}
	return false
}

// Load returns the embedded schema document with the given file name.
func Load(name string) (*Definition, error) {
	cacheMu.RLock()
	if def, ok := cache[name]; ok {
		cacheMu.RUnlock()
		return def, nil
	}
	cacheMu.RUnlock()

	data, err := schemaFiles.ReadFile(name)
	if err != nil {
		return nil, &SchemaLoadError{Path: name, Message: "schema not found", Cause: err}
	}

	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &SchemaLoadError{Path: name, Message: "invalid schema document", Cause: err}
	}

	def := &Definition{Name: name, Raw: string(data), Root: &root}

	cacheMu.Lock()
	cache[name] = def
	cacheMu.Unlock()

	return def, nil
}

// MustLoad is Load for schemas required at initialization time.
func MustLoad(name string) *Definition {
	def, err := Load(name)
	if err != nil {
		panic(fmt.Sprintf("failed to load schema: %v", err))
	}
	return def
}

// Validate checks a JSON document against the schema.
// It returns a *ValidationError when the document does not match.
func (d *Definition) Validate(jsonContent string) error {
	err := ValidateJSONString(d.Raw, jsonContent)
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		validationErr.Schema = d.Name
		return validationErr
	}
	var loadErr *SchemaLoadError
	if errors.As(err, &loadErr) {
		loadErr.Path = d.Name
		return loadErr
	}
	return err
}
