package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache compiles and caches tool input schemas by tool name, so
// repeated executeTool calls against the same tool don't recompile its
// schema every time.
type schemaCache struct {
	mu     sync.Mutex
	byName map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{byName: make(map[string]*jsonschema.Schema)}
}

func (c *schemaCache) compile(toolName string, raw json.RawMessage) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.byName[toolName]; ok {
		return s, nil
	}
	if len(raw) == 0 {
		return nil, nil
	}

	resourceName := toolName + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	c.byName[toolName] = schema
	return schema, nil
}

func (c *schemaCache) invalidate(toolName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byName, toolName)
}

func (c *schemaCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName = make(map[string]*jsonschema.Schema)
}

// validateArguments validates args against tool's inputSchema. A nil/empty
// schema is treated as "anything goes". On failure the error message
// includes any enum/const-derived allowed values so the controller's
// Action-Input retry has something concrete to work from.
func validateArguments(toolName string, inputSchema json.RawMessage, args map[string]any, cache *schemaCache) error {
	schema, err := cache.compile(toolName, inputSchema)
	if err != nil {
		return err
	}
	if schema == nil {
		return nil
	}

	// jsonschema validates against generic Go values decoded the way
	// encoding/json would decode them (map[string]any / []any / float64),
	// so round-trip args through JSON rather than passing the map directly.
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	var instance any
	if err := json.Unmarshal(encoded, &instance); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return describeValidationError(err, inputSchema)
	}
	return nil
}

// describeValidationError enriches a schema validation failure with allowed
// enum values, normalizing both the plain "enum" encoding and the
// "anyOf": [{"const": ...}, ...] encoding some tool catalogs use instead.
func describeValidationError(err error, inputSchema json.RawMessage) error {
	values := allowedEnumValues(inputSchema)
	if len(values) == 0 {
		return fmt.Errorf("argument validation failed: %w", err)
	}
	return fmt.Errorf("argument validation failed: %w (allowed values: %s)", err, strings.Join(values, ", "))
}

func allowedEnumValues(inputSchema json.RawMessage) []string {
	var schema map[string]any
	if err := json.Unmarshal(inputSchema, &schema); err != nil {
		return nil
	}
	props, _ := schema["properties"].(map[string]any)
	var values []string
	for _, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if enum, ok := prop["enum"].([]any); ok {
			for _, v := range enum {
				values = append(values, fmt.Sprintf("%v", v))
			}
		}
		if anyOf, ok := prop["anyOf"].([]any); ok {
			for _, entry := range anyOf {
				m, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				if c, ok := m["const"]; ok {
					values = append(values, fmt.Sprintf("%v", c))
				}
			}
		}
	}
	return values
}
