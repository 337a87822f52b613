package tool

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
)

// ValidateArgs checks an open argument map against a tool's declared
// schema: required parameters must be present and primitive types must
// match. A mismatch is a *ToolExecutionError, the tool contract's defined
// failure mode for bad arguments.
func ValidateArgs(s contractx.ToolSchema, args map[string]any) error {
	for name, p := range s.Params {
		v, ok := args[name]
		if !ok {
			if p.Required {
				return contractx.NewToolExecutionError(s.Name, "missing required argument %q", name)
			}
			continue
		}
		if err := checkType(v, p.Type); err != nil {
			return contractx.NewToolExecutionError(s.Name, "argument %q: %v", name, err)
		}
	}
	return nil
}

func checkType(v any, t contractx.ParamType) error {
	switch t {
	case contractx.ParamString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case contractx.ParamNumber, contractx.ParamInteger:
		switch v.(type) {
		case float64, float32, int, int64:
		default:
			return fmt.Errorf("expected number, got %T", v)
		}
	case contractx.ParamBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
	}
	return nil
}

// StringArg extracts a trimmed string argument, with the schema-mismatch
// failure mode applied.
func StringArg(toolName string, args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", contractx.NewToolExecutionError(toolName, "%s is required", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", contractx.NewToolExecutionError(toolName, "%s must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

// SchemaJSON renders a tool schema as the JSON-schema object providers
// with a raw parameters field expect.
func SchemaJSON(s contractx.ToolSchema) map[string]any {
	props := make(map[string]any, len(s.Params))
	var required []string
	for name, p := range s.Params {
		props[name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// EinoToolInfo converts a tool schema to eino's tool description.
func EinoToolInfo(s contractx.ToolSchema) *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(s.Params))
	for name, p := range s.Params {
		params[name] = &schema.ParameterInfo{
			Type:     einoDataType(p.Type),
			Desc:     p.Description,
			Required: p.Required,
		}
	}
	return &schema.ToolInfo{
		Name:        s.Name,
		Desc:        s.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

func einoDataType(t contractx.ParamType) schema.DataType {
	switch t {
	case contractx.ParamNumber:
		return schema.Number
	case contractx.ParamInteger:
		return schema.Integer
	case contractx.ParamBoolean:
		return schema.Boolean
	default:
		return schema.String
	}
}

// Schemas collects the declared schema of each tool.
func Schemas(tools []contractx.Tool) []contractx.ToolSchema {
	out := make([]contractx.ToolSchema, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Schema())
	}
	return out
}
