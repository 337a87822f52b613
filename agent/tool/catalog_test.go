package tool

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/scriptautomation123/dexter/agent/contract"
)

func TestMathSchema(t *testing.T) {
	t.Parallel()

	s := NewMath().Schema()
	if s.Name != MathToolName {
		t.Fatalf("unexpected name: %s", s.Name)
	}
	p, ok := s.Params["expression"]
	if !ok {
		t.Fatal("expression parameter missing")
	}
	if !p.Required || p.Type != contractx.ParamString {
		t.Fatalf("unexpected expression param: %+v", p)
	}
}

func TestMathInvoke(t *testing.T) {
	t.Parallel()

	out, err := NewMath().Invoke(context.Background(), map[string]any{
		"expression": "2 + 3 * (4 - 1)",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "2 + 3 * (4 - 1) = 11" {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestMathInvokeInvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := NewMath().Invoke(context.Background(), map[string]any{
		"expression": "2 + abc",
	})
	var toolErr *contractx.ToolExecutionError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
	if toolErr.Tool != MathToolName {
		t.Fatalf("unexpected tool: %s", toolErr.Tool)
	}
}

func TestMathInvokeMissingArgument(t *testing.T) {
	t.Parallel()

	_, err := NewMath().Invoke(context.Background(), map[string]any{})
	var toolErr *contractx.ToolExecutionError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
}

func TestValidateArgs(t *testing.T) {
	t.Parallel()

	s := contractx.ToolSchema{
		Name: "quote.lookup",
		Params: map[string]contractx.Param{
			"symbol": {Type: contractx.ParamString, Required: true},
			"limit":  {Type: contractx.ParamInteger},
		},
	}

	if err := ValidateArgs(s, map[string]any{"symbol": "AAPL", "limit": float64(5)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateArgs(s, map[string]any{"limit": float64(5)}); err == nil {
		t.Fatal("expected missing-required error")
	}
	if err := ValidateArgs(s, map[string]any{"symbol": 42}); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestSchemaJSON(t *testing.T) {
	t.Parallel()

	out := SchemaJSON(NewMath().Schema())
	if out["type"] != "object" {
		t.Fatalf("unexpected schema type: %v", out["type"])
	}
	required, ok := out["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "expression" {
		t.Fatalf("unexpected required list: %v", out["required"])
	}
}

func TestEinoToolInfo(t *testing.T) {
	t.Parallel()

	info := EinoToolInfo(NewMath().Schema())
	if info.Name != MathToolName {
		t.Fatalf("unexpected name: %s", info.Name)
	}
	if info.ParamsOneOf == nil {
		t.Fatal("params missing")
	}
}
