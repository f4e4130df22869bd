package mcp

import (
	"testing"

	"webpilot/internal/domain"
)

func TestToolToWire_RequiredCollectsNonOptional(t *testing.T) {
	d := domain.ToolDescriptor{
		Name:        "type_text",
		Description: "Type text into an input",
		Params: []domain.ParamSpec{
			{Name: "ref", Type: domain.ParamString, Description: "element ref"},
			{Name: "text", Type: domain.ParamString, Description: "text to type"},
			{Name: "clear", Type: domain.ParamBoolean, Description: "clear first", Optional: true},
		},
	}

	w := ToolToWire(d)
	if w.InputSchema["type"] != "object" {
		t.Fatalf("schema type must be object, got %v", w.InputSchema["type"])
	}

	required, ok := w.InputSchema["required"].([]string)
	if !ok {
		t.Fatalf("required missing or wrong type: %T", w.InputSchema["required"])
	}
	if len(required) != 2 || required[0] != "ref" || required[1] != "text" {
		t.Fatalf("unexpected required list: %v", required)
	}

	props := w.InputSchema["properties"].(map[string]any)
	if len(props) != 3 {
		t.Fatalf("expected 3 properties, got %d", len(props))
	}
}

func TestToolToWire_AllOptionalOmitsRequired(t *testing.T) {
	d := domain.ToolDescriptor{
		Name: "screenshot",
		Params: []domain.ParamSpec{
			{Name: "full", Type: domain.ParamBoolean, Optional: true},
		},
	}
	w := ToolToWire(d)
	if _, present := w.InputSchema["required"]; present {
		t.Fatal("required must be absent when every parameter is optional")
	}
}

func TestToolToWire_NoParams(t *testing.T) {
	w := ToolToWire(domain.ToolDescriptor{Name: "list_tabs"})
	if _, present := w.InputSchema["required"]; present {
		t.Fatal("required must be absent for a parameterless tool")
	}
	props := w.InputSchema["properties"].(map[string]any)
	if len(props) != 0 {
		t.Fatalf("expected no properties, got %d", len(props))
	}
}

func TestToolToWire_EnumAndArrayItems(t *testing.T) {
	d := domain.ToolDescriptor{
		Name: "pick",
		Params: []domain.ParamSpec{
			{Name: "mode", Type: domain.ParamString, Enum: []string{"fast", "slow"}},
			{Name: "tags", Type: domain.ParamArray},
		},
	}
	w := ToolToWire(d)
	props := w.InputSchema["properties"].(map[string]any)

	mode := props["mode"].(map[string]any)
	enum, ok := mode["enum"].([]string)
	if !ok || len(enum) != 2 {
		t.Fatalf("enum not carried: %v", mode["enum"])
	}

	tags := props["tags"].(map[string]any)
	items, ok := tags["items"].(map[string]any)
	if !ok || items["type"] != "string" {
		t.Fatalf("array items must default to string, got %v", tags["items"])
	}
}

func TestResultToWire_Success(t *testing.T) {
	w := ResultToWire(domain.Succeed("done"))
	if w.IsError {
		t.Fatal("success must not set isError")
	}
	if len(w.Content) != 1 || w.Content[0].Type != "text" || w.Content[0].Text != "done" {
		t.Fatalf("unexpected content: %+v", w.Content)
	}
}

func TestResultToWire_StructuredResult(t *testing.T) {
	w := ResultToWire(domain.SucceedWith(map[string]any{"a": 1}))
	want := "{\n  \"a\": 1\n}"
	if w.Content[0].Text != want {
		t.Fatalf("expected pretty-printed JSON %q, got %q", want, w.Content[0].Text)
	}
}

func TestResultToWire_StringResultVerbatim(t *testing.T) {
	w := ResultToWire(domain.SucceedWith("plain text"))
	if w.Content[0].Text != "plain text" {
		t.Fatalf("string results must pass through verbatim, got %q", w.Content[0].Text)
	}
}

func TestResultToWire_Failure(t *testing.T) {
	w := ResultToWire(domain.Failf("element %d not found", 4))
	if !w.IsError {
		t.Fatal("failure must set isError")
	}
	if w.Content[0].Text != "element 4 not found" {
		t.Fatalf("unexpected error text %q", w.Content[0].Text)
	}
}

func TestResultToWire_FailureWithoutMessage(t *testing.T) {
	w := ResultToWire(domain.ToolResult{Success: false})
	if w.Content[0].Text != "Tool execution failed" {
		t.Fatalf("expected fallback failure text, got %q", w.Content[0].Text)
	}
}

func TestFunctionSchemas_PreservesSchema(t *testing.T) {
	descs := []domain.ToolDescriptor{
		{
			Name:        "navigate",
			Description: "Load a URL",
			Params:      []domain.ParamSpec{{Name: "url", Type: domain.ParamString}},
		},
	}
	defs := FunctionSchemas(descs)
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	if defs[0].Name != "navigate" || defs[0].Description != "Load a URL" {
		t.Fatalf("identity fields lost: %+v", defs[0])
	}
	if defs[0].Parameters["type"] != "object" {
		t.Fatal("parameters must carry the input schema verbatim")
	}
}
