package mcp

import (
	"context"
	"errors"
	"testing"

	"webpilot/internal/catalog"
	"webpilot/internal/domain"
)

func TestClient_ListTools(t *testing.T) {
	reg := catalog.NewRegistry(testLogger())
	desc := domain.ToolDescriptor{Name: "ping", Description: "ping"}
	err := reg.Register(stubTool{desc: desc, fn: func(map[string]any) domain.ToolResult {
		return domain.Succeed("pong")
	}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	c := NewClient(reg)
	tools := c.ListTools()
	if len(tools) != 1 || tools[0].Name != "ping" {
		t.Fatalf("tools = %+v", tools)
	}
}

func TestClient_CallTool(t *testing.T) {
	reg := catalog.NewRegistry(testLogger())
	err := reg.Register(stubTool{
		desc: domain.ToolDescriptor{Name: "ping", Description: "ping"},
		fn: func(map[string]any) domain.ToolResult {
			return domain.Succeed("pong")
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	c := NewClient(reg)
	res, err := c.CallTool(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.Success || res.Message != "pong" {
		t.Fatalf("result = %+v", res)
	}
}

// Catalog errors come back as plain errors, never wire codes.
func TestClient_CallUnknownTool(t *testing.T) {
	c := NewClient(catalog.NewRegistry(testLogger()))

	_, err := c.CallTool(context.Background(), "vanish", nil)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
