package mcp

import (
	"context"

	"webpilot/internal/domain"
)

// Client is the in-process counterpart of the server: callers living in the
// same process invoke the catalog directly, with no transport and no
// serialization. Catalog errors (unknown tool, invalid parameters) propagate
// as returned errors instead of wire error codes.
type Client struct {
	cat domain.Catalog
}

func NewClient(cat domain.Catalog) *Client {
	return &Client{cat: cat}
}

// ListTools returns the catalog snapshot in catalog order.
func (c *Client) ListTools() []domain.ToolDescriptor {
	return c.cat.List()
}

// CallTool executes a tool against the catalog's current context binding.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (domain.ToolResult, error) {
	return c.cat.Execute(ctx, name, args, nil)
}
