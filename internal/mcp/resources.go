package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) sessionPlan(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	p := h.eng.Plan()
	if p == nil {
		return nil, errors.New("no plan loaded")
	}

	summary := map[string]any{
		"plan":      p,
		"selection": h.eng.DefaultSelection(h.now()),
	}
	if r := h.rest(); r != nil {
		summary["rest"] = r
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
