// Package mcp exposes a live workout session as MCP tools and resources.
package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/selection"
	"github.com/MaciejGL/shaper/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Engine is the session surface the tools drive. *session.Session
// satisfies it.
type Engine interface {
	Plan() *models.Plan
	DefaultSelection(now time.Time) selection.Selection
	CompleteSet(ctx context.Context, setID string, completed, skipRest bool) error
	Click(setID string)
	ClickState(setID string) session.ToggleState
	Edit(setID string, field session.Field, raw string) models.Draft
	Draft(setID string) (models.Draft, bool)
	UpdateSetLog(ctx context.Context, setID string, reps *int, weight *float64) error
	CompleteExercise(ctx context.Context, exerciseID string, completed bool) error
	AddSet(ctx context.Context, exerciseID string) (*models.Set, error)
	RemoveSet(ctx context.Context, setID string) error
	Rest() (string, time.Duration, bool)
}

// Compile-time check: *session.Session satisfies Engine.
var _ Engine = (*session.Session)(nil)

// New creates an MCP server with all tools and resources registered.
func New(eng Engine, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Shaper", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Shaper live workout session. Read the plan, log sets, edit reps and weight, and add or remove sets. Changes show immediately and are saved in the background."),
	)

	h := &handlers{eng: eng, log: log, now: time.Now}

	s.AddTools(
		server.ServerTool{Tool: toolGetPlan, Handler: h.getPlan},
		server.ServerTool{Tool: toolGetDefaultSelection, Handler: h.getDefaultSelection},
		server.ServerTool{Tool: toolCompleteSet, Handler: h.completeSet},
		server.ServerTool{Tool: toolClickSet, Handler: h.clickSet},
		server.ServerTool{Tool: toolEditSet, Handler: h.editSet},
		server.ServerTool{Tool: toolUpdateSetLog, Handler: h.updateSetLog},
		server.ServerTool{Tool: toolCompleteExercise, Handler: h.completeExercise},
		server.ServerTool{Tool: toolAddSet, Handler: h.addSet},
		server.ServerTool{Tool: toolRemoveSet, Handler: h.removeSet},
	)

	s.AddResources(
		server.ServerResource{Resource: resSessionPlan, Handler: h.sessionPlan},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	eng Engine
	log *slog.Logger
	now func() time.Time
}

var resSessionPlan = mcp.NewResource(
	"shaper://session/plan",
	"Session Plan",
	mcp.WithResourceDescription("The plan as the session currently shows it, including unconfirmed changes, with the default week and day"),
	mcp.WithMIMEType("application/json"),
)
