// Package tools defines the tools available to the conversation agent.
// Each tool is a narrow, synchronous, side-effecting operation with a
// fixed argument contract. Tool failures are captured into an error
// result map, never raised, so one bad call cannot abort a turn.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/careloop/careloop/internal/events"
	"github.com/careloop/careloop/internal/llm"
	"github.com/careloop/careloop/internal/search"
	"github.com/careloop/careloop/internal/store"
)

// Handler executes one tool call. The returned map is serialized and
// fed back to the model as the tool result.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool is a callable tool exposed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// Messenger sends a text message to a phone number.
type Messenger interface {
	Send(ctx context.Context, phone, text string) error
}

// Registry holds the available tools and the collaborators their
// handlers need.
type Registry struct {
	tools     map[string]*Tool
	store     *store.Store
	messenger Messenger
	search    *search.Manager
	bus       *events.Bus
	logger    *slog.Logger
	now       func() time.Time
}

// NewRegistry creates a registry with all built-in tools registered.
// messenger and searchMgr may be nil; the corresponding tools then
// return speakable unavailability results.
func NewRegistry(st *store.Store, messenger Messenger, searchMgr *search.Manager, bus *events.Bus, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:     make(map[string]*Tool),
		store:     st,
		messenger: messenger,
		search:    searchMgr,
		bus:       bus,
		logger:    logger.With("component", "tools"),
		now:       time.Now,
	}
	r.registerReminderTools()
	r.registerHealthTools()
	r.registerCaregiverTools()
	r.registerAudioTools()
	r.registerHistoryTools()
	r.registerWhatsAppTools()
	r.registerPatientContextTools()
	r.registerWebSearchTools()
	r.registerTemporalTools()
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Definitions returns the tool contracts for the model, in stable
// name order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

// Execute runs a tool by name. An unknown name or a handler failure
// yields an error-shaped result map rather than an error return, so
// the caller can always feed something back to the model.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) map[string]any {
	tool := r.tools[name]
	if tool == nil {
		return map[string]any{"error": fmt.Sprintf("Tool %s not found", name)}
	}

	start := r.now()
	result, err := tool.Handler(ctx, args)
	ok := err == nil
	r.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindToolDone,
		Data: map[string]any{
			"tool":        name,
			"ok":          ok,
			"duration_ms": r.now().Sub(start).Milliseconds(),
		},
	})
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return map[string]any{"error": err.Error()}
	}
	return result
}

// Argument helpers. The model sends JSON, so numbers arrive as
// float64 and everything may be absent.

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}
