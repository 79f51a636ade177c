// Package agent drives the kiosk conversation: one persistent dialogue
// per session, environmental grounding before each turn, and the
// tool-call resolution loop.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/careloop/careloop/internal/events"
	"github.com/careloop/careloop/internal/llm"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/prompts"
	"github.com/careloop/careloop/internal/store"
	"github.com/careloop/careloop/internal/tools"
)

// Spoken fallbacks for failures the patient should never see raw.
const (
	msgNotConfigured = "I'm sorry, I'm not fully set up yet. Please ask your caregiver to check my configuration."
	msgModelFailure  = "I'm sorry, I'm having trouble thinking right now. Could you say that again in a moment?"
	msgLoopExceeded  = "I'm sorry, I got a little tangled up there. Could we try that again?"
)

// session is the live per-session conversation handle. The system
// prompt is composed once at creation and stays fixed for the session.
type session struct {
	mu      sync.Mutex
	system  string
	history []llm.Message
}

// Agent owns all live sessions and processes user turns to completion.
type Agent struct {
	llm           llm.Client
	registry      *tools.Registry
	store         *store.Store
	bus           *events.Bus
	logger        *slog.Logger
	maxIterations int
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates an agent. maxIterations bounds the tool-call loop per
// turn; zero or negative selects the default of 8.
func New(client llm.Client, registry *tools.Registry, st *store.Store, bus *events.Bus, maxIterations int, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if maxIterations <= 0 {
		maxIterations = 8
	}
	return &Agent{
		llm:           client,
		registry:      registry,
		store:         st,
		bus:           bus,
		logger:        logger.With("component", "agent"),
		maxIterations: maxIterations,
		now:           time.Now,
		sessions:      make(map[string]*session),
	}
}

// ProcessUserMessage handles one user utterance to completion,
// including any tool invocations, and returns finished assistant text
// ready for speech synthesis. Failures degrade to spoken apology
// sentences; the only error returned is an empty session id.
func (a *Agent) ProcessUserMessage(ctx context.Context, sessionID, userText string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("session id is required")
	}

	sess := a.session(sessionID)
	// One turn at a time per session. Different sessions never contend.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	start := a.now()
	a.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindRequestStart,
		Data:   map[string]any{"session_id": sessionID, "message_len": len(userText)},
	})

	// The raw user text is the durable record; the grounding block
	// below is per-turn ephemera.
	if err := a.store.AppendToConversation(sessionID, llm.RoleUser, userText); err != nil {
		a.logger.Warn("could not persist user turn", "session", sessionID, "error", err)
	}

	augmented := a.buildEnvContext(a.now()) + "\n\n" + userText
	sess.history = append(sess.history, llm.Message{Role: llm.RoleUser, Content: augmented})

	reply, iterations, ok := a.resolve(ctx, sessionID, sess)

	// A failed turn leaves the user message recorded with no assistant
	// reply; the spoken apology is not part of the durable dialogue.
	if ok {
		if err := a.store.AppendToConversation(sessionID, llm.RoleAssistant, reply); err != nil {
			a.logger.Warn("could not persist assistant turn", "session", sessionID, "error", err)
		}
	}

	a.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindRequestComplete,
		Data: map[string]any{
			"session_id": sessionID,
			"iterations": iterations,
			"elapsed_ms": a.now().Sub(start).Milliseconds(),
		},
	})
	return reply, nil
}

// resolve runs the tool-call loop until the model produces plain text
// or the iteration cap is reached. It returns spoken text, the number
// of model calls made, and whether the turn completed cleanly.
func (a *Agent) resolve(ctx context.Context, sessionID string, sess *session) (string, int, bool) {
	defs := a.registry.Definitions()

	for iter := 1; iter <= a.maxIterations; iter++ {
		resp, err := a.llm.Chat(ctx, sess.system, sess.history, defs)
		if err != nil {
			if err == llm.ErrNotConfigured {
				return msgNotConfigured, iter, false
			}
			a.logger.Error("model call failed", "session", sessionID, "iter", iter, "error", err)
			return msgModelFailure, iter, false
		}

		if len(resp.ToolCalls) == 0 {
			sess.history = append(sess.history, llm.Message{Role: llm.RoleAssistant, Content: resp.Text})
			return sanitizeForSpeech(resp.Text), iter, true
		}

		sess.history = append(sess.history, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		// Execute the whole batch, then feed all results back together.
		for _, call := range resp.ToolCalls {
			a.bus.Publish(events.Event{
				Source: events.SourceAgent,
				Kind:   events.KindToolCall,
				Data:   map[string]any{"session_id": sessionID, "tool": call.Name},
			})
			result := a.registry.Execute(ctx, call.Name, call.Arguments)
			payload, err := json.Marshal(result)
			if err != nil {
				payload = []byte(fmt.Sprintf(`{"error": %q}`, err.Error()))
			}
			sess.history = append(sess.history, llm.Message{
				Role:     llm.RoleTool,
				ToolName: call.Name,
				Content:  string(payload),
			})
		}
	}

	a.logger.Warn("tool loop exceeded iteration cap", "session", sessionID, "cap", a.maxIterations)
	return msgLoopExceeded, a.maxIterations, false
}

// session returns the live handle for an id, creating it with a fresh
// system prompt snapshot on first use.
func (a *Agent) session(id string) *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[id]; ok {
		return s
	}

	pcJSON, err := json.MarshalIndent(a.store.PatientContext(), "", "  ")
	if err != nil {
		pcJSON = []byte("{}")
	}
	s := &session{system: prompts.ComposeSystem(string(pcJSON))}
	a.sessions[id] = s
	a.logger.Info("session created", "session", id)
	return s
}

// SessionHistory returns the live session's renderable turns. Pure
// tool-call turns and tool results are invisible in this view. Unknown
// sessions yield an empty history, not an error.
func (a *Agent) SessionHistory(sessionID string) []model.HistoryItem {
	a.mu.Lock()
	sess, ok := a.sessions[sessionID]
	a.mu.Unlock()
	if !ok {
		return []model.HistoryItem{}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	items := make([]model.HistoryItem, 0, len(sess.history))
	for _, msg := range sess.history {
		if msg.Role == llm.RoleTool || msg.Content == "" {
			continue
		}
		role := msg.Role
		if role != llm.RoleUser {
			role = llm.RoleAssistant
		}
		items = append(items, model.HistoryItem{Role: role, Content: msg.Content})
	}
	return items
}

// InjectAssistantMessage records a proactive assistant utterance (a
// routine speaking first) into a session's live history and durable
// log. The patient's next reply then lands in context.
func (a *Agent) InjectAssistantMessage(sessionID, text string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	sess := a.session(sessionID)
	sess.mu.Lock()
	sess.history = append(sess.history, llm.Message{Role: llm.RoleAssistant, Content: text})
	sess.mu.Unlock()

	return a.store.AppendToConversation(sessionID, llm.RoleAssistant, text)
}
