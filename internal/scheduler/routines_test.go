package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/careloop/careloop/internal/agent"
	"github.com/careloop/careloop/internal/events"
	"github.com/careloop/careloop/internal/llm"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/store"
	"github.com/careloop/careloop/internal/tools"
)

type cannedLLM struct {
	text string
}

func (c *cannedLLM) Chat(ctx context.Context, system string, messages []llm.Message, defs []llm.ToolDefinition) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Text: c.text}, nil
}

func (c *cannedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return c.text, nil
}

func newTestRoutines(t *testing.T, text string) (*Routines, *store.Store, *agent.Agent) {
	t.Helper()
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	bus := events.New()
	registry := tools.NewRegistry(st, nil, nil, bus, nil)
	ag := agent.New(&cannedLLM{text: text}, registry, st, bus, 8, nil)
	return NewRoutines(ag, st, bus, nil), st, ag
}

func TestMorningBriefing(t *testing.T) {
	r, st, ag := newTestRoutines(t, "Good morning! The sun is out today.")

	if err := r.MorningBriefing(context.Background()); err != nil {
		t.Fatalf("MorningBriefing: %v", err)
	}

	actions := st.DeviceActions()
	if len(actions) != 1 {
		t.Fatalf("actions = %+v", actions)
	}
	if actions[0].Kind != model.ActionSpeakReminder {
		t.Errorf("kind = %q", actions[0].Kind)
	}
	if !strings.Contains(actions[0].TextToSpeak, "Good morning") {
		t.Errorf("text = %q", actions[0].TextToSpeak)
	}

	// The briefing shows up in the kiosk session as an assistant turn.
	history := ag.SessionHistory(DefaultSessionID)
	if len(history) != 1 || history[0].Role != "assistant" {
		t.Errorf("kiosk history = %+v", history)
	}

	// And is mirrored to a caregiver-readable file.
	data, err := os.ReadFile(filepath.Join(st.Dir(), "daily_briefing.txt"))
	if err != nil {
		t.Fatalf("reading briefing file: %v", err)
	}
	if !strings.Contains(string(data), "Good morning") {
		t.Errorf("briefing file = %q", data)
	}
}

func TestCognitiveGame(t *testing.T) {
	r, st, ag := newTestRoutines(t, "irrelevant")

	if err := r.CognitiveGame(context.Background()); err != nil {
		t.Fatalf("CognitiveGame: %v", err)
	}

	actions := st.DeviceActions()
	if len(actions) != 1 || actions[0].Kind != model.ActionProposeExercise {
		t.Fatalf("actions = %+v", actions)
	}
	if history := ag.SessionHistory(DefaultSessionID); len(history) != 1 {
		t.Errorf("kiosk history = %+v", history)
	}
}
