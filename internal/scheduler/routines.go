package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/careloop/careloop/internal/agent"
	"github.com/careloop/careloop/internal/events"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/prompts"
	"github.com/careloop/careloop/internal/store"
)

// DefaultSessionID is the kiosk's own conversation, where proactive
// routines speak.
const DefaultSessionID = "kiosk"

// Routines are the proactive daily interactions: the morning briefing
// and the afternoon cognitive game. Both speak first, without waiting
// for the patient.
type Routines struct {
	agent  *agent.Agent
	store  *store.Store
	bus    *events.Bus
	logger *slog.Logger
}

// NewRoutines creates the routine runner.
func NewRoutines(a *agent.Agent, st *store.Store, bus *events.Bus, logger *slog.Logger) *Routines {
	if logger == nil {
		logger = slog.Default()
	}
	return &Routines{
		agent:  a,
		store:  st,
		bus:    bus,
		logger: logger.With("component", "routines"),
	}
}

// MorningBriefing asks the agent to research weather and good news,
// then queues the result for the kiosk to speak.
func (r *Routines) MorningBriefing(ctx context.Context) error {
	r.bus.Publish(events.Event{
		Source: events.SourceRoutine,
		Kind:   events.KindRoutineStart,
		Data:   map[string]any{"routine": "morning_briefing"},
	})

	// The briefing runs in its own session so the research exchange
	// does not clutter the patient's dialogue.
	briefing, err := r.agent.ProcessUserMessage(ctx, "routine_morning", prompts.MorningBriefing)
	ok := err == nil
	if ok {
		err = r.deliver(briefing, model.ActionSpeakReminder)
		ok = err == nil
		if ok {
			if injErr := r.agent.InjectAssistantMessage(DefaultSessionID, briefing); injErr != nil {
				r.logger.Warn("could not record briefing in kiosk session", "error", injErr)
			}
			// Kept as a plain text file so caregivers can read the
			// day's briefing without the dashboard.
			path := filepath.Join(r.store.Dir(), "daily_briefing.txt")
			if wErr := os.WriteFile(path, []byte(briefing+"\n"), 0o644); wErr != nil {
				r.logger.Warn("could not write daily briefing file", "error", wErr)
			}
		}
	}

	r.bus.Publish(events.Event{
		Source: events.SourceRoutine,
		Kind:   events.KindRoutineComplete,
		Data:   map[string]any{"routine": "morning_briefing", "ok": ok},
	})
	if err != nil {
		return fmt.Errorf("morning briefing: %w", err)
	}
	r.logger.Info("morning briefing delivered", "len", len(briefing))
	return nil
}

// CognitiveGame opens the daily memory game by speaking first in the
// kiosk session.
func (r *Routines) CognitiveGame(ctx context.Context) error {
	r.bus.Publish(events.Event{
		Source: events.SourceRoutine,
		Kind:   events.KindRoutineStart,
		Data:   map[string]any{"routine": "cognitive_game"},
	})

	err := r.agent.InjectAssistantMessage(DefaultSessionID, prompts.CognitiveGameInvite)
	if err == nil {
		err = r.deliver(prompts.CognitiveGameInvite, model.ActionProposeExercise)
	}

	r.bus.Publish(events.Event{
		Source: events.SourceRoutine,
		Kind:   events.KindRoutineComplete,
		Data:   map[string]any{"routine": "cognitive_game", "ok": err == nil},
	})
	if err != nil {
		return fmt.Errorf("cognitive game: %w", err)
	}
	return nil
}

// deliver queues a device action carrying the routine's spoken text.
func (r *Routines) deliver(text, kind string) error {
	action := model.DeviceAction{
		ID:          model.NewID(),
		Kind:        kind,
		TextToSpeak: text,
	}
	err := r.store.WithLock(func() error {
		actions := r.store.DeviceActions()
		return r.store.SaveDeviceActions(append(actions, action))
	})
	if err != nil {
		return err
	}

	r.bus.Publish(events.Event{
		Source: events.SourceRoutine,
		Kind:   events.KindActionQueued,
		Data:   map[string]any{"action_id": action.ID, "action_type": action.Kind},
	})
	return nil
}
