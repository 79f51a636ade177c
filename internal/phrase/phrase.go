// Package phrase turns calendar items into warm spoken sentences.
// It asks the language model for a natural phrasing and falls back to
// deterministic templates when the model is unavailable or returns
// nothing usable.
package phrase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/llm"
	"github.com/careloop/careloop/internal/prompts"
)

// leadingTag matches a bracketed type tag at the start of a message,
// e.g. "[medication] Take pills".
var leadingTag = regexp.MustCompile(`^\[[^\]]*\]\s*`)

// Request describes one reminder to phrase.
type Request struct {
	Title        string
	ItemType     string
	MessageText  string
	ResidentName string
	// AudioInvite selects the listening-invitation template instead of
	// the plain reminder template.
	AudioInvite bool
}

// Engine generates spoken reminder sentences.
type Engine struct {
	llm    llm.Client
	logger *slog.Logger
	now    func() time.Time
}

// New creates a phrasing engine. client may be nil; every request then
// uses the deterministic fallback.
func New(client llm.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		llm:    client,
		logger: logger.With("component", "phrase"),
		now:    time.Now,
	}
}

// Generate returns one spoken sentence for the request. It never
// returns an error: any model failure degrades to the deterministic
// fallback template.
func (e *Engine) Generate(ctx context.Context, req Request) string {
	cleaned := StripTag(req.MessageText)

	if e.llm != nil {
		prompt := prompts.PhraseReminder(req.Title, cleaned, req.ResidentName, req.AudioInvite)
		text, err := e.llm.Complete(ctx, prompt)
		if err != nil {
			e.logger.Warn("phrasing model call failed, using fallback", "error", err)
		} else {
			sentence := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"'`))
			if sentence != "" {
				return sentence
			}
			e.logger.Warn("phrasing model returned empty text, using fallback")
		}
	}

	return e.fallback(req, cleaned)
}

// StripTag removes a leading bracketed type tag from a message.
func StripTag(s string) string {
	return strings.TrimSpace(leadingTag.ReplaceAllString(strings.TrimSpace(s), ""))
}

func (e *Engine) fallback(req Request, cleaned string) string {
	if req.AudioInvite {
		medium := "some music"
		if WantsAudiobook(req.MessageText) {
			medium = "an audiobook"
		}
		return fmt.Sprintf("Good %s, %s! It's %s time. Would you like to listen to %s?",
			timeOfDay(e.now()), req.ResidentName, req.Title, medium)
	}
	if cleaned != "" {
		return cleaned
	}
	return fmt.Sprintf("Hello %s, this is a gentle reminder: %s.", req.ResidentName, req.Title)
}

// WantsAudiobook reports whether the message text suggests an
// audiobook rather than music.
func WantsAudiobook(messageText string) bool {
	s := strings.ToLower(messageText)
	return strings.Contains(s, "audiobook") || strings.Contains(s, "book")
}

func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}
