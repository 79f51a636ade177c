package tools

import (
	"context"
)

func (r *Registry) registerTemporalTools() {
	r.Register(&Tool{
		Name:        "get_temporal_context",
		Description: "Get the current date, day of week, time, and part of day. Use whenever the patient asks about the date or time or seems temporally disoriented.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handleGetTemporalContext,
	})
}

func (r *Registry) handleGetTemporalContext(ctx context.Context, args map[string]any) (map[string]any, error) {
	now := r.now()

	partOfDay := "evening"
	switch h := now.Hour(); {
	case h < 12:
		partOfDay = "morning"
	case h < 18:
		partOfDay = "afternoon"
	}

	return map[string]any{
		"status":      "ok",
		"date":        now.Format("Monday, January 2, 2006"),
		"time":        now.Format("15:04"),
		"day_of_week": now.Weekday().String(),
		"part_of_day": partOfDay,
	}, nil
}
