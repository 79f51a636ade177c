package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/model"
)

func (r *Registry) registerReminderTools() {
	r.Register(&Tool{
		Name:        "schedule_reminder",
		Description: "Schedule a spoken reminder for the patient. Use when the patient asks to be reminded of something at a specific time.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short title of the reminder (e.g. 'Take medication')",
				},
				"time": map[string]any{
					"type":        "string",
					"description": "When to fire: RFC 3339 timestamp, 'HH:MM', or 'in 30 minutes'",
				},
				"repeat": map[string]any{
					"type":        "string",
					"description": "Repeat rule: 'none', 'daily', or 'weekly'. Default: daily.",
				},
			},
			"required": []string{"title", "time"},
		},
		Handler: r.handleScheduleReminder,
	})
}

func (r *Registry) handleScheduleReminder(ctx context.Context, args map[string]any) (map[string]any, error) {
	title := stringArg(args, "title", "")
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	when := stringArg(args, "time", "")
	if when == "" {
		return nil, fmt.Errorf("time is required")
	}
	repeat := stringArg(args, "repeat", model.RepeatDaily)

	at, err := parseWhen(when, r.now())
	if err != nil {
		return nil, fmt.Errorf("I could not understand the time %q", when)
	}

	item := model.CalendarItem{
		ID:             model.NewID(),
		CareReceiverID: model.DefaultCareReceiverID,
		Type:           model.ItemTypeReminder,
		Title:          title,
		ScheduledAt:    at.UTC().Format(time.RFC3339),
		RepeatRule:     repeat,
		Status:         model.ItemStatusScheduled,
		CreatedAt:      r.now().UTC(),
	}

	err = r.store.WithLock(func() error {
		items := r.store.CalendarItems()
		return r.store.SaveCalendarItems(append(items, item))
	})
	if err != nil {
		return nil, fmt.Errorf("could not save the reminder: %w", err)
	}

	_ = r.store.AppendEvent(model.CareLoopEvent{
		ID:             model.NewID(),
		CareReceiverID: item.CareReceiverID,
		Type:           model.EventReminderCreated,
		Payload:        map[string]any{"calendar_item_id": item.ID, "title": item.Title},
		CreatedAt:      r.now().UTC(),
	})

	r.logger.Info("reminder scheduled", "title", title, "at", item.ScheduledAt, "repeat", repeat)
	return map[string]any{"status": "scheduled", "reminder": item}, nil
}

// parseWhen converts a human-friendly time specification into an
// absolute timestamp.
func parseWhen(when string, now time.Time) (time.Time, error) {
	when = strings.TrimSpace(when)

	if t, err := time.Parse(time.RFC3339, when); err == nil {
		return t, nil
	}

	// "in 30 minutes", "in 2 hours"
	if rest, ok := strings.CutPrefix(strings.ToLower(when), "in "); ok {
		if dur, err := parseHumanDuration(rest); err == nil {
			return now.Add(dur), nil
		}
	}

	// Bare durations ("30m", "2h")
	if dur, err := time.ParseDuration(when); err == nil {
		return now.Add(dur), nil
	}

	// Date plus time formats
	for _, format := range []string{"2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(format, when, now.Location()); err == nil {
			return t, nil
		}
	}

	// Time-only formats apply to today, or tomorrow if already past.
	for _, format := range []string{"15:04", "3:04pm", "3:04 pm"} {
		if t, err := time.Parse(format, strings.ToLower(when)); err == nil {
			t = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
			if t.Before(now) {
				t = t.Add(24 * time.Hour)
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("could not parse time: %s", when)
}

func parseHumanDuration(s string) (time.Duration, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) != 2 {
		return 0, fmt.Errorf("unrecognized duration: %s", s)
	}

	var n int
	if _, err := fmt.Sscanf(fields[0], "%d", &n); err != nil {
		return 0, fmt.Errorf("unrecognized duration: %s", s)
	}

	switch strings.TrimSuffix(fields[1], "s") {
	case "minute", "min":
		return time.Duration(n) * time.Minute, nil
	case "hour":
		return time.Duration(n) * time.Hour, nil
	case "day":
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unrecognized duration unit: %s", fields[1])
	}
}
