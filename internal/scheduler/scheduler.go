// Package scheduler runs the recurring due-item scan: overdue calendar
// items become spoken device actions, recurring items spawn their next
// occurrence, and every delivery lands on the timeline.
package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/events"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/phrase"
	"github.com/careloop/careloop/internal/store"
)

// Scheduler scans calendar items on a fixed interval.
type Scheduler struct {
	store    *store.Store
	phrase   *phrase.Engine
	bus      *events.Bus
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// New creates a scheduler. A zero interval defaults to one minute.
func New(st *store.Store, engine *phrase.Engine, bus *events.Bus, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		store:    st,
		phrase:   engine,
		bus:      bus,
		logger:   logger.With("component", "scheduler"),
		interval: interval,
		now:      time.Now,
	}
}

// Run scans once immediately, then on every tick until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if n, err := s.CheckDueItems(ctx); err != nil {
			s.logger.Error("due-item scan failed", "error", err)
		} else if n > 0 {
			s.logger.Info("due items delivered", "count", n)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// CheckDueItems runs one scan-and-update cycle as a single atomic unit
// under the store lock and returns how many items came due. Malformed
// items are quarantined, never retried, and never block the rest of
// the batch.
func (s *Scheduler) CheckDueItems(ctx context.Context) (int, error) {
	var due int
	err := s.store.WithLock(func() error {
		now := s.now().UTC()
		items := s.store.CalendarItems()
		actions := s.store.DeviceActions()
		evts := s.store.Events()
		audio := s.store.AudioContents()
		residentName := s.store.PatientContext().Name
		if residentName == "" {
			residentName = "there"
		}

		quarantined := 0
		for i := range items {
			item := &items[i]
			if item.Status != model.ItemStatusScheduled {
				continue
			}

			dueAt, err := item.DueAt()
			if err != nil {
				s.logger.Warn("unparseable scheduled_at, quarantining item",
					"item", item.ID, "scheduled_at", item.ScheduledAt)
				item.Status = model.ItemStatusInvalid
				quarantined++
				continue
			}
			if dueAt.After(now) {
				continue
			}

			action := s.buildAction(ctx, item, audio, residentName)
			actions = append(actions, action)

			if sibling, ok := nextOccurrence(item, dueAt); ok {
				items = append(items, sibling)
				// items may have been reallocated by the append; the
				// loop index is still valid because we only ever append.
				item = &items[i]
			}
			item.Status = model.ItemStatusSent

			evts = append(evts, model.CareLoopEvent{
				ID:             model.NewID(),
				CareReceiverID: item.CareReceiverID,
				Type:           model.EventReminderDelivered,
				Payload:        map[string]any{"calendar_item_id": item.ID, "title": item.Title},
				CreatedAt:      now,
			})

			s.bus.Publish(events.Event{
				Source: events.SourceScheduler,
				Kind:   events.KindReminderDelivered,
				Data:   map[string]any{"item_id": item.ID, "item_type": item.Type, "action_id": action.ID},
			})
			due++
		}

		s.bus.Publish(events.Event{
			Source: events.SourceScheduler,
			Kind:   events.KindDueScan,
			Data:   map[string]any{"due": due, "total": len(items)},
		})

		if due == 0 && quarantined == 0 {
			return nil
		}
		// Actions and events go down before the items flip to sent: a
		// write failure mid-batch then re-fires the reminder next cycle
		// instead of losing it.
		if due > 0 {
			if err := s.store.SaveDeviceActions(actions); err != nil {
				return err
			}
			if err := s.store.SaveEvents(evts); err != nil {
				return err
			}
		}
		return s.store.SaveCalendarItems(items)
	})
	return due, err
}

// buildAction renders one due item into a device action, resolving
// audio for audio_push items through the fallback chain.
func (s *Scheduler) buildAction(ctx context.Context, item *model.CalendarItem, audio []model.AudioContent, residentName string) model.DeviceAction {
	isAudio := item.Type == model.ItemTypeAudioPush

	kind := model.ActionSpeakReminder
	if isAudio {
		kind = model.ActionProposeAudio
	}
	action := model.DeviceAction{
		ID:             model.NewID(),
		Kind:           kind,
		CalendarItemID: item.ID,
		TextToSpeak: s.phrase.Generate(ctx, phrase.Request{
			Title:        item.Title,
			ItemType:     item.Type,
			MessageText:  item.MessageText,
			ResidentName: residentName,
			AudioInvite:  isAudio,
		}),
	}

	if isAudio {
		if ac := resolveAudio(item, audio); ac != nil {
			action.AudioContentID = ac.ID
			action.AudioURL = ac.URL
			action.AudioTitle = ac.Title
		}
	}
	return action
}

// resolveAudio picks content for an audio push: explicit id, then
// patient plus inferred kind, then inferred kind alone, then patient
// alone, then anything. Nil when the store is empty.
func resolveAudio(item *model.CalendarItem, audio []model.AudioContent) *model.AudioContent {
	if item.AudioContentID != "" {
		for i := range audio {
			if audio[i].ID == item.AudioContentID {
				return &audio[i]
			}
		}
	}

	kind := inferAudioKind(item.MessageText)
	for i := range audio {
		if audio[i].CareReceiverID == item.CareReceiverID && audio[i].Kind == kind {
			return &audio[i]
		}
	}
	for i := range audio {
		if audio[i].Kind == kind {
			return &audio[i]
		}
	}
	for i := range audio {
		if audio[i].CareReceiverID == item.CareReceiverID {
			return &audio[i]
		}
	}
	if len(audio) > 0 {
		return &audio[0]
	}
	return nil
}

// inferAudioKind guesses what the item wants played from its message.
func inferAudioKind(messageText string) string {
	s := strings.ToLower(messageText)
	if strings.Contains(s, "audiobook") || strings.Contains(s, "book") || strings.Contains(s, "livre") {
		return model.AudioKindAudiobook
	}
	return model.AudioKindMusic
}

// nextOccurrence builds the recurring sibling for a fired item. Rules
// other than daily and weekly:* are treated as non-recurring.
func nextOccurrence(item *model.CalendarItem, dueAt time.Time) (model.CalendarItem, bool) {
	var advance time.Duration
	switch {
	case item.RepeatRule == model.RepeatDaily:
		advance = 24 * time.Hour
	case strings.HasPrefix(item.RepeatRule, model.RepeatWeeklyPrefix):
		advance = 7 * 24 * time.Hour
	default:
		return model.CalendarItem{}, false
	}

	sibling := *item
	sibling.ID = model.NewID()
	sibling.ScheduledAt = dueAt.Add(advance).UTC().Format(time.RFC3339)
	sibling.Status = model.ItemStatusScheduled
	sibling.CreatedAt = time.Now().UTC()
	return sibling, true
}
