package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/phrase"
	"github.com/careloop/careloop/internal/store"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T) (*Scheduler, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	s := New(st, phrase.New(nil, nil), nil, time.Minute, nil)
	s.now = func() time.Time { return testNow }
	return s, st
}

func item(id, typ, repeat string, due time.Time) model.CalendarItem {
	return model.CalendarItem{
		ID:             id,
		CareReceiverID: model.DefaultCareReceiverID,
		Type:           typ,
		Title:          "Medication",
		MessageText:    "[medication] Take pills",
		ScheduledAt:    due.Format(time.RFC3339),
		RepeatRule:     repeat,
		Status:         model.ItemStatusScheduled,
		CreatedAt:      due.Add(-time.Hour),
	}
}

func TestCheckDueItems_oneShot(t *testing.T) {
	s, st := newTestScheduler(t)
	_ = st.SaveCalendarItems([]model.CalendarItem{
		item("i1", model.ItemTypeReminder, model.RepeatNone, testNow.Add(-time.Minute)),
	})

	due, err := s.CheckDueItems(context.Background())
	if err != nil {
		t.Fatalf("CheckDueItems: %v", err)
	}
	if due != 1 {
		t.Fatalf("due = %d, want 1", due)
	}

	items := st.CalendarItems()
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1 (no sibling for one-shot)", len(items))
	}
	if items[0].Status != model.ItemStatusSent {
		t.Errorf("status = %q, want sent", items[0].Status)
	}

	actions := st.DeviceActions()
	if len(actions) != 1 {
		t.Fatalf("actions = %d", len(actions))
	}
	if actions[0].Kind != model.ActionSpeakReminder {
		t.Errorf("kind = %q", actions[0].Kind)
	}
	if actions[0].TextToSpeak != "Take pills" {
		t.Errorf("text = %q, want tag-stripped fallback", actions[0].TextToSpeak)
	}
	if actions[0].CalendarItemID != "i1" {
		t.Errorf("calendar_item_id = %q", actions[0].CalendarItemID)
	}

	events := st.Events()
	if len(events) != 1 || events[0].Type != model.EventReminderDelivered {
		t.Errorf("events = %+v", events)
	}
}

func TestCheckDueItems_dailySpawnsSibling(t *testing.T) {
	s, st := newTestScheduler(t)
	due := testNow.Add(-30 * time.Minute)
	_ = st.SaveCalendarItems([]model.CalendarItem{
		item("i1", model.ItemTypeReminder, model.RepeatDaily, due),
	})

	if _, err := s.CheckDueItems(context.Background()); err != nil {
		t.Fatalf("CheckDueItems: %v", err)
	}

	items := st.CalendarItems()
	if len(items) != 2 {
		t.Fatalf("items = %d, want original plus sibling", len(items))
	}

	var original, sibling *model.CalendarItem
	for i := range items {
		if items[i].ID == "i1" {
			original = &items[i]
		} else {
			sibling = &items[i]
		}
	}
	if original == nil || sibling == nil {
		t.Fatalf("items = %+v", items)
	}
	if original.Status != model.ItemStatusSent {
		t.Errorf("original status = %q", original.Status)
	}
	if sibling.Status != model.ItemStatusScheduled {
		t.Errorf("sibling status = %q", sibling.Status)
	}
	if sibling.ID == original.ID {
		t.Error("sibling reuses original id")
	}
	want := due.Add(24 * time.Hour).Format(time.RFC3339)
	if sibling.ScheduledAt != want {
		t.Errorf("sibling scheduled_at = %q, want %q", sibling.ScheduledAt, want)
	}
}

func TestCheckDueItems_weeklySibling(t *testing.T) {
	s, st := newTestScheduler(t)
	due := testNow.Add(-time.Minute)
	_ = st.SaveCalendarItems([]model.CalendarItem{
		item("i1", model.ItemTypeReminder, "weekly:saturday", due),
	})

	if _, err := s.CheckDueItems(context.Background()); err != nil {
		t.Fatal(err)
	}

	items := st.CalendarItems()
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	for _, it := range items {
		if it.Status == model.ItemStatusScheduled {
			want := due.Add(7 * 24 * time.Hour).Format(time.RFC3339)
			if it.ScheduledAt != want {
				t.Errorf("sibling scheduled_at = %q, want %q", it.ScheduledAt, want)
			}
		}
	}
}

func TestCheckDueItems_idempotent(t *testing.T) {
	s, st := newTestScheduler(t)
	_ = st.SaveCalendarItems([]model.CalendarItem{
		item("i1", model.ItemTypeReminder, model.RepeatDaily, testNow.Add(-time.Minute)),
	})

	if _, err := s.CheckDueItems(context.Background()); err != nil {
		t.Fatal(err)
	}
	due, err := s.CheckDueItems(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if due != 0 {
		t.Errorf("second scan due = %d, want 0", due)
	}
	if n := len(st.DeviceActions()); n != 1 {
		t.Errorf("actions = %d, want 1 (no duplicates)", n)
	}
	if n := len(st.Events()); n != 1 {
		t.Errorf("events = %d, want 1", n)
	}
}

func TestCheckDueItems_writeFailureRefiresNextCycle(t *testing.T) {
	s, st := newTestScheduler(t)
	_ = st.SaveCalendarItems([]model.CalendarItem{
		item("i1", model.ItemTypeReminder, model.RepeatNone, testNow.Add(-time.Minute)),
	})

	// A directory squatting on the collection file makes the device
	// action write fail mid-batch.
	blocker := filepath.Join(st.Dir(), "device_actions.json")
	if err := os.Mkdir(blocker, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CheckDueItems(context.Background()); err == nil {
		t.Fatal("expected an error when the action write fails")
	}

	// The item must not have been flipped to sent without its action.
	items := st.CalendarItems()
	if items[0].Status != model.ItemStatusScheduled {
		t.Fatalf("status = %q, want still scheduled", items[0].Status)
	}

	if err := os.Remove(blocker); err != nil {
		t.Fatal(err)
	}
	due, err := s.CheckDueItems(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if due != 1 {
		t.Errorf("due = %d, want the reminder re-fired", due)
	}
	if n := len(st.DeviceActions()); n != 1 {
		t.Errorf("actions = %d, want 1", n)
	}
}

func TestCheckDueItems_notYetDue(t *testing.T) {
	s, st := newTestScheduler(t)
	_ = st.SaveCalendarItems([]model.CalendarItem{
		item("i1", model.ItemTypeReminder, model.RepeatNone, testNow.Add(time.Hour)),
	})

	due, err := s.CheckDueItems(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if due != 0 {
		t.Errorf("due = %d", due)
	}
	if len(st.DeviceActions()) != 0 {
		t.Error("action created for future item")
	}
}

func TestCheckDueItems_quarantinesMalformedTimestamp(t *testing.T) {
	s, st := newTestScheduler(t)
	bad := item("bad", model.ItemTypeReminder, model.RepeatNone, testNow)
	bad.ScheduledAt = "next tuesday-ish"
	good := item("good", model.ItemTypeReminder, model.RepeatNone, testNow.Add(-time.Minute))
	_ = st.SaveCalendarItems([]model.CalendarItem{bad, good})

	due, err := s.CheckDueItems(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if due != 1 {
		t.Errorf("due = %d, want the good item only", due)
	}

	for _, it := range st.CalendarItems() {
		switch it.ID {
		case "bad":
			if it.Status != model.ItemStatusInvalid {
				t.Errorf("bad item status = %q, want invalid", it.Status)
			}
		case "good":
			if it.Status != model.ItemStatusSent {
				t.Errorf("good item status = %q, want sent", it.Status)
			}
		}
	}

	// Quarantined items stay quarantined; no re-scan churn.
	if due, _ := s.CheckDueItems(context.Background()); due != 0 {
		t.Errorf("second scan due = %d", due)
	}
}

func TestCheckDueItems_audioResolutionChain(t *testing.T) {
	audio := []model.AudioContent{
		{ID: "a-other", CareReceiverID: "someone_else", Kind: model.AudioKindAudiobook, Title: "Foreign stories", URL: "u1"},
		{ID: "a-music", CareReceiverID: model.DefaultCareReceiverID, Kind: model.AudioKindMusic, Title: "Piano", URL: "u2"},
		{ID: "a-book", CareReceiverID: model.DefaultCareReceiverID, Kind: model.AudioKindAudiobook, Title: "Stories", URL: "u3"},
	}

	t.Run("explicit id wins", func(t *testing.T) {
		s, st := newTestScheduler(t)
		_ = st.SaveAudioContents(audio)
		it := item("i1", model.ItemTypeAudioPush, model.RepeatNone, testNow.Add(-time.Minute))
		it.AudioContentID = "a-music"
		it.MessageText = "your audiobook" // would infer audiobook, but explicit id wins
		_ = st.SaveCalendarItems([]model.CalendarItem{it})

		if _, err := s.CheckDueItems(context.Background()); err != nil {
			t.Fatal(err)
		}
		actions := st.DeviceActions()
		if len(actions) != 1 || actions[0].AudioContentID != "a-music" {
			t.Errorf("actions = %+v", actions)
		}
	})

	t.Run("patient plus inferred kind", func(t *testing.T) {
		s, st := newTestScheduler(t)
		_ = st.SaveAudioContents(audio)
		it := item("i1", model.ItemTypeAudioPush, model.RepeatNone, testNow.Add(-time.Minute))
		it.MessageText = "time for your livre"
		_ = st.SaveCalendarItems([]model.CalendarItem{it})

		if _, err := s.CheckDueItems(context.Background()); err != nil {
			t.Fatal(err)
		}
		actions := st.DeviceActions()
		if len(actions) != 1 || actions[0].AudioContentID != "a-book" {
			t.Errorf("actions = %+v", actions)
		}
	})

	t.Run("kind match crosses patients", func(t *testing.T) {
		s, st := newTestScheduler(t)
		_ = st.SaveAudioContents([]model.AudioContent{audio[0]}) // only the other patient's audiobook
		it := item("i1", model.ItemTypeAudioPush, model.RepeatNone, testNow.Add(-time.Minute))
		it.MessageText = "story book time"
		_ = st.SaveCalendarItems([]model.CalendarItem{it})

		if _, err := s.CheckDueItems(context.Background()); err != nil {
			t.Fatal(err)
		}
		actions := st.DeviceActions()
		if len(actions) != 1 || actions[0].AudioContentID != "a-other" {
			t.Errorf("actions = %+v", actions)
		}
	})

	t.Run("empty store emits action without audio", func(t *testing.T) {
		s, st := newTestScheduler(t)
		it := item("i1", model.ItemTypeAudioPush, model.RepeatNone, testNow.Add(-time.Minute))
		_ = st.SaveCalendarItems([]model.CalendarItem{it})

		if _, err := s.CheckDueItems(context.Background()); err != nil {
			t.Fatal(err)
		}
		actions := st.DeviceActions()
		if len(actions) != 1 {
			t.Fatalf("actions = %d", len(actions))
		}
		if actions[0].AudioURL != "" || actions[0].AudioContentID != "" {
			t.Errorf("action carries audio fields: %+v", actions[0])
		}
		if actions[0].Kind != model.ActionProposeAudio {
			t.Errorf("kind = %q", actions[0].Kind)
		}
	})
}

func TestCheckDueItems_audioInvitePhrasing(t *testing.T) {
	s, st := newTestScheduler(t)
	_ = st.SavePatientContext(model.PatientContext{Name: "Simone"})
	it := item("i1", model.ItemTypeAudioPush, model.RepeatNone, testNow.Add(-time.Minute))
	it.Title = "Story"
	it.MessageText = "your favourite audiobook"
	_ = st.SaveCalendarItems([]model.CalendarItem{it})

	if _, err := s.CheckDueItems(context.Background()); err != nil {
		t.Fatal(err)
	}

	actions := st.DeviceActions()
	if len(actions) != 1 {
		t.Fatalf("actions = %d", len(actions))
	}
	text := actions[0].TextToSpeak
	if !strings.Contains(text, "Simone") || !strings.HasSuffix(text, "?") {
		t.Errorf("invite = %q", text)
	}
	if !strings.Contains(text, "audiobook") {
		t.Errorf("invite = %q, want audiobook offer", text)
	}
}
