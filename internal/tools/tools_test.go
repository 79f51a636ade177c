package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/store"
)

type fakeMessenger struct {
	sent  []string
	phone string
	err   error
}

func (f *fakeMessenger) Send(ctx context.Context, phone, text string) error {
	if f.err != nil {
		return f.err
	}
	f.phone = phone
	f.sent = append(f.sent, text)
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *store.Store, *fakeMessenger) {
	t.Helper()
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	msg := &fakeMessenger{}
	r := NewRegistry(st, msg, nil, nil, nil)
	r.now = func() time.Time {
		return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	}
	return r, st, msg
}

func TestExecute_unknownTool(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	result := r.Execute(context.Background(), "no_such_tool", nil)
	if result["error"] != "Tool no_such_tool not found" {
		t.Errorf("result = %v", result)
	}
}

func TestExecute_handlerErrorBecomesResult(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	r.Register(&Tool{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, errors.New("it broke")
		},
	})
	result := r.Execute(context.Background(), "boom", nil)
	if result["error"] != "it broke" {
		t.Errorf("result = %v", result)
	}
}

func TestDefinitions_stableOrder(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	defs := r.Definitions()
	if len(defs) == 0 {
		t.Fatal("no definitions")
	}
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Name >= defs[i].Name {
			t.Errorf("definitions not sorted: %q before %q", defs[i-1].Name, defs[i].Name)
		}
	}
}

func TestScheduleReminder(t *testing.T) {
	r, st, _ := newTestRegistry(t)

	result := r.Execute(context.Background(), "schedule_reminder", map[string]any{
		"title": "Take pills",
		"time":  "2026-03-14T18:00:00Z",
	})
	if result["status"] != "scheduled" {
		t.Fatalf("result = %v", result)
	}

	items := st.CalendarItems()
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	item := items[0]
	if item.Title != "Take pills" || item.Type != model.ItemTypeReminder {
		t.Errorf("item = %+v", item)
	}
	if item.Status != model.ItemStatusScheduled {
		t.Errorf("status = %q", item.Status)
	}
	if item.RepeatRule != model.RepeatDaily {
		t.Errorf("repeat = %q, want default daily", item.RepeatRule)
	}

	events := st.Events()
	if len(events) != 1 || events[0].Type != model.EventReminderCreated {
		t.Errorf("events = %+v", events)
	}
}

func TestScheduleReminder_badTime(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	result := r.Execute(context.Background(), "schedule_reminder", map[string]any{
		"title": "Take pills",
		"time":  "whenever you feel like it",
	})
	if result["error"] == nil {
		t.Fatalf("result = %v, want error", result)
	}
	if len(st.CalendarItems()) != 0 {
		t.Error("item saved despite bad time")
	}
}

func TestParseWhen(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-15T08:30:00Z", time.Date(2026, 3, 15, 8, 30, 0, 0, time.UTC)},
		{"in 30 minutes", now.Add(30 * time.Minute)},
		{"in 2 hours", now.Add(2 * time.Hour)},
		{"45m", now.Add(45 * time.Minute)},
		{"18:00", time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)},
		{"09:00", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)}, // already past, rolls to tomorrow
		{"2026-03-20 14:00", time.Date(2026, 3, 20, 14, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseWhen(tt.in, now)
		if err != nil {
			t.Errorf("parseWhen(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseWhen(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := parseWhen("gibberish", now); err == nil {
		t.Error("expected error for gibberish")
	}
}

func TestWriteHealthLog(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	result := r.Execute(context.Background(), "write_health_log", map[string]any{
		"mood":             "calm",
		"medication_taken": true,
		"notes":            "slept well",
	})
	if result["status"] != "logged" {
		t.Fatalf("result = %v", result)
	}

	logs := st.HealthLogs()
	if len(logs) != 1 {
		t.Fatalf("logs = %d", len(logs))
	}
	if logs[0].Category != "GENERAL" {
		t.Errorf("category = %q, want default GENERAL", logs[0].Category)
	}
	if !logs[0].MedicationTaken {
		t.Error("medication_taken not recorded")
	}
}

func TestContactPrimaryCaregiver(t *testing.T) {
	r, st, msg := newTestRegistry(t)
	if err := st.SaveCaregivers([]model.Caregiver{
		{ID: "c1", Name: "Paul Dupont", Phone: "+33611111111"},
		{ID: "c2", Name: "Marie Dupont", Phone: "+33612345678", Primary: true},
	}); err != nil {
		t.Fatalf("SaveCaregivers: %v", err)
	}

	result := r.Execute(context.Background(), "contact_primary_caregiver", map[string]any{
		"message": "Simone reported knee pain",
		"urgency": "high",
	})
	if result["status"] != "notified" {
		t.Fatalf("result = %v", result)
	}
	if len(msg.sent) != 1 || msg.phone != "+33612345678" {
		t.Errorf("messenger sent = %v to %q", msg.sent, msg.phone)
	}

	events := st.Events()
	if len(events) != 1 || events[0].Type != model.EventHelpRequested {
		t.Errorf("events = %+v", events)
	}
}

func TestContactPrimaryCaregiver_noPrimary(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	if err := st.SaveCaregivers([]model.Caregiver{{ID: "c1", Name: "Paul"}}); err != nil {
		t.Fatalf("SaveCaregivers: %v", err)
	}
	result := r.Execute(context.Background(), "contact_primary_caregiver", map[string]any{
		"message": "hello",
	})
	if result["error"] == nil {
		t.Errorf("result = %v, want error", result)
	}
}

func TestPlayAudioContent(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	result := r.Execute(context.Background(), "play_audio_content", map[string]any{
		"audio_type": "music",
	})
	if result["status"] != "queued" {
		t.Fatalf("result = %v", result)
	}

	actions := st.DeviceActions()
	if len(actions) != 1 {
		t.Fatalf("actions = %d", len(actions))
	}
	if actions[0].Kind != model.ActionProposeAudio || actions[0].AudioURL == "" {
		t.Errorf("action = %+v", actions[0])
	}
}

func TestPlayAudioContent_prefersUploadedContent(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	if err := st.SaveAudioContents([]model.AudioContent{{
		ID:             "a1",
		CareReceiverID: model.DefaultCareReceiverID,
		Title:          "Edith Piaf favourites",
		URL:            "https://cdn.careloop.example/audio/piaf.mp3",
		Kind:           model.AudioKindMusic,
	}}); err != nil {
		t.Fatalf("SaveAudioContents: %v", err)
	}

	r.Execute(context.Background(), "play_audio_content", map[string]any{"audio_type": "music"})
	actions := st.DeviceActions()
	if len(actions) != 1 || actions[0].AudioContentID != "a1" {
		t.Errorf("actions = %+v", actions)
	}
}

func TestSearchFamilyHistory(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	result := r.Execute(context.Background(), "search_family_history", map[string]any{"keyword": "Wedding"})
	if result["status"] != "found" {
		t.Fatalf("result = %v", result)
	}

	miss := r.Execute(context.Background(), "search_family_history", map[string]any{"keyword": "spaceship"})
	if miss["status"] != "not_found" {
		t.Fatalf("miss = %v", miss)
	}
	if msg, _ := miss["message"].(string); msg == "" {
		t.Error("not_found carries no message")
	}
}

func TestSearchFamilyHistory_ambiguousKeywordIsStable(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	// "w" substring-matches both wedding and work; the first topic in
	// sorted order must win on every call.
	var first string
	for i := 0; i < 10; i++ {
		result := r.Execute(context.Background(), "search_family_history", map[string]any{"keyword": "w"})
		memory, _ := result["memory"].(string)
		if memory == "" {
			t.Fatalf("result = %v", result)
		}
		if first == "" {
			first = memory
			continue
		}
		if memory != first {
			t.Fatalf("memory changed between calls: %q then %q", first, memory)
		}
	}
	if !strings.Contains(first, "church by the sea") {
		t.Errorf("memory = %q, want the wedding memory to beat work", first)
	}
}

func TestSendWhatsApp_fuzzyMatch(t *testing.T) {
	r, st, msg := newTestRegistry(t)
	if err := st.SaveCaregivers([]model.Caregiver{
		{ID: "c1", Name: "Marie Dupont", Phone: "+33612345678"},
	}); err != nil {
		t.Fatalf("SaveCaregivers: %v", err)
	}

	result := r.Execute(context.Background(), "send_whatsapp_message", map[string]any{
		"recipient_name":  "Marie",
		"message_content": "Bonjour!",
	})
	if result["status"] != "sent" {
		t.Fatalf("result = %v", result)
	}
	if msg.phone != "+33612345678" {
		t.Errorf("sent to %q", msg.phone)
	}
}

func TestSendWhatsApp_errorTaxonomy(t *testing.T) {
	ctx := context.Background()

	t.Run("no contacts", func(t *testing.T) {
		r, _, _ := newTestRegistry(t)
		result := r.Execute(ctx, "send_whatsapp_message", map[string]any{
			"recipient_name": "Marie", "message_content": "hi",
		})
		if result["error"] != "There are no contacts registered yet" {
			t.Errorf("result = %v", result)
		}
	})

	t.Run("no match lists names", func(t *testing.T) {
		r, st, _ := newTestRegistry(t)
		_ = st.SaveCaregivers([]model.Caregiver{{Name: "Marie Dupont"}, {Name: "Paul Dupont"}})
		result := r.Execute(ctx, "send_whatsapp_message", map[string]any{
			"recipient_name": "Jacques", "message_content": "hi",
		})
		errMsg, _ := result["error"].(string)
		if errMsg == "" || !contains(errMsg, "Marie Dupont") || !contains(errMsg, "Paul Dupont") {
			t.Errorf("result = %v", result)
		}
	})

	t.Run("no phone on file", func(t *testing.T) {
		r, st, _ := newTestRegistry(t)
		_ = st.SaveCaregivers([]model.Caregiver{{Name: "Marie Dupont"}})
		result := r.Execute(ctx, "send_whatsapp_message", map[string]any{
			"recipient_name": "Marie", "message_content": "hi",
		})
		if errMsg, _ := result["error"].(string); !contains(errMsg, "no phone number") {
			t.Errorf("result = %v", result)
		}
	})

	t.Run("send failed", func(t *testing.T) {
		r, st, msg := newTestRegistry(t)
		msg.err = errors.New("gateway down")
		_ = st.SaveCaregivers([]model.Caregiver{{Name: "Marie Dupont", Phone: "+33612345678"}})
		result := r.Execute(ctx, "send_whatsapp_message", map[string]any{
			"recipient_name": "Marie", "message_content": "hi",
		})
		if errMsg, _ := result["error"].(string); !contains(errMsg, "couldn't deliver") {
			t.Errorf("result = %v", result)
		}
	})
}

func TestUpdatePatientContext(t *testing.T) {
	r, st, _ := newTestRegistry(t)

	result := r.Execute(context.Background(), "update_patient_context", map[string]any{
		"name":                    "Simone",
		"age":                     float64(82),
		"emergency_contact_phone": "+33 6 12 34 56 78",
	})
	if result["status"] != "updated" {
		t.Fatalf("result = %v", result)
	}

	pc := st.PatientContext()
	if pc.Name != "Simone" || pc.Age != 82 {
		t.Errorf("context = %+v", pc)
	}
	if pc.EmergencyContact.Phone != "+33 6 12 34 56 78" {
		t.Errorf("emergency phone = %q", pc.EmergencyContact.Phone)
	}
}

func TestUpdatePatientContext_invalidPhone(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	result := r.Execute(context.Background(), "update_patient_context", map[string]any{
		"name":                    "Simone",
		"emergency_contact_phone": "not-a-number",
	})
	if result["error"] == nil {
		t.Fatalf("result = %v, want error", result)
	}
	if st.PatientContext().Name != "" {
		t.Error("context persisted despite invalid phone")
	}
}

func TestUpdatePatientContext_partialMerge(t *testing.T) {
	r, st, _ := newTestRegistry(t)
	r.Execute(context.Background(), "update_patient_context", map[string]any{
		"name": "Simone", "medical_history": "mild hypertension",
	})
	r.Execute(context.Background(), "update_patient_context", map[string]any{
		"lifestyle": "loves gardening",
	})

	pc := st.PatientContext()
	if pc.Name != "Simone" || pc.MedicalHistory != "mild hypertension" || pc.Lifestyle != "loves gardening" {
		t.Errorf("context = %+v", pc)
	}
}

func TestGetTemporalContext(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	result := r.Execute(context.Background(), "get_temporal_context", nil)
	if result["day_of_week"] != "Saturday" {
		t.Errorf("day_of_week = %v", result["day_of_week"])
	}
	if result["part_of_day"] != "morning" {
		t.Errorf("part_of_day = %v", result["part_of_day"])
	}
}

func TestSearchWeb_unavailable(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	result := r.Execute(context.Background(), "search_web", map[string]any{"query": "weather"})
	if errMsg, _ := result["error"].(string); !contains(errMsg, "not available") {
		t.Errorf("result = %v", result)
	}
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}
