package main

import (
	"testing"
	"time"

	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/store"
)

func TestSeedStore(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := seedStore(st, now); err != nil {
		t.Fatalf("seedStore: %v", err)
	}

	if pc := st.PatientContext(); pc.Name != "Simone" || pc.EmergencyContact.Relation != "daughter" {
		t.Errorf("patient context = %+v", pc)
	}
	caregivers := st.Caregivers()
	if len(caregivers) != 1 || !caregivers[0].Primary {
		t.Errorf("caregivers = %+v", caregivers)
	}
	if audio := st.AudioContents(); len(audio) != 2 {
		t.Errorf("audio contents = %+v", audio)
	}

	items := st.CalendarItems()
	if len(items) != 2 {
		t.Fatalf("calendar items = %+v", items)
	}
	for _, item := range items {
		if item.Status != model.ItemStatusScheduled {
			t.Errorf("item %s status = %q", item.Title, item.Status)
		}
		due, err := item.DueAt()
		if err != nil {
			t.Errorf("item %s scheduled_at: %v", item.Title, err)
		} else if !due.After(now) {
			t.Errorf("item %s due %s is not in the future", item.Title, due)
		}
	}
}

func TestSeedStore_refusesNonEmpty(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	_ = st.SaveCaregivers([]model.Caregiver{{ID: "c1", Name: "Marie"}})

	if err := seedStore(st, time.Now().UTC()); err == nil {
		t.Fatal("expected an error seeding a non-empty store")
	}
}
