package main

import (
	"fmt"
	"io"
	"time"

	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/store"
)

// runInitData seeds an empty data directory with a sample patient so a
// fresh deployment has something to talk about. Refuses to touch a
// directory that already holds caregivers or calendar items.
func runInitData(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("opening data store: %w", err)
	}
	if err := seedStore(st, time.Now().UTC()); err != nil {
		return err
	}

	fmt.Fprintf(out, "Seeded %s with sample patient Simone, 1 caregiver, 2 audio items and 2 reminders\n", st.Dir())
	return nil
}

func seedStore(st *store.Store, now time.Time) error {
	if len(st.Caregivers()) > 0 || len(st.CalendarItems()) > 0 {
		return fmt.Errorf("data directory %s already contains data, refusing to seed", st.Dir())
	}

	return st.WithLock(func() error {
		if err := st.SavePatientContext(model.PatientContext{
			Name:           "Simone",
			Age:            84,
			MedicalHistory: "Mild memory loss. Takes blood pressure medication each morning.",
			Lifestyle:      "Lives alone. Enjoys gardening, classical music and audiobooks.",
			EmergencyContact: model.EmergencyContact{
				Name:     "Marie Dupont",
				Phone:    "+33612345678",
				Relation: "daughter",
			},
		}); err != nil {
			return err
		}

		if err := st.SaveCaregivers([]model.Caregiver{{
			ID:        model.NewID(),
			Name:      "Marie Dupont",
			Phone:     "+33612345678",
			Relation:  "daughter",
			Primary:   true,
			CreatedAt: now,
		}}); err != nil {
			return err
		}

		if err := st.SaveAudioContents([]model.AudioContent{
			{
				ID:             model.NewID(),
				CareReceiverID: model.DefaultCareReceiverID,
				Title:          "Clair de Lune",
				URL:            "https://cdn.careloop.example/audio/clair-de-lune.mp3",
				Kind:           model.AudioKindMusic,
				Recommendable:  true,
				CreatedAt:      now,
			},
			{
				ID:             model.NewID(),
				CareReceiverID: model.DefaultCareReceiverID,
				Title:          "Le Petit Prince, chapter one",
				URL:            "https://cdn.careloop.example/audio/petit-prince-ch1.mp3",
				Kind:           model.AudioKindAudiobook,
				Recommendable:  true,
				CreatedAt:      now,
			},
		}); err != nil {
			return err
		}

		morning := time.Date(now.Year(), now.Month(), now.Day(), 8, 30, 0, 0, time.UTC)
		if morning.Before(now) {
			morning = morning.Add(24 * time.Hour)
		}
		afternoon := time.Date(now.Year(), now.Month(), now.Day(), 15, 0, 0, 0, time.UTC)
		if afternoon.Before(now) {
			afternoon = afternoon.Add(24 * time.Hour)
		}
		return st.SaveCalendarItems([]model.CalendarItem{
			{
				ID:             model.NewID(),
				CareReceiverID: model.DefaultCareReceiverID,
				Type:           model.ItemTypeReminder,
				Title:          "Morning medication",
				MessageText:    "Time to take your blood pressure tablet with a glass of water.",
				ScheduledAt:    morning.Format(time.RFC3339),
				RepeatRule:     model.RepeatDaily,
				Status:         model.ItemStatusScheduled,
				CreatedAt:      now,
			},
			{
				ID:             model.NewID(),
				CareReceiverID: model.DefaultCareReceiverID,
				Type:           model.ItemTypeAudioPush,
				Title:          "Afternoon listening",
				ScheduledAt:    afternoon.Format(time.RFC3339),
				RepeatRule:     model.RepeatDaily,
				Status:         model.ItemStatusScheduled,
				CreatedAt:      now,
			},
		})
	})
}
