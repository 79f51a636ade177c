package tools

import (
	"context"
	"fmt"

	"github.com/careloop/careloop/internal/model"
)

func (r *Registry) registerHealthTools() {
	r.Register(&Tool{
		Name:        "write_health_log",
		Description: "Record a health observation: mood, whether medication was taken, and optional notes. Use whenever the patient mentions how they feel.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"mood": map[string]any{
					"type":        "string",
					"description": "Patient's mood in a word or two (e.g. 'calm', 'anxious')",
				},
				"medication_taken": map[string]any{
					"type":        "boolean",
					"description": "Whether the patient confirmed taking their medication",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Free-text detail worth keeping for the caregiver",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Log category: GENERAL, PAIN, SLEEP, APPETITE, MEDICATION. Default: GENERAL.",
				},
			},
			"required": []string{"mood", "medication_taken"},
		},
		Handler: r.handleWriteHealthLog,
	})
}

func (r *Registry) handleWriteHealthLog(ctx context.Context, args map[string]any) (map[string]any, error) {
	mood := stringArg(args, "mood", "")
	if mood == "" {
		return nil, fmt.Errorf("mood is required")
	}

	log := model.HealthLog{
		ID:              model.NewID(),
		Mood:            mood,
		MedicationTaken: boolArg(args, "medication_taken", false),
		Notes:           stringArg(args, "notes", ""),
		Category:        stringArg(args, "category", "GENERAL"),
		CreatedAt:       r.now().UTC(),
	}

	err := r.store.WithLock(func() error {
		logs := r.store.HealthLogs()
		return r.store.SaveHealthLogs(append(logs, log))
	})
	if err != nil {
		return nil, fmt.Errorf("could not save the health log: %w", err)
	}

	r.logger.Info("health log recorded", "mood", mood, "category", log.Category)
	return map[string]any{"status": "logged", "log": log}, nil
}
