package tools

import (
	"context"
	"fmt"

	"github.com/careloop/careloop/internal/validate"
)

func (r *Registry) registerPatientContextTools() {
	r.Register(&Tool{
		Name:        "update_patient_context",
		Description: "Save a lasting fact about the patient. Only pass the fields that changed; existing fields are kept.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Patient's preferred name",
				},
				"age": map[string]any{
					"type":        "integer",
					"description": "Patient's age in years",
				},
				"medical_history": map[string]any{
					"type":        "string",
					"description": "Relevant medical history",
				},
				"lifestyle": map[string]any{
					"type":        "string",
					"description": "Habits and preferences worth remembering",
				},
				"emergency_contact_name": map[string]any{
					"type":        "string",
					"description": "Emergency contact's name",
				},
				"emergency_contact_phone": map[string]any{
					"type":        "string",
					"description": "Emergency contact's phone number in international format",
				},
			},
		},
		Handler: r.handleUpdatePatientContext,
	})
}

func (r *Registry) handleUpdatePatientContext(ctx context.Context, args map[string]any) (map[string]any, error) {
	if phone := stringArg(args, "emergency_contact_phone", ""); phone != "" && !validate.Phone(phone) {
		return map[string]any{
			"error": fmt.Sprintf("The phone number %q does not look valid", phone),
		}, nil
	}

	var updated []string
	err := r.store.WithLock(func() error {
		pc := r.store.PatientContext()

		if v := stringArg(args, "name", ""); v != "" {
			pc.Name = v
			updated = append(updated, "name")
		}
		if v := intArg(args, "age", 0); v != 0 {
			pc.Age = v
			updated = append(updated, "age")
		}
		if v := stringArg(args, "medical_history", ""); v != "" {
			pc.MedicalHistory = v
			updated = append(updated, "medical_history")
		}
		if v := stringArg(args, "lifestyle", ""); v != "" {
			pc.Lifestyle = v
			updated = append(updated, "lifestyle")
		}
		if v := stringArg(args, "emergency_contact_name", ""); v != "" {
			pc.EmergencyContact.Name = v
			updated = append(updated, "emergency_contact_name")
		}
		if v := stringArg(args, "emergency_contact_phone", ""); v != "" {
			pc.EmergencyContact.Phone = v
			updated = append(updated, "emergency_contact_phone")
		}

		if len(updated) == 0 {
			return nil
		}
		return r.store.SavePatientContext(pc)
	})
	if err != nil {
		return nil, fmt.Errorf("could not save the patient information: %w", err)
	}

	if len(updated) == 0 {
		return map[string]any{"status": "unchanged", "updated_fields": []string{}}, nil
	}

	r.logger.Info("patient context updated", "fields", updated)
	return map[string]any{"status": "updated", "updated_fields": updated}, nil
}
