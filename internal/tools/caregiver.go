package tools

import (
	"context"
	"fmt"

	"github.com/careloop/careloop/internal/model"
)

func (r *Registry) registerCaregiverTools() {
	r.Register(&Tool{
		Name:        "contact_primary_caregiver",
		Description: "Notify the primary caregiver with a message. Use for anything worrying: pain, a fall, fear, or persistent confusion.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "What to tell the caregiver",
				},
				"urgency": map[string]any{
					"type":        "string",
					"description": "Urgency level: 'normal' or 'high'. Default: normal.",
				},
			},
			"required": []string{"message"},
		},
		Handler: r.handleContactPrimaryCaregiver,
	})
}

func (r *Registry) handleContactPrimaryCaregiver(ctx context.Context, args map[string]any) (map[string]any, error) {
	message := stringArg(args, "message", "")
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}
	urgency := stringArg(args, "urgency", "normal")

	var primary *model.Caregiver
	for _, cg := range r.store.Caregivers() {
		if cg.Primary {
			c := cg
			primary = &c
			break
		}
	}
	if primary == nil {
		return map[string]any{"error": "No primary caregiver is registered"}, nil
	}

	eventType := model.EventCaregiverNotified
	if urgency == "high" {
		eventType = model.EventHelpRequested
	}
	_ = r.store.AppendEvent(model.CareLoopEvent{
		ID:             model.NewID(),
		CareReceiverID: model.DefaultCareReceiverID,
		Type:           eventType,
		Payload: map[string]any{
			"caregiver_id": primary.ID,
			"caregiver":    primary.Name,
			"message":      message,
			"urgency":      urgency,
		},
		CreatedAt: r.now().UTC(),
	})

	// Best effort: push over WhatsApp too when both the messenger and a
	// phone number are available. The timeline event is the durable
	// notification either way.
	delivered := false
	if r.messenger != nil && primary.Phone != "" {
		if err := r.messenger.Send(ctx, primary.Phone, message); err != nil {
			r.logger.Warn("caregiver whatsapp delivery failed", "error", err)
		} else {
			delivered = true
		}
	}

	r.logger.Info("caregiver contacted", "caregiver", primary.Name, "urgency", urgency, "whatsapp", delivered)
	return map[string]any{
		"status":  "notified",
		"message": fmt.Sprintf("%s has been notified", primary.Name),
	}, nil
}
