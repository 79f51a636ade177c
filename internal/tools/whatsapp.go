package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/careloop/careloop/internal/model"
)

func (r *Registry) registerWhatsAppTools() {
	r.Register(&Tool{
		Name:        "send_whatsapp_message",
		Description: "Send a WhatsApp message to a registered family contact. Confirm the recipient and content with the patient first.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"recipient_name": map[string]any{
					"type":        "string",
					"description": "Name of the contact as the patient said it (e.g. 'Marie')",
				},
				"message_content": map[string]any{
					"type":        "string",
					"description": "The message to send",
				},
			},
			"required": []string{"recipient_name", "message_content"},
		},
		Handler: r.handleSendWhatsApp,
	})
}

func (r *Registry) handleSendWhatsApp(ctx context.Context, args map[string]any) (map[string]any, error) {
	recipient := stringArg(args, "recipient_name", "")
	content := stringArg(args, "message_content", "")
	if recipient == "" || content == "" {
		return nil, fmt.Errorf("recipient_name and message_content are required")
	}

	caregivers := r.store.Caregivers()
	if len(caregivers) == 0 {
		return map[string]any{"error": "There are no contacts registered yet"}, nil
	}

	match := matchCaregiver(caregivers, recipient)
	if match == nil {
		names := make([]string, 0, len(caregivers))
		for _, cg := range caregivers {
			names = append(names, cg.Name)
		}
		return map[string]any{
			"error": fmt.Sprintf("I couldn't find %q. Registered contacts are: %s", recipient, strings.Join(names, ", ")),
		}, nil
	}
	if match.Phone == "" {
		return map[string]any{
			"error": fmt.Sprintf("I have no phone number on file for %s", match.Name),
		}, nil
	}

	if r.messenger == nil {
		return map[string]any{"error": "Messaging is not set up on this device"}, nil
	}
	if err := r.messenger.Send(ctx, match.Phone, content); err != nil {
		r.logger.Warn("whatsapp send failed", "recipient", match.Name, "error", err)
		return map[string]any{
			"error": fmt.Sprintf("I couldn't deliver the message to %s right now", match.Name),
		}, nil
	}

	r.logger.Info("whatsapp message sent", "recipient", match.Name)
	return map[string]any{
		"status":  "sent",
		"message": fmt.Sprintf("Your message to %s is on its way", match.Name),
	}, nil
}

// matchCaregiver fuzzy-matches a spoken name against registered
// contacts: case-insensitive substring in either direction, then first
// name.
func matchCaregiver(caregivers []model.Caregiver, spoken string) *model.Caregiver {
	spoken = strings.ToLower(strings.TrimSpace(spoken))
	for i := range caregivers {
		full := strings.ToLower(caregivers[i].Name)
		if strings.Contains(full, spoken) || strings.Contains(spoken, full) {
			return &caregivers[i]
		}
		if first, _, ok := strings.Cut(full, " "); ok && first == spoken {
			return &caregivers[i]
		}
	}
	return nil
}
