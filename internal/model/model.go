// Package model defines the CareLoop domain entities persisted in the
// document store. Field tags match the on-disk JSON schema consumed by
// the caregiver dashboard and the kiosk device.
package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCareReceiverID identifies the single patient of a kiosk
// deployment. Multi-patient routing is out of scope for now.
const DefaultCareReceiverID = "care_receiver_1"

// Calendar item types.
const (
	ItemTypeReminder  = "reminder"
	ItemTypeAudioPush = "audio_push"
)

// Calendar item statuses. An item starts as scheduled and reaches
// exactly one terminal status. Invalid marks a quarantined item whose
// scheduled_at could not be parsed.
const (
	ItemStatusScheduled = "scheduled"
	ItemStatusSent      = "sent"
	ItemStatusCompleted = "completed"
	ItemStatusCancelled = "cancelled"
	ItemStatusInvalid   = "invalid"
)

// Repeat rules. Weekly rules carry a day suffix ("weekly:monday");
// anything else is treated as non-recurring.
const (
	RepeatNone         = "none"
	RepeatDaily        = "daily"
	RepeatWeeklyPrefix = "weekly"
)

// Device action kinds for the kiosk.
const (
	ActionSpeakReminder   = "speak_reminder"
	ActionProposeAudio    = "propose_audio"
	ActionProposeExercise = "propose_exercise"
)

// Audio content kinds.
const (
	AudioKindMusic         = "music"
	AudioKindAudiobook     = "audiobook"
	AudioKindFamilyMessage = "family_message"
	AudioKindOther         = "other"
)

// Timeline event types.
const (
	EventReminderCreated   = "reminder_created"
	EventReminderDelivered = "reminder_delivered"
	EventReminderConfirmed = "reminder_confirmed"
	EventReminderPostponed = "reminder_postponed"
	EventReminderEscalated = "reminder_escalated"
	EventAudioQueued       = "audio_queued"
	EventAudioPlayed       = "audio_played"
	EventHelpRequested     = "help_requested"
	EventCaregiverNotified = "caregiver_notified"
)

// CalendarItem is a schedulable reminder or audio push for the patient.
// ScheduledAt is stored as an RFC 3339 string rather than a time.Time so
// a malformed value survives a load/save round trip and can be
// quarantined instead of silently rewritten.
type CalendarItem struct {
	ID             string    `json:"id"`
	CareReceiverID string    `json:"care_receiver_id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	MessageText    string    `json:"message_text,omitempty"`
	ScheduledAt    string    `json:"scheduled_at"`
	RepeatRule     string    `json:"repeat_rule,omitempty"`
	Status         string    `json:"status"`
	AudioContentID string    `json:"audio_content_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// DueAt parses the item's absolute due timestamp (UTC).
func (c *CalendarItem) DueAt() (time.Time, error) {
	return time.Parse(time.RFC3339, c.ScheduledAt)
}

// AudioContent is an uploaded audio resource (music, audiobook, family
// message) selectable by the scheduler and the agent.
type AudioContent struct {
	ID             string    `json:"id"`
	CareReceiverID string    `json:"care_receiver_id"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Kind           string    `json:"kind"`
	Recommendable  bool      `json:"recommendable"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeviceAction is a pending instruction queued for the kiosk. Ephemeral:
// removed once the device reports a response.
type DeviceAction struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	TextToSpeak    string `json:"text_to_speak"`
	AudioURL       string `json:"audio_url,omitempty"`
	AudioContentID string `json:"audio_content_id,omitempty"`
	AudioTitle     string `json:"audio_title,omitempty"`
	CalendarItemID string `json:"calendar_item_id,omitempty"`
}

// CareLoopEvent is an immutable timeline entry. Append-only.
type CareLoopEvent struct {
	ID             string         `json:"id"`
	CareReceiverID string         `json:"care_receiver_id"`
	Type           string         `json:"type"`
	Payload        map[string]any `json:"payload"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Caregiver is a contact who looks after the patient.
type Caregiver struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone,omitempty"`
	TelegramChatID string    `json:"telegram_chat_id,omitempty"`
	Relation       string    `json:"relation,omitempty"`
	Primary        bool      `json:"primary,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// EmergencyContact is the person to reach in an emergency.
type EmergencyContact struct {
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Relation string `json:"relation,omitempty"`
}

// PatientContext is the single mutable document describing the patient.
// Updated incrementally via partial field merges.
type PatientContext struct {
	Name             string           `json:"name,omitempty"`
	Age              int              `json:"age,omitempty"`
	MedicalHistory   string           `json:"medical_history,omitempty"`
	Lifestyle        string           `json:"lifestyle,omitempty"`
	EmergencyContact EmergencyContact `json:"emergency_contact,omitempty"`
}

// HealthLog is a dated caregiver-visible health observation.
type HealthLog struct {
	ID              string    `json:"id"`
	Mood            string    `json:"mood"`
	MedicationTaken bool      `json:"medication_taken"`
	Notes           string    `json:"notes,omitempty"`
	Category        string    `json:"category"`
	CreatedAt       time.Time `json:"created_at"`
}

// ConversationMessage is one turn in the durable conversation log.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the durable business record of one session's dialogue,
// distinct from the live in-memory LLM conversation handle.
type Conversation struct {
	SessionID string                `json:"session_id"`
	Timestamp time.Time             `json:"timestamp"`
	Messages  []ConversationMessage `json:"messages"`
}

// HistoryItem is one renderable turn of a live session, as exposed to
// API consumers.
type HistoryItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewID generates a new UUIDv7, falling back to v4 if the clock-based
// generator fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
