// Package store is the JSON-file document store behind all CareLoop
// state. One file per collection, replaced wholesale on every write.
// Readers tolerate a missing or corrupt file by returning the empty
// default; writers go through an advisory lock so read-modify-write
// sequences are serialized against the background scheduler.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/careloop/careloop/internal/model"
)

// Collection file names.
const (
	fileCalendarItems  = "calendar_items.json"
	fileAudioContents  = "audio_contents.json"
	fileDeviceActions  = "device_actions.json"
	fileEvents         = "events.json"
	fileCaregivers     = "caregivers.json"
	fileHealthLogs     = "health_logs.json"
	fileConversations  = "conversations.json"
	filePatientContext = "patient_context.json"
)

// Store reads and writes the JSON collections under a data directory.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir, logger: logger.With("component", "store")}, nil
}

// Dir returns the data directory path.
func (s *Store) Dir() string { return s.dir }

// WithLock runs fn under the store's advisory lock. Every logical
// read-modify-write unit must go through here; plain reads may not.
// The lock is not reentrant: fn must not call WithLock again.
func (s *Store) WithLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// load decodes the named collection file into v. A missing or corrupt
// file leaves v at its zero value: the store must never fail a read.
func (s *Store) load(name string, v any) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("corrupt collection file, treating as empty", "file", name, "error", err)
	}
}

// save replaces the named collection file wholesale. The write goes to
// a temp file first and is renamed into place so a crash mid-write
// cannot leave a truncated collection behind.
func (s *Store) save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// CalendarItems returns all calendar items.
func (s *Store) CalendarItems() []model.CalendarItem {
	var items []model.CalendarItem
	s.load(fileCalendarItems, &items)
	return items
}

// SaveCalendarItems replaces the calendar items collection.
func (s *Store) SaveCalendarItems(items []model.CalendarItem) error {
	return s.save(fileCalendarItems, items)
}

// AudioContents returns all audio contents.
func (s *Store) AudioContents() []model.AudioContent {
	var contents []model.AudioContent
	s.load(fileAudioContents, &contents)
	return contents
}

// SaveAudioContents replaces the audio contents collection.
func (s *Store) SaveAudioContents(contents []model.AudioContent) error {
	return s.save(fileAudioContents, contents)
}

// DeviceActions returns the pending device actions.
func (s *Store) DeviceActions() []model.DeviceAction {
	var actions []model.DeviceAction
	s.load(fileDeviceActions, &actions)
	return actions
}

// SaveDeviceActions replaces the device actions collection.
func (s *Store) SaveDeviceActions(actions []model.DeviceAction) error {
	return s.save(fileDeviceActions, actions)
}

// Events returns the timeline events.
func (s *Store) Events() []model.CareLoopEvent {
	var events []model.CareLoopEvent
	s.load(fileEvents, &events)
	return events
}

// SaveEvents replaces the events collection.
func (s *Store) SaveEvents(events []model.CareLoopEvent) error {
	return s.save(fileEvents, events)
}

// AppendEvent appends one timeline event under the store lock. The
// timeline is append-only; existing events are never touched.
func (s *Store) AppendEvent(ev model.CareLoopEvent) error {
	return s.WithLock(func() error {
		events := s.Events()
		events = append(events, ev)
		return s.SaveEvents(events)
	})
}

// Caregivers returns all registered caregivers.
func (s *Store) Caregivers() []model.Caregiver {
	var caregivers []model.Caregiver
	s.load(fileCaregivers, &caregivers)
	return caregivers
}

// SaveCaregivers replaces the caregivers collection.
func (s *Store) SaveCaregivers(caregivers []model.Caregiver) error {
	return s.save(fileCaregivers, caregivers)
}

// HealthLogs returns all health log entries.
func (s *Store) HealthLogs() []model.HealthLog {
	var logs []model.HealthLog
	s.load(fileHealthLogs, &logs)
	return logs
}

// SaveHealthLogs replaces the health logs collection.
func (s *Store) SaveHealthLogs(logs []model.HealthLog) error {
	return s.save(fileHealthLogs, logs)
}

// Conversations returns the durable conversation log.
func (s *Store) Conversations() []model.Conversation {
	var convs []model.Conversation
	s.load(fileConversations, &convs)
	return convs
}

// SaveConversations replaces the conversations collection.
func (s *Store) SaveConversations(convs []model.Conversation) error {
	return s.save(fileConversations, convs)
}

// AppendToConversation appends one message to a session's durable
// conversation, creating the session entry on first use. Runs under
// the store lock.
func (s *Store) AppendToConversation(sessionID, role, content string) error {
	return s.WithLock(func() error {
		convs := s.Conversations()
		idx := -1
		for i := range convs {
			if convs[i].SessionID == sessionID {
				idx = i
				break
			}
		}
		if idx < 0 {
			convs = append(convs, model.Conversation{
				SessionID: sessionID,
				Timestamp: time.Now().UTC(),
			})
			idx = len(convs) - 1
		}
		convs[idx].Messages = append(convs[idx].Messages, model.ConversationMessage{
			Role:    role,
			Content: content,
		})
		return s.SaveConversations(convs)
	})
}

// PatientContext returns the patient context document.
func (s *Store) PatientContext() model.PatientContext {
	var ctx model.PatientContext
	s.load(filePatientContext, &ctx)
	return ctx
}

// SavePatientContext replaces the patient context document.
func (s *Store) SavePatientContext(ctx model.PatientContext) error {
	return s.save(filePatientContext, ctx)
}
