package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/careloop/careloop/internal/events"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/scheduler"
	"github.com/careloop/careloop/internal/speech"
)

// --- Conversation ---

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = scheduler.DefaultSessionID
	}

	reply, err := s.agent.ProcessUserMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"session_id": req.SessionID,
		"reply":      reply,
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	history := s.agent.SessionHistory(r.PathValue("id"))
	s.writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// --- Calendar items ---

func (s *Server) handleCalendarItemsList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.CalendarItems())
}

func (s *Server) handleCalendarItemsCreate(w http.ResponseWriter, r *http.Request) {
	var item model.CalendarItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if item.Title == "" || item.ScheduledAt == "" {
		s.writeError(w, http.StatusBadRequest, "title and scheduled_at are required")
		return
	}
	if _, err := time.Parse(time.RFC3339, item.ScheduledAt); err != nil {
		s.writeError(w, http.StatusBadRequest, "scheduled_at must be RFC 3339")
		return
	}

	item.ID = model.NewID()
	if item.CareReceiverID == "" {
		item.CareReceiverID = model.DefaultCareReceiverID
	}
	if item.Type == "" {
		item.Type = model.ItemTypeReminder
	}
	item.Status = model.ItemStatusScheduled
	item.CreatedAt = time.Now().UTC()

	err := s.store.WithLock(func() error {
		items := s.store.CalendarItems()
		return s.store.SaveCalendarItems(append(items, item))
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not save calendar item")
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

type calendarItemPatch struct {
	Status      *string `json:"status"`
	Title       *string `json:"title"`
	MessageText *string `json:"message_text"`
	ScheduledAt *string `json:"scheduled_at"`
}

func (s *Server) handleCalendarItemsPatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch calendarItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if patch.ScheduledAt != nil {
		if _, err := time.Parse(time.RFC3339, *patch.ScheduledAt); err != nil {
			s.writeError(w, http.StatusBadRequest, "scheduled_at must be RFC 3339")
			return
		}
	}

	var updated *model.CalendarItem
	err := s.store.WithLock(func() error {
		items := s.store.CalendarItems()
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if patch.Status != nil {
				items[i].Status = *patch.Status
			}
			if patch.Title != nil {
				items[i].Title = *patch.Title
			}
			if patch.MessageText != nil {
				items[i].MessageText = *patch.MessageText
			}
			if patch.ScheduledAt != nil {
				items[i].ScheduledAt = *patch.ScheduledAt
			}
			updated = &items[i]
			return s.store.SaveCalendarItems(items)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not save calendar item")
		return
	}
	if updated == nil {
		s.writeError(w, http.StatusNotFound, "calendar item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleCalendarItemsDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found := false
	err := s.store.WithLock(func() error {
		items := s.store.CalendarItems()
		kept := items[:0]
		for _, item := range items {
			if item.ID == id {
				found = true
				continue
			}
			kept = append(kept, item)
		}
		if !found {
			return nil
		}
		return s.store.SaveCalendarItems(kept)
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not delete calendar item")
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "calendar item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Audio contents ---

func (s *Server) handleAudioContentsList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.AudioContents())
}

func (s *Server) handleAudioContentsCreate(w http.ResponseWriter, r *http.Request) {
	var content model.AudioContent
	if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if content.Title == "" || content.URL == "" {
		s.writeError(w, http.StatusBadRequest, "title and url are required")
		return
	}

	content.ID = model.NewID()
	if content.CareReceiverID == "" {
		content.CareReceiverID = model.DefaultCareReceiverID
	}
	if content.Kind == "" {
		content.Kind = model.AudioKindOther
	}
	content.CreatedAt = time.Now().UTC()

	err := s.store.WithLock(func() error {
		contents := s.store.AudioContents()
		return s.store.SaveAudioContents(append(contents, content))
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not save audio content")
		return
	}
	s.writeJSON(w, http.StatusCreated, content)
}

// --- Caregivers, health logs, events, patient context ---

func (s *Server) handleCaregiversList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Caregivers())
}

func (s *Server) handleCaregiversCreate(w http.ResponseWriter, r *http.Request) {
	var cg model.Caregiver
	if err := json.NewDecoder(r.Body).Decode(&cg); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if cg.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	cg.ID = model.NewID()
	cg.CreatedAt = time.Now().UTC()

	err := s.store.WithLock(func() error {
		caregivers := s.store.Caregivers()
		if cg.Primary {
			for i := range caregivers {
				caregivers[i].Primary = false
			}
		}
		return s.store.SaveCaregivers(append(caregivers, cg))
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not save caregiver")
		return
	}
	s.writeJSON(w, http.StatusCreated, cg)
}

func (s *Server) handleHealthLogsList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.HealthLogs())
}

func (s *Server) handleEventsList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Events())
}

func (s *Server) handlePatientContextGet(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.PatientContext())
}

// --- Kiosk device ---

func (s *Server) handleNextActions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"actions": s.store.DeviceActions()})
}

type deviceResponseRequest struct {
	ActionID string `json:"action_id"`
	Response string `json:"response"` // "yes", "no", or "later"
}

// handleDeviceResponse consumes a pending device action. A "yes" on a
// reminder completes its calendar item; "no" and "later" leave the
// item as sent and record a postponement.
func (s *Server) handleDeviceResponse(w http.ResponseWriter, r *http.Request) {
	var req deviceResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ActionID == "" {
		s.writeError(w, http.StatusBadRequest, "action_id is required")
		return
	}

	var consumed *model.DeviceAction
	err := s.store.WithLock(func() error {
		actions := s.store.DeviceActions()
		kept := actions[:0]
		for _, action := range actions {
			if action.ID == req.ActionID {
				a := action
				consumed = &a
				continue
			}
			kept = append(kept, action)
		}
		if consumed == nil {
			return nil
		}
		if err := s.store.SaveDeviceActions(kept); err != nil {
			return err
		}

		if req.Response == "yes" && consumed.CalendarItemID != "" {
			items := s.store.CalendarItems()
			for i := range items {
				if items[i].ID == consumed.CalendarItemID && items[i].Status == model.ItemStatusSent {
					items[i].Status = model.ItemStatusCompleted
					return s.store.SaveCalendarItems(items)
				}
			}
		}
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not record device response")
		return
	}
	if consumed == nil {
		s.writeError(w, http.StatusNotFound, "device action not found")
		return
	}

	eventType := model.EventReminderConfirmed
	if req.Response != "yes" {
		eventType = model.EventReminderPostponed
	}
	_ = s.store.AppendEvent(model.CareLoopEvent{
		ID:             model.NewID(),
		CareReceiverID: model.DefaultCareReceiverID,
		Type:           eventType,
		Payload: map[string]any{
			"action_id":        consumed.ID,
			"calendar_item_id": consumed.CalendarItemID,
			"response":         req.Response,
		},
		CreatedAt: time.Now().UTC(),
	})

	s.bus.Publish(events.Event{
		Source: events.SourceDevice,
		Kind:   events.KindDeviceResponse,
		Data:   map[string]any{"action_id": consumed.ID, "response": req.Response},
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// handlePairingQR renders the kiosk base URL as a PNG QR code so a new
// device can be pointed at this backend without typing.
func (s *Server) handlePairingQR(w http.ResponseWriter, r *http.Request) {
	if s.kioskURL == "" {
		s.writeError(w, http.StatusServiceUnavailable, "kiosk base URL not configured")
		return
	}
	png, err := qrcode.Encode(s.kioskURL, qrcode.Medium, 256)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "could not render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		s.logger.Debug("failed to write QR response", "error", err)
	}
}

// --- Speech and messaging ---

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil || !s.transcriber.Configured() {
		s.writeError(w, http.StatusServiceUnavailable, "transcription is not configured")
		return
	}

	audio, err := io.ReadAll(io.LimitReader(r.Body, speech.MaxAudioBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read audio body")
		return
	}
	if len(audio) > speech.MaxAudioBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "audio exceeds the 25 MB limit")
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), audio, r.Header.Get("Content-Type"))
	if err != nil {
		s.logger.Error("transcription failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
	ModelID string `json:"model_id,omitempty"`
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if s.synthesizer == nil || !s.synthesizer.Configured() {
		s.writeError(w, http.StatusServiceUnavailable, "speech synthesis is not configured")
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	audio, err := s.synthesizer.Synthesize(r.Context(), req.Text, req.VoiceID, req.ModelID)
	if err != nil {
		s.logger.Error("synthesis failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	if _, err := w.Write(audio); err != nil {
		s.logger.Debug("failed to write audio response", "error", err)
	}
}

type whatsAppSendRequest struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

func (s *Server) handleWhatsAppSend(w http.ResponseWriter, r *http.Request) {
	if s.messenger == nil {
		s.writeError(w, http.StatusServiceUnavailable, "messaging is not configured")
		return
	}

	var req whatsAppSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Phone == "" || req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "phone and text are required")
		return
	}

	if err := s.messenger.Send(r.Context(), req.Phone, req.Text); err != nil {
		s.logger.Error("whatsapp send failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "message delivery failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// --- Demo triggers ---

func (s *Server) handleSchedulerCheck(w http.ResponseWriter, r *http.Request) {
	due, err := s.scheduler.CheckDueItems(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "due-item scan failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"due": due})
}

func (s *Server) handleMorningBriefing(w http.ResponseWriter, r *http.Request) {
	if err := s.routines.MorningBriefing(r.Context()); err != nil {
		s.logger.Error("morning briefing failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "morning briefing failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func (s *Server) handleCognitiveGame(w http.ResponseWriter, r *http.Request) {
	if err := s.routines.CognitiveGame(r.Context()); err != nil {
		s.logger.Error("cognitive game failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "cognitive game failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}
