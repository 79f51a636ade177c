// Package api implements the HTTP surface consumed by the kiosk device
// and the caregiver dashboard.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/careloop/careloop/internal/agent"
	"github.com/careloop/careloop/internal/buildinfo"
	"github.com/careloop/careloop/internal/events"
	"github.com/careloop/careloop/internal/scheduler"
	"github.com/careloop/careloop/internal/store"
)

// Transcriber converts recorded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
	Configured() bool
}

// Synthesizer renders text as spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, modelID string) ([]byte, error)
	Configured() bool
}

// Messenger sends a text message to a phone number.
type Messenger interface {
	Send(ctx context.Context, phone, text string) error
}

// Server is the HTTP API server.
type Server struct {
	listen      string
	agent       *agent.Agent
	store       *store.Store
	scheduler   *scheduler.Scheduler
	routines    *scheduler.Routines
	transcriber Transcriber
	synthesizer Synthesizer
	messenger   Messenger
	bus         *events.Bus
	kioskURL    string
	logger      *slog.Logger
	server      *http.Server
}

// Config carries the server's collaborators. Optional capabilities may
// be nil; the matching endpoints then answer 503.
type Config struct {
	Listen      string
	Agent       *agent.Agent
	Store       *store.Store
	Scheduler   *scheduler.Scheduler
	Routines    *scheduler.Routines
	Transcriber Transcriber
	Synthesizer Synthesizer
	Messenger   Messenger
	Bus         *events.Bus
	KioskURL    string
	Logger      *slog.Logger
}

// NewServer creates an API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listen:      cfg.Listen,
		agent:       cfg.Agent,
		store:       cfg.Store,
		scheduler:   cfg.Scheduler,
		routines:    cfg.Routines,
		transcriber: cfg.Transcriber,
		synthesizer: cfg.Synthesizer,
		messenger:   cfg.Messenger,
		bus:         cfg.Bus,
		kioskURL:    cfg.KioskURL,
		logger:      logger.With("component", "api"),
	}
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Conversation
	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("GET /v1/sessions/{id}/history", s.handleSessionHistory)

	// Collections for the caregiver dashboard
	mux.HandleFunc("GET /v1/calendar-items", s.handleCalendarItemsList)
	mux.HandleFunc("POST /v1/calendar-items", s.handleCalendarItemsCreate)
	mux.HandleFunc("PATCH /v1/calendar-items/{id}", s.handleCalendarItemsPatch)
	mux.HandleFunc("DELETE /v1/calendar-items/{id}", s.handleCalendarItemsDelete)
	mux.HandleFunc("GET /v1/audio-contents", s.handleAudioContentsList)
	mux.HandleFunc("POST /v1/audio-contents", s.handleAudioContentsCreate)
	mux.HandleFunc("GET /v1/caregivers", s.handleCaregiversList)
	mux.HandleFunc("POST /v1/caregivers", s.handleCaregiversCreate)
	mux.HandleFunc("GET /v1/health-logs", s.handleHealthLogsList)
	mux.HandleFunc("GET /v1/events", s.handleEventsList)
	mux.HandleFunc("GET /v1/patient-context", s.handlePatientContextGet)

	// Kiosk device
	mux.HandleFunc("GET /v1/device/next-actions", s.handleNextActions)
	mux.HandleFunc("POST /v1/device/response", s.handleDeviceResponse)
	mux.HandleFunc("GET /v1/device/pairing-qr", s.handlePairingQR)

	// Speech and messaging capabilities
	mux.HandleFunc("POST /v1/speech/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /v1/speech/synthesize", s.handleSynthesize)
	mux.HandleFunc("POST /v1/whatsapp/send", s.handleWhatsAppSend)

	// Demo triggers
	mux.HandleFunc("POST /v1/scheduler/check", s.handleSchedulerCheck)
	mux.HandleFunc("POST /v1/routines/morning-briefing", s.handleMorningBriefing)
	mux.HandleFunc("POST /v1/routines/cognitive-game", s.handleCognitiveGame)

	// Observability
	mux.HandleFunc("GET /v1/events/ws", s.handleEventsWS)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/version", s.handleVersion)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.listen,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	s.logger.Info("starting API server", "listen", s.listen)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// writeJSON encodes v to w. Encoding errors usually mean the client
// disconnected mid-response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, buildinfo.Info())
}
