package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/careloop/careloop/internal/httpkit"
)

const (
	elevenLabsURL = "https://api.elevenlabs.io/v1/text-to-speech"

	// MaxSynthesisChars is the per-request character limit.
	MaxSynthesisChars = 5000
)

// Synthesizer converts text into spoken audio via ElevenLabs.
type Synthesizer struct {
	apiKey     string
	baseURL    string
	voiceID    string
	modelID    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSynthesizer creates an ElevenLabs synthesizer with default voice
// and model IDs. Either may be overridden per-call.
func NewSynthesizer(apiKey, voiceID, modelID string, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		apiKey:     apiKey,
		baseURL:    elevenLabsURL,
		voiceID:    voiceID,
		modelID:    modelID,
		logger:     logger.With("component", "elevenlabs"),
		httpClient: httpkit.NewClient(httpkit.WithTimeout(30 * time.Second)),
	}
}

// Configured reports whether an API key is set.
func (s *Synthesizer) Configured() bool { return s.apiKey != "" }

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize renders text as MP3 audio. Empty voiceID or modelID fall
// back to the synthesizer defaults.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceID, modelID string) ([]byte, error) {
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if len(text) > MaxSynthesisChars {
		return nil, fmt.Errorf("text too long: %d chars (limit %d)", len(text), MaxSynthesisChars)
	}
	if voiceID == "" {
		voiceID = s.voiceID
	}
	if modelID == "" {
		modelID = s.modelID
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+voiceID, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 1024)
		s.logger.Error("elevenlabs error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("elevenlabs error %d: %s", resp.StatusCode, errBody)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	s.logger.Debug("synthesis complete", "text_len", len(text), "audio_bytes", len(audio))
	return audio, nil
}
