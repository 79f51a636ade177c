// Package speech wraps the speech capabilities the kiosk needs:
// transcription through OpenAI Whisper and synthesis through
// ElevenLabs.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/careloop/careloop/internal/httpkit"
)

// ErrNotConfigured is returned when the relevant API key is missing.
var ErrNotConfigured = errors.New("speech: not configured")

const (
	whisperURL   = "https://api.openai.com/v1/audio/transcriptions"
	whisperModel = "whisper-1"

	// MaxAudioBytes is the upload limit the transcription API enforces.
	MaxAudioBytes = 25 << 20
)

// audioExt maps incoming MIME types to the filename extension the
// transcription endpoint uses to sniff the container format.
var audioExt = map[string]string{
	"audio/webm":  "webm",
	"audio/ogg":   "ogg",
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "mp4",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/flac":  "flac",
}

// Transcriber converts recorded audio to text via the Whisper API.
type Transcriber struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTranscriber creates a Whisper transcriber.
func NewTranscriber(apiKey string, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		apiKey:     apiKey,
		baseURL:    whisperURL,
		logger:     logger.With("component", "whisper"),
		httpClient: httpkit.NewClient(httpkit.WithTimeout(30 * time.Second)),
	}
}

// Configured reports whether an API key is set.
func (t *Transcriber) Configured() bool { return t.apiKey != "" }

// Transcribe sends audio bytes to Whisper and returns the recognized
// text.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if t.apiKey == "" {
		return "", ErrNotConfigured
	}
	if len(audio) > MaxAudioBytes {
		return "", fmt.Errorf("audio too large: %d bytes (limit %d)", len(audio), MaxAudioBytes)
	}

	ext, ok := audioExt[mimeType]
	if !ok {
		ext = "webm"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio."+ext)
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := mw.WriteField("model", whisperModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 1024)
		t.logger.Error("whisper error", "status", resp.StatusCode, "body", errBody)
		return "", fmt.Errorf("whisper error %d: %s", resp.StatusCode, errBody)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	t.logger.Debug("transcription complete", "audio_bytes", len(audio), "text_len", len(out.Text))
	return out.Text, nil
}
