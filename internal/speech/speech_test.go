package speech

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer key" {
			t.Errorf("auth = %q", auth)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if model := r.FormValue("model"); model != "whisper-1" {
			t.Errorf("model = %q", model)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if !strings.HasSuffix(hdr.Filename, ".ogg") {
			t.Errorf("filename = %q, want .ogg suffix", hdr.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "bonjour"}`))
	}))
	defer srv.Close()

	tr := NewTranscriber("key", nil)
	tr.baseURL = srv.URL

	text, err := tr.Transcribe(context.Background(), []byte("fake-audio"), "audio/ogg")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "bonjour" {
		t.Errorf("text = %q", text)
	}
}

func TestTranscribe_limits(t *testing.T) {
	tr := NewTranscriber("key", nil)
	if _, err := tr.Transcribe(context.Background(), make([]byte, MaxAudioBytes+1), "audio/webm"); err == nil {
		t.Error("expected error above size limit")
	}

	unconfigured := NewTranscriber("", nil)
	if _, err := unconfigured.Transcribe(context.Background(), []byte("x"), "audio/webm"); err != ErrNotConfigured {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSynthesize(t *testing.T) {
	audio := []byte("mp3-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "key" {
			t.Errorf("xi-api-key = %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, "/voice-1") {
			t.Errorf("path = %q, want voice-1 suffix", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	s := NewSynthesizer("key", "voice-1", "eleven_turbo_v2", nil)
	s.baseURL = srv.URL

	got, err := s.Synthesize(context.Background(), "Hello Simone", "", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("audio = %q", got)
	}
}

func TestSynthesize_limits(t *testing.T) {
	s := NewSynthesizer("key", "v", "m", nil)
	if _, err := s.Synthesize(context.Background(), strings.Repeat("a", MaxSynthesisChars+1), "", ""); err == nil {
		t.Error("expected error above char limit")
	}

	unconfigured := NewSynthesizer("", "v", "m", nil)
	if _, err := unconfigured.Synthesize(context.Background(), "hi", "", ""); err != ErrNotConfigured {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
