package tools

import (
	"context"
	"fmt"

	"github.com/careloop/careloop/internal/events"
	"github.com/careloop/careloop/internal/model"
)

// builtinAudio is the bounded static catalogue used when the store has
// no uploaded content of the requested type.
var builtinAudio = map[string]struct {
	title string
	url   string
}{
	model.AudioKindMusic:     {"Gentle piano", "https://cdn.careloop.example/audio/gentle-piano.mp3"},
	model.AudioKindAudiobook: {"Short stories, chapter one", "https://cdn.careloop.example/audio/short-stories-1.mp3"},
	"nature":                 {"Birdsong by the river", "https://cdn.careloop.example/audio/birdsong.mp3"},
}

func (r *Registry) registerAudioTools() {
	r.Register(&Tool{
		Name:        "play_audio_content",
		Description: "Offer the patient something to listen to: music, an audiobook, nature sounds, or a recorded family message.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"audio_type": map[string]any{
					"type":        "string",
					"description": "Kind of audio: 'music', 'audiobook', 'nature', or 'family_message'",
				},
			},
			"required": []string{"audio_type"},
		},
		Handler: r.handlePlayAudioContent,
	})
}

func (r *Registry) handlePlayAudioContent(ctx context.Context, args map[string]any) (map[string]any, error) {
	audioType := stringArg(args, "audio_type", model.AudioKindMusic)

	action := model.DeviceAction{
		ID:   model.NewID(),
		Kind: model.ActionProposeAudio,
	}

	// Prefer uploaded content for the patient; fall back to the static
	// catalogue.
	for _, ac := range r.store.AudioContents() {
		if ac.Kind == audioType && ac.CareReceiverID == model.DefaultCareReceiverID {
			action.AudioContentID = ac.ID
			action.AudioURL = ac.URL
			action.AudioTitle = ac.Title
			break
		}
	}
	if action.AudioURL == "" {
		entry, ok := builtinAudio[audioType]
		if !ok {
			return map[string]any{"error": fmt.Sprintf("I don't have any %s to play", audioType)}, nil
		}
		action.AudioURL = entry.url
		action.AudioTitle = entry.title
	}
	action.TextToSpeak = fmt.Sprintf("Here is %s for you.", action.AudioTitle)

	err := r.store.WithLock(func() error {
		actions := r.store.DeviceActions()
		return r.store.SaveDeviceActions(append(actions, action))
	})
	if err != nil {
		return nil, fmt.Errorf("could not queue the audio: %w", err)
	}

	r.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindActionQueued,
		Data:   map[string]any{"action_id": action.ID, "action_type": action.Kind},
	})

	r.logger.Info("audio proposed", "type", audioType, "title", action.AudioTitle)
	return map[string]any{"status": "queued", "message": fmt.Sprintf("Playing %s", action.AudioTitle)}, nil
}
