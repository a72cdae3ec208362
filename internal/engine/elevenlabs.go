package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"ttsgate/internal/models"
)

// ---------------------------------------------------------------------------
// ElevenLabs speech engine
// REST API; speaker ids are ElevenLabs voice ids. PCM output is requested so
// the artifact can be wrapped into WAV like the other engines.
// ---------------------------------------------------------------------------

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsOutputFormat = "pcm_22050"
	elevenLabsSampleRate   = 22050
)

// Shared stock voices published in the readiness descriptor.
var elevenLabsVoices = []string{
	"pNInz6obpgDQGcFmaJgB", // Adam
	"21m00Tcm4TlvDq8ikWAM", // Rachel
	"AZnzlk1XvdvUeBnXmlld", // Domi
	"EXAVITQu4vr4xnSDxMaL", // Bella
}

var elevenLabsLanguages = []string{"en", "es", "fr", "de", "it", "pt", "pl", "ru", "nl", "ja", "ko", "zh", "hi"}

type ElevenLabsEngine struct {
	apiKey string
	model  string
	client *http.Client
}

var _ Capability = (*ElevenLabsEngine)(nil)

func NewElevenLabsEngine(apiKey string) *ElevenLabsEngine {
	return &ElevenLabsEngine{
		apiKey: apiKey,
		model:  elevenLabsDefaultModel,
		client: &http.Client{Timeout: 90 * time.Second},
	}
}

func (e *ElevenLabsEngine) Engine() string {
	return "elevenlabs"
}

func (e *ElevenLabsEngine) Describe() *models.ReadinessInfo {
	return &models.ReadinessInfo{
		Engine: e.Engine(),
		Models: map[string]models.ModelInfo{
			e.model: {
				Name:                e.model,
				Languages:           elevenLabsLanguages,
				Speakers:            elevenLabsVoices,
				SupportsCustomVoice: false,
				Notes:               "Flash v2.5, 32 languages. Speaker ids are ElevenLabs voice ids.",
			},
		},
	}
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (e *ElevenLabsEngine) SynthesizeFromSpeaker(ctx context.Context, req Request) ([]byte, error) {
	if !containsSpeaker(elevenLabsVoices, req.Speaker) {
		return nil, unknownSpeaker(req.Speaker)
	}

	model := e.model
	if req.Model != "" {
		model = req.Model
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: model,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.60,
			SimilarityBoost: 0.80,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal elevenlabs request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		elevenLabsBaseURL, req.Speaker, elevenLabsOutputFormat)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create elevenlabs request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	log.Printf("[ElevenLabs] Generating speech (voice=%s, model=%s, textLen=%d)", req.Speaker, model, len(req.Text))

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("elevenlabs returned status %d: %s", resp.StatusCode, string(detail))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read elevenlabs audio response: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("elevenlabs returned empty audio")
	}

	log.Printf("[ElevenLabs] Speech generated (%d PCM bytes)", len(pcm))
	return pcmToWAV(pcm, elevenLabsSampleRate, 1, 16), nil
}

func (e *ElevenLabsEngine) SynthesizeFromReference(ctx context.Context, req Request) ([]byte, error) {
	return nil, ErrNoCustomVoice
}
