package engine

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"

	"ttsgate/internal/models"
)

// ---------------------------------------------------------------------------
// Gemini speech engine
// Uses the Google Gen AI SDK with the AUDIO response modality. The API
// returns raw 24kHz 16-bit mono PCM, which is wrapped into a WAV container
// before it leaves the engine.
// ---------------------------------------------------------------------------

const (
	geminiSampleRate = 24000
	geminiChannels   = 1
	geminiBitDepth   = 16
)

var geminiVoices = []string{"Kore", "Puck", "Charon", "Fenrir", "Aoede", "Leda", "Orus", "Zephyr"}

var geminiLanguages = []string{"en", "es", "fr", "de", "it", "pt", "pl", "ru", "nl", "ja", "ko", "zh", "hi", "ar"}

type GeminiEngine struct {
	apiKey string
	model  string
}

var _ Capability = (*GeminiEngine)(nil)

func NewGeminiEngine(apiKey, model string) *GeminiEngine {
	if model == "" {
		model = "gemini-2.5-flash-preview-tts"
	}
	return &GeminiEngine{
		apiKey: apiKey,
		model:  model,
	}
}

func (e *GeminiEngine) Engine() string {
	return "gemini"
}

func (e *GeminiEngine) Describe() *models.ReadinessInfo {
	return &models.ReadinessInfo{
		Engine: e.Engine(),
		Models: map[string]models.ModelInfo{
			e.model: {
				Name:                e.model,
				Languages:           geminiLanguages,
				Speakers:            geminiVoices,
				SupportsCustomVoice: false,
				Notes:               "Prebuilt voices; output language follows the input text.",
			},
		},
	}
}

func (e *GeminiEngine) SynthesizeFromSpeaker(ctx context.Context, req Request) ([]byte, error) {
	if !containsSpeaker(geminiVoices, req.Speaker) {
		return nil, unknownSpeaker(req.Speaker)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := e.model
	if req.Model != "" {
		model = req.Model
	}

	log.Printf("[Gemini] Generating speech (model=%s, voice=%s, textLen=%d)", model, req.Speaker, len(req.Text))

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: req.Speaker,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini speech request failed: %w", err)
	}

	pcm := extractInlineAudio(resp)
	if len(pcm) == 0 {
		return nil, fmt.Errorf("gemini returned no audio data")
	}

	log.Printf("[Gemini] Speech generated (%d PCM bytes)", len(pcm))
	return pcmToWAV(pcm, geminiSampleRate, geminiChannels, geminiBitDepth), nil
}

func (e *GeminiEngine) SynthesizeFromReference(ctx context.Context, req Request) ([]byte, error) {
	return nil, ErrNoCustomVoice
}

func extractInlineAudio(resp *genai.GenerateContentResponse) []byte {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}
