package engine

import (
	"context"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"ttsgate/internal/models"
)

// ---------------------------------------------------------------------------
// OpenAI speech engine
// Speaker mode maps onto the fixed set of OpenAI voices; reference audio is
// not supported by the API.
// ---------------------------------------------------------------------------

var openAIVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// Languages the speech endpoint handles well; the voice speaks whatever
// language the input text is in.
var openAILanguages = []string{"en", "es", "fr", "de", "it", "pt", "pl", "ru", "nl", "ja", "zh"}

type OpenAIEngine struct {
	client *openai.Client
	model  string
}

var _ Capability = (*OpenAIEngine)(nil)

func NewOpenAIEngine(apiKey, model string) *OpenAIEngine {
	if model == "" {
		model = "tts-1"
	}
	return &OpenAIEngine{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (e *OpenAIEngine) Engine() string {
	return "openai"
}

func (e *OpenAIEngine) Describe() *models.ReadinessInfo {
	return &models.ReadinessInfo{
		Engine: e.Engine(),
		Models: map[string]models.ModelInfo{
			e.model: {
				Name:                e.model,
				Languages:           openAILanguages,
				Speakers:            openAIVoices,
				SupportsCustomVoice: false,
				Notes:               "Hosted voices only. The voice speaks the language of the input text.",
			},
		},
	}
}

func (e *OpenAIEngine) SynthesizeFromSpeaker(ctx context.Context, req Request) ([]byte, error) {
	if !containsSpeaker(openAIVoices, req.Speaker) {
		return nil, unknownSpeaker(req.Speaker)
	}

	model := e.model
	if req.Model != "" {
		model = req.Model
	}

	log.Printf("[OpenAI] Generating speech (model=%s, voice=%s, textLen=%d)", model, req.Speaker, len(req.Text))

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(req.Speaker),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai audio response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai returned empty audio")
	}

	log.Printf("[OpenAI] Speech generated (%d bytes)", len(audio))
	return audio, nil
}

func (e *OpenAIEngine) SynthesizeFromReference(ctx context.Context, req Request) ([]byte, error) {
	return nil, ErrNoCustomVoice
}
