// Package engine defines the synthesis capability contract the worker poll
// loop drives, plus the concrete engine adapters.
package engine

import (
	"context"
	"errors"
	"fmt"

	"ttsgate/internal/config"
	"ttsgate/internal/models"
)

// ErrUnknownSpeaker is returned when a speaker id is not in the engine's
// published speaker set.
var ErrUnknownSpeaker = errors.New("unknown speaker")

// ErrNoCustomVoice is returned by engines that cannot condition on
// reference audio.
var ErrNoCustomVoice = errors.New("engine does not support reference audio")

// Request carries the decoded job fields into a capability. Model selects an
// engine-specific submodel and may be empty.
type Request struct {
	Text     string
	Language string
	Model    string
	Speaker  string
	RefWAV   string
}

// Capability is the contract a loaded synthesis backend exposes to its
// worker. Implementations are not assumed safe for concurrent invocation;
// the worker calls them strictly one job at a time.
//
// Either operation may fail for capability-specific reasons (unsupported
// language, malformed audio, provider errors); failures surface as a single
// error with a message, never partially.
type Capability interface {
	// Engine is the queue name this capability serves.
	Engine() string

	// Describe returns the readiness descriptor published once at startup.
	Describe() *models.ReadinessInfo

	// SynthesizeFromSpeaker renders text with a named speaker from the
	// published speaker set. Fails with ErrUnknownSpeaker otherwise.
	SynthesizeFromSpeaker(ctx context.Context, req Request) ([]byte, error)

	// SynthesizeFromReference renders text conditioned on arbitrary
	// reference audio; the engine normalizes format and rate internally.
	SynthesizeFromReference(ctx context.Context, req Request) ([]byte, error)
}

func unknownSpeaker(id string) error {
	return fmt.Errorf("%w: %q", ErrUnknownSpeaker, id)
}

func containsSpeaker(speakers []string, id string) bool {
	for _, s := range speakers {
		if s == id {
			return true
		}
	}
	return false
}

// New builds the capability for a named engine. The name doubles as the
// engine kind for the hosted providers; anything else is served by the
// command engine wrapping a local model CLI.
func New(name string, cfg *config.Config) (Capability, error) {
	switch name {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai engine")
		}
		return NewOpenAIEngine(cfg.OpenAIKey, cfg.OpenAIModel), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini engine")
		}
		return NewGeminiEngine(cfg.GeminiKey, cfg.GeminiModel), nil
	case "elevenlabs":
		if cfg.ElevenLabsKey == "" {
			return nil, fmt.Errorf("ELEVENLABS_API_KEY is required for the elevenlabs engine")
		}
		return NewElevenLabsEngine(cfg.ElevenLabsKey), nil
	default:
		if cfg.CommandPath == "" {
			return nil, fmt.Errorf("COMMAND_ENGINE_PATH is required for engine %q", name)
		}
		return NewCommandEngine(name, cfg.CommandPath, cfg.CommandVoicesDir, cfg.FFmpegPath, cfg.CommandLanguages)
	}
}
