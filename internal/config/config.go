package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for the synthesis endpoints (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Shared filesystem root for queues, artifacts, markers and readiness files
	DataDir string

	// Gateway
	EnabledEngines []string      // Engines the gateway waits for and routes to
	StartupTimeout time.Duration // How long to wait for readiness files at startup
	StartupPoll    time.Duration
	JobTimeout     time.Duration // Per-request completion wait budget
	JobPoll        time.Duration
	EmbedWorkers   bool // Dev mode: run the enabled engines' poll loops in-process

	// Worker
	EngineName   string // Which engine this worker process serves
	ScanInterval time.Duration

	// OpenAI engine
	OpenAIKey   string
	OpenAIModel string

	// Gemini engine
	GeminiKey   string
	GeminiModel string

	// ElevenLabs engine
	ElevenLabsKey string

	// Command engine (self-hosted model wrapped by a local CLI)
	CommandPath      string
	CommandVoicesDir string
	CommandLanguages []string
	FFmpegPath       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DataDir:            getEnv("DATA_DIR", "/tmp/ttsgate"),
		EnabledEngines:     splitList(getEnv("ENABLED_ENGINES", "openai")),
		StartupTimeout:     getEnvDuration("STARTUP_TIMEOUT", 10*time.Minute),
		StartupPoll:        getEnvDuration("STARTUP_POLL_INTERVAL", time.Second),
		JobTimeout:         getEnvDuration("JOB_TIMEOUT", 600*time.Second),
		JobPoll:            getEnvDuration("JOB_POLL_INTERVAL", 100*time.Millisecond),
		EmbedWorkers:       getEnvBool("EMBED_WORKERS", false),
		EngineName:         getEnv("ENGINE_NAME", ""),
		ScanInterval:       getEnvDuration("SCAN_INTERVAL", 100*time.Millisecond),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_TTS_MODEL", "tts-1"),
		GeminiKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		ElevenLabsKey:      getEnv("ELEVENLABS_API_KEY", ""),
		CommandPath:        getEnv("COMMAND_ENGINE_PATH", ""),
		CommandVoicesDir:   getEnv("COMMAND_VOICES_DIR", ""),
		CommandLanguages:   splitList(getEnv("COMMAND_LANGUAGES", "en")),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
	}

	if cfg.DataDir == "" {
		return nil, fmt.Errorf("DATA_DIR must not be empty")
	}

	if len(cfg.EnabledEngines) == 0 {
		return nil, fmt.Errorf("ENABLED_ENGINES must list at least one engine")
	}

	return cfg, nil
}

// splitList parses a comma-separated env value into trimmed, non-empty items.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
