package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"ttsgate/internal/models"
)

// ---------------------------------------------------------------------------
// Command engine
// Wraps a self-hosted model behind a local CLI (piper-style). The binary is
// invoked once per job:
//
//	<path> --text <text> --language <lang> --output <wav>
//	       [--voice <voices-dir>/<speaker>.onnx | --reference <wav>]
//
// Speakers are discovered from the voices directory at load time; reference
// audio is normalized to mono 22.05kHz WAV with ffmpeg before it is handed
// to the binary.
// ---------------------------------------------------------------------------

type CommandEngine struct {
	name      string
	path      string
	voicesDir string
	ffmpeg    string
	languages []string
	speakers  []string
}

var _ Capability = (*CommandEngine)(nil)

func NewCommandEngine(name, path, voicesDir, ffmpegPath string, languages []string) (*CommandEngine, error) {
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("engine binary %s not runnable: %w", path, err)
	}

	speakers, err := scanVoices(voicesDir)
	if err != nil {
		return nil, err
	}

	return &CommandEngine{
		name:      name,
		path:      path,
		voicesDir: voicesDir,
		ffmpeg:    ffmpegPath,
		languages: languages,
		speakers:  speakers,
	}, nil
}

func scanVoices(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.onnx"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan voices dir: %w", err)
	}
	speakers := make([]string, 0, len(matches))
	for _, m := range matches {
		speakers = append(speakers, strings.TrimSuffix(filepath.Base(m), ".onnx"))
	}
	sort.Strings(speakers)
	return speakers, nil
}

func (e *CommandEngine) Engine() string {
	return e.name
}

func (e *CommandEngine) Describe() *models.ReadinessInfo {
	return &models.ReadinessInfo{
		Engine: e.name,
		Models: map[string]models.ModelInfo{
			e.name: {
				Name:                filepath.Base(e.path),
				Languages:           e.languages,
				Speakers:            e.speakers,
				SupportsCustomVoice: true,
				Notes:               "Self-hosted model behind a local CLI. Reference audio is resampled before use.",
			},
		},
	}
}

func (e *CommandEngine) SynthesizeFromSpeaker(ctx context.Context, req Request) ([]byte, error) {
	if !containsSpeaker(e.speakers, req.Speaker) {
		return nil, unknownSpeaker(req.Speaker)
	}
	voice := filepath.Join(e.voicesDir, req.Speaker+".onnx")
	return e.run(ctx, req, "--voice", voice)
}

func (e *CommandEngine) SynthesizeFromReference(ctx context.Context, req Request) ([]byte, error) {
	normalized := req.RefWAV + ".norm.wav"
	if err := normalizeAudio(ctx, e.ffmpeg, req.RefWAV, normalized); err != nil {
		return nil, err
	}
	defer os.Remove(normalized)

	return e.run(ctx, req, "--reference", normalized)
}

func (e *CommandEngine) run(ctx context.Context, req Request, conditioning ...string) ([]byte, error) {
	out, err := os.CreateTemp("", "ttsgate_cmd_*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create output temp file: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	args := []string{
		"--text", req.Text,
		"--language", req.Language,
		"--output", outPath,
	}
	args = append(args, conditioning...)

	log.Printf("[%s] Running %s (textLen=%d, lang=%s)", e.name, filepath.Base(e.path), len(req.Text), req.Language)

	cmd := exec.CommandContext(ctx, e.path, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("engine command failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}

	audio, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine output: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("engine produced empty audio")
	}
	return audio, nil
}
