package engine

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// normalizeAudio resamples arbitrary input audio to mono 22.05kHz 16-bit WAV
// so the downstream model sees a predictable format regardless of what the
// caller uploaded.
func normalizeAudio(ctx context.Context, ffmpegPath, src, dst string) error {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-y",
		"-i", src,
		"-ar", "22050",
		"-ac", "1",
		"-sample_fmt", "s16",
		dst,
	)

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg normalization failed: %w (output: %s)", err, lastLine(string(output)))
	}
	return nil
}

// lastLine trims ffmpeg's banner noise down to the line that usually holds
// the actual error.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
