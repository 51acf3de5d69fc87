// Package media shells out to yt-dlp and ffmpeg for VOD download, vertical
// shorts conversion and thumbnail extraction.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Runner invokes the external tools. It carries no state; the type exists
// so services can depend on an interface and tests can fake it.
type Runner struct{}

// DownloadVod pulls a Twitch VOD to outputPath (mp4, capped at 1080p).
// streamlink is tried first; yt-dlp is the fallback when it fails or is
// not installed.
func (Runner) DownloadVod(ctx context.Context, vodURL, outputPath string) error {
	zerolog.Ctx(ctx).Info().Str("url", vodURL).Str("output", outputPath).Msg("downloading vod")

	slArgs := []string{
		"--force",
		"-o", outputPath,
		vodURL,
		"1080p,best",
	}
	slCmd := exec.CommandContext(ctx, "streamlink", slArgs...)
	if output, err := slCmd.CombinedOutput(); err == nil {
		return nil
	} else {
		zerolog.Ctx(ctx).Warn().Err(err).Str("output", string(output)).Msg("streamlink failed, falling back to yt-dlp")
	}

	args := []string{
		"-f", "best[height<=1080]",
		"--merge-output-format", "mp4",
		"-o", outputPath,
		vodURL,
	}

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("output", string(output)).Msg("yt-dlp failed")
		return fmt.Errorf("yt-dlp execution failed: %w", err)
	}
	return nil
}

// ConvertToVertical re-frames a landscape clip into the 9:16 shorts format:
// the source is scaled to fill 1080x1920, centered over a blurred copy of
// itself.
func (Runner) ConvertToVertical(ctx context.Context, inputPath, outputPath string) error {
	filter := strings.Join([]string{
		"[0:v]scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,boxblur=20[bg]",
		"[0:v]scale=1080:-2[fg]",
		"[bg][fg]overlay=(W-w)/2:(H-h)/2",
	}, "; ")

	args := []string{
		"-i", inputPath,
		"-filter_complex", filter,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	zerolog.Ctx(ctx).Info().Str("input", inputPath).Str("output", outputPath).Msg("converting clip to vertical")

	output, err := cmd.CombinedOutput()
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("output", string(output)).Msg("ffmpeg failed")
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}

// ExtractThumbnail grabs a single frame at the given position (HH:MM:SS)
// and writes it next to the video.
func (Runner) ExtractThumbnail(ctx context.Context, videoPath, position string) (string, error) {
	ext := filepath.Ext(videoPath)
	thumbPath := strings.TrimSuffix(videoPath, ext) + "_thumb.jpg"

	args := []string{
		"-ss", position,
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		"-y",
		thumbPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("output", string(output)).Msg("thumbnail extraction failed")
		return "", fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return thumbPath, nil
}
