package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// VideoService validates and repairs video files with ffprobe/ffmpeg
// before they are uploaded for publishing. Platforms reject videos with
// broken containers, which browser-automation downloads produce now and
// then.
type VideoService struct {
	probeTimeout  time.Duration
	repairTimeout time.Duration
}

func NewVideoService() *VideoService {
	return &VideoService{
		probeTimeout:  30 * time.Second,
		repairTimeout: 5 * time.Minute,
	}
}

// EnsurePlayable returns the original path when the file already probes
// clean. Otherwise it tries a stream-copy remux first and falls back to a
// full re-encode, returning the repaired file's path.
func (v *VideoService) EnsurePlayable(ctx context.Context, localPath string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("video file does not exist: %w", err)
	}

	if v.validate(ctx, localPath) {
		return localPath, nil
	}
	slog.Info("video failed validation, attempting repair", "path", localPath)

	remuxed := repairedPath(localPath, "_remuxed")
	if err := v.run(ctx, v.repairTimeout, "ffmpeg", "-y", "-i", localPath, "-c", "copy", remuxed); err == nil {
		if v.validate(ctx, remuxed) {
			return remuxed, nil
		}
		os.Remove(remuxed)
	}

	reencoded := repairedPath(localPath, "_reencoded")
	if err := v.run(ctx, v.repairTimeout, "ffmpeg", "-y", "-i", localPath,
		"-c:v", "libx264", "-preset", "fast", "-c:a", "aac", reencoded); err != nil {
		return "", fmt.Errorf("video repair failed: %w", err)
	}
	if !v.validate(ctx, reencoded) {
		os.Remove(reencoded)
		return "", fmt.Errorf("video is not repairable")
	}
	return reencoded, nil
}

func (v *VideoService) validate(ctx context.Context, localPath string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, v.probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height",
		"-of", "csv=p=0",
		localPath)

	output, err := cmd.Output()
	if err != nil {
		slog.Info("ffprobe failed", "path", localPath, "error", err.Error())
		return false
	}
	return strings.TrimSpace(string(output)) != ""
}

func (v *VideoService) run(ctx context.Context, timeout time.Duration, name string, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		slog.Info(string(output))
		return err
	}
	return nil
}

func repairedPath(localPath, suffix string) string {
	ext := filepath.Ext(localPath)
	return strings.TrimSuffix(localPath, ext) + suffix + ext
}
