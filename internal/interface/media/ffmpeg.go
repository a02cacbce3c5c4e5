package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpegTranscoder converts videos to H.264/AAC MP4 with the ffmpeg binary.
type FFmpegTranscoder struct {
	binary string
}

// NewFFmpegTranscoder uses binary, or "ffmpeg" from PATH when empty
func NewFFmpegTranscoder(binary string) *FFmpegTranscoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegTranscoder{binary: binary}
}

// Extension of produced files
func (t *FFmpegTranscoder) Extension() string {
	return ".mp4"
}

// Args returns the ffmpeg command line for one conversion
func (t *FFmpegTranscoder) Args(srcPath, dstPath string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", srcPath,
		"-c:v", "libx264", "-preset", "medium", "-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		dstPath,
	}
}

// Transcode runs ffmpeg. Cancelling ctx kills the process.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, srcPath, dstPath string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, t.Args(srcPath, dstPath)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}
