package storage

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTranscoderUnavailable means the transcoding binary is not installed.
var ErrTranscoderUnavailable = errors.New("transcoder unavailable")

// Transcoder converts an audio file into canonical WAV.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// FFmpegTranscoder shells out to ffmpeg to produce mono 16-bit PCM WAV.
type FFmpegTranscoder struct {
	Bin     string
	Timeout time.Duration
}

func NewFFmpegTranscoder(bin string, timeout time.Duration) *FFmpegTranscoder {
	return &FFmpegTranscoder{Bin: bin, Timeout: timeout}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, src, dst string) error {
	bin, err := exec.LookPath(t.Bin)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscoderUnavailable, err)
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, bin,
		"-y", "-loglevel", "error",
		"-i", src,
		"-ac", "1",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		dst,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("transcode timed out after %s", t.Timeout)
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
