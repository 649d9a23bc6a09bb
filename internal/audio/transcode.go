package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Transcoder converts an arbitrary audio file into a mono PCM16 WAV at the
// requested sample rate.
type Transcoder interface {
	Available() bool
	Transcode(ctx context.Context, src, dst string, sampleRate int) error
}

// FFmpeg shells out to an ffmpeg binary resolved once at construction.
type FFmpeg struct {
	binary string
	path   string
	err    error
}

// NewFFmpeg probes for binary (a name on PATH or an explicit path). A missing
// binary is not an error here: Available reports false and Transcode fails
// with ErrTranscoderUnavailable.
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	path, err := exec.LookPath(binary)
	return &FFmpeg{binary: binary, path: path, err: err}
}

// Available reports whether the binary was found.
func (f *FFmpeg) Available() bool { return f != nil && f.err == nil }

// Path returns the resolved binary path, or "" when unavailable.
func (f *FFmpeg) Path() string { return f.path }

// ProbeError returns the lookup failure, if any.
func (f *FFmpeg) ProbeError() error { return f.err }

func (f *FFmpeg) Transcode(ctx context.Context, src, dst string, sampleRate int) error {
	if !f.Available() {
		return fmt.Errorf("%w: %s: %v", ErrTranscoderUnavailable, f.binary, f.err)
	}
	cmd := exec.CommandContext(ctx, f.path, //nolint:gosec
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-y",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dst,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
