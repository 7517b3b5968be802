// Package media turns uploaded files into web-playable assets: it transcodes
// video to an H.264/AAC fast-start MP4 and extracts JPEG posters with ffmpeg.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Engine transcodes video and extracts still frames.
type Engine interface {
	Available() bool
	Transcode(ctx context.Context, src, dst string) error
	ExtractFrame(ctx context.Context, src, dst string, offset float64) error
}

// Status reports whether the ffmpeg binary could be resolved.
type Status struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// DefaultPosterWidth is the width posters are scaled to; height keeps the
// aspect ratio.
const DefaultPosterWidth = 1280

// FFmpeg runs the ffmpeg binary found on PATH (or at an explicit path).
type FFmpeg struct {
	PosterWidth int
	status      Status
}

// NewFFmpeg resolves command once. A missing binary is not an error; the
// engine then reports Available() == false.
func NewFFmpeg(command string, posterWidth int) *FFmpeg {
	command = strings.TrimSpace(command)
	if command == "" {
		command = "ffmpeg"
	}
	if posterWidth <= 0 {
		posterWidth = DefaultPosterWidth
	}
	st := Status{Name: "FFmpeg", Command: command}
	if resolved, err := exec.LookPath(command); err == nil {
		st.Command = resolved
		st.Available = true
	} else {
		st.Detail = fmt.Sprintf("binary %q not found", command)
	}
	return &FFmpeg{PosterWidth: posterWidth, status: st}
}

func (f *FFmpeg) Status() Status { return f.status }

func (f *FFmpeg) Available() bool { return f.status.Available }

func baseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
}

// TranscodeArgs builds the arguments for the normalized web baseline.
func TranscodeArgs(src, dst string) []string {
	args := baseArgs()
	args = append(args, "-i", src)
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-profile:v", "high",
		"-level", "4.1",
		"-movflags", "+faststart",
		"-c:a", "aac",
		"-b:a", "192k",
	)
	return append(args, dst)
}

// FrameArgs builds the arguments to grab one frame at offset seconds.
func FrameArgs(src, dst string, offset float64, width int) []string {
	args := baseArgs()
	args = append(args,
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", src,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", width),
		"-q:v", "2",
	)
	return append(args, dst)
}

func (f *FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	if err := f.run(ctx, TranscodeArgs(src, dst)); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

// ExtractFrame fails when ffmpeg exits cleanly without writing a frame,
// which is what it does for offsets past the end of the clip.
func (f *FFmpeg) ExtractFrame(ctx context.Context, src, dst string, offset float64) error {
	if err := f.run(ctx, FrameArgs(src, dst, offset, f.PosterWidth)); err != nil {
		_ = os.Remove(dst)
		return err
	}
	info, err := os.Stat(dst)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(dst)
		return fmt.Errorf("no frame at %.3fs", offset)
	}
	return nil
}

var errUnavailable = errors.New("ffmpeg not available")

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	if !f.status.Available {
		return errUnavailable
	}
	cmd := exec.CommandContext(ctx, f.status.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if tail := lastLines(stderr.String(), 5); tail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, tail)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
