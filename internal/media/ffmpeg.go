package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDuration is returned when the target duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrVideoPathRequired is returned when no video path is provided.
	ErrVideoPathRequired = errors.New("video path is required")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// Compile-time check that FFmpegMerger implements Merger.
var _ Merger = (*FFmpegMerger)(nil)

// FFmpegMerger implements Merger using the ffmpeg and ffprobe CLIs.
type FFmpegMerger struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
}

// NewFFmpegMerger creates a new FFmpegMerger. Empty binary paths default to
// "ffmpeg" and "ffprobe" resolved via PATH. Merged outputs are written to
// tempDir; if empty, os.TempDir() is used.
func NewFFmpegMerger(ffmpegPath, tempDir string) *FFmpegMerger {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &FFmpegMerger{
		ffmpegPath:  ffmpegPath,
		ffprobePath: "ffprobe",
		tempDir:     tempDir,
	}
}

// Merge combines videoPath with audioPath into a new temporary file and
// returns its path. See the Merger interface for the reconciliation rules.
func (m *FFmpegMerger) Merge(ctx context.Context, videoPath, audioPath string, targetSeconds float64) (string, error) {
	if videoPath == "" {
		return "", ErrVideoPathRequired
	}
	if targetSeconds <= 0 {
		return "", fmt.Errorf("%w: got %.2f", ErrInvalidDuration, targetSeconds)
	}

	// Pass-through: without a usable audio track the raw video is the
	// deliverable.
	if audioPath == "" {
		return videoPath, nil
	}
	if _, err := os.Stat(audioPath); err != nil {
		return videoPath, nil
	}

	audioDur, err := m.Duration(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("probe audio duration: %w", err)
	}

	out, err := os.CreateTemp(m.tempDir, "ad-final-*.mp4")
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	outPath := out.Name()
	if err := out.Close(); err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("close output file: %w", err)
	}

	args := []string{
		"-y",
		"-i", videoPath,
	}

	var trim bool
	switch {
	case audioDur > targetSeconds:
		// Trim the audio to [0, target].
		trim = true
	case audioDur < targetSeconds:
		// Loop whole copies of the audio until it covers the target. The
		// combined track may run past the target up to one loop boundary.
		loops := int(math.Ceil(targetSeconds/audioDur)) - 1
		args = append(args, "-stream_loop", strconv.Itoa(loops))
	}

	args = append(args,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "128k",
	)
	if trim {
		args = append(args, "-t", fmt.Sprintf("%.3f", targetSeconds))
	}
	args = append(args, outPath)

	if err := m.runFFmpeg(ctx, args); err != nil {
		_ = os.Remove(outPath)
		return "", err
	}

	return outPath, nil
}

// Duration returns the duration in seconds of a media file, using ffprobe to
// read the format metadata.
func (m *FFmpegMerger) Duration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (m *FFmpegMerger) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr
// output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
