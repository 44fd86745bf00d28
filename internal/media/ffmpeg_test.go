package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

// createTestVideo creates a silent solid-color test video using ffmpeg.
func createTestVideo(t *testing.T, path string, duration float64, color string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=64x64:d=%.1f", color, duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

// createTestAudio creates a sine-tone test audio file using ffmpeg.
func createTestAudio(t *testing.T, path string, duration float64) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=440:duration=%.1f", duration),
		"-c:a", "aac",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\noutput: %s", err, output)
	}
}

func TestNewFFmpegMerger(t *testing.T) {
	t.Run("default paths", func(t *testing.T) {
		m := NewFFmpegMerger("", "")
		if m.ffmpegPath != "ffmpeg" {
			t.Errorf("expected default path 'ffmpeg', got %q", m.ffmpegPath)
		}
		if m.tempDir != os.TempDir() {
			t.Errorf("expected default temp dir, got %q", m.tempDir)
		}
	})

	t.Run("custom paths", func(t *testing.T) {
		m := NewFFmpegMerger("/usr/local/bin/ffmpeg", "/tmp/work")
		if m.ffmpegPath != "/usr/local/bin/ffmpeg" {
			t.Errorf("expected custom path, got %q", m.ffmpegPath)
		}
		if m.tempDir != "/tmp/work" {
			t.Errorf("expected custom temp dir, got %q", m.tempDir)
		}
	})
}

func TestMerge_Validation(t *testing.T) {
	m := NewFFmpegMerger("", t.TempDir())
	ctx := context.Background()

	t.Run("missing video path", func(t *testing.T) {
		_, err := m.Merge(ctx, "", "/tmp/audio.m4a", 8)
		if !errors.Is(err, ErrVideoPathRequired) {
			t.Errorf("expected ErrVideoPathRequired, got %v", err)
		}
	})

	t.Run("non-positive target", func(t *testing.T) {
		for _, target := range []float64{0, -1} {
			_, err := m.Merge(ctx, "/tmp/video.mp4", "/tmp/audio.m4a", target)
			if !errors.Is(err, ErrInvalidDuration) {
				t.Errorf("expected ErrInvalidDuration for target %.1f, got %v", target, err)
			}
		}
	})
}

func TestMerge_PassThrough(t *testing.T) {
	m := NewFFmpegMerger("", t.TempDir())
	ctx := context.Background()

	t.Run("no audio path", func(t *testing.T) {
		out, err := m.Merge(ctx, "/tmp/video.mp4", "", 8)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "/tmp/video.mp4" {
			t.Errorf("expected the video path back, got %q", out)
		}
	})

	t.Run("missing audio file", func(t *testing.T) {
		out, err := m.Merge(ctx, "/tmp/video.mp4", "/nonexistent/audio.m4a", 8)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "/tmp/video.mp4" {
			t.Errorf("expected the video path back, got %q", out)
		}
	})
}

func TestMerge(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	m := NewFFmpegMerger("", tmpDir)
	ctx := context.Background()

	t.Run("trims audio longer than target", func(t *testing.T) {
		video := filepath.Join(tmpDir, "video_trim.mp4")
		audio := filepath.Join(tmpDir, "audio_long.m4a")
		createTestVideo(t, video, 2.0, "red")
		createTestAudio(t, audio, 6.0)

		out, err := m.Merge(ctx, video, audio, 2.0)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		defer func() { _ = os.Remove(out) }()

		if out == video {
			t.Fatal("expected a new output file, got the input back")
		}

		dur, err := m.Duration(ctx, out)
		if err != nil {
			t.Fatalf("Duration failed: %v", err)
		}
		if dur < 1.8 || dur > 2.3 {
			t.Errorf("expected merged duration ~2.0s after trim, got %.2f", dur)
		}
	})

	t.Run("loops audio shorter than target", func(t *testing.T) {
		video := filepath.Join(tmpDir, "video_loop.mp4")
		audio := filepath.Join(tmpDir, "audio_short.m4a")
		createTestVideo(t, video, 3.0, "blue")
		createTestAudio(t, audio, 1.0)

		out, err := m.Merge(ctx, video, audio, 3.0)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		defer func() { _ = os.Remove(out) }()

		// Looping appends whole copies, so the audio covers the target and
		// may overshoot by up to one copy.
		dur, err := m.Duration(ctx, out)
		if err != nil {
			t.Fatalf("Duration failed: %v", err)
		}
		if dur < 2.8 || dur > 4.3 {
			t.Errorf("expected merged duration in [3.0, 4.0], got %.2f", dur)
		}
	})

	t.Run("audio matching target", func(t *testing.T) {
		video := filepath.Join(tmpDir, "video_eq.mp4")
		audio := filepath.Join(tmpDir, "audio_eq.m4a")
		createTestVideo(t, video, 2.0, "green")
		createTestAudio(t, audio, 2.0)

		out, err := m.Merge(ctx, video, audio, 2.0)
		if err != nil {
			t.Fatalf("Merge failed: %v", err)
		}
		defer func() { _ = os.Remove(out) }()

		info, err := os.Stat(out)
		if err != nil {
			t.Fatalf("output file missing: %v", err)
		}
		if info.Size() == 0 {
			t.Error("output file is empty")
		}
	})

	t.Run("invalid video input", func(t *testing.T) {
		bogus := filepath.Join(tmpDir, "bogus.mp4")
		if err := os.WriteFile(bogus, []byte("not a video"), 0600); err != nil {
			t.Fatal(err)
		}
		audio := filepath.Join(tmpDir, "audio_err.m4a")
		createTestAudio(t, audio, 1.0)

		_, err := m.Merge(ctx, bogus, audio, 2.0)
		if err == nil {
			t.Fatal("expected error for invalid video input")
		}
		var ffErr *FFmpegError
		if !errors.As(err, &ffErr) {
			t.Errorf("expected FFmpegError, got %T", err)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		video := filepath.Join(tmpDir, "video_cancel.mp4")
		audio := filepath.Join(tmpDir, "audio_cancel.m4a")
		createTestVideo(t, video, 1.0, "red")
		createTestAudio(t, audio, 2.0)

		cancelCtx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := m.Merge(cancelCtx, video, audio, 1.0); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestDuration(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	m := NewFFmpegMerger("", tmpDir)
	ctx := context.Background()

	t.Run("probes video duration", func(t *testing.T) {
		video := filepath.Join(tmpDir, "probe.mp4")
		createTestVideo(t, video, 2.0, "red")

		dur, err := m.Duration(ctx, video)
		if err != nil {
			t.Fatalf("Duration failed: %v", err)
		}
		if dur < 1.8 || dur > 2.2 {
			t.Errorf("expected ~2.0s, got %.2f", dur)
		}
	})

	t.Run("non-existent file", func(t *testing.T) {
		_, err := m.Duration(ctx, "/nonexistent/media.mp4")
		if !errors.Is(err, ErrFFprobeExecution) {
			t.Errorf("expected ErrFFprobeExecution, got %v", err)
		}
	})
}

func TestFFmpegError(t *testing.T) {
	err := &FFmpegError{
		Args:   []string{"-i", "input.mp4", "-c", "copy", "output.mp4"},
		Stderr: "Error opening input file",
		Err:    fmt.Errorf("exit status 1"),
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "exit status 1") {
		t.Error("Error() should contain underlying error")
	}
	if !strings.Contains(errStr, "Error opening input file") {
		t.Error("Error() should contain stderr")
	}

	unwrapped := err.Unwrap()
	if unwrapped == nil || unwrapped.Error() != "exit status 1" {
		t.Errorf("Unwrap() returned wrong error: %v", unwrapped)
	}
}
