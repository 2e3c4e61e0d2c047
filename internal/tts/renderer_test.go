package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// touchCommand is a synthesis stand-in that writes the decorated text into
// the output file. "sh -c" keeps the tests independent of any real TTS binary.
func touchCommand() []string {
	return []string{"sh", "-c", `printf '%s' "$1" > "$2"`, "synth", "{text}", "{out}"}
}

func newTestRenderer(t *testing.T, mutate func(*Config)) *Renderer {
	t.Helper()
	cfg := Config{
		OutputDir:          t.TempDir(),
		Command:            touchCommand(),
		CharLimit:          20,
		Timeout:            5 * time.Second,
		NewlineReplacement: " _pause_ ",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := NewRenderer(cfg)
	if err != nil {
		t.Fatalf("NewRenderer() error: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSynthesize_WritesArtifact(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, nil)
	path, err := r.Synthesize(context.Background(), "hello", false)
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Errorf("path %q should be absolute", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("artifact content = %q, want %q", data, "hello")
	}
}

func TestSynthesize_CharLimitBoundary(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, nil)

	// Exactly at the limit succeeds.
	atLimit := strings.Repeat("a", 20)
	if _, err := r.Synthesize(context.Background(), atLimit, false); err != nil {
		t.Errorf("Synthesize(len == limit) error: %v", err)
	}

	// One over fails unless overflow is allowed.
	over := atLimit + "a"
	_, err := r.Synthesize(context.Background(), over, false)
	var tooLong *MessageTooLongError
	if !errors.As(err, &tooLong) {
		t.Fatalf("Synthesize(len == limit+1) = %v, want *MessageTooLongError", err)
	}
	if tooLong.Length != 21 || tooLong.Limit != 20 {
		t.Errorf("MessageTooLongError = %+v, want Length 21 Limit 20", tooLong)
	}

	if _, err := r.Synthesize(context.Background(), over, true); err != nil {
		t.Errorf("Synthesize(allowOverflow) error: %v", err)
	}
}

func TestSynthesize_Decorations(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, func(c *Config) {
		c.Prepend = "<speak>"
		c.Append = "</speak>"
		c.CharLimit = 100
	})

	path, err := r.Synthesize(context.Background(), "line1\nsay \"hi\"", false)
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	data, _ := os.ReadFile(path)
	want := "<speak>line1 _pause_ say hi</speak>"
	if string(data) != want {
		t.Errorf("decorated text = %q, want %q", data, want)
	}
}

func TestSynthesize_Timeout(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, func(c *Config) {
		c.Command = []string{"sh", "-c", `sleep 5 > "$1"`, "synth", "{out}"}
		c.Timeout = 50 * time.Millisecond
	})

	_, err := r.Synthesize(context.Background(), "slow", false)
	if !errors.Is(err, ErrRenderTimeout) {
		t.Fatalf("Synthesize() = %v, want ErrRenderTimeout", err)
	}
}

func TestSynthesize_ProcessFailure(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, func(c *Config) {
		c.Command = []string{"sh", "-c", `echo "no voice" >&2; touch "$1"; exit 3`, "synth", "{out}"}
	})

	_, err := r.Synthesize(context.Background(), "doomed", false)
	var failed *RenderFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Synthesize() = %v, want *RenderFailedError", err)
	}
	if failed.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", failed.ExitCode)
	}
	if !strings.Contains(failed.Stderr, "no voice") {
		t.Errorf("Stderr = %q, want captured process stderr", failed.Stderr)
	}
}

func TestSynthesize_CollidingNamesDecrement(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, nil)
	fixed := time.Now()
	r.nowFn = func() time.Time { return fixed }

	first, err := r.Synthesize(context.Background(), "one", false)
	if err != nil {
		t.Fatalf("first Synthesize() error: %v", err)
	}
	second, err := r.Synthesize(context.Background(), "two", false)
	if err != nil {
		t.Fatalf("second Synthesize() error: %v", err)
	}
	if first == second {
		t.Fatalf("colliding stamps produced the same path %q", first)
	}
	// first is "<ms>.wav"; the collision must yield "<ms-1>.wav".
	stamp, err := strconv.ParseInt(strings.TrimSuffix(filepath.Base(first), ".wav"), 10, 64)
	if err != nil {
		t.Fatalf("first artifact name %q not numeric: %v", first, err)
	}
	wantSecond := filepath.Join(filepath.Dir(first), strconv.FormatInt(stamp-1, 10)+".wav")
	if second != wantSecond {
		t.Errorf("second path = %q, want %q", second, wantSecond)
	}
}

func TestRelease_TwiceIsNoOp(t *testing.T) {
	t.Parallel()

	r := newTestRenderer(t, nil)
	path, err := r.Synthesize(context.Background(), "bye", false)
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}

	r.Release(path)
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact should be deleted after Release, stat err: %v", err)
	}
	// Second release of the same path must not queue or error.
	r.Release(path)
	if len(r.pending) != 0 {
		t.Errorf("pending = %v, want empty after double release", r.pending)
	}
}

func TestNewRenderer_EmptiesOutputDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	leftover := filepath.Join(dir, "stale.wav")
	if err := os.WriteFile(leftover, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := NewRenderer(Config{
		OutputDir: dir,
		Command:   touchCommand(),
		CharLimit: 10,
		Timeout:   time.Second,
	})
	if err != nil {
		t.Fatalf("NewRenderer() error: %v", err)
	}
	defer r.Close()

	if _, err := os.Stat(leftover); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("leftover artifact should have been removed, stat err: %v", err)
	}
}
