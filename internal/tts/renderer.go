// Package tts renders text to playable audio files by driving an external
// synthesis program.
//
// The [Renderer] owns an output directory which it creates and empties on
// construction and again on Close. Each successful [Renderer.Synthesize]
// call hands ownership of one artifact file to the caller, who returns it
// via [Renderer.Release] once playback is done.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrRenderTimeout is returned when the synthesis process exceeds its
// per-call deadline.
var ErrRenderTimeout = errors.New("tts: synthesis timed out")

// MessageTooLongError is returned when the input text exceeds the configured
// character limit and overflow was not allowed.
type MessageTooLongError struct {
	Length int
	Limit  int
}

func (e *MessageTooLongError) Error() string {
	return fmt.Sprintf("tts: message of %d characters exceeds the %d character limit", e.Length, e.Limit)
}

// RenderFailedError is returned when the synthesis process exits non-zero.
type RenderFailedError struct {
	ExitCode int
	Stderr   string
}

func (e *RenderFailedError) Error() string {
	return fmt.Sprintf("tts: synthesis process exited with code %d: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Config holds the renderer settings, taken from the application config.
type Config struct {
	// OutputDir is where artifact files are written.
	OutputDir string

	// Command is the synthesis program and argument template. The
	// placeholders {text}, {out} and {voice} are substituted per call.
	Command []string

	// DefaultVoice fills the {voice} placeholder when the caller requests
	// no specific voice.
	DefaultVoice string

	// CharLimit is the maximum accepted text length.
	CharLimit int

	// Timeout bounds one synthesis call.
	Timeout time.Duration

	// Prepend and Append are decoration tokens wrapped around the text.
	Prepend string
	Append  string

	// NewlineReplacement substitutes newline characters before synthesis.
	NewlineReplacement string
}

// Renderer converts text to audio files. It is safe for concurrent use,
// though callers typically serialise synthesis per guild.
type Renderer struct {
	cfg Config

	mu      sync.Mutex
	pending []string // artifacts whose deletion failed, retried on next Release

	// nowFn supplies the millisecond clock for artifact names.
	// Overridden in tests.
	nowFn func() time.Time
}

// NewRenderer creates a Renderer and prepares its output directory: the
// directory is created if absent and emptied of leftover artifacts.
func NewRenderer(cfg Config) (*Renderer, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("tts: synthesis command must not be empty")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("tts: create output dir %q: %w", cfg.OutputDir, err)
	}
	r := &Renderer{cfg: cfg, nowFn: time.Now}
	if err := r.emptyOutputDir(); err != nil {
		return nil, err
	}
	return r, nil
}

// Close empties the output directory, discarding any artifacts that were
// never released.
func (r *Renderer) Close() error {
	return r.emptyOutputDir()
}

// Synthesize renders text to a new audio file and returns its absolute path.
// Ownership of the file transfers to the caller.
//
// Text longer than the configured character limit fails with
// [*MessageTooLongError] unless allowOverflow is set. A synthesis run that
// exceeds the configured timeout fails with [ErrRenderTimeout]; a non-zero
// process exit fails with [*RenderFailedError].
func (r *Renderer) Synthesize(ctx context.Context, text string, allowOverflow bool) (string, error) {
	return r.SynthesizeVoice(ctx, text, r.cfg.DefaultVoice, allowOverflow)
}

// SynthesizeVoice is [Renderer.Synthesize] with an explicit voice for the
// {voice} placeholder. An empty voice falls back to the configured default.
func (r *Renderer) SynthesizeVoice(ctx context.Context, text, voice string, allowOverflow bool) (string, error) {
	if voice == "" {
		voice = r.cfg.DefaultVoice
	}
	if len(text) > r.cfg.CharLimit && !allowOverflow {
		return "", &MessageTooLongError{Length: len(text), Limit: r.cfg.CharLimit}
	}

	text = r.decorate(text)

	path, err := r.reserveArtifactPath()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	argv := r.expandCommand(text, path, voice)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrRenderTimeout
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &RenderFailedError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", fmt.Errorf("tts: run %q: %w", argv[0], err)
	}

	slog.Debug("synthesised clip", "path", path, "chars", len(text), "took", time.Since(start))
	return path, nil
}

// Release deletes an artifact previously returned by Synthesize. When the
// file is still held open by the playback process, deletion is queued and
// retried on the next Release call. Releasing a path twice is a no-op the
// second time.
func (r *Renderer) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	retry := r.pending
	r.pending = nil
	for _, p := range append(retry, path) {
		if err := os.Remove(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			// Still locked by the player; try again next time.
			r.pending = append(r.pending, p)
			slog.Debug("artifact delete deferred", "path", p, "err", err)
		}
	}
}

// decorate applies the configured text decorations.
func (r *Renderer) decorate(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", r.cfg.NewlineReplacement)
	text = strings.ReplaceAll(text, `"`, "")
	return r.cfg.Prepend + text + r.cfg.Append
}

// reserveArtifactPath picks a fresh artifact filename from the millisecond
// clock. A name collision decrements the stamp until a free name is found.
func (r *Renderer) reserveArtifactPath() (string, error) {
	stamp := r.nowFn().UnixMilli()
	for {
		path, err := filepath.Abs(filepath.Join(r.cfg.OutputDir, strconv.FormatInt(stamp, 10)+".wav"))
		if err != nil {
			return "", fmt.Errorf("tts: resolve artifact path: %w", err)
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		stamp--
	}
}

// expandCommand substitutes the {text}, {out} and {voice} placeholders in
// the configured argv.
func (r *Renderer) expandCommand(text, out, voice string) []string {
	argv := make([]string, len(r.cfg.Command))
	for i, a := range r.cfg.Command {
		a = strings.ReplaceAll(a, "{text}", text)
		a = strings.ReplaceAll(a, "{out}", out)
		a = strings.ReplaceAll(a, "{voice}", voice)
		argv[i] = a
	}
	return argv
}

// emptyOutputDir removes every file in the output directory.
func (r *Renderer) emptyOutputDir() error {
	entries, err := os.ReadDir(r.cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("tts: read output dir %q: %w", r.cfg.OutputDir, err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(r.cfg.OutputDir, e.Name())); err != nil {
			slog.Warn("could not remove leftover artifact", "name", e.Name(), "err", err)
		}
	}
	return nil
}
