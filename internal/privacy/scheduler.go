// Package privacy queues data-deletion requests and purges them in weekly
// batches.
//
// Requests are held twice: an in-memory set for dedup and a newline-delimited
// queue file for durability across restarts. A JSON meta file records the last
// purge time so a window missed while the process was down is caught up
// immediately on the next start.
package privacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oratorbot/orator/internal/observe"
)

const (
	queueFileName = "delete_queue.txt"
	metaFileName  = "delete_meta.json"
)

// Deleter is the slice of the audit recorder the purge needs.
type Deleter interface {
	BulkDelete(ctx context.Context, userIDs []string) error
}

type meta struct {
	LastProcessTime time.Time `json:"last_process_time"`
}

// Scheduler accepts deletion requests and purges them at a weekly wall-clock
// window. Submit is safe for concurrent use; the purge loop runs in [Run].
type Scheduler struct {
	deleter   Deleter
	weekday   time.Weekday
	timeOfDay time.Duration

	queuePath string
	metaPath  string

	mu          sync.Mutex
	pending     map[string]struct{}
	lastProcess time.Time

	nowFn   func() time.Time
	metrics *observe.Metrics
}

// NewScheduler creates a Scheduler storing its queue and meta files under
// stateDir, restoring any pending requests and the last purge time from disk.
// weekday and timeOfDay define the weekly purge window in UTC.
func NewScheduler(stateDir string, deleter Deleter, weekday time.Weekday, timeOfDay time.Duration) (*Scheduler, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("privacy: create state dir: %w", err)
	}

	s := &Scheduler{
		deleter:   deleter,
		weekday:   weekday,
		timeOfDay: timeOfDay,
		queuePath: filepath.Join(stateDir, queueFileName),
		metaPath:  filepath.Join(stateDir, metaFileName),
		pending:   make(map[string]struct{}),
		nowFn:     time.Now,
		metrics:   observe.DefaultMetrics(),
	}

	if err := s.restore(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) restore() error {
	data, err := os.ReadFile(s.queuePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("privacy: read queue file: %w", err)
	default:
		for _, line := range strings.Split(string(data), "\n") {
			if id := strings.TrimSpace(line); id != "" {
				s.pending[id] = struct{}{}
			}
		}
	}

	raw, err := os.ReadFile(s.metaPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("privacy: read meta file: %w", err)
	default:
		var m meta
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("privacy: parse meta file: %w", err)
		}
		s.lastProcess = m.LastProcessTime
	}
	return nil
}

// Submit queues userID for deletion at the next purge window. It is
// idempotent: a user already queued is not appended to the file again.
func (s *Scheduler) Submit(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[userID]; ok {
		return nil
	}

	f, err := os.OpenFile(s.queuePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("privacy: open queue file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(userID + "\n"); err != nil {
		return fmt.Errorf("privacy: append queue file: %w", err)
	}

	s.pending[userID] = struct{}{}
	return nil
}

// Pending returns the number of queued deletion requests.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// nextWindow returns the first occurrence of the configured (weekday, time of
// day) strictly after t, in UTC.
func (s *Scheduler) nextWindow(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	candidate := day.Add(s.timeOfDay)
	for candidate.Weekday() != s.weekday || !candidate.After(t) {
		day = day.AddDate(0, 0, 1)
		candidate = day.Add(s.timeOfDay)
	}
	return candidate
}

// previousWindow returns the most recent occurrence of the purge window at or
// before t.
func (s *Scheduler) previousWindow(t time.Time) time.Time {
	return s.nextWindow(t).AddDate(0, 0, -7)
}

// overdue reports whether a purge window has passed since the last purge.
func (s *Scheduler) overdue(now time.Time) bool {
	return s.lastProcess.Before(s.previousWindow(now))
}

// Run drives the purge loop until ctx is cancelled. An overdue purge (window
// missed while the process was down) runs immediately on entry.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.nowFn()
		if s.overdue(now) {
			s.Purge(ctx)
			now = s.nowFn()
		}

		wait := s.nextWindow(now).Sub(now)
		slog.Debug("privacy scheduler sleeping", "until", now.Add(wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.Purge(ctx)
		}
	}
}

// Purge deletes the audit records of every user queued when the purge began.
// On success the purged ids leave the set, the queue file is rewritten from
// the survivors and the meta file updated; on failure the queue is left
// intact for retry at the next window.
func (s *Scheduler) Purge(ctx context.Context) {
	start := s.nowFn().UTC()

	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	if len(ids) > 0 {
		if err := s.deleter.BulkDelete(ctx, ids); err != nil {
			slog.Error("privacy purge failed, keeping queue for retry", "users", len(ids), "err", err)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A Submit that landed while the delete was in flight was not part of
	// the batch; it must survive into the next window.
	for _, id := range ids {
		delete(s.pending, id)
	}
	var survivors strings.Builder
	for id := range s.pending {
		survivors.WriteString(id)
		survivors.WriteByte('\n')
	}
	if err := os.WriteFile(s.queuePath, []byte(survivors.String()), 0o644); err != nil {
		slog.Error("privacy: rewrite queue file", "err", err)
		return
	}

	s.lastProcess = start
	raw, err := json.Marshal(meta{LastProcessTime: start})
	if err != nil {
		slog.Error("privacy: encode meta file", "err", err)
		return
	}
	if err := os.WriteFile(s.metaPath, raw, 0o644); err != nil {
		slog.Error("privacy: write meta file", "err", err)
		return
	}

	s.metrics.RecordPrivacyPurge(ctx, len(ids))
	slog.Info("privacy purge complete", "users", len(ids), "still_queued", len(s.pending))
}
