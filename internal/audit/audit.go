// Package audit records command events for telemetry and later privacy
// deletion.
//
// Every recorded event is written twice: a Detailed twin carrying the full
// actor identity (with a configurable TTL) and an Anonymous twin whose
// mention tokens are replaced by stable pseudonyms. Audit writes are
// fire-and-forget — a telemetry failure never breaks the user-facing command.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event is the raw command event produced by the command surface.
type Event struct {
	// Identity of the command author and where it ran.
	UserID      string
	UserName    string
	ChannelID   string
	ChannelName string
	GuildID     string
	GuildName   string

	// Command is the fully qualified command name, e.g. "admin skip".
	Command string

	// Invocation is the reconstructed invocation string including options.
	Invocation string

	// CreatedAt is when the command arrived.
	CreatedAt time.Time
}

// DetailedEvent is the persisted twin carrying full identity. Rows expire at
// ExpiresAt.
type DetailedEvent struct {
	Event
	Valid     bool
	ExpiresAt time.Time
}

// AnonymousEvent is the persisted twin with all identity stripped. It has no
// TTL.
type AnonymousEvent struct {
	Command    string
	Invocation string
}

// Key identifies one detailed row for deletion.
type Key int64

// Store is the persistence boundary of the recorder. Implementations must be
// safe for concurrent use.
type Store interface {
	// Insert writes both twins of one event.
	Insert(ctx context.Context, detailed DetailedEvent, anonymous AnonymousEvent) error

	// Keys returns the primary keys of every detailed row belonging to any
	// of the given user ids.
	Keys(ctx context.Context, userIDs []string) ([]Key, error)

	// Delete removes the detailed rows identified by keys.
	Delete(ctx context.Context, keys []Key) error
}

// Recorder builds event twins and writes them through a [Store].
// A nil store disables recording entirely.
type Recorder struct {
	store Store
	ttl   time.Duration
}

// NewRecorder creates a Recorder. ttl is applied to Detailed twins; store may
// be nil to disable persistence (database_enable off).
func NewRecorder(store Store, ttl time.Duration) *Recorder {
	return &Recorder{store: store, ttl: ttl}
}

// Enabled reports whether events are actually persisted.
func (r *Recorder) Enabled() bool {
	return r != nil && r.store != nil
}

// Record writes the Detailed and Anonymous twins of ev. It never returns an
// error: storage failures are logged and swallowed so the originating command
// is unaffected by telemetry loss.
func (r *Recorder) Record(ctx context.Context, ev Event, valid bool) {
	if !r.Enabled() {
		return
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	detailed := DetailedEvent{
		Event:     ev,
		Valid:     valid,
		ExpiresAt: ev.CreatedAt.Add(r.ttl),
	}
	anonymous := AnonymousEvent{
		Command:    ev.Command,
		Invocation: Anonymize(ev.Invocation),
	}

	if err := r.store.Insert(ctx, detailed, anonymous); err != nil {
		slog.Warn("audit write failed", "command", ev.Command, "err", err)
	}
}

// BulkDelete removes every detailed row belonging to the given user ids,
// in two phases: a key scan followed by a batch delete.
func (r *Recorder) BulkDelete(ctx context.Context, userIDs []string) error {
	if !r.Enabled() || len(userIDs) == 0 {
		return nil
	}
	keys, err := r.store.Keys(ctx, userIDs)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.store.Delete(ctx, keys)
}
