package playback

import (
	"errors"
	"fmt"
)

// ErrSchedulerClosed is returned by [Scheduler.Enqueue] after teardown.
var ErrSchedulerClosed = errors.New("playback: scheduler closed")

// NotAllowedError reports missing voice permissions on the target channel.
type NotAllowedError struct {
	CanConnect bool
	CanSpeak   bool
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("playback: not allowed on voice channel (connect=%t, speak=%t)", e.CanConnect, e.CanSpeak)
}

// Request is one queued clip. It is immutable once enqueued; only the
// scheduler flips the skipped flag.
type Request struct {
	// Requester is the user id of the command author. Empty for
	// system-originated clips such as the idle farewell.
	Requester string

	// ChannelID is the voice channel the clip must play in.
	ChannelID string

	// Path is the audio artifact to stream. Ownership stays with the
	// request; OnComplete is the place to release it.
	Path string

	// Reply addresses the originating interaction for follow-up messages.
	// May be nil for system clips.
	Reply func(msg string)

	// OnComplete runs exactly once after the request leaves the active slot,
	// whether it played to the end, was skipped, or was dropped before
	// playback. May be nil.
	OnComplete func()

	// skipped is set by the scheduler iff the request was ended by the skip
	// protocol. Single-writer: only the dispatcher and the vote path under
	// the scheduler mutex touch it.
	skipped bool
}

// Skipped reports whether the request was ended by a skip. Only meaningful
// from inside OnComplete or later.
func (r *Request) Skipped() bool {
	return r.skipped
}

func (r *Request) reply(msg string) {
	if r.Reply != nil {
		r.Reply(msg)
	}
}

// SkipOutcome classifies the result of a skip vote.
type SkipOutcome int

const (
	// SkipNotPlaying means there was nothing to skip.
	SkipNotPlaying SkipOutcome = iota
	// SkipSelf means the voter owned the active request; it was skipped
	// immediately without a tally.
	SkipSelf
	// SkipAlreadyVoted means the voter's earlier vote still stands.
	SkipAlreadyVoted
	// SkipVoteAdded means the vote was counted but the threshold is not
	// reached yet.
	SkipVoteAdded
	// SkipVotePassed means the tally reached the threshold and the active
	// request was skipped.
	SkipVotePassed
	// SkipTallyUnavailable means the vote was recorded but the channel
	// members could not be listed; the tally runs on the next vote.
	SkipTallyUnavailable
)

// String returns the outcome name for logs and metrics.
func (o SkipOutcome) String() string {
	switch o {
	case SkipNotPlaying:
		return "not_playing"
	case SkipSelf:
		return "self_skip"
	case SkipAlreadyVoted:
		return "already_voted"
	case SkipVoteAdded:
		return "vote_added"
	case SkipVotePassed:
		return "vote_passed"
	case SkipTallyUnavailable:
		return "tally_unavailable"
	}
	return "unknown"
}

// SkipResult is the outcome of [Scheduler.RequestSkip]. Votes and Needed are
// populated for SkipVoteAdded; SkipTallyUnavailable carries Votes only.
type SkipResult struct {
	Outcome SkipOutcome
	Votes   int
	Needed  int
}
