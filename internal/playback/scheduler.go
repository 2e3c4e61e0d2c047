// Package playback owns the per-guild audio pipeline: a FIFO request queue, a
// single dispatcher goroutine driving the voice connection, a democratic skip
// protocol and an idle timeout with an optional farewell hook.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/oratorbot/orator/internal/observe"
	"github.com/oratorbot/orator/pkg/voice"
)

// defaultIdleTimeout is the queue-wait deadline used when the configuration
// supplies none.
const defaultIdleTimeout = 900 * time.Second

// connectTimeout bounds a single voice join or move attempt.
const connectTimeout = 10 * time.Second

// IdleHandler runs when the queue has been empty for the idle timeout while a
// voice connection is still open. It may enqueue one final farewell request
// whose OnComplete calls disconnect; if it enqueues nothing it should call
// disconnect itself.
type IdleHandler func(s *Scheduler, disconnect func())

// Config configures a [Scheduler].
type Config struct {
	// GuildID identifies the guild this scheduler serves.
	GuildID string

	// Gateway provides voice connections and channel membership.
	Gateway voice.Gateway

	// IdleTimeout is the queue-wait deadline before the idle handler fires.
	// Defaults to 900s if zero.
	IdleTimeout time.Duration

	// SkipThreshold is the fraction of channel members whose votes end the
	// active request. Clamped to [0,1].
	SkipThreshold float64

	// OnIdle runs on idle timeout while connected. Optional; without it the
	// scheduler disconnects directly.
	OnIdle IdleHandler

	// Metrics receives the scheduler's instruments. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Scheduler is the per-guild audio dispatcher. Requests are served strictly
// in enqueue order; at most one is active at any time. All exported methods
// are safe for concurrent use.
type Scheduler struct {
	guildID       string
	gateway       voice.Gateway
	idleTimeout   time.Duration
	skipThreshold float64
	onIdle        IdleHandler
	metrics       *observe.Metrics

	mu         sync.Mutex
	queue      []*Request
	active     *Request
	conn       voice.Conn
	voters     map[string]struct{}
	playCancel context.CancelFunc
	closed     bool

	wake     chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewScheduler creates a Scheduler for one guild. Call [Scheduler.Start] to
// begin dispatching.
func NewScheduler(cfg Config) *Scheduler {
	timeout := cfg.IdleTimeout
	if timeout <= 0 {
		timeout = defaultIdleTimeout
	}
	threshold := min(max(cfg.SkipThreshold, 0), 1)
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	return &Scheduler{
		guildID:       cfg.GuildID,
		gateway:       cfg.Gateway,
		idleTimeout:   timeout,
		skipThreshold: threshold,
		onIdle:        cfg.OnIdle,
		metrics:       metrics,
		voters:        make(map[string]struct{}),
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start launches the dispatcher goroutine. It runs until [Scheduler.Stop] is
// called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.metrics.AddActiveSchedulers(ctx, 1)
	go s.run(ctx)
}

// Stop tears the scheduler down: the dispatcher exits, the voice connection
// is released and further Enqueue calls fail. Safe to call multiple times.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.stopOnce.Do(s.cancel)
	<-s.done
}

// Enqueue appends req to the guild's queue and wakes the dispatcher. It never
// blocks; it fails only after teardown.
func (s *Scheduler) Enqueue(req *Request) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.queue = append(s.queue, req)
	s.mu.Unlock()
	s.metrics.AddQueuedRequests(context.Background(), 1)

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Playing reports whether a request is active and the connection has audio in
// flight.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	active, conn := s.active, s.conn
	s.mu.Unlock()
	return active != nil && conn != nil && conn.Playing()
}

// ConnectedChannel returns the channel id of the open voice connection, or
// the empty string when disconnected.
func (s *Scheduler) ConnectedChannel() string {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ""
	}
	return conn.ChannelID()
}

// ForceSkip ends the active request immediately, bypassing the tally. It
// reports whether anything was playing.
func (s *Scheduler) ForceSkip() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return false
	}
	s.skipLocked()
	return true
}

// Disconnect releases the voice connection, ending any active playback first.
// Idempotent.
func (s *Scheduler) Disconnect(reason string) error {
	s.mu.Lock()
	if s.playCancel != nil {
		s.playCancel()
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	slog.Info("voice disconnect", "guild_id", s.guildID, "reason", reason)
	return conn.Disconnect()
}

// RequestSkip casts voter's skip vote against the active request.
//
// The voter's own request passes immediately. Otherwise the vote is tallied
// against the current non-bot members of the active channel; voters who have
// since left the channel are dropped, so votes cannot be cast and abandoned.
func (s *Scheduler) RequestSkip(voterID string) SkipResult {
	s.mu.Lock()
	active := s.active
	if active == nil {
		s.mu.Unlock()
		return SkipResult{Outcome: SkipNotPlaying}
	}
	if active.Requester != "" && voterID == active.Requester {
		s.skipLocked()
		s.mu.Unlock()
		return SkipResult{Outcome: SkipSelf}
	}
	if _, ok := s.voters[voterID]; ok {
		s.mu.Unlock()
		return SkipResult{Outcome: SkipAlreadyVoted}
	}
	s.voters[voterID] = struct{}{}
	votes := len(s.voters)
	channelID := active.ChannelID
	s.mu.Unlock()

	members, err := s.gateway.ChannelMembers(s.guildID, channelID)
	if err != nil {
		slog.Warn("skip tally: listing channel members failed",
			"guild_id", s.guildID, "channel_id", channelID, "error", err)
		return SkipResult{Outcome: SkipTallyUnavailable, Votes: votes}
	}

	current := make(map[string]struct{}, len(members))
	for _, m := range members {
		if !m.Bot {
			current[m.ID] = struct{}{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The active request may have finished while we listed members.
	if s.active != active {
		return SkipResult{Outcome: SkipNotPlaying}
	}

	for v := range s.voters {
		if _, ok := current[v]; !ok {
			delete(s.voters, v)
		}
	}

	n, m := len(s.voters), len(current)
	if m == 0 || float64(n)/float64(m) >= s.skipThreshold {
		s.skipLocked()
		return SkipResult{Outcome: SkipVotePassed}
	}
	return SkipResult{
		Outcome: SkipVoteAdded,
		Votes:   n,
		Needed:  int(math.Ceil(float64(m) * s.skipThreshold)),
	}
}

// skipLocked ends the active request via the skip path. Caller holds s.mu.
func (s *Scheduler) skipLocked() {
	if s.active == nil {
		return
	}
	s.active.skipped = true
	clear(s.voters)
	if s.playCancel != nil {
		s.playCancel()
	}
}

// run is the dispatcher loop. It exits only on ctx cancellation; everything
// that goes wrong inside an iteration is logged and the loop continues.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return
		default:
		}
		s.iterate(ctx)
	}
}

func (s *Scheduler) teardown() {
	s.mu.Lock()
	s.closed = true
	dropped := s.queue
	s.queue = nil
	s.mu.Unlock()

	// Requests that never got a turn still settle, so their artifacts are
	// released.
	for _, req := range dropped {
		s.metrics.AddQueuedRequests(context.Background(), -1)
		s.complete(req)
	}

	if err := s.Disconnect("shutdown"); err != nil {
		slog.Warn("disconnect on shutdown failed", "guild_id", s.guildID, "error", err)
	}
	s.metrics.AddActiveSchedulers(context.Background(), -1)
}

// iterate serves at most one request: wait, connect, play. A panic anywhere
// inside abandons the iteration instead of killing the dispatcher.
func (s *Scheduler) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatcher iteration panicked",
				"guild_id", s.guildID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	req, ok := s.awaitNext(ctx)
	if !ok {
		return
	}

	conn, err := s.connect(ctx, req)
	if err != nil {
		s.report(req, err)
		s.complete(req)
		return
	}

	s.play(ctx, conn, req)
}

// awaitNext blocks until a request is available or the idle deadline expires.
func (s *Scheduler) awaitNext(ctx context.Context) (*Request, bool) {
	timer := time.NewTimer(s.idleTimeout)
	defer timer.Stop()

	for {
		if req := s.pop(); req != nil {
			return req, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-s.wake:
		case <-timer.C:
			s.handleIdle()
			return nil, false
		}
	}
}

func (s *Scheduler) pop() *Request {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return nil
	}
	req := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()
	s.metrics.AddQueuedRequests(context.Background(), -1)
	return req
}

// handleIdle runs on queue-wait deadline. With no open connection it is a
// no-op; otherwise the idle handler decides how to say goodbye.
func (s *Scheduler) handleIdle() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	if s.onIdle == nil {
		if err := s.Disconnect("idle timeout"); err != nil {
			slog.Warn("idle disconnect failed", "guild_id", s.guildID, "error", err)
		}
		return
	}
	s.onIdle(s, func() {
		if err := s.Disconnect("idle timeout"); err != nil {
			slog.Warn("idle disconnect failed", "guild_id", s.guildID, "error", err)
		}
	})
}

// connect obtains a voice connection on req's target channel, reusing or
// moving the existing one where possible.
func (s *Scheduler) connect(ctx context.Context, req *Request) (voice.Conn, error) {
	perms, err := s.gateway.Permissions(req.ChannelID)
	if err != nil {
		return nil, err
	}
	if !perms.Connect || !perms.Speak {
		return nil, &NotAllowedError{CanConnect: perms.Connect, CanSpeak: perms.Speak}
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil && conn.ChannelID() == req.ChannelID {
		return conn, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if conn != nil {
		if err := conn.Move(connectCtx, req.ChannelID); err != nil {
			return nil, err
		}
		return conn, nil
	}

	conn, err = s.gateway.Join(connectCtx, s.guildID, req.ChannelID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return conn, nil
}

// play streams the artifact and settles the request afterwards. The
// completion hook runs only if the request still owns the active slot.
func (s *Scheduler) play(ctx context.Context, conn voice.Conn, req *Request) {
	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.active = req
	clear(s.voters)
	s.playCancel = cancel
	s.mu.Unlock()

	playStart := time.Now()
	err := conn.Play(playCtx, req.Path)
	s.metrics.RecordPlayback(ctx, time.Since(playStart))

	s.mu.Lock()
	wasActive := s.active == req
	if wasActive {
		s.active = nil
	}
	s.playCancel = nil
	clear(s.voters)
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("playback failed",
			"guild_id", s.guildID, "path", req.Path, "error", err)
		req.reply("Something went wrong while playing that, sorry.")
	}

	if wasActive {
		s.complete(req)
	}
}

func (s *Scheduler) complete(req *Request) {
	if req.OnComplete != nil {
		req.OnComplete()
	}
}

// report surfaces a connection failure through the request's invocation
// handle, choosing the sentence by error kind.
func (s *Scheduler) report(req *Request, err error) {
	var notAllowed *NotAllowedError
	switch {
	case errors.As(err, &notAllowed):
		slog.Info("request dropped: missing voice permissions",
			"guild_id", s.guildID, "channel_id", req.ChannelID,
			"can_connect", notAllowed.CanConnect, "can_speak", notAllowed.CanSpeak)
		req.reply("I'm not allowed to connect or speak in that voice channel.")
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("request dropped: voice connect timed out",
			"guild_id", s.guildID, "channel_id", req.ChannelID)
		req.reply("I couldn't connect to the voice channel in time, please try again.")
	default:
		slog.Warn("request dropped: voice connect failed",
			"guild_id", s.guildID, "channel_id", req.ChannelID, "error", err)
		req.reply("I can't connect to the voice channel right now.")
	}
}
