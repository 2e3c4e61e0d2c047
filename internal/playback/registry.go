package playback

import (
	"context"
	"sync"
)

// Registry hands out one running [Scheduler] per guild, created lazily on
// first use. Safe for concurrent use; the guild map mutex is released before
// any scheduler is stopped.
type Registry struct {
	factory func(guildID string) *Scheduler

	mu         sync.Mutex
	schedulers map[string]*Scheduler
}

// NewRegistry creates a Registry. factory builds an unstarted scheduler for a
// guild; the registry starts it.
func NewRegistry(factory func(guildID string) *Scheduler) *Registry {
	return &Registry{
		factory:    factory,
		schedulers: make(map[string]*Scheduler),
	}
}

// GetOrCreate returns the guild's scheduler, creating and starting one if
// this is the guild's first request. ctx bounds the lifetime of a newly
// started dispatcher.
func (r *Registry) GetOrCreate(ctx context.Context, guildID string) *Scheduler {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.schedulers[guildID]; ok {
		return s
	}

	// Start before publishing: a concurrent Remove must never reach a
	// scheduler whose dispatcher has not launched yet.
	s := r.factory(guildID)
	s.Start(ctx)
	r.schedulers[guildID] = s
	return s
}

// Get returns the guild's scheduler without creating one.
func (r *Registry) Get(guildID string) (*Scheduler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedulers[guildID]
	return s, ok
}

// Remove tears down and forgets the guild's scheduler, if any.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	s, ok := r.schedulers[guildID]
	delete(r.schedulers, guildID)
	r.mu.Unlock()

	if ok {
		s.Stop()
	}
}

// Len returns the number of live schedulers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.schedulers)
}

// Close stops every scheduler and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Scheduler, 0, len(r.schedulers))
	for _, s := range r.schedulers {
		all = append(all, s)
	}
	clear(r.schedulers)
	r.mu.Unlock()

	for _, s := range all {
		s.Stop()
	}
}
