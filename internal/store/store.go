// Package store owns the application state. A single goroutine applies every
// write and serves every read, so feature regions never need their own locks.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/remote"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("store: closed")

type command struct {
	fn    func(*AppState) []Notice
	reply chan struct{}
}

type Store struct {
	cmds      chan command
	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time

	mu      sync.Mutex
	subs    map[int]chan Notice
	nextSub int
}

// New starts the dispatch loop. Call Close to stop it.
func New() *Store {
	s := &Store{
		cmds: make(chan command),
		done: make(chan struct{}),
		now:  time.Now,
		subs: make(map[int]chan Notice),
	}
	go s.loop(NewAppState())
	return s
}

func (s *Store) loop(state AppState) {
	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.cmds:
			notices := cmd.fn(&state)
			close(cmd.reply)
			s.publish(notices)
		}
	}
}

// Update applies fn on the loop goroutine and waits for it to finish.
// Notices returned by fn are published to subscribers afterwards.
func (s *Store) Update(ctx context.Context, fn func(*AppState) []Notice) error {
	cmd := command{fn: fn, reply: make(chan struct{})}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once accepted, the command always runs to completion.
	<-cmd.reply
	return nil
}

// View hands fn a copy of the current state.
func (s *Store) View(ctx context.Context, fn func(AppState)) error {
	return s.Update(ctx, func(st *AppState) []Notice {
		fn(*st)
		return nil
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot(ctx context.Context) (AppState, error) {
	var out AppState
	err := s.View(ctx, func(st AppState) { out = st })
	return out, err
}

// Subscribe registers a notice listener. Slow listeners lose notices rather
// than stall the loop. The returned func unsubscribes.
func (s *Store) Subscribe(buffer int) (<-chan Notice, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Notice, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) publish(notices []Notice) {
	if len(notices) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notices {
		for id, ch := range s.subs {
			select {
			case ch <- n:
			default:
				log.Warn().Int("subscriber", id).Str("feature", string(n.Feature)).Msg("store: notice dropped, subscriber full")
			}
		}
	}
}

// Close stops the loop. Pending and future calls return ErrClosed.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Apply runs a remote-collection event against the region selected by lens
// and returns the resulting transition.
func Apply[T domain.Entity](ctx context.Context, s *Store, feature Feature, lens Lens[T], ev remote.Event[T]) (remote.Transition, error) {
	var tr remote.Transition
	err := s.Update(ctx, func(st *AppState) []Notice {
		region := lens(st)
		next, t := region.Apply(ev)
		*region = next
		tr = t
		if t.Stale {
			log.Debug().Str("feature", string(feature)).Str("op", string(t.Op)).Uint64("generation", t.Generation).Msg("store: stale completion discarded")
		}
		return []Notice{{Feature: feature, Transition: t, At: s.now()}}
	})
	return tr, err
}
