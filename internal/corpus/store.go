package corpus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/silibot/internal/voiceline"
)

// ReloadHook observes every reload attempt. snap is nil when err is not.
type ReloadHook func(snap *voiceline.Snapshot, err error)

// Store owns the current corpus snapshot. Readers take the snapshot with a
// single atomic load and keep using it for the whole request, so a reload
// that lands mid-request never mixes generations.
type Store struct {
	loader *Loader
	hooks  []ReloadHook

	cur atomic.Pointer[voiceline.Snapshot]

	// reloadMu serialises reloads; readers never take it.
	reloadMu sync.Mutex
}

// StoreOption configures a [Store].
type StoreOption func(*Store)

// WithReloadHook registers a hook called after every reload attempt.
func WithReloadHook(h ReloadHook) StoreOption {
	return func(s *Store) {
		s.hooks = append(s.hooks, h)
	}
}

// NewStore returns an empty Store backed by l. Call [Store.Reload] to load
// the first snapshot, or let [Store.Get] do it lazily.
func NewStore(l *Loader, opts ...StoreOption) *Store {
	s := &Store{loader: l}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns the current snapshot, or nil if none has loaded yet.
func (s *Store) Snapshot() *voiceline.Snapshot {
	return s.cur.Load()
}

// Ready reports whether a snapshot is available.
func (s *Store) Ready() bool {
	return s.cur.Load() != nil
}

// Get returns the current snapshot, loading it first if the store is still
// empty. The error wraps [voiceline.ErrResourcesNotReady] when loading fails.
func (s *Store) Get(ctx context.Context) (*voiceline.Snapshot, error) {
	if snap := s.cur.Load(); snap != nil {
		return snap, nil
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	// Another caller may have loaded while we waited.
	if snap := s.cur.Load(); snap != nil {
		return snap, nil
	}
	return s.reloadLocked(ctx)
}

// Reload builds a new snapshot and swaps it in. On failure the previous
// snapshot, if any, stays current and the error is returned.
func (s *Store) Reload(ctx context.Context) (*voiceline.Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *Store) reloadLocked(ctx context.Context) (*voiceline.Snapshot, error) {
	snap, err := s.loader.Load(ctx)
	for _, h := range s.hooks {
		h(snap, err)
	}
	if err != nil {
		if prev := s.cur.Load(); prev != nil {
			slog.Warn("corpus: reload failed, keeping previous snapshot", "version", prev.Version(), "err", err)
		}
		return nil, err
	}
	s.cur.Store(snap)
	return snap, nil
}
