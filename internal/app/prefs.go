package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"nomad_match/internal/domain"
)

// PreferenceStore holds one user's city verdicts. A city occupies a single
// slot: it is liked, disliked, or absent, never two at once. The hidden set
// is always derived from the map, never mutated on its own. Two toggles or a
// toggle racing a re-search can interleave, so every access goes through the
// mutex.
type PreferenceStore struct {
	mu      sync.RWMutex
	entries map[string]domain.PreferenceAction
}

func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{entries: make(map[string]domain.PreferenceAction)}
}

// Load replaces the whole store with the remote snapshot (login / refresh).
func (s *PreferenceStore) Load(entries []domain.PreferenceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]domain.PreferenceAction, len(entries))
	for _, e := range entries {
		if e.Action == domain.ActionLike || e.Action == domain.ActionDislike {
			s.entries[e.CityName] = e.Action
		}
	}
}

func (s *PreferenceStore) Get(cityName string) (domain.PreferenceAction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.entries[cityName]
	return a, ok
}

// Hidden derives the set of cities excluded from the feed.
func (s *PreferenceStore) Hidden() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{})
	for name, a := range s.entries {
		if a == domain.ActionDislike {
			out[name] = struct{}{}
		}
	}
	return out
}

// Likes returns liked city names, sorted for stable output.
func (s *PreferenceStore) Likes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name, a := range s.entries {
		if a == domain.ActionLike {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// set applies a local transition and returns the previous slot value.
// Passing "" clears the slot.
func (s *PreferenceStore) set(cityName string, action domain.PreferenceAction) (domain.PreferenceAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.entries[cityName]
	if action == "" {
		delete(s.entries, cityName)
	} else {
		s.entries[cityName] = action
	}
	return prev, had
}

// ToggleState is the per-city state after a transition.
type ToggleState string

const (
	StateUnset    ToggleState = "unset"
	StateLiked    ToggleState = "liked"
	StateDisliked ToggleState = "disliked"
)

func stateOf(a domain.PreferenceAction, ok bool) ToggleState {
	switch {
	case !ok:
		return StateUnset
	case a == domain.ActionLike:
		return StateLiked
	default:
		return StateDisliked
	}
}

// Toggler is the single writer for preference state. Transitions:
//
//	unset    --like-->    liked    (remote create)
//	unset    --dislike--> disliked (remote create, city leaves the feed)
//	liked    --like-->    unset    (remote delete; re-click un-sets)
//	disliked --dislike--> unset    (remote delete; city may reappear)
//	liked    --dislike--> disliked (single remote upsert, not delete+create)
//	disliked --like-->    liked    (single remote upsert)
//
// Local state updates first (optimistic); if the remote call fails the
// inverse transition is replayed so local and remote cannot silently
// diverge, and the error is surfaced to the caller.
//
// The toggler's own mutex serializes whole transitions, read through
// rollback: two concurrent toggles on the same session must not interleave
// between reading the slot and writing it.
type Toggler struct {
	mu      sync.Mutex
	store   *PreferenceStore
	backend domain.Backend
	mirror  domain.PreferenceMirror
	token   string
	email   string
}

func NewToggler(store *PreferenceStore, backend domain.Backend, mirror domain.PreferenceMirror, token, email string) *Toggler {
	return &Toggler{store: store, backend: backend, mirror: mirror, token: token, email: email}
}

// Toggle applies one user action to a city and synchronizes it remotely.
// The returned state is the city's state after the transition.
func (t *Toggler) Toggle(ctx context.Context, cityName string, action domain.PreferenceAction) (ToggleState, error) {
	if action != domain.ActionLike && action != domain.ActionDislike {
		return StateUnset, fmt.Errorf("unknown preference action %q", action)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, had := t.store.Get(cityName)

	// Re-clicking the active action un-sets; anything else is an upsert.
	var next domain.PreferenceAction
	if !had || prev != action {
		next = action
	}

	// Optimistic local apply.
	t.store.set(cityName, next)

	var err error
	if next == "" {
		err = t.backend.DeletePreference(ctx, t.token, cityName)
	} else {
		err = t.backend.PutPreference(ctx, t.token, cityName, next)
	}
	if err != nil {
		// Inverse replay: restore the pre-toggle slot.
		if had {
			t.store.set(cityName, prev)
		} else {
			t.store.set(cityName, "")
		}
		return stateOf(prev, had), fmt.Errorf("sync preference for %s: %w", cityName, err)
	}

	t.writeMirror(ctx, cityName, next)
	return stateOf(next, next != ""), nil
}

// writeMirror keeps the durable local copy in step. Best effort only.
func (t *Toggler) writeMirror(ctx context.Context, cityName string, action domain.PreferenceAction) {
	if t.mirror == nil || t.email == "" {
		return
	}
	var err error
	if action == "" {
		err = t.mirror.Delete(ctx, t.email, cityName)
	} else {
		err = t.mirror.Upsert(ctx, t.email, cityName, action)
	}
	if err != nil {
		log.Warn().Err(err).Str("city", cityName).Msg("preference mirror write failed")
	}
}
