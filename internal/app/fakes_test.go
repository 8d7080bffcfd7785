package app_test

import (
	"context"
	"sync"

	"nomad_match/internal/domain"
)

// fakeBackend records calls and lets tests script each operation.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	searchFn func(query string, n int) ([]domain.SearchHit, error)
	putErr   error
	delErr   error
	prefs    []domain.PreferenceEntry
	prefsErr error
	meInfo   domain.UserInfo
	meErr    error
}

func (f *fakeBackend) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Health(ctx context.Context) (string, error) { return "healthy", nil }

func (f *fakeBackend) Search(ctx context.Context, query string, n int) ([]domain.SearchHit, error) {
	f.record("search")
	if f.searchFn != nil {
		return f.searchFn(query, n)
	}
	return nil, nil
}

func (f *fakeBackend) Register(ctx context.Context, email, password string) (domain.AuthToken, error) {
	return domain.AuthToken{AccessToken: "tok-" + email}, nil
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (domain.AuthToken, error) {
	return domain.AuthToken{AccessToken: "tok-" + email}, nil
}

func (f *fakeBackend) Me(ctx context.Context, token string) (domain.UserInfo, error) {
	f.record("me")
	return f.meInfo, f.meErr
}

func (f *fakeBackend) Upgrade(ctx context.Context, token string) error { return nil }

func (f *fakeBackend) ListPreferences(ctx context.Context, token string) ([]domain.PreferenceEntry, error) {
	f.record("list")
	return f.prefs, f.prefsErr
}

func (f *fakeBackend) PutPreference(ctx context.Context, token, cityName string, action domain.PreferenceAction) error {
	f.record("put:" + cityName + ":" + string(action))
	return f.putErr
}

func (f *fakeBackend) DeletePreference(ctx context.Context, token, cityName string) error {
	f.record("del:" + cityName)
	return f.delErr
}

func (f *fakeBackend) Advice(ctx context.Context, token, query string, n int) (domain.AdviceResult, error) {
	return domain.AdviceResult{Advice: "go south"}, nil
}

// fakeCache is an in-memory domain.Cache.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]domain.SearchHit
	sets  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dst.(*[]domain.SearchHit); ok {
		*d = v
		return true, nil
	}
	return false, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]domain.SearchHit{}
	}
	if hits, ok := v.([]domain.SearchHit); ok {
		c.store[key] = hits
		c.sets++
	}
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// fakeMirror is an in-memory domain.PreferenceMirror.
type fakeMirror struct {
	mu      sync.Mutex
	entries map[string]map[string]domain.PreferenceAction
}

func (m *fakeMirror) Upsert(ctx context.Context, email, cityName string, action domain.PreferenceAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string]map[string]domain.PreferenceAction{}
	}
	if m.entries[email] == nil {
		m.entries[email] = map[string]domain.PreferenceAction{}
	}
	m.entries[email][cityName] = action
	return nil
}

func (m *fakeMirror) Delete(ctx context.Context, email, cityName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries[email], cityName)
	return nil
}

func (m *fakeMirror) List(ctx context.Context, email string) ([]domain.PreferenceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PreferenceEntry
	for city, a := range m.entries[email] {
		out = append(out, domain.PreferenceEntry{CityName: city, Action: a})
	}
	return out, nil
}
