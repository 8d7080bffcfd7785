package domain

import "context"

// Backend is the upstream recommendation service this engine consumes.
// All calls carry a bounded timeout via ctx; token-bearing calls take the
// raw bearer token as delivered at login.
type Backend interface {
	Health(ctx context.Context) (string, error)
	Search(ctx context.Context, query string, numResults int) ([]SearchHit, error)

	Register(ctx context.Context, email, password string) (AuthToken, error)
	Login(ctx context.Context, email, password string) (AuthToken, error)
	Me(ctx context.Context, token string) (UserInfo, error)
	Upgrade(ctx context.Context, token string) error

	ListPreferences(ctx context.Context, token string) ([]PreferenceEntry, error)
	PutPreference(ctx context.Context, token, cityName string, action PreferenceAction) error
	DeletePreference(ctx context.Context, token, cityName string) error

	Advice(ctx context.Context, token, query string, numResults int) (AdviceResult, error)
}

// Cache is a read-through cache for backend search responses.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// PreferenceMirror is the local durable copy of per-user city verdicts,
// written through on successful toggles and read when the upstream
// preference API is unreachable. Best effort: the upstream stays the
// source of truth.
type PreferenceMirror interface {
	Upsert(ctx context.Context, email, cityName string, action PreferenceAction) error
	Delete(ctx context.Context, email, cityName string) error
	List(ctx context.Context, email string) ([]PreferenceEntry, error)
}
