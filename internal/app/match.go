package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"nomad_match/internal/adapters/observability"
	"nomad_match/internal/domain"
)

// MatchService runs the full matching pipeline: query building, retrieval
// (with caching, request collapsing, and fallback substitution), then
// normalize -> score -> bucket -> compose.
type MatchService struct {
	backend  domain.Backend
	cache    domain.Cache
	catalog  []domain.SearchHit // embedded degraded-mode input
	cacheTTL int                // seconds
	results  int                // how many hits to request
	minHits  int                // below this, the fallback catalog substitutes
	flight   singleflight.Group
}

func NewMatchService(backend domain.Backend, cache domain.Cache, catalog []domain.SearchHit, cacheTTLSec, numResults, minResults int) *MatchService {
	if numResults <= 0 {
		numResults = 15
	}
	if minResults <= 0 {
		minResults = 5
	}
	return &MatchService{
		backend:  backend,
		cache:    cache,
		catalog:  catalog,
		cacheTTL: cacheTTLSec,
		results:  numResults,
		minHits:  minResults,
	}
}

// BuildQuery renders a preference set as the retrieval query string.
func BuildQuery(p domain.UserPreferenceSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "European city for nomads. Budget: %s, Climate: %s.", p.Budget, p.Climate)
	if p.VisaNeeded {
		b.WriteString(" Needs digital nomad visa.")
	}
	fmt.Fprintf(&b, " Vibes: %s", strings.Join(p.Vibes, ", "))
	return b.String()
}

// FindMatches runs one ranking pass for a session. The composed ranking is
// stored on the session only while this search is still the newest one the
// session has issued; a result arriving after a newer search is returned to
// its caller but does not overwrite session state.
func (m *MatchService) FindMatches(ctx context.Context, sess *Session, prefs domain.UserPreferenceSet) (Composition, error) {
	var gen uint64
	if sess != nil {
		gen = sess.nextGen()
	}

	hits := m.search(ctx, BuildQuery(prefs))
	scored := ScoreAll(NormalizeAll(hits), prefs)

	hidden := map[string]struct{}{}
	if sess != nil {
		hidden = sess.Prefs.Hidden()
	}
	comp := Compose(scored, hidden)

	if sess != nil && !sess.commitRanking(gen, prefs, comp.Ordered) {
		log.Debug().Uint64("gen", gen).Msg("stale search result not stored")
	}
	return comp, nil
}

// search retrieves raw hits for a query. Identical concurrent queries are
// collapsed; responses are cached; a failed or thin response (< minHits)
// substitutes the embedded catalog so the pipeline always has input.
func (m *MatchService) search(ctx context.Context, query string) []domain.SearchHit {
	key := searchKey(query, m.results)

	if m.cache != nil {
		var cached []domain.SearchHit
		if ok, _ := m.cache.Get(ctx, key, &cached); ok && len(cached) >= m.minHits {
			observability.ObserveSearch("cache")
			return cached
		}
	}

	v, err, _ := m.flight.Do(key, func() (any, error) {
		return m.backend.Search(ctx, query, m.results)
	})
	hits, _ := v.([]domain.SearchHit)

	if err != nil || len(hits) < m.minHits {
		if err != nil {
			log.Warn().Err(err).Msg("search failed, substituting fallback catalog")
		} else {
			log.Info().Int("hits", len(hits)).Msg("thin search result, substituting fallback catalog")
		}
		observability.ObserveSearch("fallback")
		return m.catalog
	}

	observability.ObserveSearch("backend")
	if m.cache != nil {
		_ = m.cache.Set(ctx, key, hits, m.cacheTTL)
	}
	return hits
}

// Favorites resolves a session's liked cities, preferring the retained
// ranking and falling back to the embedded catalog for cities liked in an
// earlier visit that the current ranking no longer contains.
func (m *MatchService) Favorites(sess *Session) []domain.ScoredCity {
	names := sess.Prefs.Likes()
	out := make([]domain.ScoredCity, 0, len(names))
	prefs, hasPrefs := sess.LastPreferences()

	for _, name := range names {
		if c, ok := sess.ranked(name); ok {
			out = append(out, c)
			continue
		}
		if rec, ok := m.catalogRecord(name); ok {
			sc := domain.ScoredCity{CityRecord: rec}
			if hasPrefs {
				sc.DisplayScore = Score(rec, prefs)
				sc.MeetsClimate = MeetsClimate(rec, prefs.Climate)
			}
			out = append(out, sc)
		}
	}
	return out
}

func (m *MatchService) catalogRecord(name string) (domain.CityRecord, bool) {
	for _, h := range m.catalog {
		rec := NormalizeCity(h)
		if rec.Name == name {
			return rec, true
		}
	}
	return domain.CityRecord{}, false
}

func searchKey(query string, n int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d|%s", n, query)))
	return "search:" + hex.EncodeToString(sum[:])
}
