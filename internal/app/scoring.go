package app

import (
	"math"
	"strings"

	"nomad_match/internal/domain"
)

// The match score is a deliberate re-ranking layer on top of the coarse
// retrieval similarity: climate dominates (users weight "will I enjoy the
// weather" far above semantic relevance), then visa, then vibe overlap.
// All factors are multiplicative and applied in this fixed order.

const (
	climateStrongBoost = 2.0
	climateSoftBoost   = 1.5
	climateNearMiss    = 0.8
	climateHardMiss    = 0.3
	climateSoftMiss    = 0.5
	visaBoost          = 1.3
	visaPenalty        = 0.6
	vibeBoost          = 1.1
	defaultBase        = 50.0
)

func containsAny(s string, subs ...string) bool {
	low := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(low, sub) {
			return true
		}
	}
	return false
}

// MeetsClimate reports whether the city satisfies the stated climate band.
// It shares its substring tests with the scoring multiplier below so the
// filter gate and the score can never disagree on what "matches" means.
func MeetsClimate(city domain.CityRecord, pref domain.Climate) bool {
	switch pref {
	case domain.ClimateWarm:
		return containsAny(city.SummerTemp, "warm", "hot") || containsAny(city.Region, "southern")
	case domain.ClimateMild:
		return containsAny(city.SummerTemp, "mild") || containsAny(city.Region, "central")
	case domain.ClimateCool:
		return containsAny(city.SummerTemp, "cool", "cold") || containsAny(city.Region, "northern")
	}
	return false
}

func climateMultiplier(city domain.CityRecord, pref domain.Climate) float64 {
	switch pref {
	case domain.ClimateWarm:
		if MeetsClimate(city, pref) {
			return climateStrongBoost
		}
		if containsAny(city.SummerTemp, "mild") {
			return climateNearMiss
		}
		return climateHardMiss
	case domain.ClimateMild, domain.ClimateCool:
		if MeetsClimate(city, pref) {
			return climateSoftBoost
		}
		return climateSoftMiss
	}
	// No stated climate behaves as "does not match" nowhere: neutral.
	return 1.0
}

// baseScore normalizes the retrieval relevance: a 0..1 fraction scales to
// a percentage, an already-scaled percentage passes through, absence
// defaults to the midpoint.
func baseScore(raw *float64) float64 {
	if raw == nil {
		return defaultBase
	}
	v := *raw
	if v < 0 {
		return 0
	}
	if v <= 1 {
		return v * 100
	}
	return v
}

// Score computes the 0..100 display score for one city.
func Score(city domain.CityRecord, prefs domain.UserPreferenceSet) int {
	s := baseScore(city.RawSimilarity)

	s *= climateMultiplier(city, prefs.Climate)

	if prefs.VisaNeeded {
		if city.VisaAvailable == domain.TriYes {
			s *= visaBoost
		} else {
			s *= visaPenalty
		}
	}

	// Vibe overlap compounds: three matching tags means x1.1^3.
	vibeText := strings.ToLower(strings.Join(city.VibeTags, ", "))
	for _, want := range prefs.Vibes {
		want = strings.ToLower(strings.TrimSpace(want))
		if want != "" && strings.Contains(vibeText, want) {
			s *= vibeBoost
		}
	}

	if s > 100 {
		s = 100
	}
	if s < 0 {
		s = 0
	}
	return int(math.Round(s))
}

// ScoreAll derives ScoredCity values for a normalized result page.
func ScoreAll(cities []domain.CityRecord, prefs domain.UserPreferenceSet) []domain.ScoredCity {
	out := make([]domain.ScoredCity, 0, len(cities))
	for _, c := range cities {
		out = append(out, domain.ScoredCity{
			CityRecord:   c,
			DisplayScore: Score(c, prefs),
			MeetsClimate: MeetsClimate(c, prefs.Climate),
		})
	}
	return out
}
