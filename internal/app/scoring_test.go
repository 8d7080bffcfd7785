package app_test

import (
	"testing"

	"nomad_match/internal/app"
	"nomad_match/internal/domain"
)

func pf(f float64) *float64 { return &f }

func city(name, summer, region string) domain.CityRecord {
	return domain.CityRecord{Name: name, SummerTemp: summer, Region: region}
}

func TestScore_WarmClimateBoostAndClamp(t *testing.T) {
	lisbon := city("Lisbon", "Warm", "Southern Europe")
	lisbon.RawSimilarity = pf(50)

	prefs := domain.UserPreferenceSet{Climate: domain.ClimateWarm}
	if got := app.Score(lisbon, prefs); got != 100 {
		t.Fatalf("Lisbon score = %d, want 100 (50 x2.0 clamped)", got)
	}
	if !app.MeetsClimate(lisbon, domain.ClimateWarm) {
		t.Fatalf("Lisbon should meet warm climate")
	}
}

func TestScore_MildSummerNearMiss(t *testing.T) {
	berlin := city("Berlin", "Mild", "Central Europe")
	berlin.RawSimilarity = pf(50)

	prefs := domain.UserPreferenceSet{Climate: domain.ClimateWarm}
	if got := app.Score(berlin, prefs); got != 40 {
		t.Fatalf("Berlin score = %d, want 40 (50 x0.8)", got)
	}
	if app.MeetsClimate(berlin, domain.ClimateWarm) {
		t.Fatalf("Berlin must not meet warm climate")
	}
}

func TestScore_VisaPenaltyAppliesRegardlessOfClimate(t *testing.T) {
	c := city("Testville", "Warm", "Southern Europe")
	c.RawSimilarity = pf(50)
	c.VisaAvailable = domain.TriNo

	prefs := domain.UserPreferenceSet{Climate: domain.ClimateWarm, VisaNeeded: true}
	// 50 x2.0 = 100 (pre-clamp), x0.6 = 60
	if got := app.Score(c, prefs); got != 60 {
		t.Fatalf("score = %d, want 60", got)
	}

	// unknown visa behaves as unavailable
	c.VisaAvailable = domain.TriUnknown
	if got := app.Score(c, prefs); got != 60 {
		t.Fatalf("score with unknown visa = %d, want 60", got)
	}

	c.VisaAvailable = domain.TriYes
	if got := app.Score(c, prefs); got != 100 {
		t.Fatalf("score with visa = %d, want 100 (clamped)", got)
	}
}

func TestScore_VibeMultiplierCompounds(t *testing.T) {
	c := city("Vibey", "Cool", "Northern Europe")
	c.RawSimilarity = pf(50)
	c.VibeTags = []string{"Creative", "Tech", "Nightlife", "Historic"}

	prefs := domain.UserPreferenceSet{
		Climate: domain.ClimateWarm, // hard miss: x0.3
		Vibes:   []string{"creative", "tech", "nightlife"},
	}
	// 50 x0.3 = 15, x1.1^3 = 19.965 -> 20
	if got := app.Score(c, prefs); got != 20 {
		t.Fatalf("score = %d, want 20", got)
	}
}

func TestScore_BaseRelevanceNormalization(t *testing.T) {
	prefs := domain.UserPreferenceSet{Climate: domain.ClimateMild}
	c := city("Prague", "Mild", "Central Europe") // x1.5

	cases := []struct {
		name string
		raw  *float64
		want int
	}{
		{"fraction", pf(0.5), 75},   // 50 x1.5
		{"percentage", pf(40), 60},  // 40 x1.5
		{"absent", nil, 75},         // default 50 x1.5
		{"full fraction", pf(1), 100},
	}
	for _, tc := range cases {
		c.RawSimilarity = tc.raw
		if got := app.Score(c, prefs); got != tc.want {
			t.Fatalf("%s: score = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	prefs := domain.UserPreferenceSet{
		Climate:    domain.ClimateWarm,
		VisaNeeded: true,
		Vibes:      []string{"sunny", "beach", "creative", "historic", "friendly"},
	}
	c := city("Max", "Hot", "Southern Europe")
	c.VisaAvailable = domain.TriYes
	c.VibeTags = []string{"Sunny", "Beach", "Creative", "Historic", "Friendly"}
	c.RawSimilarity = pf(99)
	if got := app.Score(c, prefs); got != 100 {
		t.Fatalf("stacked boosts must clamp to 100, got %d", got)
	}

	c2 := city("Min", "", "")
	c2.RawSimilarity = pf(0)
	if got := app.Score(c2, prefs); got != 0 {
		t.Fatalf("zero base must stay 0, got %d", got)
	}
}

func TestMeetsClimate_Buckets(t *testing.T) {
	cases := []struct {
		summer, region string
		pref           domain.Climate
		want           bool
	}{
		{"Warm", "Western Europe", domain.ClimateWarm, true},
		{"Hot", "", domain.ClimateWarm, true},
		{"Cold", "Southern Europe", domain.ClimateWarm, true}, // region rescues
		{"Mild", "Western Europe", domain.ClimateWarm, false},
		{"Mild", "", domain.ClimateMild, true},
		{"Warm", "Central Europe", domain.ClimateMild, true},
		{"Warm", "Southern Europe", domain.ClimateMild, false},
		{"Cool", "", domain.ClimateCool, true},
		{"Cold", "", domain.ClimateCool, true},
		{"Warm", "Northern Europe", domain.ClimateCool, true},
		{"Warm", "Southern Europe", domain.ClimateCool, false},
	}
	for _, tc := range cases {
		got := app.MeetsClimate(city("x", tc.summer, tc.region), tc.pref)
		if got != tc.want {
			t.Fatalf("MeetsClimate(summer=%q region=%q, %s) = %v, want %v",
				tc.summer, tc.region, tc.pref, got, tc.want)
		}
	}
}
