package domain

// Climate is the user's requested climate band.
type Climate string

const (
	ClimateWarm Climate = "warm"
	ClimateMild Climate = "mild"
	ClimateCool Climate = "cool"
)

// Budget is the questionnaire's budget bracket.
type Budget string

const (
	BudgetLow      Budget = "low"
	BudgetModerate Budget = "moderate"
	BudgetHigh     Budget = "high"
)

// TriState models attributes the backend may report as yes/no or not at all.
type TriState string

const (
	TriYes     TriState = "yes"
	TriNo      TriState = "no"
	TriUnknown TriState = "unknown"
)

// CityRecord is the canonical city attribute set after normalization.
// Name is the natural key: preferences and hiding are tracked by the display
// name exactly as the backend delivers it (case-sensitive, no folding).
type CityRecord struct {
	Name          string   `json:"name"`
	Country       string   `json:"country"`
	Region        string   `json:"region"`
	BudgetEUR     *float64 `json:"budget_eur,omitempty"`
	BudgetLabel   string   `json:"budget_label"`
	SummerTemp    string   `json:"summer_temp"`
	WinterTemp    string   `json:"winter_temp"`
	InternetLabel string   `json:"internet"`
	InternetMbps  string   `json:"internet_mbps,omitempty"`
	VisaAvailable TriState `json:"visa_available"`
	VisaType      string   `json:"visa_type"`
	VisaScore     string   `json:"visa_score"`
	TaxRate       string   `json:"tax_rate"`
	TaxRegime     string   `json:"tax_regime"`
	TaxScore      string   `json:"tax_score"`
	VibeTags      []string `json:"vibe_tags"`

	// RawSimilarity is the retrieval layer's relevance, either a 0..1
	// fraction or an already-scaled percentage. Nil when the source gave none.
	RawSimilarity *float64 `json:"raw_similarity,omitempty"`
}

// UserPreferenceSet is one questionnaire submission. It is captured once per
// ranking pass and not mutated afterwards.
type UserPreferenceSet struct {
	Budget     Budget   `json:"budget"`
	Climate    Climate  `json:"climate"`
	VisaNeeded bool     `json:"visa"`
	Vibes      []string `json:"vibes"`
}

// ScoredCity is a CityRecord with the derived ranking attributes attached.
type ScoredCity struct {
	CityRecord
	DisplayScore int  `json:"display_score"`
	MeetsClimate bool `json:"meets_climate"`
}

// PreferenceAction is the user's binary verdict on a city.
type PreferenceAction string

const (
	ActionLike    PreferenceAction = "like"
	ActionDislike PreferenceAction = "dislike"
)

// PreferenceEntry is one persisted city verdict.
type PreferenceEntry struct {
	CityName string           `json:"city_name"`
	Action   PreferenceAction `json:"action"`
}

// EmptyReason distinguishes why a composed feed came back empty. The two
// outcomes carry different user-facing messages and must not be collapsed.
type EmptyReason string

const (
	EmptyNone      EmptyReason = ""
	EmptyNoMatches EmptyReason = "no_matches"
	EmptyAllHidden EmptyReason = "all_hidden"
)

// SearchHit is one raw result from the backend's retrieval endpoint:
// an unparsed metadata map plus whatever relevance field the backend
// version at hand emits.
type SearchHit struct {
	Metadata   map[string]any
	Similarity *float64
}

// AuthToken is the backend's login/register response.
type AuthToken struct {
	AccessToken string `json:"access_token"`
	IsPremium   bool   `json:"is_premium"`
}

// UserInfo is the backend's view of the authenticated user.
type UserInfo struct {
	Email     string `json:"email"`
	IsPremium bool   `json:"is_premium"`
}

// AdviceResult is the premium advice payload: the cities the advice engine
// grounded itself on plus the generated text. The core reads only this shape.
type AdviceResult struct {
	Hits   []SearchHit
	Advice string
}
