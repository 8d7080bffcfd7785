package app

import (
	"strconv"
	"strings"

	"nomad_match/internal/domain"
)

/********** alias registries (single source of truth) **********/

// The backend has shipped at least two metadata schemas: the current
// snake_case one and a legacy capitalized one (Digital_Nomad_Visa,
// Monthly_Budget_Single, ...). Every attribute resolves through an ordered
// candidate list so scoring and feed logic never branch on schema version.
var cityAliases = map[string][]string{
	"name":          {"city", "City", "name", "city_name"},
	"country":       {"country", "Country"},
	"region":        {"region", "Region", "EU_Region"},
	"budget_label":  {"budget", "Budget", "budget_label", "Cost_Level"},
	"summer_temp":   {"summer_temp", "Summer_Temp", "climate", "Climate"},
	"winter_temp":   {"winter_temp", "Winter_Temp"},
	"internet":      {"internet", "Internet", "internet_quality", "Internet_Quality"},
	"internet_mbps": {"internet_mbps", "Internet_Mbps", "Internet_Speed_Mbps"},
	"visa_type":     {"visa_type", "Visa_Type", "Digital_Nomad_Visa_Type"},
	"visa_score":    {"visa_score", "Visa_Score"},
	"tax_rate":      {"tax_rate", "Tax_Rate_Standard_Pct", "Tax_Rate"},
	"tax_regime":    {"tax_regime", "Tax_Regime", "Tax_Benefits_Premium"},
	"tax_score":     {"tax_score", "Tax_Score", "Tax_Level"},
}

var vibePaths = []string{"vibe_tags", "vibe", "Vibe", "Vibes", "vibes"}

var budgetEURPaths = []string{"budget_eur", "Budget_EUR", "Monthly_Budget_Single", "Monthly_Budget"}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the string at path or "". Numbers are rendered so a
// backend that sends tax_rate: 28 and one that sends "28" look the same.
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	}
	return ""
}

// firstAlias: first non-empty string for a named alias set, or def.
func firstAlias(m map[string]any, key, def string) string {
	for _, p := range cityAliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return def
}

// getFloatFlexible: number from several paths (float64/int/string like "1.400,50").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// splitTags turns either a comma-joined string or a JSON array into an
// ordered tag list, preserving source order.
func splitTags(v any) []string {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []any:
		for _, it := range t {
			if s, ok := it.(string); ok {
				parts = append(parts, s)
			}
		}
	case []string:
		parts = t
	default:
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// visaAvailability resolves the tri-state visa flag through the fixed
// priority list: visa=="Yes", then Digital_Nomad_Visa=="Yes", then the
// legacy numeric "1". An explicit "No"/"0" is a definite no; anything
// else is unknown.
func visaAvailability(m map[string]any) domain.TriState {
	for _, p := range []string{"visa", "Visa", "Digital_Nomad_Visa", "digital_nomad_visa"} {
		switch strings.ToLower(strings.TrimSpace(lookupStr(m, p))) {
		case "yes", "1", "true":
			return domain.TriYes
		case "no", "0", "false":
			return domain.TriNo
		}
	}
	return domain.TriUnknown
}

/********** city mapper **********/

const missing = "N/A"

// NormalizeCity maps one raw search hit onto the canonical CityRecord.
// Pure and total: missing attributes resolve to documented defaults,
// malformed ones fall back per-field, nothing aborts the pipeline.
func NormalizeCity(hit domain.SearchHit) domain.CityRecord {
	m := hit.Metadata
	if m == nil {
		m = map[string]any{}
	}

	rec := domain.CityRecord{
		Name:          firstAlias(m, "name", missing),
		Country:       firstAlias(m, "country", missing),
		Region:        firstAlias(m, "region", missing),
		BudgetEUR:     getFloatFlexible(m, budgetEURPaths...),
		BudgetLabel:   firstAlias(m, "budget_label", missing),
		SummerTemp:    firstAlias(m, "summer_temp", missing),
		WinterTemp:    firstAlias(m, "winter_temp", missing),
		InternetLabel: firstAlias(m, "internet", missing),
		InternetMbps:  firstAlias(m, "internet_mbps", ""),
		VisaAvailable: visaAvailability(m),
		VisaType:      firstAlias(m, "visa_type", missing),
		VisaScore:     firstAlias(m, "visa_score", missing),
		TaxRate:       firstAlias(m, "tax_rate", missing),
		TaxRegime:     firstAlias(m, "tax_regime", missing),
		TaxScore:      firstAlias(m, "tax_score", missing),
		RawSimilarity: hit.Similarity,
	}

	for _, p := range vibePaths {
		if tags := splitTags(lookupAny(m, p)); tags != nil {
			rec.VibeTags = tags
			break
		}
	}
	return rec
}

// NormalizeAll maps a whole result page, dropping hits with no usable name
// (a record we cannot key by name cannot be liked, hidden, or deduplicated).
func NormalizeAll(hits []domain.SearchHit) []domain.CityRecord {
	out := make([]domain.CityRecord, 0, len(hits))
	for _, h := range hits {
		rec := NormalizeCity(h)
		if rec.Name == missing {
			continue
		}
		out = append(out, rec)
	}
	return out
}
