// Package catalog embeds the fixed city catalog used as degraded-mode
// search input. The records keep the backend's raw metadata shape so they
// run through the exact same normalize/score/compose pipeline as live
// search results.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"nomad_match/internal/domain"
)

//go:embed cities.json
var citiesJSON []byte

// Load decodes the embedded catalog into search hits with no retrieval
// similarity attached (the scoring engine then uses its default base).
func Load() ([]domain.SearchHit, error) {
	var raw []map[string]any
	if err := json.Unmarshal(citiesJSON, &raw); err != nil {
		return nil, fmt.Errorf("decode embedded catalog: %w", err)
	}
	hits := make([]domain.SearchHit, 0, len(raw))
	for _, m := range raw {
		hits = append(hits, domain.SearchHit{Metadata: m})
	}
	return hits, nil
}
