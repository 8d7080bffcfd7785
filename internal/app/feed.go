package app

import (
	"sort"

	"nomad_match/internal/domain"
)

// Composition is one feed-composition pass. Ordered keeps every ranked city
// (hidden ones included) so favorites and premium views can reuse the
// ranking without re-querying; Visible is what the feed actually shows.
type Composition struct {
	Ordered     []domain.ScoredCity
	Visible     []domain.ScoredCity
	EmptyReason domain.EmptyReason
}

// Compose orders and filters one scored result set:
// cities meeting the stated climate rank above every city that does not,
// regardless of score; within each partition, score descending with input
// order preserved on ties (the stable sort is load-bearing: there is no
// secondary tie-break key); finally the hidden set is dropped.
func Compose(cities []domain.ScoredCity, hidden map[string]struct{}) Composition {
	good := make([]domain.ScoredCity, 0, len(cities))
	bad := make([]domain.ScoredCity, 0)
	for _, c := range cities {
		if c.MeetsClimate {
			good = append(good, c)
		} else {
			bad = append(bad, c)
		}
	}
	sort.SliceStable(good, func(i, j int) bool { return good[i].DisplayScore > good[j].DisplayScore })
	sort.SliceStable(bad, func(i, j int) bool { return bad[i].DisplayScore > bad[j].DisplayScore })

	ordered := append(good, bad...)
	visible := make([]domain.ScoredCity, 0, len(ordered))
	for _, c := range ordered {
		if _, hide := hidden[c.Name]; hide {
			continue
		}
		visible = append(visible, c)
	}

	comp := Composition{Ordered: ordered, Visible: visible}
	switch {
	case len(ordered) == 0:
		comp.EmptyReason = domain.EmptyNoMatches
	case len(visible) == 0:
		// Everything that matched was skipped by the user's own dislikes.
		comp.EmptyReason = domain.EmptyAllHidden
	}
	return comp
}

// Top returns the first n visible entries without discarding the rest.
func (c Composition) Top(n int) []domain.ScoredCity {
	if n <= 0 || n > len(c.Visible) {
		n = len(c.Visible)
	}
	return c.Visible[:n]
}
