package scraper

import (
	"sort"

	"dealswipe/internal/domain"
)

// Rank deduplicates deals by canonical path and orders them by discount
// percentage, highest first. The first occurrence of a path wins. The sort
// is stable on purpose: the source ordering reflects retailer relevance, so
// ties keep their input order.
func Rank(deals []*domain.Deal) []*domain.Deal {
	seen := make(map[string]bool, len(deals))
	ranked := make([]*domain.Deal, 0, len(deals))
	for _, deal := range deals {
		if seen[deal.CanonicalPath] {
			continue
		}
		seen[deal.CanonicalPath] = true
		ranked = append(ranked, deal)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DiscountPercentage > ranked[j].DiscountPercentage
	})

	return ranked
}

// TopN truncates a ranked deal list to its first n entries. A non-positive n
// means unlimited.
func TopN(deals []*domain.Deal, n int) []*domain.Deal {
	if n <= 0 || n >= len(deals) {
		return deals
	}
	return deals[:n]
}
