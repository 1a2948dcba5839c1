package domain

import (
	"sort"

	"github.com/rssabbirdev/smart-clinic/internal/shared/errors"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

// RanksBefore reports whether a is served before b: emergency-flagged
// visits first, then higher priority tier, then earlier arrival. The ID
// tie-break makes the order total regardless of input order.
func RanksBefore(a, b *Visit) bool {
	if a.EmergencyFlag != b.EmergencyFlag {
		return a.EmergencyFlag
	}
	if a.Priority.Tier() != b.Priority.Tier() {
		return a.Priority.Tier() > b.Priority.Tier()
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Rank returns the waiting visits in dispatch order. Pure and
// deterministic: the same set always yields the same sequence, no
// matter how the store returned it.
func Rank(visits []*Visit) []*Visit {
	ranked := make([]*Visit, len(visits))
	copy(ranked, visits)
	sort.SliceStable(ranked, func(i, j int) bool {
		return RanksBefore(ranked[i], ranked[j])
	})
	return ranked
}

// Position returns the 1-based queue number of the visit within the
// waiting set. NOT_FOUND means the visit left the set concurrently;
// callers should re-fetch, not report position zero.
func Position(waiting []*Visit, visitID types.ID) (int, error) {
	target := -1
	for i, v := range waiting {
		if v.ID == visitID {
			target = i
			break
		}
	}
	if target == -1 {
		return 0, errors.NotFound("visit", visitID.String())
	}

	pos := 1
	for i, v := range waiting {
		if i != target && RanksBefore(v, waiting[target]) {
			pos++
		}
	}
	return pos, nil
}
