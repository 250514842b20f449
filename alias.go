package zipbed

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// resolveAliases adjusts a primary_city result for city aliases.
//
// Every catalog record listing city among its acceptable cities is added,
// whether or not it passed the other filters. The first record, in result
// order, whose primary city equals city exactly (case-sensitive) is the
// anchor; records whose primary city appears in the anchor's unacceptable
// cities are then removed from the whole result.
//
// matched is returned in result order: its own entries first, then additions.
func (e *Engine) resolveAliases(matched []int, city string) []int {
	records := e.catalog.records

	seen := roaring.New()
	ordered := make([]int, 0, len(matched))
	for _, i := range matched {
		if seen.CheckedAdd(uint32(i)) {
			ordered = append(ordered, i)
		}
	}
	for i := range records {
		if records[i].AcceptableCities.Contains(city) && seen.CheckedAdd(uint32(i)) {
			ordered = append(ordered, i)
		}
	}

	anchor := -1
	for _, i := range ordered {
		if records[i].PrimaryCity == city {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return ordered
	}

	banned := records[anchor].UnacceptableCities
	if len(banned) == 0 {
		return ordered
	}

	kept := ordered[:0]
	for _, i := range ordered {
		if !banned.Contains(records[i].PrimaryCity) {
			kept = append(kept, i)
		}
	}
	e.logger.Debug("unacceptable cities removed",
		"city", city,
		"anchor_zip", records[anchor].Zip,
		"removed", len(ordered)-len(kept),
	)
	return kept
}
