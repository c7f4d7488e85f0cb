// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"slices"
	"sort"
)

// dedupe collapses candidates sharing a key. The surviving entry is the one
// that ranks first under less; promoted and trending flags are OR-ed across
// all occurrences and every contributing source is kept.
func dedupe(items []scored) []scored {
	byKey := make(map[string]int, len(items))
	out := make([]scored, 0, len(items))
	for _, it := range items {
		key := it.Key()
		pos, seen := byKey[key]
		if !seen {
			byKey[key] = len(out)
			out = append(out, it)
			continue
		}
		cur := out[pos]
		winner, loser := cur, it
		if less(&it, &cur) {
			winner, loser = it, cur
		}
		winner.Promoted = cur.Promoted || it.Promoted
		winner.Trending = cur.Trending || it.Trending
		winner.Sources = mergeSources(winner.Sources, loser.Sources)
		out[pos] = winner
	}
	return out
}

func mergeSources(a, b []Source) []Source {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// less is the total feed order: relevance desc, engagement desc, activity
// desc, key asc, then source name and item type so that two candidates are
// only equal when they are the same candidate.
func less(a, b *scored) bool {
	if a.Relevance != b.Relevance {
		return a.Relevance > b.Relevance
	}
	if a.Engagement != b.Engagement {
		return a.Engagement > b.Engagement
	}
	if !a.ActivityAt.Equal(b.ActivityAt) {
		return a.ActivityAt.After(b.ActivityAt)
	}
	if ka, kb := a.Key(), b.Key(); ka != kb {
		return ka < kb
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.Type < b.Type
}

// rank sorts, truncates to maxItems and returns the ordered list.
func rank(items []scored, maxItems int) []scored {
	sort.SliceStable(items, func(i, j int) bool { return less(&items[i], &items[j]) })
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

// merge runs dedup and ranking. Positions are the slice indices of the result.
func merge(items []scored, maxItems int) []scored {
	return rank(dedupe(items), maxItems)
}
