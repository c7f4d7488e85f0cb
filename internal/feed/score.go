// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"math"
	"sort"
	"strings"
)

// scored is a candidate with its cross-source relevance.
type scored struct {
	Candidate
	Normalized float64
	Relevance  float64
	Sources    []Source
}

// scoreCandidates normalizes raw scores within each source batch, applies
// the user's source weight and the preferred category boost, and clamps to
// [0,1]. Candidates are grouped by source before normalization so a source
// with a wide raw range cannot drown out one with a narrow range.
func scoreCandidates(cands []Candidate, prefs *Preferences, mode Normalization, boost float64) []scored {
	bySource := make(map[Source][]int)
	for i := range cands {
		bySource[cands[i].Source] = append(bySource[cands[i].Source], i)
	}

	preferred := toSet(prefs.PreferredCategories)
	out := make([]scored, len(cands))
	for src, idx := range bySource {
		norm := normalize(cands, idx, mode)
		weight := prefs.Weights.For(src)
		for j, i := range idx {
			c := cands[i]
			rel := norm[j] * weight
			if _, ok := preferred[strings.ToLower(c.Category)]; ok && c.Category != "" {
				rel *= boost
			}
			out[i] = scored{
				Candidate:  c,
				Normalized: norm[j],
				Relevance:  clamp01(rel),
				Sources:    []Source{c.Source},
			}
		}
	}
	return out
}

// normalize returns the normalized score of each candidate referenced by idx,
// in idx order.
func normalize(cands []Candidate, idx []int, mode Normalization) []float64 {
	out := make([]float64, len(idx))
	if len(idx) == 0 {
		return out
	}

	if mode == NormalizeRank {
		order := make([]int, len(idx))
		for j := range order {
			order[j] = j
		}
		// Stable on the original batch order so equal raw scores keep the
		// order the source returned them in.
		sort.SliceStable(order, func(a, b int) bool {
			return sanitize(cands[idx[order[a]]].RawScore) > sanitize(cands[idx[order[b]]].RawScore)
		})
		n := float64(len(idx))
		for rank, j := range order {
			out[j] = (n - float64(rank)) / n
		}
		return out
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		s := sanitize(cands[i].RawScore)
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	span := hi - lo
	for j, i := range idx {
		if span == 0 {
			out[j] = 1
			continue
		}
		out[j] = (sanitize(cands[i].RawScore) - lo) / span
	}
	return out
}

// sanitize replaces NaN with 0 and infinities with large finite values so one
// bad score cannot poison the batch.
func sanitize(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64 / 4
	case math.IsInf(v, -1):
		return -math.MaxFloat64 / 4
	}
	return v
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
