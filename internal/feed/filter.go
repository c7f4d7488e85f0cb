// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import "strings"

// Exclusion reasons, used as metric labels.
const (
	reasonInvalidRef      = "invalid_reference"
	reasonBlockedCategory = "blocked_category"
	reasonRunCategory     = "run_category"
	reasonRating          = "min_rating"
	reasonUnrated         = "unrated"
	reasonUnverified      = "unverified"
	reasonDismissed       = "dismissed"
)

// filterSpec is the compiled set of pre-scoring exclusions for one run.
type filterSpec struct {
	blocked      map[string]struct{}
	only         map[string]struct{} // run-level category filter; nil = all
	minRating    float64
	hideUnrated  bool
	verifiedOnly bool
	dismissed    map[string]struct{}
}

func newFilterSpec(prefs *Preferences, runCategories []string, dismissed map[string]struct{}) *filterSpec {
	f := &filterSpec{
		blocked:      toSet(prefs.BlockedCategories),
		minRating:    prefs.MinRating,
		hideUnrated:  prefs.HideUnrated,
		verifiedOnly: prefs.VerifiedOnly,
		dismissed:    dismissed,
	}
	if len(runCategories) > 0 {
		f.only = toSet(runCategories)
	}
	return f
}

// reject returns the exclusion reason for c, or "" to keep it.
func (f *filterSpec) reject(c *Candidate) string {
	if !c.hasValidRefs() || (c.Payload != nil && c.Payload.ItemType() != c.Type) {
		return reasonInvalidRef
	}
	cat := strings.ToLower(c.Category)
	if _, ok := f.blocked[cat]; ok && cat != "" {
		return reasonBlockedCategory
	}
	if f.only != nil {
		if _, ok := f.only[cat]; !ok {
			return reasonRunCategory
		}
	}
	// Creator updates carry no rating of their own.
	if c.Type != ItemCreatorUpdate {
		if c.RatingCount == 0 {
			if f.hideUnrated {
				return reasonUnrated
			}
		} else if c.Rating < f.minRating {
			return reasonRating
		}
	}
	if f.verifiedOnly && !c.Verified {
		return reasonUnverified
	}
	if _, ok := f.dismissed[c.Key()]; ok {
		return reasonDismissed
	}
	return ""
}

// apply keeps the candidates that pass and counts the rest by reason.
func (f *filterSpec) apply(in []Candidate) ([]Candidate, map[string]int) {
	out := in[:0:0]
	dropped := make(map[string]int)
	for i := range in {
		if reason := f.reject(&in[i]); reason != "" {
			dropped[reason]++
			continue
		}
		out = append(out, in[i])
	}
	return out, dropped
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
