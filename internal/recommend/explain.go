// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package recommend

import (
	"cmp"
	"slices"
	"strings"

	"github.com/tomtom215/smartrank/internal/featurestore"
	"github.com/tomtom215/smartrank/internal/recommend/signals"
)

// maxReasons caps the signal phrases in one explanation.
const maxReasons = 2

// explain builds the human-readable justification of a fused item from its
// strongest positive signal contributions and the user's declared interests.
func explain(f *fusedItem, platform string, user *featurestore.UserFeatures, coldStart bool, eps float64) string {
	if coldStart {
		return "Popular on " + platform + " right now"
	}

	type reason struct {
		kind  signals.Kind
		value float64
	}
	reasons := make([]reason, 0, signals.NumKinds)
	for _, k := range signals.Kinds {
		if c := f.contribution(k, eps); c > 0 {
			reasons = append(reasons, reason{kind: k, value: c})
		}
	}
	slices.SortStableFunc(reasons, func(a, b reason) int {
		return cmp.Compare(b.value, a.value)
	})

	phrases := make([]string, 0, maxReasons+1)
	for _, r := range reasons[:min(len(reasons), maxReasons)] {
		phrases = append(phrases, signalPhrase(r.kind, platform))
	}
	if topic, ok := sharedInterest(f.item, user); ok {
		phrases = append(phrases, "matches your interest in "+topic)
	}
	if len(phrases) == 0 {
		return "Recently published on " + platform
	}

	s := strings.Join(phrases, "; ")
	return strings.ToUpper(s[:1]) + s[1:]
}

func signalPhrase(k signals.Kind, platform string) string {
	switch k {
	case signals.Collaborative:
		return "popular with readers like you"
	case signals.ContentBased:
		return "topical similarity to your recent reads"
	default:
		return "trending on " + platform
	}
}

// sharedInterest returns the first item topic the user declared an interest in.
func sharedInterest(item *featurestore.ItemFeatures, user *featurestore.UserFeatures) (string, bool) {
	if user == nil {
		return "", false
	}
	for _, topic := range item.Topics {
		if slices.Contains(user.Interests, topic) {
			return topic, true
		}
	}
	return "", false
}
