// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package recommend

// diversify selects up to limit items from ranked so that no topic appears
// more than maxPerTopic times in any window consecutive positions.
//
// The pass is greedy: each position takes the highest ranked remaining item
// that keeps the cap. When none does, the highest ranked item is taken and
// the cap is broken rather than the list shortened.
func diversify(ranked []fusedItem, limit, window, maxPerTopic int) []fusedItem {
	if limit > len(ranked) {
		limit = len(ranked)
	}
	if window < 2 || maxPerTopic < 1 {
		return ranked[:limit]
	}

	remaining := append([]fusedItem(nil), ranked...)
	out := make([]fusedItem, 0, limit)
	for len(out) < limit {
		pick := 0
		for j := range remaining {
			if fitsWindow(out, &remaining[j], window, maxPerTopic) {
				pick = j
				break
			}
		}
		out = append(out, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}
	return out
}

// fitsWindow reports whether appending cand to placed keeps every topic of
// cand within the cap over the trailing window.
func fitsWindow(placed []fusedItem, cand *fusedItem, window, maxPerTopic int) bool {
	from := max(len(placed)-(window-1), 0)
	recent := placed[from:]
	for _, topic := range cand.item.Topics {
		n := 1
		for i := range recent {
			if hasTopic(recent[i].item.Topics, topic) {
				n++
			}
		}
		if n > maxPerTopic {
			return false
		}
	}
	return true
}

func hasTopic(topics []string, topic string) bool {
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}
