package search

import "sort"

// Merge blends lexical and semantic hits. Each list is min-max normalised to
// [0,1] first; alpha weighs the lexical side. Ties keep lexical order.
func Merge(lexical, semantic []Hit, alpha float64, limit int) []Hit {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	lex := normalize(lexical)
	sem := normalize(semantic)

	order := make([]string, 0, len(lexical)+len(semantic))
	byKey := map[string]*Hit{}
	add := func(h Hit, score float64) {
		k := h.key()
		if cur, ok := byKey[k]; ok {
			cur.Score += score
			return
		}
		h.Score = score
		byKey[k] = &h
		order = append(order, k)
	}
	for _, h := range lexical {
		add(h, lex[h.key()]*alpha)
	}
	for _, h := range semantic {
		add(h, sem[h.key()]*(1-alpha))
	}

	out := make([]Hit, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func normalize(hits []Hit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	span := hi - lo
	for _, h := range hits {
		if span == 0 {
			out[h.key()] = 1
			continue
		}
		out[h.key()] = (h.Score - lo) / span
	}
	return out
}
