// Package graph computes reachability and transitive reductions over
// dependency edges.
package graph

// Distinct returns keys with duplicates removed, keeping first occurrences.
func Distinct[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Reachable returns every node reachable from start by following edges one or
// more times. start itself is only included when it lies on a cycle.
func Reachable[K comparable](start K, edges func(K) []K) map[K]struct{} {
	visited := make(map[K]struct{})
	queue := append([]K(nil), edges(start)...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if _, ok := visited[n]; ok {
			continue
		}
		visited[n] = struct{}{}
		queue = append(queue, edges(n)...)
	}
	return visited
}

// Reduce removes from raw every entry that is reachable from another entry,
// so that the result generates the same closure with no implied members.
// When two entries reach each other the one appearing first in raw is kept.
// The relative order of the kept entries is preserved.
func Reduce[K comparable](raw []K, edges func(K) []K) []K {
	raw = Distinct(raw)
	if len(raw) < 2 {
		return raw
	}

	reach := make([]map[K]struct{}, len(raw))
	for i, k := range raw {
		reach[i] = Reachable(k, edges)
	}

	kept := make([]K, 0, len(raw))
	for i, d := range raw {
		if !implied(i, d, raw, reach) {
			kept = append(kept, d)
		}
	}
	return kept
}

func implied[K comparable](i int, d K, raw []K, reach []map[K]struct{}) bool {
	for j, e := range raw {
		if i == j {
			continue
		}
		if _, ok := reach[j][d]; !ok {
			continue
		}
		// Mutually reachable entries: the earlier one wins.
		if _, mutual := reach[i][e]; !mutual || j < i {
			return true
		}
	}
	return false
}
