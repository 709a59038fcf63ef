package vessel

// AggregateParts counts physical parts per identity. A record with N
// symmetry counterparts contributes 1+N.
func AggregateParts(s *Snapshot) map[string]int {
	return CountParts(s.All())
}

// AggregateSubtree counts the parts under root (inclusive).
func AggregateSubtree(s *Snapshot, root int) map[string]int {
	return CountParts(s.Subtree(root))
}

func CountParts(parts []Part) map[string]int {
	out := map[string]int{}
	for _, p := range parts {
		out[p.Identity()] += p.Multiplicity()
	}
	return out
}

// AggregateResources sums resource amounts by resource name across parts.
func AggregateResources(parts []Part) map[string]float64 {
	out := map[string]float64{}
	for _, p := range parts {
		m := float64(p.Multiplicity())
		for _, r := range p.Resources {
			if r.Name == "" {
				continue
			}
			out[r.Name] += r.Amount * m
		}
	}
	return out
}
