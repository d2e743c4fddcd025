package threat

// Merge returns a catalog containing all of existing plus every entry of
// incoming whose name is not already present. The dedup key is the exact
// threat name; on collision the first write wins and the later entry is
// silently dropped, not overwritten.
//
// This is the single reducer used both when accumulating model output
// across generation passes and when tools append candidates, so merging
// the same batch twice is a no-op.
func Merge(existing, incoming Catalog) Catalog {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make(Catalog, 0, len(existing)+len(incoming))

	for _, t := range existing {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		merged = append(merged, t)
	}

	for _, t := range incoming {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		merged = append(merged, t)
	}

	return merged
}
