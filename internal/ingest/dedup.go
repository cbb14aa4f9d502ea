package ingest

// Resolve returns the subset of remote ids not present in the persisted
// set, preserving relative order. The existing set must come from a single
// batched lookup; membership here is O(1) per id.
func Resolve(remote []string, existing map[string]struct{}) []string {
	missing := make([]string, 0, len(remote))
	for _, id := range remote {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
