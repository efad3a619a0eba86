package admin

import "sort"

// SortStops orders stops by sequence, tie-broken by id, without mutating
// the input.
func SortStops(stops []RouteStop) []RouteStop {
	out := make([]RouteStop, len(stops))
	copy(out, stops)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Reorder moves the stop with sourceID to the position of targetID and
// renumbers every entry's sequence to its new 1-based index. Pure: the
// input is never mutated. When either id is absent the input order is
// returned unchanged (still a fresh slice).
func Reorder(stops []RouteStop, sourceID, targetID int) []RouteStop {
	next := make([]RouteStop, len(stops))
	copy(next, stops)

	from, to := -1, -1
	for i, stop := range next {
		if stop.ID == sourceID {
			from = i
		}
		if stop.ID == targetID {
			to = i
		}
	}
	if from == -1 || to == -1 {
		return next
	}

	// Remove the source, then insert at the target's pre-removal index.
	// When dragging downwards the removal shifts the target left by one,
	// which lands the moved stop just after it — exactly where the pointer
	// is during a drag-over.
	moved := next[from]
	next = append(next[:from], next[from+1:]...)
	next = append(next[:to], append([]RouteStop{moved}, next[to:]...)...)

	for i := range next {
		next[i].Sequence = i + 1
	}
	return next
}

// StopIDs projects the ordered id list the reorder endpoint consumes.
func StopIDs(stops []RouteStop) []int {
	ids := make([]int, len(stops))
	for i, stop := range stops {
		ids[i] = stop.ID
	}
	return ids
}
