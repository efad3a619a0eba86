package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stops(ids ...int) []RouteStop {
	out := make([]RouteStop, len(ids))
	for i, id := range ids {
		out[i] = RouteStop{ID: id, Sequence: i + 1}
	}
	return out
}

func ids(stops []RouteStop) []int { return StopIDs(stops) }

func TestReorder(t *testing.T) {
	tests := []struct {
		name   string
		start  []int
		source int
		target int
		want   []int
	}{
		{name: "move up", start: []int{10, 20, 30, 40}, source: 30, target: 10, want: []int{30, 10, 20, 40}},
		{name: "move to adjacent above", start: []int{10, 20, 30}, source: 30, target: 20, want: []int{10, 30, 20}},
		// Dragging downwards lands the stop just after the target.
		{name: "move down", start: []int{10, 20, 30, 40}, source: 10, target: 30, want: []int{20, 30, 10, 40}},
		{name: "move down to last", start: []int{10, 20, 30}, source: 10, target: 30, want: []int{20, 30, 10}},
		{name: "source equals target", start: []int{10, 20, 30}, source: 20, target: 20, want: []int{10, 20, 30}},
		{name: "unknown source", start: []int{10, 20, 30}, source: 99, target: 20, want: []int{10, 20, 30}},
		{name: "unknown target", start: []int{10, 20, 30}, source: 10, target: 99, want: []int{10, 20, 30}},
		{name: "two stops swap", start: []int{10, 20}, source: 20, target: 10, want: []int{20, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reorder(stops(tt.start...), tt.source, tt.target)
			assert.Equal(t, tt.want, ids(got))

			// Sequences are always renumbered to the 1-based position.
			for i, stop := range got {
				assert.Equal(t, i+1, stop.Sequence)
			}
		})
	}
}

func TestReorderDoesNotMutateInput(t *testing.T) {
	in := stops(10, 20, 30)
	_ = Reorder(in, 30, 10)

	assert.Equal(t, []int{10, 20, 30}, ids(in))
	for i, stop := range in {
		assert.Equal(t, i+1, stop.Sequence)
	}
}

func TestSortStops(t *testing.T) {
	in := []RouteStop{
		{ID: 3, Sequence: 2},
		{ID: 1, Sequence: 1},
		{ID: 2, Sequence: 2},
	}
	got := SortStops(in)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 3}, ids(got), "sequence first, id breaks ties")

	// Input untouched.
	assert.Equal(t, 3, in[0].ID)
}
