package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanmilkco/storefront/internal/api"
)

// fakeService scripts the two calls the workflow makes.
type fakeService struct {
	route      *Route
	routeErr   error
	reordered  *Route
	reorderErr error

	reorderCalls [][]int
	routeCalls   int
}

func (f *fakeService) Dashboard(context.Context) (*Dashboard, error) { return nil, nil }
func (f *fakeService) Clients(context.Context) ([]ClientStats, error) {
	return nil, nil
}
func (f *fakeService) Routes(context.Context, RouteFilters) ([]Route, error) {
	return nil, nil
}

func (f *fakeService) Route(context.Context, int) (*Route, error) {
	f.routeCalls++
	if f.routeErr != nil {
		return nil, f.routeErr
	}
	return f.route, nil
}

func (f *fakeService) Reorder(_ context.Context, _ int, stopIDs []int) (*Route, error) {
	f.reorderCalls = append(f.reorderCalls, stopIDs)
	if f.reorderErr != nil {
		return nil, f.reorderErr
	}
	return f.reordered, nil
}

func routeWithStops(ids ...int) *Route {
	return &Route{ID: 7, Stops: stops(ids...), StopsCount: len(ids)}
}

func loadedWorkflow(t *testing.T, svc *fakeService) *ReorderWorkflow {
	t.Helper()
	w := NewReorderWorkflow(svc, nil)
	require.NoError(t, w.Load(context.Background(), 7))
	return w
}

func TestWorkflowDraftIsLocalUntilSave(t *testing.T) {
	svc := &fakeService{route: routeWithStops(10, 20, 30)}
	w := loadedWorkflow(t, svc)

	require.NoError(t, w.Begin())
	assert.Equal(t, StateDrafting, w.State())

	require.NoError(t, w.DragOver(30, 10))
	assert.Equal(t, []int{30, 10, 20}, ids(w.Draft()))

	// The confirmed route is untouched and nothing hit the network.
	assert.Equal(t, []int{10, 20, 30}, ids(w.Route().Stops))
	assert.Empty(t, svc.reorderCalls)
}

func TestWorkflowSaveCommitsWholeOrder(t *testing.T) {
	svc := &fakeService{route: routeWithStops(10, 20, 30)}
	svc.reordered = routeWithStops(30, 10, 20)
	w := loadedWorkflow(t, svc)

	require.NoError(t, w.Begin())
	require.NoError(t, w.DragOver(30, 10))
	require.NoError(t, w.Save(context.Background()))

	require.Len(t, svc.reorderCalls, 1)
	assert.Equal(t, []int{30, 10, 20}, svc.reorderCalls[0])

	assert.Equal(t, StateViewing, w.State())
	assert.Nil(t, w.Draft())
	assert.Equal(t, []int{30, 10, 20}, ids(w.Route().Stops))
}

func TestWorkflowConflictReloadsSilently(t *testing.T) {
	svc := &fakeService{route: routeWithStops(10, 20, 30)}
	svc.reorderErr = &api.Error{
		Status: 400,
		Detail: "stop_ids must match exactly the set of stops for this route.",
	}
	w := loadedWorkflow(t, svc)

	require.NoError(t, w.Begin())
	require.NoError(t, w.DragOver(30, 10))

	// The reload returns the authoritative route with a new membership.
	svc.route = routeWithStops(10, 20, 30, 40)
	err := w.Save(context.Background())

	require.NoError(t, err, "the conflict itself must not surface")
	assert.Equal(t, StateViewing, w.State())
	assert.Nil(t, w.Draft(), "stale draft is discarded")
	assert.Empty(t, w.SaveError())
	assert.Equal(t, []int{10, 20, 30, 40}, ids(w.Route().Stops))
	assert.Equal(t, 2, svc.routeCalls, "initial load plus conflict reload")

	// The stale id list is never resubmitted.
	require.Len(t, svc.reorderCalls, 1)
}

func TestWorkflowConflictReloadFailureSurfaces(t *testing.T) {
	svc := &fakeService{route: routeWithStops(10, 20)}
	w := loadedWorkflow(t, svc)

	require.NoError(t, w.Begin())
	require.NoError(t, w.DragOver(20, 10))

	svc.reorderErr = &api.Error{Status: 400, Detail: "stop_ids must match exactly the set of stops for this route."}
	svc.routeErr = errors.New("connection refused")

	err := w.Save(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateViewing, w.State())
	assert.False(t, w.Refreshing())
}

func TestWorkflowRetryableFailureKeepsDraft(t *testing.T) {
	svc := &fakeService{route: routeWithStops(10, 20, 30)}
	svc.reorderErr = &api.Error{Status: 500, Detail: "internal error"}
	w := loadedWorkflow(t, svc)

	require.NoError(t, w.Begin())
	require.NoError(t, w.DragOver(30, 10))

	err := w.Save(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateDrafting, w.State(), "operator can retry")
	assert.Equal(t, []int{30, 10, 20}, ids(w.Draft()), "draft ordering survives")
	assert.Equal(t, "internal error", w.SaveError(), "message kept verbatim")

	// Retrying after the fault clears resubmits the same order.
	svc.reorderErr = nil
	svc.reordered = routeWithStops(30, 10, 20)
	require.NoError(t, w.Save(context.Background()))
	require.Len(t, svc.reorderCalls, 2)
	assert.Equal(t, svc.reorderCalls[0], svc.reorderCalls[1])
}

func TestWorkflowCanReorderGates(t *testing.T) {
	tests := []struct {
		name  string
		route *Route
		want  bool
	}{
		{name: "route with stops", route: routeWithStops(10, 20), want: true},
		{name: "no stops", route: routeWithStops(), want: false},
		{name: "completed", route: &Route{ID: 7, Stops: stops(10), IsCompleted: true}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{route: tt.route}
			w := loadedWorkflow(t, svc)
			assert.Equal(t, tt.want, w.CanReorder())
			if !tt.want {
				assert.ErrorIs(t, w.Begin(), ErrReorderUnavailable)
			}
		})
	}
}

func TestWorkflowCanReorderBeforeLoad(t *testing.T) {
	w := NewReorderWorkflow(&fakeService{}, nil)
	assert.False(t, w.CanReorder())
}

func TestWorkflowDragOutsideDraftingRefused(t *testing.T) {
	svc := &fakeService{route: routeWithStops(10, 20)}
	w := loadedWorkflow(t, svc)

	assert.ErrorIs(t, w.DragOver(20, 10), ErrNotDrafting)
	assert.Equal(t, []int{10, 20}, ids(w.Route().Stops))
}

func TestWorkflowCancelDiscardsDraft(t *testing.T) {
	svc := &fakeService{route: routeWithStops(10, 20, 30)}
	w := loadedWorkflow(t, svc)

	require.NoError(t, w.Begin())
	require.NoError(t, w.DragOver(30, 10))
	w.Cancel()

	assert.Equal(t, StateViewing, w.State())
	assert.Nil(t, w.Draft())
	assert.Empty(t, svc.reorderCalls)
}

func TestWorkflowSaveOutsideDraftingRefused(t *testing.T) {
	svc := &fakeService{route: routeWithStops(10, 20)}
	w := loadedWorkflow(t, svc)

	assert.ErrorIs(t, w.Save(context.Background()), ErrNotDrafting)
	assert.Empty(t, svc.reorderCalls)
}
