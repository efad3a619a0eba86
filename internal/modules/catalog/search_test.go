package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// blockingService answers each Products call from a script, optionally
// holding the response until released.
type blockingService struct {
	mu      sync.Mutex
	pending []chan struct{} // one gate per call, in order
	results [][]Product
	calls   int

	// ignoreCancel makes gated calls return their result even after their
	// context was cancelled, modelling a response that was already on the
	// wire when the cancel landed.
	ignoreCancel bool
}

func (b *blockingService) Product(context.Context, int) (*Product, error) {
	return nil, errors.New("not scripted")
}

func (b *blockingService) Products(ctx context.Context, _ ProductQuery) ([]Product, error) {
	b.mu.Lock()
	idx := b.calls
	b.calls++
	var gate chan struct{}
	if idx < len(b.pending) {
		gate = b.pending[idx]
	}
	result := []Product{}
	if idx < len(b.results) {
		result = b.results[idx]
	}
	b.mu.Unlock()

	if gate != nil {
		if b.ignoreCancel {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return result, nil
}

func TestSearchLastRequestWins(t *testing.T) {
	firstGate := make(chan struct{})
	svc := &blockingService{
		pending: []chan struct{}{firstGate, nil},
		results: [][]Product{
			{{ID: 1, Name: "stale"}},
			{{ID: 2, Name: "fresh"}},
		},
	}
	searcher := NewSearcher(svc)

	type outcome struct {
		products []Product
		err      error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		products, err := searcher.Search(context.Background(), ProductQuery{Search: "mil"})
		firstDone <- outcome{products, err}
	}()

	// Wait until the first request is in flight, then supersede it.
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.calls == 1
	}, time.Second, time.Millisecond)

	fresh, err := searcher.Search(context.Background(), ProductQuery{Search: "milk"})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "fresh", fresh[0].Name)

	// Let the slow first response land; it must be discarded.
	close(firstGate)
	first := <-firstDone
	assert.ErrorIs(t, first.err, context.Canceled)
	assert.Nil(t, first.products)
}

func TestSearchDiscardsCompletedButSupersededResult(t *testing.T) {
	// The first response completes successfully despite the cancel —
	// it was already on the wire — but a newer search owns the result
	// slot, so it must still be dropped.
	firstGate := make(chan struct{})
	svc := &blockingService{
		pending:      []chan struct{}{firstGate, nil},
		ignoreCancel: true,
		results: [][]Product{
			{{ID: 1, Name: "stale"}},
			{{ID: 2, Name: "fresh"}},
		},
	}
	searcher := NewSearcher(svc)

	firstErr := make(chan error, 1)
	go func() {
		_, err := searcher.Search(context.Background(), ProductQuery{})
		firstErr <- err
	}()
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.calls == 1
	}, time.Second, time.Millisecond)

	fresh, err := searcher.Search(context.Background(), ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", fresh[0].Name)

	close(firstGate)
	assert.ErrorIs(t, <-firstErr, context.Canceled)
}

func TestSearchPropagatesServiceError(t *testing.T) {
	svc := &failingService{err: errors.New("upstream down")}
	searcher := NewSearcher(svc)

	_, err := searcher.Search(context.Background(), ProductQuery{})
	assert.ErrorContains(t, err, "upstream down")
}

func TestCancelAbortsInFlight(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	svc := &blockingService{pending: []chan struct{}{gate}}
	searcher := NewSearcher(svc)

	done := make(chan error, 1)
	go func() {
		_, err := searcher.Search(context.Background(), ProductQuery{})
		done <- err
	}()
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.calls == 1
	}, time.Second, time.Millisecond)

	searcher.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("search did not abort")
	}
}

type failingService struct{ err error }

func (f *failingService) Products(context.Context, ProductQuery) ([]Product, error) {
	return nil, f.err
}
func (f *failingService) Product(context.Context, int) (*Product, error) { return nil, f.err }
