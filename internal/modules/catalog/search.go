package catalog

import (
	"context"
	"sync"
)

// Searcher serializes re-triggered product listings so the last request
// wins. Starting a new search cancels the previous in-flight request and
// guarantees its late result is discarded, preventing a slow earlier
// response from overwriting a faster later one.
type Searcher struct {
	service Service

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewSearcher wraps service.
func NewSearcher(service Service) *Searcher {
	return &Searcher{service: service}
}

// Search runs the query. It returns context.Canceled when a newer Search
// superseded this one, whether the cancellation landed before or after the
// response arrived.
func (s *Searcher) Search(ctx context.Context, q ProductQuery) ([]Product, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	products, err := s.service.Products(ctx, q)

	s.mu.Lock()
	current := gen == s.gen
	if current {
		s.cancel = nil
	}
	s.mu.Unlock()

	if !current {
		// A newer search owns the result slot; drop this one even if the
		// request happened to complete before the cancel landed.
		return nil, context.Canceled
	}
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Cancel aborts any in-flight search without starting a new one.
func (s *Searcher) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
