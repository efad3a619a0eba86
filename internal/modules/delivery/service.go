package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vanmilkco/storefront/internal/api"
)

var (
	// ErrStopBusy rejects a second mutation while one is in flight for the
	// same stop; the UI disables the stop's controls meanwhile.
	ErrStopBusy = errors.New("stop update already in progress")
	// ErrStopFinal rejects mutating a delivered or no_pickup stop.
	ErrStopFinal = errors.New("stop is already finalized")
	// ErrPhotoRequired: delivered needs proof.
	ErrPhotoRequired = errors.New("a proof photo is required to mark a stop delivered")
)

// Client is the slice of the API client the driver workflow needs.
type Client interface {
	Get(ctx context.Context, path string, out interface{}, opts ...api.RequestOption) error
	Post(ctx context.Context, path string, in, out interface{}, opts ...api.RequestOption) error
	PostMultipart(ctx context.Context, path string, fields map[string]string, file api.FilePart, out interface{}) error
}

// Proof is the photo uploaded when marking a stop delivered.
type Proof struct {
	Filename string
	Content  io.Reader
}

// Service is the driver delivery console workflow: fetch assigned routes,
// mutate individual stop status with proof upload. Per-stop mutations are
// serialized client-side; there is no optimistic concurrency beyond that.
type Service struct {
	client Client

	mu      sync.Mutex
	pending map[int]struct{} // stop IDs with a mutation in flight
}

// NewService builds the driver workflow.
func NewService(client Client) *Service {
	return &Service{client: client, pending: make(map[int]struct{})}
}

// TodayRoutes lists the driver's routes for today.
func (s *Service) TodayRoutes(ctx context.Context) ([]Route, error) {
	var routes []Route
	if err := s.client.Get(ctx, "/delivery/driver/routes/today/", &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// UpcomingRoutes lists future assignments.
func (s *Service) UpcomingRoutes(ctx context.Context) ([]UpcomingRoute, error) {
	var routes []UpcomingRoute
	if err := s.client.Get(ctx, "/delivery/driver/routes/upcoming/", &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// Route fetches one route with its stops.
func (s *Service) Route(ctx context.Context, routeID int) (*Route, error) {
	var route Route
	if err := s.client.Get(ctx, fmt.Sprintf("/delivery/driver/routes/%d/", routeID), &route); err != nil {
		return nil, err
	}
	return &route, nil
}

// Pending reports whether a mutation is in flight for stopID.
func (s *Service) Pending(stopID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[stopID]
	return ok
}

// MarkDelivered uploads the proof photo and transitions the stop to
// delivered. The updated stop is returned; refreshing the rest of the
// route is the caller's job.
func (s *Service) MarkDelivered(ctx context.Context, stop Stop, proof Proof) (*Stop, error) {
	if stop.Status.Final() {
		return nil, ErrStopFinal
	}
	if proof.Content == nil {
		return nil, ErrPhotoRequired
	}
	release, err := s.acquire(stop.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	filename := proof.Filename
	if filename == "" {
		filename = "proof.jpg"
	}
	var updated Stop
	err = s.client.PostMultipart(ctx,
		fmt.Sprintf("/delivery/driver/stops/%d/mark-delivered/", stop.ID),
		nil,
		api.FilePart{Field: "photo", Filename: filename, Content: proof.Content},
		&updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// MarkNoPickup transitions the stop to no_pickup.
func (s *Service) MarkNoPickup(ctx context.Context, stop Stop) (*Stop, error) {
	if stop.Status.Final() {
		return nil, ErrStopFinal
	}
	release, err := s.acquire(stop.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	var updated Stop
	err = s.client.Post(ctx,
		fmt.Sprintf("/delivery/driver/stops/%d/mark-no-pickup/", stop.ID), nil, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) acquire(stopID int) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[stopID]; busy {
		return nil, ErrStopBusy
	}
	s.pending[stopID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.pending, stopID)
		s.mu.Unlock()
	}, nil
}
