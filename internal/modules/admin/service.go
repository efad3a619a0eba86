package admin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vanmilkco/storefront/internal/api"
)

// Client is the slice of the API client the back office needs.
type Client interface {
	Get(ctx context.Context, path string, out interface{}, opts ...api.RequestOption) error
	Post(ctx context.Context, path string, in, out interface{}, opts ...api.RequestOption) error
}

// Service is the admin back-office API surface.
type Service interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	Routes(ctx context.Context, filters RouteFilters) ([]Route, error)
	Route(ctx context.Context, routeID int) (*Route, error)
	// Reorder commits the full ordered id list; the server assigns the
	// canonical sequence numbers and returns the updated route.
	Reorder(ctx context.Context, routeID int, stopIDs []int) (*Route, error)
	Clients(ctx context.Context) ([]ClientStats, error)
}

type service struct{ client Client }

// NewService builds the admin service over the API client.
func NewService(client Client) Service { return &service{client: client} }

func (s *service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := s.client.Get(ctx, "/admin/dashboard/", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *service) Routes(ctx context.Context, filters RouteFilters) ([]Route, error) {
	params := url.Values{}
	if filters.Date != "" {
		params.Set("date", filters.Date)
	}
	if filters.Region != "" {
		params.Set("region", filters.Region)
	}
	if filters.DriverID > 0 {
		params.Set("driver_id", strconv.Itoa(filters.DriverID))
	}
	path := "/admin/routes/"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var routes []Route
	if err := s.client.Get(ctx, path, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func (s *service) Route(ctx context.Context, routeID int) (*Route, error) {
	var route Route
	if err := s.client.Get(ctx, fmt.Sprintf("/admin/routes/%d/", routeID), &route); err != nil {
		return nil, err
	}
	route.Stops = SortStops(route.Stops)
	return &route, nil
}

func (s *service) Reorder(ctx context.Context, routeID int, stopIDs []int) (*Route, error) {
	body := struct {
		StopIDs []int `json:"stop_ids"`
	}{StopIDs: stopIDs}

	var route Route
	if err := s.client.Post(ctx, fmt.Sprintf("/admin/routes/%d/reorder/", routeID), body, &route); err != nil {
		return nil, err
	}
	route.Stops = SortStops(route.Stops)
	return &route, nil
}

func (s *service) Clients(ctx context.Context) ([]ClientStats, error) {
	var clients []ClientStats
	if err := s.client.Get(ctx, "/admin/clients/", &clients); err != nil {
		return nil, err
	}
	return clients, nil
}
