package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vanmilkco/storefront/internal/api"
)

// Client is the slice of the API client the catalog needs.
type Client interface {
	Get(ctx context.Context, path string, out interface{}, opts ...api.RequestOption) error
}

// Service reads the product catalog.
type Service interface {
	Products(ctx context.Context, q ProductQuery) ([]Product, error)
	Product(ctx context.Context, id int) (*Product, error)
}

type service struct{ client Client }

// NewService builds a catalog service over the API client.
func NewService(client Client) Service { return &service{client: client} }

func (s *service) Products(ctx context.Context, q ProductQuery) ([]Product, error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}
	path := "/products/"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var products []Product
	if err := s.client.Get(ctx, path, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *service) Product(ctx context.Context, id int) (*Product, error) {
	var p Product
	if err := s.client.Get(ctx, fmt.Sprintf("/products/%d/", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
