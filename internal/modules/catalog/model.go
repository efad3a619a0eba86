package catalog

// Category groups products for filtering.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// Product is a sellable catalog entry. Prices are integer cents.
type Product struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	PriceCents   int64     `json:"price_cents"`
	ImageURL     string    `json:"image_url,omitempty"`
	MainImageURL string    `json:"main_image_url,omitempty"`
	Category     *Category `json:"category,omitempty"`
	IsActive     bool      `json:"is_active"`
}

// ProductQuery filters a product listing. Zero values mean "no filter".
type ProductQuery struct {
	Search   string
	Category string
	Page     int
	PageSize int
}
