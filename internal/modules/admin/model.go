package admin

import (
	"time"

	"github.com/vanmilkco/storefront/internal/modules/delivery"
)

// StopOrder is the order summary nested under an admin route stop.
type StopOrder struct {
	ID           int    `json:"id"`
	FullName     string `json:"full_name"`
	AddressLine1 string `json:"address_line1"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`
	Phone        string `json:"phone"`
}

// RouteStop is one stop as the back office sees it.
type RouteStop struct {
	ID            int                 `json:"id"`
	Sequence      int                 `json:"sequence"`
	Status        delivery.StopStatus `json:"status"`
	DeliveredAt   *time.Time          `json:"delivered_at,omitempty"`
	HasProof      bool                `json:"has_proof"`
	ProofPhotoURL string              `json:"proof_photo_url,omitempty"`
	Order         StopOrder           `json:"order"`
}

// Route is a delivery route with its ordered stops. Sequence values are a
// contiguous 1..N permutation at rest; the server is the authority that
// assigns them.
type Route struct {
	ID           int         `json:"id"`
	Date         string      `json:"date"`
	RegionCode   string      `json:"region_code"`
	RegionName   string      `json:"region_name"`
	DriverID     *int        `json:"driver_id,omitempty"`
	DriverName   string      `json:"driver_name,omitempty"`
	IsCompleted  bool        `json:"is_completed"`
	MergedIntoID *int        `json:"merged_into_id,omitempty"`
	StopsCount   int         `json:"stops_count"`
	Stops        []RouteStop `json:"stops"`
}

// RouteFilters narrows the routes listing.
type RouteFilters struct {
	Date     string
	Region   string
	DriverID int
}

// Dashboard is the admin landing summary. It doubles as the admin
// capability probe target.
type Dashboard struct {
	OrdersToday     int   `json:"orders_today"`
	RevenueCents    int64 `json:"revenue_cents"`
	PendingRoutes   int   `json:"pending_routes"`
	CompletedRoutes int   `json:"completed_routes"`
}

// ClientStats is one row of the admin clients report.
type ClientStats struct {
	ID              int    `json:"id"`
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	OrdersCount     int    `json:"orders_count"`
	TotalSpentCents int64  `json:"total_spent_cents"`
	LastOrderAt     string `json:"last_order_at,omitempty"`
}
