package delivery

import "time"

// StopStatus is the lifecycle of one delivery stop. Pending may move to
// delivered (with proof) or no_pickup; both are terminal on the client.
type StopStatus string

const (
	StopPending   StopStatus = "pending"
	StopDelivered StopStatus = "delivered"
	StopNoPickup  StopStatus = "no_pickup"
)

// Final reports whether the status admits no further client transition.
func (s StopStatus) Final() bool { return s == StopDelivered || s == StopNoPickup }

// Stop is one destination on a driver's route.
type Stop struct {
	ID            int        `json:"id"`
	Sequence      int        `json:"sequence"`
	Status        StopStatus `json:"status"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	HasProof      bool       `json:"has_proof"`
	ProofPhotoURL string     `json:"proof_photo_url,omitempty"`
	OrderID       int        `json:"order_id"`
	ClientName    string     `json:"client_name"`
	ClientPhone   string     `json:"client_phone"`
	Address       string     `json:"address"`
}

// Route is a day's assignment for one driver.
type Route struct {
	ID          int    `json:"id"`
	Date        string `json:"date"`
	RegionCode  string `json:"region_code"`
	RegionName  string `json:"region_name"`
	DriverName  string `json:"driver_name"`
	IsCompleted bool   `json:"is_completed"`
	Stops       []Stop `json:"stops"`
}

// UpcomingRoute is the condensed shape of a future assignment.
type UpcomingRoute struct {
	ID         int    `json:"id"`
	Date       string `json:"date"`
	RegionCode string `json:"region_code"`
	RegionName string `json:"region_name"`
	StopsCount int    `json:"stops_count"`
}
