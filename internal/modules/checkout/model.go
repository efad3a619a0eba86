package checkout

// OrderType selects fulfillment.
type OrderType string

const (
	OrderTypePickup   OrderType = "pickup"
	OrderTypeDelivery OrderType = "delivery"
)

// ItemPayload is one order line in the checkout payload.
type ItemPayload struct {
	ProductID int `json:"product_id" validate:"required,gt=0"`
	Quantity  int `json:"quantity" validate:"required,gte=1"`
}

// AddressPayload is the delivery address block.
type AddressPayload struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	BuzzCode   string `json:"buzz_code,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// OrderPayload is the body of POST /checkout/.
type OrderPayload struct {
	FullName      string          `json:"full_name" validate:"required"`
	Email         string          `json:"email" validate:"required,email"`
	Phone         string          `json:"phone" validate:"required"`
	OrderType     OrderType       `json:"order_type" validate:"required,oneof=pickup delivery"`
	SubtotalCents int64           `json:"subtotal_cents"`
	TaxCents      int64           `json:"tax_cents"`
	TotalCents    int64           `json:"total_cents"`
	Address       *AddressPayload `json:"address,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	RegionCode    string          `json:"region_code,omitempty"`
	Items         []ItemPayload   `json:"items" validate:"required,min=1,dive"`
}

// CheckoutResponse is what the backend returns after creating the order and
// its payment intent.
type CheckoutResponse struct {
	ClientSecret string `json:"client_secret"`
	OrderID      int    `json:"order_id"`
	AmountCents  int64  `json:"amount"`
}

// Card is the locally collected payment-method artifact. The number never
// goes to the storefront backend, only to the payment provider.
type Card struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVC      string
}

// Empty reports whether no card was collected.
func (c Card) Empty() bool { return c.Number == "" }

// BillingDetails accompany the provider confirmation call.
type BillingDetails struct {
	Name  string
	Email string
}

// Phase is the submission state machine. Failed is not terminal; the user
// may resubmit, which re-enters Submitting.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Result carries the outcome of a successful submission.
type Result struct {
	OrderID     int
	AmountCents int64
}
