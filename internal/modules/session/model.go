package session

import "time"

// Status is the top-level authentication state.
type Status string

const (
	StatusLoading       Status = "loading"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
	StatusError         Status = "error"
)

// User is the identity record returned by the backend.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsStaff   bool   `json:"is_staff"`
}

// Profile is the extended customer profile.
type Profile struct {
	Email           string     `json:"email,omitempty"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Phone           string     `json:"phone"`
	AddressLine1    string     `json:"address_line1"`
	AddressLine2    string     `json:"address_line2"`
	City            string     `json:"city"`
	PostalCode      string     `json:"postal_code"`
	RegionCode      string     `json:"region_code"`
	RegionName      string     `json:"region_name,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at,omitempty"`
}

// Capabilities are role permissions inferred by probing privileged
// endpoints. They are only ever populated for an authenticated session and
// reset to the zero value whenever the session leaves that state.
type Capabilities struct {
	IsDriver       bool
	CanAccessAdmin bool
	// Checked is true once probing has resolved, even when every probe
	// failed; probes fail closed rather than retrying.
	Checked bool
}

// State is an atomic snapshot of the session. Mutations always replace the
// whole value so readers never observe a half-updated session.
type State struct {
	Status         Status
	User           *User
	Profile        *Profile
	Capabilities   Capabilities
	CheckingAccess bool
	Err            string
}

// MePayload is the identity endpoint's response shape.
type MePayload struct {
	User    User    `json:"user"`
	Profile Profile `json:"profile"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register payload.
type Registration struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	RegionCode   string `json:"region_code,omitempty"`
}
