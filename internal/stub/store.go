package stub

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vanmilkco/storefront/internal/modules/admin"
	"github.com/vanmilkco/storefront/internal/modules/catalog"
	"github.com/vanmilkco/storefront/internal/modules/session"
)

// ProductStore abstracts the product catalog so a Postgres-backed catalog
// can be swapped in via DATABASE_URL while everything else stays in memory.
type ProductStore interface {
	ListProducts(ctx context.Context, search, category string) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id int) (*catalog.Product, error)
}

// Account is a stored user with credentials and role flags.
type Account struct {
	User         session.User
	Profile      session.Profile
	PasswordHash []byte
	IsDriver     bool
}

// Order is the stub's order record.
type Order struct {
	ID         int
	UserID     int
	FullName   string
	Email      string
	TotalCents int64
	Status     string
	CreatedAt  time.Time
}

// Intent is a pending card payment.
type Intent struct {
	ID           string
	ClientSecret string
	OrderID      int
	AmountCents  int64
	Status       string
}

// Store is the in-memory backing state for the stub backend. Everything is
// guarded by one mutex; the stub serves development and tests, not load.
type Store struct {
	mu sync.Mutex

	accounts map[int]*Account
	byEmail  map[string]int
	products map[int]catalog.Product
	orders   map[int]*Order
	routes   map[int]*routeRecord
	intents  map[string]*Intent
	// idempotency replay cache for POST /checkout/.
	checkoutKeys map[string]checkoutReply

	nextUser, nextProduct, nextOrder, nextRoute, nextStop int
}

type routeRecord struct {
	admin.Route
	DriverUserID int
}

type checkoutReply struct {
	OrderID      int
	ClientSecret string
	AmountCents  int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[int]*Account),
		byEmail:      make(map[string]int),
		products:     make(map[int]catalog.Product),
		orders:       make(map[int]*Order),
		routes:       make(map[int]*routeRecord),
		intents:      make(map[string]*Intent),
		checkoutKeys: make(map[string]checkoutReply),
		nextUser:     1,
		nextProduct:  1,
		nextOrder:    1,
		nextRoute:    1,
		nextStop:     1,
	}
}

// ── Accounts ──────────────────────────────────────────────────────────────────

// CreateAccount registers a user. Email must be unique.
func (s *Store) CreateAccount(email, password string, staff, driver bool, profile session.Profile) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, exists := s.byEmail[key]; exists {
		return nil, fmt.Errorf("a user with this email already exists")
	}
	id := s.nextUser
	s.nextUser++
	acct := &Account{
		User: session.User{
			ID:        id,
			Username:  email,
			Email:     email,
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			IsStaff:   staff,
		},
		Profile:      profile,
		PasswordHash: hash,
		IsDriver:     driver,
	}
	s.accounts[id] = acct
	s.byEmail[key] = id
	return acct, nil
}

// Authenticate verifies credentials and returns the account.
func (s *Store) Authenticate(email, password string) (*Account, error) {
	s.mu.Lock()
	id, ok := s.byEmail[strings.ToLower(email)]
	var acct *Account
	if ok {
		acct = s.accounts[id]
	}
	s.mu.Unlock()
	if acct == nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return acct, nil
}

// SetPassword replaces the stored password hash.
func (s *Store) SetPassword(id int, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %d not found", id)
	}
	acct.PasswordHash = hash
	return nil
}

// AccountByID looks a user up.
func (s *Store) AccountByID(id int) (*Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	return acct, ok
}

// UpdateProfile applies non-empty fields of patch to the stored profile.
func (s *Store) UpdateProfile(id int, patch map[string]string) (*session.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	p := &acct.Profile
	set := func(dst *string, key string) {
		if v, ok := patch[key]; ok && v != "" {
			*dst = v
		}
	}
	set(&p.FirstName, "first_name")
	set(&p.LastName, "last_name")
	set(&p.Phone, "phone")
	set(&p.AddressLine1, "address_line1")
	set(&p.AddressLine2, "address_line2")
	set(&p.City, "city")
	set(&p.PostalCode, "postal_code")
	set(&p.RegionCode, "region_code")
	out := *p
	return &out, true
}

// ── Products (in-memory ProductStore) ─────────────────────────────────────────

// AddProduct seeds one product.
func (s *Store) AddProduct(p catalog.Product) catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextProduct
		s.nextProduct++
	} else if p.ID >= s.nextProduct {
		s.nextProduct = p.ID + 1
	}
	s.products[p.ID] = p
	return p
}

// ListProducts filters by search substring and category slug.
func (s *Store) ListProducts(_ context.Context, search, category string) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Product, 0, len(s.products))
	needle := strings.ToLower(search)
	for _, p := range s.products {
		if !p.IsActive {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			continue
		}
		if category != "" && (p.Category == nil || p.Category.Slug != category) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetProduct returns one product.
func (s *Store) GetProduct(_ context.Context, id int) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d not found", id)
	}
	return &p, nil
}

// ── Orders & payments ─────────────────────────────────────────────────────────

// ReplayCheckout returns a cached checkout response for an idempotency key.
func (s *Store) ReplayCheckout(key string) (checkoutReply, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply, ok := s.checkoutKeys[key]
	return reply, ok
}

// CreateCheckout creates the order and its payment intent, caching the
// response under the idempotency key when one was sent.
func (s *Store) CreateCheckout(userID int, fullName, email string, totalCents int64, intentID, secret, key string) checkoutReply {
	s.mu.Lock()
	defer s.mu.Unlock()
	orderID := s.nextOrder
	s.nextOrder++
	s.orders[orderID] = &Order{
		ID:         orderID,
		UserID:     userID,
		FullName:   fullName,
		Email:      email,
		TotalCents: totalCents,
		Status:     "awaiting_payment",
		CreatedAt:  time.Now(),
	}
	s.intents[intentID] = &Intent{
		ID:           intentID,
		ClientSecret: secret,
		OrderID:      orderID,
		AmountCents:  totalCents,
		Status:       "requires_confirmation",
	}
	reply := checkoutReply{OrderID: orderID, ClientSecret: secret, AmountCents: totalCents}
	if key != "" {
		s.checkoutKeys[key] = reply
	}
	return reply
}

// IntentByID returns a payment intent.
func (s *Store) IntentByID(id string) (*Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	return intent, ok
}

// SettleIntent moves the intent and its order to their terminal status.
func (s *Store) SettleIntent(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return
	}
	intent.Status = status
	if order, ok := s.orders[intent.OrderID]; ok {
		if status == "succeeded" {
			order.Status = "paid"
		} else {
			order.Status = "payment_failed"
		}
	}
}

// ── Routes & stops ────────────────────────────────────────────────────────────

// AddRoute seeds a route with its stops; sequences are normalized 1..N.
func (s *Store) AddRoute(route admin.Route, driverUserID int) *admin.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	if route.ID == 0 {
		route.ID = s.nextRoute
		s.nextRoute++
	} else if route.ID >= s.nextRoute {
		s.nextRoute = route.ID + 1
	}
	for i := range route.Stops {
		if route.Stops[i].ID == 0 {
			route.Stops[i].ID = s.nextStop
			s.nextStop++
		} else if route.Stops[i].ID >= s.nextStop {
			s.nextStop = route.Stops[i].ID + 1
		}
		route.Stops[i].Sequence = i + 1
	}
	route.StopsCount = len(route.Stops)
	s.routes[route.ID] = &routeRecord{Route: route, DriverUserID: driverUserID}
	return &s.routes[route.ID].Route
}

// RouteByID returns a copy of the route.
func (s *Store) RouteByID(id int) (*admin.Route, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.routes[id]
	if !ok {
		return nil, false
	}
	out := copyRoute(&rec.Route)
	return &out, true
}

// Routes lists routes matching the filters; zero values match everything.
func (s *Store) Routes(date, region string, driverUserID int) []admin.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []admin.Route
	for _, rec := range s.routes {
		if date != "" && rec.Date != date {
			continue
		}
		if region != "" && rec.RegionCode != region {
			continue
		}
		if driverUserID > 0 && rec.DriverUserID != driverUserID {
			continue
		}
		out = append(out, copyRoute(&rec.Route))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReorderRoute validates that stopIDs is exactly the route's stop set and
// applies the new order. A membership mismatch returns ErrStopSetMismatch.
func (s *Store) ReorderRoute(routeID int, stopIDs []int) (*admin.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.routes[routeID]
	if !ok {
		return nil, ErrRouteNotFound
	}
	if rec.IsCompleted {
		return nil, ErrRouteCompleted
	}
	byID := make(map[int]admin.RouteStop, len(rec.Stops))
	for _, stop := range rec.Stops {
		byID[stop.ID] = stop
	}
	if len(stopIDs) != len(byID) {
		return nil, ErrStopSetMismatch
	}
	next := make([]admin.RouteStop, 0, len(stopIDs))
	seen := make(map[int]bool, len(stopIDs))
	for i, id := range stopIDs {
		stop, ok := byID[id]
		if !ok || seen[id] {
			return nil, ErrStopSetMismatch
		}
		seen[id] = true
		stop.Sequence = i + 1
		next = append(next, stop)
	}
	rec.Stops = next
	out := copyRoute(&rec.Route)
	return &out, nil
}

// MutateStop applies fn to the stop and returns the updated copy.
func (s *Store) MutateStop(stopID int, fn func(*admin.RouteStop) error) (*admin.RouteStop, *admin.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.routes {
		for i := range rec.Stops {
			if rec.Stops[i].ID == stopID {
				if err := fn(&rec.Stops[i]); err != nil {
					return nil, nil, err
				}
				stop := rec.Stops[i]
				rec.IsCompleted = allFinal(rec.Stops)
				route := copyRoute(&rec.Route)
				return &stop, &route, nil
			}
		}
	}
	return nil, nil, ErrStopNotFound
}

// DriverForRoute reports which user drives the route.
func (s *Store) DriverForRoute(routeID int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.routes[routeID]
	if !ok {
		return 0, false
	}
	return rec.DriverUserID, true
}

func allFinal(stops []admin.RouteStop) bool {
	for _, stop := range stops {
		if !stop.Status.Final() {
			return false
		}
	}
	return len(stops) > 0
}

func copyRoute(r *admin.Route) admin.Route {
	out := *r
	out.Stops = make([]admin.RouteStop, len(r.Stops))
	copy(out.Stops, r.Stops)
	out.StopsCount = len(out.Stops)
	return out
}

// ── Errors ────────────────────────────────────────────────────────────────────

var (
	ErrRouteNotFound   = fmt.Errorf("route not found")
	ErrRouteCompleted  = fmt.Errorf("route is completed")
	ErrStopNotFound    = fmt.Errorf("stop not found")
	ErrStopSetMismatch = fmt.Errorf("stop_ids must match exactly the set of stops for this route")
	ErrStopFinalized   = fmt.Errorf("stop is already finalized")
)
