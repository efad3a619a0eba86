package stub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vanmilkco/storefront/internal/modules/admin"
	"github.com/vanmilkco/storefront/internal/modules/catalog"
	"github.com/vanmilkco/storefront/internal/modules/delivery"
	"github.com/vanmilkco/storefront/internal/modules/session"
)

// Server is the development stub backend. It serves the same REST contract
// as the production API so the SDK, the console and the integration tests
// all run against a real HTTP surface.
type Server struct {
	store    *Store
	products ProductStore
	jwtKey   []byte
	log      *zap.Logger
	router   chi.Router
}

// Options configures a stub server.
type Options struct {
	// Products overrides the product source (Postgres); nil uses the
	// in-memory store.
	Products ProductStore
	// JWTKey signs session cookies. Required.
	JWTKey []byte
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

// NewServer wires the stub router.
func NewServer(store *Store, opts Options) *Server {
	if len(opts.JWTKey) == 0 {
		opts.JWTKey = []byte("dev-only-insecure-key")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	products := opts.Products
	if products == nil {
		products = store
	}
	s := &Server{
		store:    store,
		products: products,
		jwtKey:   opts.JWTKey,
		log:      opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Payment provider surface, outside the API prefix: the console points
	// its confirmer here instead of at the real provider.
	r.Post("/v1/payment_intents/{intent_id}/confirm", s.confirmIntent)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireCSRF)

		r.Get("/products/", s.listProducts)
		r.Get("/products/{id}/", s.getProduct)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register/", s.register)
			r.Post("/login/", s.login)
			r.Post("/logout/", s.logout)
			r.Get("/me/", s.me)
			r.Patch("/profile/", s.updateProfile)
			r.Post("/change-password/", s.changePassword)
			r.Post("/request-password-reset/", s.acknowledge("If the email exists, a reset link has been sent."))
			r.Post("/request-email-verification/", s.acknowledge("Verification email sent."))
			r.Post("/request-phone-verification/", s.acknowledge("Verification code sent."))
		})

		r.Post("/checkout/", s.checkout)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/dashboard/", s.adminDashboard)
			r.Get("/routes/", s.adminRoutes)
			r.Get("/routes/{route_id}/", s.adminRoute)
			r.Post("/routes/{route_id}/reorder/", s.adminReorder)
			r.Get("/clients/", s.adminClients)
		})

		r.Route("/delivery/driver", func(r chi.Router) {
			r.Get("/routes/today/", s.driverToday)
			r.Get("/routes/upcoming/", s.driverUpcoming)
			r.Get("/routes/{route_id}/", s.driverRoute)
			r.Post("/stops/{stop_id}/mark-delivered/", s.markDelivered)
			r.Post("/stops/{stop_id}/mark-no-pickup/", s.markNoPickup)
		})
	})

	s.router = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	// Catalog reads double as the CSRF priming endpoint.
	s.ensureCSRFCookie(w, r)
	products, err := s.products.ListProducts(r.Context(),
		r.URL.Query().Get("search"), r.URL.Query().Get("category"))
	if err != nil {
		respond(w, http.StatusInternalServerError, detail("Unable to load products."))
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	respond(w, http.StatusOK, products)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid product id."))
		return
	}
	p, err := s.products.GetProduct(r.Context(), id)
	if err != nil {
		respond(w, http.StatusNotFound, detail("Product not found."))
		return
	}
	respond(w, http.StatusOK, p)
}

// ── Auth ──────────────────────────────────────────────────────────────────────

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req session.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid request body."))
		return
	}
	if req.Email == "" || req.Password == "" {
		respond(w, http.StatusBadRequest, detail("Email and password are required."))
		return
	}
	acct, err := s.store.CreateAccount(req.Email, req.Password, false, false, session.Profile{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		PostalCode:   req.PostalCode,
		RegionCode:   req.RegionCode,
	})
	if err != nil {
		respond(w, http.StatusBadRequest, detail(err.Error()))
		return
	}
	if err := s.issueSession(w, acct.User.ID); err != nil {
		respond(w, http.StatusInternalServerError, detail("Unable to start session."))
		return
	}
	respond(w, http.StatusCreated, mePayload(acct))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req session.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid request body."))
		return
	}
	acct, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		respond(w, http.StatusUnauthorized, detail("Invalid email or password."))
		return
	}
	if err := s.issueSession(w, acct.User.ID); err != nil {
		respond(w, http.StatusInternalServerError, detail("Unable to start session."))
		return
	}
	respond(w, http.StatusOK, mePayload(acct))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.clearSession(w)
	respond(w, http.StatusOK, detail("Logged out."))
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, mePayload(acct))
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var patch map[string]string
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid request body."))
		return
	}
	profile, ok := s.store.UpdateProfile(acct.User.ID, patch)
	if !ok {
		respond(w, http.StatusNotFound, detail("Profile not found."))
		return
	}
	respond(w, http.StatusOK, profile)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var req struct {
		CurrentPassword    string `json:"current_password"`
		NewPassword        string `json:"new_password"`
		NewPasswordConfirm string `json:"new_password_confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid request body."))
		return
	}
	if req.NewPassword == "" || req.NewPassword != req.NewPasswordConfirm {
		respond(w, http.StatusBadRequest, detail("Passwords do not match."))
		return
	}
	if bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(req.CurrentPassword)) != nil {
		respond(w, http.StatusBadRequest, detail("Current password is incorrect."))
		return
	}
	if err := s.store.SetPassword(acct.User.ID, req.NewPassword); err != nil {
		respond(w, http.StatusInternalServerError, detail("Unable to change password."))
		return
	}
	respond(w, http.StatusOK, detail("Password changed."))
}

func (s *Server) acknowledge(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, detail(message))
	}
}

// ── Checkout & payments ───────────────────────────────────────────────────────

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName   string `json:"full_name"`
		Email      string `json:"email"`
		TotalCents int64  `json:"total_cents"`
		Items      []struct {
			ProductID int `json:"product_id"`
			Quantity  int `json:"quantity"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid request body."))
		return
	}
	if len(req.Items) == 0 {
		respond(w, http.StatusBadRequest, detail("Order has no items."))
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		if reply, ok := s.store.ReplayCheckout(key); ok {
			respond(w, http.StatusOK, checkoutResponse(reply))
			return
		}
	}

	var total int64
	for _, line := range req.Items {
		p, err := s.products.GetProduct(r.Context(), line.ProductID)
		if err != nil {
			respond(w, http.StatusBadRequest, detail(fmt.Sprintf("Unknown product %d.", line.ProductID)))
			return
		}
		if line.Quantity < 1 {
			respond(w, http.StatusBadRequest, detail("Quantities must be at least 1."))
			return
		}
		total += p.PriceCents * int64(line.Quantity)
	}

	var userID int
	if acct, ok := s.currentAccount(r); ok {
		userID = acct.User.ID
	}
	intentID := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	secret := intentID + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	reply := s.store.CreateCheckout(userID, req.FullName, req.Email, total, intentID, secret, key)
	respond(w, http.StatusCreated, checkoutResponse(reply))
}

func checkoutResponse(reply checkoutReply) map[string]interface{} {
	return map[string]interface{}{
		"client_secret": reply.ClientSecret,
		"order_id":      reply.OrderID,
		"amount":        reply.AmountCents,
	}
}

// confirmIntent is the sandbox provider surface: form-encoded like the real
// one, approving everything except card numbers ending in 0002.
func (s *Server) confirmIntent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid form body."))
		return
	}
	intentID := chi.URLParam(r, "intent_id")
	intent, ok := s.store.IntentByID(intentID)
	if !ok || r.PostForm.Get("client_secret") != intent.ClientSecret {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{
				"type":    "invalid_request_error",
				"message": "No such payment_intent.",
			},
		})
		return
	}

	number := r.PostForm.Get("payment_method_data[card][number]")
	if strings.HasSuffix(number, "0002") {
		s.store.SettleIntent(intentID, "failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{
				"type":    "card_error",
				"code":    "card_declined",
				"message": "Your card was declined.",
			},
		})
		return
	}

	s.store.SettleIntent(intentID, "succeeded")
	respond(w, http.StatusOK, map[string]string{"id": intentID, "status": "succeeded"})
}

// ── Admin ─────────────────────────────────────────────────────────────────────

func (s *Server) adminDashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	respond(w, http.StatusOK, s.dashboard())
}

func (s *Server) dashboard() admin.Dashboard {
	routes := s.store.Routes("", "", 0)
	var d admin.Dashboard
	for _, route := range routes {
		if route.IsCompleted {
			d.CompletedRoutes++
		} else {
			d.PendingRoutes++
		}
	}
	return d
}

func (s *Server) adminRoutes(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	driverID, _ := strconv.Atoi(r.URL.Query().Get("driver_id"))
	routes := s.store.Routes(r.URL.Query().Get("date"), r.URL.Query().Get("region"), driverID)
	respond(w, http.StatusOK, routes)
}

func (s *Server) adminRoute(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	routeID, err := strconv.Atoi(chi.URLParam(r, "route_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid route id."))
		return
	}
	route, ok := s.store.RouteByID(routeID)
	if !ok {
		respond(w, http.StatusNotFound, detail("Route not found."))
		return
	}
	respond(w, http.StatusOK, route)
}

func (s *Server) adminReorder(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	routeID, err := strconv.Atoi(chi.URLParam(r, "route_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid route id."))
		return
	}
	var req struct {
		StopIDs []int `json:"stop_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid request body."))
		return
	}
	route, err := s.store.ReorderRoute(routeID, req.StopIDs)
	if err != nil {
		switch {
		case errors.Is(err, ErrRouteNotFound):
			respond(w, http.StatusNotFound, detail("Route not found."))
		case errors.Is(err, ErrRouteCompleted):
			respond(w, http.StatusBadRequest, detail("Route is completed; reordering is disabled."))
		case errors.Is(err, ErrStopSetMismatch):
			respond(w, http.StatusBadRequest, detail("stop_ids must match exactly the set of stops for this route."))
		default:
			respond(w, http.StatusInternalServerError, detail("Unable to reorder route."))
		}
		return
	}
	respond(w, http.StatusOK, route)
}

func (s *Server) adminClients(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireStaff(w, r); !ok {
		return
	}
	respond(w, http.StatusOK, []admin.ClientStats{})
}

// ── Driver ────────────────────────────────────────────────────────────────────

func (s *Server) driverToday(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireDriver(w, r)
	if !ok {
		return
	}
	today := time.Now().Format("2006-01-02")
	routes := s.store.Routes(today, "", acct.User.ID)
	out := make([]delivery.Route, 0, len(routes))
	for i := range routes {
		out = append(out, driverView(&routes[i]))
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) driverUpcoming(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireDriver(w, r)
	if !ok {
		return
	}
	today := time.Now().Format("2006-01-02")
	routes := s.store.Routes("", "", acct.User.ID)
	out := make([]delivery.UpcomingRoute, 0, len(routes))
	for _, route := range routes {
		if route.Date <= today {
			continue
		}
		out = append(out, delivery.UpcomingRoute{
			ID:         route.ID,
			Date:       route.Date,
			RegionCode: route.RegionCode,
			RegionName: route.RegionName,
			StopsCount: route.StopsCount,
		})
	}
	respond(w, http.StatusOK, out)
}

func (s *Server) driverRoute(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.requireDriver(w, r)
	if !ok {
		return
	}
	routeID, err := strconv.Atoi(chi.URLParam(r, "route_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid route id."))
		return
	}
	if driverID, ok := s.store.DriverForRoute(routeID); !ok || driverID != acct.User.ID {
		respond(w, http.StatusNotFound, detail("Route not found."))
		return
	}
	route, _ := s.store.RouteByID(routeID)
	respond(w, http.StatusOK, driverView(route))
}

func (s *Server) markDelivered(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireDriver(w, r); !ok {
		return
	}
	stopID, err := strconv.Atoi(chi.URLParam(r, "stop_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid stop id."))
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respond(w, http.StatusBadRequest, detail("A proof photo is required."))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		respond(w, http.StatusBadRequest, detail("A proof photo is required."))
		return
	}
	file.Close()

	now := time.Now()
	stop, _, err := s.store.MutateStop(stopID, func(stop *admin.RouteStop) error {
		if stop.Status.Final() {
			return ErrStopFinalized
		}
		stop.Status = delivery.StopDelivered
		stop.DeliveredAt = &now
		stop.HasProof = true
		stop.ProofPhotoURL = "/media/proofs/" + header.Filename
		return nil
	})
	if err != nil {
		s.respondStopError(w, err)
		return
	}
	respond(w, http.StatusOK, driverStop(stop))
}

func (s *Server) markNoPickup(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireDriver(w, r); !ok {
		return
	}
	stopID, err := strconv.Atoi(chi.URLParam(r, "stop_id"))
	if err != nil {
		respond(w, http.StatusBadRequest, detail("Invalid stop id."))
		return
	}
	stop, _, err := s.store.MutateStop(stopID, func(stop *admin.RouteStop) error {
		if stop.Status.Final() {
			return ErrStopFinalized
		}
		stop.Status = delivery.StopNoPickup
		return nil
	})
	if err != nil {
		s.respondStopError(w, err)
		return
	}
	respond(w, http.StatusOK, driverStop(stop))
}

func (s *Server) respondStopError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrStopNotFound):
		respond(w, http.StatusNotFound, detail("Stop not found."))
	case errors.Is(err, ErrStopFinalized):
		respond(w, http.StatusBadRequest, detail("Stop is already finalized."))
	default:
		respond(w, http.StatusInternalServerError, detail("Unable to update stop."))
	}
}

// ── Shared helpers ────────────────────────────────────────────────────────────

func mePayload(acct *Account) session.MePayload {
	return session.MePayload{User: acct.User, Profile: acct.Profile}
}

// driverView flattens an admin route into the driver console shape.
func driverView(route *admin.Route) delivery.Route {
	out := delivery.Route{
		ID:          route.ID,
		Date:        route.Date,
		RegionCode:  route.RegionCode,
		RegionName:  route.RegionName,
		DriverName:  route.DriverName,
		IsCompleted: route.IsCompleted,
		Stops:       make([]delivery.Stop, 0, len(route.Stops)),
	}
	for i := range route.Stops {
		out.Stops = append(out.Stops, driverStop(&route.Stops[i]))
	}
	return out
}

func driverStop(stop *admin.RouteStop) delivery.Stop {
	address := stop.Order.AddressLine1
	if stop.Order.City != "" {
		address += ", " + stop.Order.City
	}
	if stop.Order.PostalCode != "" {
		address += ", " + stop.Order.PostalCode
	}
	return delivery.Stop{
		ID:            stop.ID,
		Sequence:      stop.Sequence,
		Status:        stop.Status,
		DeliveredAt:   stop.DeliveredAt,
		HasProof:      stop.HasProof,
		ProofPhotoURL: stop.ProofPhotoURL,
		OrderID:       stop.Order.ID,
		ClientName:    stop.Order.FullName,
		ClientPhone:   stop.Order.Phone,
		Address:       address,
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func detail(message string) map[string]string {
	return map[string]string{"detail": message}
}
