package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vanmilkco/storefront/internal/api"
	"github.com/vanmilkco/storefront/internal/modules/cart"
)

// Client is the slice of the API client checkout needs.
type Client interface {
	Post(ctx context.Context, path string, in, out interface{}, opts ...api.RequestOption) error
}

// ErrBusy rejects a Submit while another one is in flight. A single
// explicit user action needs no debounce; refusing re-entry is sufficient.
var ErrBusy = errors.New("checkout already in progress")

// Form is the buyer-entered half of the order payload; cart contents and
// totals come from the cart itself.
type Form struct {
	FullName   string
	Email      string
	Phone      string
	OrderType  OrderType
	Address    *AddressPayload
	Notes      string
	RegionCode string
	TaxCents   int64
}

// Service turns a cart into a paid order via two dependent network calls:
// create-checkout against the backend, then payment confirmation against
// the provider. The cart is cleared if and only if the confirmation
// reported success; every failure leaves it exactly as it was.
//
// Retries are always user-initiated. A retry re-enters from the
// create-checkout step carrying the same Idempotency-Key, which stays
// stable until the cart changes or a payment succeeds, so the backend can
// collapse duplicate order creation.
type Service struct {
	client    Client
	confirmer Confirmer
	cart      *cart.Cart
	validate  *validator.Validate
	log       *zap.Logger

	mu       sync.Mutex
	phase    Phase
	message  string
	idemKey  string
	idemCart string
}

// NewService wires the checkout sequencer.
func NewService(client Client, confirmer Confirmer, c *cart.Cart, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:    client,
		confirmer: confirmer,
		cart:      c,
		validate:  validator.New(),
		log:       logger,
		phase:     PhaseIdle,
	}
}

// Phase returns the current submission phase.
func (s *Service) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Message returns the user-facing failure message for the Failed phase.
func (s *Service) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Submit runs the checkout sequence. The returned error always carries a
// user-presentable message; the same text is available from Message.
func (s *Service) Submit(ctx context.Context, form Form, card Card) (*Result, error) {
	if err := s.enterSubmitting(); err != nil {
		return nil, err
	}

	items := s.cart.Items()
	if len(items) == 0 {
		return nil, s.fail("Cart is empty. Add items to proceed.")
	}
	if card.Empty() {
		// Local check, no network call wasted.
		return nil, s.fail("Please enter your card details.")
	}

	payload := s.buildPayload(form, items)
	if err := s.validate.Struct(payload); err != nil {
		return nil, s.fail(validationMessage(err))
	}

	key := s.idempotencyKey(items)
	var created CheckoutResponse
	if err := s.client.Post(ctx, "/checkout/", payload, &created,
		api.WithHeader("Idempotency-Key", key)); err != nil {
		return nil, s.fail(api.Message(err, "Unable to submit order right now. Please try again."))
	}

	outcome, err := s.confirmer.Confirm(ctx, created.ClientSecret, card, BillingDetails{
		Name:  form.FullName,
		Email: form.Email,
	})
	if err != nil {
		s.log.Warn("payment confirmation failed", zap.Error(err), zap.Int("order_id", created.OrderID))
		return nil, s.fail("Payment failed. Please try again.")
	}

	switch {
	case outcome.DeclineMessage != "":
		return nil, s.fail(outcome.DeclineMessage)
	case outcome.Status == IntentSucceeded:
		s.cart.Clear()
		s.succeed()
		return &Result{OrderID: created.OrderID, AmountCents: created.AmountCents}, nil
	default:
		// Ambiguous terminal state: not an explicit decline, not success.
		return nil, s.fail("Payment did not complete. Please try again.")
	}
}

func (s *Service) buildPayload(form Form, items []cart.Item) OrderPayload {
	var subtotal int64
	lines := make([]ItemPayload, 0, len(items))
	for _, item := range items {
		subtotal += item.Product.PriceCents * int64(item.Quantity)
		lines = append(lines, ItemPayload{ProductID: item.Product.ID, Quantity: item.Quantity})
	}
	return OrderPayload{
		FullName:      form.FullName,
		Email:         form.Email,
		Phone:         form.Phone,
		OrderType:     form.OrderType,
		SubtotalCents: subtotal,
		TaxCents:      form.TaxCents,
		TotalCents:    subtotal + form.TaxCents,
		Address:       form.Address,
		Notes:         form.Notes,
		RegionCode:    form.RegionCode,
		Items:         lines,
	}
}

// idempotencyKey mints a key per attempt sequence: stable across retries of
// the same cart, replaced when the cart contents differ.
func (s *Service) idempotencyKey(items []cart.Item) string {
	sig := cartSignature(items)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idemKey == "" || s.idemCart != sig {
		s.idemKey = uuid.NewString()
		s.idemCart = sig
	}
	return s.idemKey
}

func cartSignature(items []cart.Item) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "%d:%d;", item.Product.ID, item.Quantity)
	}
	return b.String()
}

func (s *Service) enterSubmitting() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseSubmitting {
		return ErrBusy
	}
	s.phase = PhaseSubmitting
	s.message = ""
	return nil
}

func (s *Service) fail(msg string) error {
	s.mu.Lock()
	s.phase = PhaseFailed
	s.message = msg
	s.mu.Unlock()
	return fmt.Errorf("%s", msg)
}

func (s *Service) succeed() {
	s.mu.Lock()
	s.phase = PhaseSucceeded
	s.message = ""
	s.idemKey = ""
	s.idemCart = ""
	s.mu.Unlock()
}

func validationMessage(err error) string {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) && len(invalid) > 0 {
		return fmt.Sprintf("Please check the %s field.", strings.ToLower(invalid[0].Field()))
	}
	return "Please check your order details."
}
