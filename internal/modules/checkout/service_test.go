package checkout

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanmilkco/storefront/internal/api"
	"github.com/vanmilkco/storefront/internal/modules/cart"
)

// fakeClient records checkout creations and the headers they carried.
type fakeClient struct {
	mu       sync.Mutex
	response CheckoutResponse
	err      error
	payloads []OrderPayload
	idemKeys []string

	// gate, when set, blocks the create call until closed.
	gate chan struct{}
}

func (f *fakeClient) Post(ctx context.Context, path string, in, out interface{}, opts ...api.RequestOption) error {
	req, _ := http.NewRequest(http.MethodPost, "http://unused"+path, nil)
	for _, opt := range opts {
		opt(req)
	}
	f.mu.Lock()
	f.payloads = append(f.payloads, in.(OrderPayload))
	f.idemKeys = append(f.idemKeys, req.Header.Get("Idempotency-Key"))
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	*(out.(*CheckoutResponse)) = f.response
	return nil
}

// fakeConfirmer scripts payment confirmation outcomes.
type fakeConfirmer struct {
	outcome *ConfirmOutcome
	err     error
	secrets []string
}

func (f *fakeConfirmer) Confirm(_ context.Context, clientSecret string, _ Card, _ BillingDetails) (*ConfirmOutcome, error) {
	f.secrets = append(f.secrets, clientSecret)
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

var testCard = Card{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030, CVC: "123"}

func filledCart() *cart.Cart {
	c := cart.New()
	c.Add(cart.Product{ID: 1, Name: "Whole Milk 2L", PriceCents: 500}, 2)
	c.Add(cart.Product{ID: 2, Name: "Butter", PriceCents: 799}, 1)
	return c
}

func pickupForm() Form {
	return Form{
		FullName:  "Ada Customer",
		Email:     "ada@example.com",
		Phone:     "604-555-0101",
		OrderType: OrderTypePickup,
	}
}

func TestSubmitSuccessClearsCart(t *testing.T) {
	client := &fakeClient{response: CheckoutResponse{
		ClientSecret: "pi_123_secret_abc",
		OrderID:      42,
		AmountCents:  1799,
	}}
	confirmer := &fakeConfirmer{outcome: &ConfirmOutcome{Status: IntentSucceeded}}
	basket := filledCart()
	svc := NewService(client, confirmer, basket, nil)

	result, err := svc.Submit(context.Background(), pickupForm(), testCard)

	require.NoError(t, err)
	assert.Equal(t, 42, result.OrderID)
	assert.Equal(t, int64(1799), result.AmountCents)
	assert.Equal(t, PhaseSucceeded, svc.Phase())
	assert.Empty(t, svc.Message())
	assert.Zero(t, basket.Len(), "cart cleared only on confirmed success")

	require.Len(t, client.payloads, 1)
	payload := client.payloads[0]
	assert.Equal(t, int64(1799), payload.SubtotalCents)
	assert.Equal(t, int64(1799), payload.TotalCents)
	require.Len(t, payload.Items, 2)
	assert.Equal(t, confirmer.secrets, []string{"pi_123_secret_abc"})
}

func TestSubmitDeclineKeepsCart(t *testing.T) {
	client := &fakeClient{response: CheckoutResponse{ClientSecret: "pi_1_secret_x", OrderID: 7}}
	confirmer := &fakeConfirmer{outcome: &ConfirmOutcome{DeclineMessage: "Your card was declined."}}
	basket := filledCart()
	svc := NewService(client, confirmer, basket, nil)

	_, err := svc.Submit(context.Background(), pickupForm(), testCard)

	require.Error(t, err)
	assert.Equal(t, "Your card was declined.", svc.Message())
	assert.Equal(t, PhaseFailed, svc.Phase())
	assert.Equal(t, 3, basket.ItemCount(), "a failed payment must not touch the cart")
}

func TestSubmitAmbiguousOutcomeKeepsCart(t *testing.T) {
	client := &fakeClient{response: CheckoutResponse{ClientSecret: "pi_1_secret_x"}}
	confirmer := &fakeConfirmer{outcome: &ConfirmOutcome{Status: IntentProcessing}}
	basket := filledCart()
	svc := NewService(client, confirmer, basket, nil)

	_, err := svc.Submit(context.Background(), pickupForm(), testCard)

	require.Error(t, err)
	assert.Equal(t, "Payment did not complete. Please try again.", svc.Message())
	assert.Equal(t, 3, basket.ItemCount())
}

func TestSubmitCreateFailureKeepsCart(t *testing.T) {
	client := &fakeClient{err: &api.Error{Status: 400, Detail: "Invalid postal code."}}
	basket := filledCart()
	svc := NewService(client, &fakeConfirmer{}, basket, nil)

	_, err := svc.Submit(context.Background(), pickupForm(), testCard)

	require.Error(t, err)
	assert.Equal(t, "Invalid postal code.", svc.Message(), "backend detail shown verbatim")
	assert.Equal(t, 3, basket.ItemCount())
}

func TestSubmitEmptyCartFailsFast(t *testing.T) {
	client := &fakeClient{}
	svc := NewService(client, &fakeConfirmer{}, cart.New(), nil)

	_, err := svc.Submit(context.Background(), pickupForm(), testCard)

	require.Error(t, err)
	assert.Equal(t, "Cart is empty. Add items to proceed.", svc.Message())
	assert.Empty(t, client.payloads, "no network call for an empty cart")
}

func TestSubmitMissingCardFailsFast(t *testing.T) {
	client := &fakeClient{}
	svc := NewService(client, &fakeConfirmer{}, filledCart(), nil)

	_, err := svc.Submit(context.Background(), pickupForm(), Card{})

	require.Error(t, err)
	assert.Equal(t, "Please enter your card details.", svc.Message())
	assert.Empty(t, client.payloads)
}

func TestSubmitValidationFailure(t *testing.T) {
	client := &fakeClient{}
	svc := NewService(client, &fakeConfirmer{}, filledCart(), nil)

	form := pickupForm()
	form.Email = "not-an-email"
	_, err := svc.Submit(context.Background(), form, testCard)

	require.Error(t, err)
	assert.Contains(t, svc.Message(), "email")
	assert.Empty(t, client.payloads, "invalid payloads never leave the client")
}

func TestSubmitRejectsConcurrentAttempt(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeClient{
		gate:     gate,
		response: CheckoutResponse{ClientSecret: "pi_1_secret_x", OrderID: 1},
	}
	confirmer := &fakeConfirmer{outcome: &ConfirmOutcome{Status: IntentSucceeded}}
	svc := NewService(client, confirmer, filledCart(), nil)

	first := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), pickupForm(), testCard)
		first <- err
	}()
	require.Eventually(t, func() bool {
		return svc.Phase() == PhaseSubmitting
	}, time.Second, time.Millisecond)

	_, err := svc.Submit(context.Background(), pickupForm(), testCard)
	assert.ErrorIs(t, err, ErrBusy)

	close(gate)
	require.NoError(t, <-first)
}

func TestLocalChecksDoNotDisturbInFlightSubmit(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeClient{
		gate:     gate,
		response: CheckoutResponse{ClientSecret: "pi_1_secret_x", OrderID: 1},
	}
	confirmer := &fakeConfirmer{outcome: &ConfirmOutcome{Status: IntentSucceeded}}
	svc := NewService(client, confirmer, filledCart(), nil)

	first := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), pickupForm(), testCard)
		first <- err
	}()
	require.Eventually(t, func() bool {
		return svc.Phase() == PhaseSubmitting
	}, time.Second, time.Millisecond)

	// A re-entrant attempt that would fail its local card check still gets
	// ErrBusy and must not flip the phase under the in-flight submission.
	_, err := svc.Submit(context.Background(), pickupForm(), Card{})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, PhaseSubmitting, svc.Phase())
	assert.Empty(t, svc.Message())

	close(gate)
	require.NoError(t, <-first)
	assert.Equal(t, PhaseSucceeded, svc.Phase())
}

func TestIdempotencyKeyStableAcrossRetries(t *testing.T) {
	client := &fakeClient{err: &api.Error{Status: 502, Detail: "bad gateway"}}
	basket := filledCart()
	svc := NewService(client, &fakeConfirmer{}, basket, nil)

	_, err := svc.Submit(context.Background(), pickupForm(), testCard)
	require.Error(t, err)
	_, err = svc.Submit(context.Background(), pickupForm(), testCard)
	require.Error(t, err)

	require.Len(t, client.idemKeys, 2)
	assert.NotEmpty(t, client.idemKeys[0])
	assert.Equal(t, client.idemKeys[0], client.idemKeys[1],
		"retrying the same cart reuses the key so the backend can collapse duplicates")

	// Changing the cart starts a new attempt sequence.
	basket.Add(cart.Product{ID: 3, Name: "Sourdough", PriceCents: 650}, 1)
	_, err = svc.Submit(context.Background(), pickupForm(), testCard)
	require.Error(t, err)
	require.Len(t, client.idemKeys, 3)
	assert.NotEqual(t, client.idemKeys[0], client.idemKeys[2])
}

func TestIdempotencyKeyResetAfterSuccess(t *testing.T) {
	client := &fakeClient{response: CheckoutResponse{ClientSecret: "pi_1_secret_x", OrderID: 1}}
	confirmer := &fakeConfirmer{outcome: &ConfirmOutcome{Status: IntentSucceeded}}
	basket := filledCart()
	svc := NewService(client, confirmer, basket, nil)

	_, err := svc.Submit(context.Background(), pickupForm(), testCard)
	require.NoError(t, err)

	// Same items bought again: a fresh order needs a fresh key.
	basket.Add(cart.Product{ID: 1, Name: "Whole Milk 2L", PriceCents: 500}, 2)
	basket.Add(cart.Product{ID: 2, Name: "Butter", PriceCents: 799}, 1)
	_, err = svc.Submit(context.Background(), pickupForm(), testCard)
	require.NoError(t, err)

	require.Len(t, client.idemKeys, 2)
	assert.NotEqual(t, client.idemKeys[0], client.idemKeys[1])
}

func TestConfirmerNetworkErrorMasked(t *testing.T) {
	client := &fakeClient{response: CheckoutResponse{ClientSecret: "pi_1_secret_x"}}
	confirmer := &fakeConfirmer{err: errors.New("tls handshake failed")}
	basket := filledCart()
	svc := NewService(client, confirmer, basket, nil)

	_, err := svc.Submit(context.Background(), pickupForm(), testCard)

	require.Error(t, err)
	assert.Equal(t, "Payment failed. Please try again.", svc.Message(),
		"provider internals never reach the user")
	assert.Equal(t, 3, basket.ItemCount())
}
