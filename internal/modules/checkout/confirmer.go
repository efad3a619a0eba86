package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IntentStatus is the payment provider's terminal status for a confirmation.
type IntentStatus string

const (
	IntentSucceeded      IntentStatus = "succeeded"
	IntentRequiresAction IntentStatus = "requires_action"
	IntentProcessing     IntentStatus = "processing"
	IntentFailed         IntentStatus = "failed"
)

// ConfirmOutcome is what a confirmer reports back. DeclineMessage is set
// when the provider rejected the payment explicitly (card declined and
// friends); transport and provider-internal failures come back as errors
// from Confirm instead.
type ConfirmOutcome struct {
	Status         IntentStatus
	DeclineMessage string
}

// Confirmer is the provider-agnostic confirmation interface. To support
// another card provider, implement this interface.
type Confirmer interface {
	// Confirm finalizes the payment authorized by clientSecret.
	Confirm(ctx context.Context, clientSecret string, card Card, billing BillingDetails) (*ConfirmOutcome, error)
}

// ── Stripe adapter ────────────────────────────────────────────────────────────
// Talks to the Stripe payment-intents confirm endpoint using the
// publishable key, mirroring what the hosted card element does in a
// browser: the client secret scopes the call to a single intent.

type stripeConfirmer struct {
	publishableKey string
	baseURL        string
	http           *http.Client
}

// NewStripeConfirmer builds the live card confirmer. baseURL is normally
// https://api.stripe.com; tests point it at a local server.
func NewStripeConfirmer(publishableKey, baseURL string) Confirmer {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &stripeConfirmer{
		publishableKey: publishableKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *stripeConfirmer) Confirm(ctx context.Context, clientSecret string, card Card, billing BillingDetails) (*ConfirmOutcome, error) {
	intentID, ok := intentIDFromSecret(clientSecret)
	if !ok {
		return nil, fmt.Errorf("malformed client secret")
	}

	form := url.Values{}
	form.Set("client_secret", clientSecret)
	form.Set("key", s.publishableKey)
	form.Set("payment_method_data[type]", "card")
	form.Set("payment_method_data[card][number]", card.Number)
	form.Set("payment_method_data[card][exp_month]", fmt.Sprintf("%d", card.ExpMonth))
	form.Set("payment_method_data[card][exp_year]", fmt.Sprintf("%d", card.ExpYear))
	form.Set("payment_method_data[card][cvc]", card.CVC)
	form.Set("payment_method_data[billing_details][name]", billing.Name)
	form.Set("payment_method_data[billing_details][email]", billing.Email)

	endpoint := fmt.Sprintf("%s/v1/payment_intents/%s/confirm", s.baseURL, intentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read confirm response: %w", err)
	}

	var payload struct {
		Status string `json:"status"`
		Error  *struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode confirm response: %w", err)
	}

	if payload.Error != nil {
		if payload.Error.Type == "card_error" {
			msg := payload.Error.Message
			if msg == "" {
				msg = "Your card was declined."
			}
			return &ConfirmOutcome{Status: IntentFailed, DeclineMessage: msg}, nil
		}
		return nil, fmt.Errorf("payment provider error: %s", payload.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	switch payload.Status {
	case "succeeded":
		return &ConfirmOutcome{Status: IntentSucceeded}, nil
	case "requires_action":
		return &ConfirmOutcome{Status: IntentRequiresAction}, nil
	case "processing":
		return &ConfirmOutcome{Status: IntentProcessing}, nil
	default:
		return &ConfirmOutcome{Status: IntentFailed}, nil
	}
}

// intentIDFromSecret extracts "pi_…" from "pi_…_secret_…".
func intentIDFromSecret(clientSecret string) (string, bool) {
	idx := strings.Index(clientSecret, "_secret_")
	if idx <= 0 {
		return "", false
	}
	return clientSecret[:idx], true
}

// ── Sandbox adapter ───────────────────────────────────────────────────────────
// Used in development when no publishable key is configured. Approves
// everything except the classic decline test number.

type sandboxConfirmer struct{}

// NewSandboxConfirmer builds the offline confirmer.
func NewSandboxConfirmer() Confirmer { return sandboxConfirmer{} }

func (sandboxConfirmer) Confirm(_ context.Context, clientSecret string, card Card, _ BillingDetails) (*ConfirmOutcome, error) {
	if _, ok := intentIDFromSecret(clientSecret); !ok {
		return nil, fmt.Errorf("malformed client secret")
	}
	if strings.HasSuffix(card.Number, "0002") {
		return &ConfirmOutcome{Status: IntentFailed, DeclineMessage: "Your card was declined."}, nil
	}
	return &ConfirmOutcome{Status: IntentSucceeded}, nil
}
