package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanmilkco/storefront/internal/modules/cart"
	"github.com/vanmilkco/storefront/internal/modules/catalog"
	"github.com/vanmilkco/storefront/internal/modules/checkout"
)

var (
	flagCheckoutItems   []string
	flagCheckoutName    string
	flagCheckoutPhone   string
	flagCheckoutType    string
	flagCheckoutAddress string
	flagCheckoutCity    string
	flagCheckoutPostal  string
	flagCheckoutNotes   string
	flagCardNumber      string
	flagCardExpMonth    int
	flagCardExpYear     int
	flagCardCVC         string
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Place an order and pay for it",
	Long: `Builds a cart from --item flags, creates a checkout, and confirms the
payment. The cart is cleared only when the payment succeeds.`,
	RunE: runCheckout,
}

func init() {
	checkoutCmd.Flags().StringArrayVar(&flagCheckoutItems, "item", nil, "product to buy, as ID or ID=QTY (repeatable)")
	checkoutCmd.Flags().StringVar(&flagCheckoutName, "name", "", "full name on the order")
	checkoutCmd.Flags().StringVar(&flagCheckoutPhone, "phone", "", "contact phone")
	checkoutCmd.Flags().StringVar(&flagCheckoutType, "order-type", "pickup", "pickup or delivery")
	checkoutCmd.Flags().StringVar(&flagCheckoutAddress, "address", "", "delivery address line")
	checkoutCmd.Flags().StringVar(&flagCheckoutCity, "city", "", "delivery city")
	checkoutCmd.Flags().StringVar(&flagCheckoutPostal, "postal-code", "", "delivery postal code")
	checkoutCmd.Flags().StringVar(&flagCheckoutNotes, "notes", "", "order notes")
	checkoutCmd.Flags().StringVar(&flagCardNumber, "card-number", "", "card number")
	checkoutCmd.Flags().IntVar(&flagCardExpMonth, "card-exp-month", 0, "card expiry month")
	checkoutCmd.Flags().IntVar(&flagCardExpYear, "card-exp-year", 0, "card expiry year")
	checkoutCmd.Flags().StringVar(&flagCardCVC, "card-cvc", "", "card CVC")
	rootCmd.AddCommand(checkoutCmd)
}

func runCheckout(cmd *cobra.Command, _ []string) error {
	if len(flagCheckoutItems) == 0 {
		return fmt.Errorf("at least one --item is required")
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	state, err := app.signIn(ctx)
	if err != nil {
		return err
	}
	if state.User == nil {
		return fmt.Errorf("not signed in")
	}

	products := catalog.NewService(app.client)
	basket := cart.New()
	for _, spec := range flagCheckoutItems {
		id, qty, err := parseItemSpec(spec)
		if err != nil {
			return err
		}
		p, err := products.Product(ctx, id)
		if err != nil {
			return fmt.Errorf("product %d: %w", id, err)
		}
		basket.Add(cart.Product{ID: p.ID, Name: p.Name, PriceCents: p.PriceCents}, qty)
	}
	fmt.Printf("Cart: %d items, subtotal %s\n", basket.ItemCount(), formatCents(basket.SubtotalCents()))

	form := checkout.Form{
		FullName:  flagCheckoutName,
		Email:     state.User.Email,
		Phone:     flagCheckoutPhone,
		OrderType: checkout.OrderType(flagCheckoutType),
		Notes:     flagCheckoutNotes,
	}
	if form.OrderType == checkout.OrderTypeDelivery {
		form.Address = &checkout.AddressPayload{
			Line1:      flagCheckoutAddress,
			City:       flagCheckoutCity,
			PostalCode: flagCheckoutPostal,
		}
	}
	card := checkout.Card{
		Number:   flagCardNumber,
		ExpMonth: flagCardExpMonth,
		ExpYear:  flagCardExpYear,
		CVC:      flagCardCVC,
	}

	confirmer := checkout.NewSandboxConfirmer()
	if app.cfg.StripePublishableKey != "" {
		confirmer = checkout.NewStripeConfirmer(app.cfg.StripePublishableKey, "")
	}
	svc := checkout.NewService(app.client, confirmer, basket, app.log)
	result, err := svc.Submit(ctx, form, card)
	if err != nil {
		if msg := svc.Message(); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return err
	}
	fmt.Printf("Order %d paid: %s\n", result.OrderID, formatCents(result.AmountCents))
	return nil
}
