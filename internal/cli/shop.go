package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vanmilkco/storefront/internal/api"
	"github.com/vanmilkco/storefront/internal/modules/catalog"
)

var (
	flagShopCategory string
	flagShopPage     int
)

var shopCmd = &cobra.Command{
	Use:   "shop [query]",
	Short: "Browse the catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShop,
}

func init() {
	shopCmd.Flags().StringVar(&flagShopCategory, "category", "", "filter by category slug")
	shopCmd.Flags().IntVar(&flagShopPage, "page", 1, "result page")
	rootCmd.AddCommand(shopCmd)
}

func runShop(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	query := catalog.ProductQuery{
		Category: flagShopCategory,
		Page:     flagShopPage,
	}
	if len(args) > 0 {
		query.Search = args[0]
	}

	searcher := catalog.NewSearcher(catalog.NewService(app.client))
	products, err := searcher.Search(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("%s", api.Message(err, "could not load products"))
	}
	if len(products) == 0 {
		fmt.Println("no products found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tCATEGORY")
	for _, p := range products {
		category := ""
		if p.Category != nil {
			category = p.Category.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, formatCents(p.PriceCents), category)
	}
	return w.Flush()
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// parseItemSpec parses ID=QTY (a bare ID means quantity 1).
func parseItemSpec(spec string) (id, qty int, err error) {
	qty = 1
	idPart := spec
	if i := strings.IndexByte(spec, '='); i >= 0 {
		idPart = spec[:i]
		if _, err := fmt.Sscanf(spec[i+1:], "%d", &qty); err != nil {
			return 0, 0, fmt.Errorf("bad item spec %q", spec)
		}
	}
	if _, err := fmt.Sscanf(idPart, "%d", &id); err != nil {
		return 0, 0, fmt.Errorf("bad item spec %q", spec)
	}
	return id, qty, nil
}
