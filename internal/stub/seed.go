package stub

import (
	"time"

	"github.com/vanmilkco/storefront/internal/modules/admin"
	"github.com/vanmilkco/storefront/internal/modules/catalog"
	"github.com/vanmilkco/storefront/internal/modules/delivery"
	"github.com/vanmilkco/storefront/internal/modules/session"
)

// Seed loads the development fixtures: three accounts (customer, driver,
// staff), a small catalog and one route for today assigned to the driver.
// Credentials are fixed so console sessions are reproducible.
func Seed(store *Store) {
	dairy := &catalog.Category{ID: 1, Name: "Dairy", Slug: "dairy"}
	bakery := &catalog.Category{ID: 2, Name: "Bakery", Slug: "bakery"}

	store.AddProduct(catalog.Product{Name: "Whole Milk 2L", Slug: "whole-milk-2l",
		Description: "Creamy whole milk from local farms.", PriceCents: 500, Category: dairy, IsActive: true})
	store.AddProduct(catalog.Product{Name: "Oat Milk 1L", Slug: "oat-milk-1l",
		Description: "Barista-grade oat milk.", PriceCents: 650, Category: dairy, IsActive: true})
	store.AddProduct(catalog.Product{Name: "Salted Butter 250g", Slug: "salted-butter-250g",
		Description: "Small-batch cultured butter.", PriceCents: 899, Category: dairy, IsActive: true})
	store.AddProduct(catalog.Product{Name: "Sourdough Loaf", Slug: "sourdough-loaf",
		Description: "Naturally leavened, baked daily.", PriceCents: 750, Category: bakery, IsActive: true})

	customer, _ := store.CreateAccount("customer@example.com", "password123", false, false, session.Profile{
		FirstName: "Casey", LastName: "Customer", Phone: "604-555-0101",
		AddressLine1: "100 Main St", City: "Vancouver", PostalCode: "V5K 0A1", RegionCode: "van",
	})
	driver, _ := store.CreateAccount("driver@example.com", "password123", false, true, session.Profile{
		FirstName: "Devon", LastName: "Driver", Phone: "604-555-0102",
	})
	store.CreateAccount("admin@example.com", "password123", true, false, session.Profile{
		FirstName: "Alex", LastName: "Admin", Phone: "604-555-0103",
	})

	today := time.Now().Format("2006-01-02")
	store.AddRoute(admin.Route{
		Date:       today,
		RegionCode: "van",
		RegionName: "Vancouver",
		DriverName: driver.User.FirstName + " " + driver.User.LastName,
		Stops: []admin.RouteStop{
			{Status: delivery.StopPending, Order: admin.StopOrder{
				ID: 9001, FullName: customer.Profile.FirstName + " " + customer.Profile.LastName,
				AddressLine1: "100 Main St", City: "Vancouver", PostalCode: "V5K 0A1", Phone: "604-555-0101"}},
			{Status: delivery.StopPending, Order: admin.StopOrder{
				ID: 9002, FullName: "Jordan Lee",
				AddressLine1: "2200 Cambie St", City: "Vancouver", PostalCode: "V5Z 2T5", Phone: "604-555-0199"}},
			{Status: delivery.StopPending, Order: admin.StopOrder{
				ID: 9003, FullName: "Sam Rivera",
				AddressLine1: "890 Commercial Dr", City: "Vancouver", PostalCode: "V5L 3W6", Phone: "604-555-0142"}},
		},
	}, driver.User.ID)
}
