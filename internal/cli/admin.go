package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vanmilkco/storefront/internal/api"
	"github.com/vanmilkco/storefront/internal/modules/admin"
)

var (
	flagAdminDate   string
	flagAdminRegion string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Back-office commands",
}

var adminDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show today's order and delivery summary",
	RunE:  runAdminDashboard,
}

var adminRoutesCmd = &cobra.Command{
	Use:   "routes [ROUTE_ID]",
	Short: "List routes, or show one route's stops",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAdminRoutes,
}

var adminReorderCmd = &cobra.Command{
	Use:   "reorder ROUTE_ID SOURCE_STOP TARGET_STOP",
	Short: "Move a stop to another position on a route",
	Long: `Moves SOURCE_STOP to TARGET_STOP's position and saves the new order.
If another admin changed the route in the meantime, the route is reloaded
and the move must be redone against the fresh ordering.`,
	Args: cobra.ExactArgs(3),
	RunE: runAdminReorder,
}

var adminClientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List clients with order counts",
	RunE:  runAdminClients,
}

func init() {
	adminRoutesCmd.Flags().StringVar(&flagAdminDate, "date", "", "filter by date (YYYY-MM-DD)")
	adminRoutesCmd.Flags().StringVar(&flagAdminRegion, "region", "", "filter by region code")
	adminCmd.AddCommand(adminDashboardCmd, adminRoutesCmd, adminReorderCmd, adminClientsCmd)
	rootCmd.AddCommand(adminCmd)
}

func adminService(cmd *cobra.Command) (*app, admin.Service, error) {
	app, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	state, err := app.signIn(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	if !state.Capabilities.CanAccessAdmin {
		return nil, nil, fmt.Errorf("this account has no admin access")
	}
	return app, admin.NewService(app.client), nil
}

func runAdminDashboard(cmd *cobra.Command, _ []string) error {
	_, svc, err := adminService(cmd)
	if err != nil {
		return err
	}
	dash, err := svc.Dashboard(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s", api.Message(err, "could not load dashboard"))
	}
	fmt.Printf("Orders today:     %d\n", dash.OrdersToday)
	fmt.Printf("Revenue today:    %s\n", formatCents(dash.RevenueCents))
	fmt.Printf("Pending routes:   %d\n", dash.PendingRoutes)
	fmt.Printf("Completed routes: %d\n", dash.CompletedRoutes)
	return nil
}

func runAdminRoutes(cmd *cobra.Command, args []string) error {
	_, svc, err := adminService(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if len(args) == 1 {
		routeID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad route id %q", args[0])
		}
		route, err := svc.Route(ctx, routeID)
		if err != nil {
			return fmt.Errorf("%s", api.Message(err, "could not load route"))
		}
		printAdminRoute(route)
		return nil
	}

	routes, err := svc.Routes(ctx, admin.RouteFilters{Date: flagAdminDate, Region: flagAdminRegion})
	if err != nil {
		return fmt.Errorf("%s", api.Message(err, "could not load routes"))
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tREGION\tDRIVER\tSTOPS\tDONE")
	for _, r := range routes {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%v\n",
			r.ID, r.Date, r.RegionCode, r.DriverName, r.StopsCount, r.IsCompleted)
	}
	return w.Flush()
}

func printAdminRoute(route *admin.Route) {
	fmt.Printf("Route %d — %s (%s), driver %s\n", route.ID, route.RegionName, route.Date, route.DriverName)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  STOP\tSEQ\tSTATUS\tCLIENT\tADDRESS")
	for _, stop := range route.Stops {
		fmt.Fprintf(w, "  %d\t%d\t%s\t%s\t%s, %s\n",
			stop.ID, stop.Sequence, stop.Status, stop.Order.FullName,
			stop.Order.AddressLine1, stop.Order.City)
	}
	w.Flush()
}

func runAdminReorder(cmd *cobra.Command, args []string) error {
	app, svc, err := adminService(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	routeID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad route id %q", args[0])
	}
	sourceID, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad stop id %q", args[1])
	}
	targetID, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("bad stop id %q", args[2])
	}

	workflow := admin.NewReorderWorkflow(svc, app.log)
	if err := workflow.Load(ctx, routeID); err != nil {
		return fmt.Errorf("%s", api.Message(err, "could not load route"))
	}
	if err := workflow.Begin(); err != nil {
		return fmt.Errorf("route %d cannot be reordered", routeID)
	}
	if err := workflow.DragOver(sourceID, targetID); err != nil {
		return err
	}
	submitted := admin.StopIDs(workflow.Draft())
	if err := workflow.Save(ctx); err != nil {
		if msg := workflow.SaveError(); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return err
	}
	route := workflow.Route()
	if !equalIDs(submitted, admin.StopIDs(route.Stops)) {
		fmt.Println("route changed on the server and was reloaded; redo the move against the order below")
	}
	printAdminRoute(route)
	return nil
}

func runAdminClients(cmd *cobra.Command, _ []string) error {
	_, svc, err := adminService(cmd)
	if err != nil {
		return err
	}
	clients, err := svc.Clients(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s", api.Message(err, "could not load clients"))
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tORDERS\tSPENT")
	for _, c := range clients {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
			c.ID, c.FullName, c.Email, c.OrdersCount, formatCents(c.TotalSpentCents))
	}
	return w.Flush()
}

func equalIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
