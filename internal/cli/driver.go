package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vanmilkco/storefront/internal/api"
	"github.com/vanmilkco/storefront/internal/modules/delivery"
)

var flagDeliverPhoto string

var driverCmd = &cobra.Command{
	Use:   "driver",
	Short: "Driver route and delivery commands",
}

var driverRoutesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Show today's routes and their stops",
	RunE:  runDriverRoutes,
}

var driverDeliverCmd = &cobra.Command{
	Use:   "deliver STOP_ID",
	Short: "Mark a stop delivered with a proof photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runDriverDeliver,
}

var driverNoPickupCmd = &cobra.Command{
	Use:   "no-pickup STOP_ID",
	Short: "Mark a stop as not picked up",
	Args:  cobra.ExactArgs(1),
	RunE:  runDriverNoPickup,
}

func init() {
	driverDeliverCmd.Flags().StringVar(&flagDeliverPhoto, "photo", "", "path to the proof photo (required)")
	driverCmd.AddCommand(driverRoutesCmd, driverDeliverCmd, driverNoPickupCmd)
	rootCmd.AddCommand(driverCmd)
}

func runDriverRoutes(cmd *cobra.Command, _ []string) error {
	_, svc, err := driverService(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	routes, err := svc.TodayRoutes(ctx)
	if err != nil {
		return fmt.Errorf("%s", api.Message(err, "could not load routes"))
	}
	if len(routes) == 0 {
		fmt.Println("no routes assigned today")
	}
	for _, route := range routes {
		fmt.Printf("Route %d — %s (%s)\n", route.ID, route.RegionName, route.Date)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  STOP\tSEQ\tSTATUS\tCLIENT\tADDRESS")
		for _, stop := range route.Stops {
			fmt.Fprintf(w, "  %d\t%d\t%s\t%s\t%s\n",
				stop.ID, stop.Sequence, stop.Status, stop.ClientName, stop.Address)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	upcoming, err := svc.UpcomingRoutes(ctx)
	if err == nil && len(upcoming) > 0 {
		fmt.Println("Upcoming:")
		for _, route := range upcoming {
			fmt.Printf("  %s — %s, %d stops\n", route.Date, route.RegionName, route.StopsCount)
		}
	}
	return nil
}

func runDriverDeliver(cmd *cobra.Command, args []string) error {
	if flagDeliverPhoto == "" {
		return fmt.Errorf("--photo is required")
	}
	_, svc, err := driverService(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	stop, err := findStop(ctx, svc, args[0])
	if err != nil {
		return err
	}
	photo, err := os.Open(flagDeliverPhoto)
	if err != nil {
		return err
	}
	defer photo.Close()

	updated, err := svc.MarkDelivered(ctx, *stop, delivery.Proof{
		Filename: filepath.Base(flagDeliverPhoto),
		Content:  photo,
	})
	if err != nil {
		return fmt.Errorf("%s", api.Message(err, "could not mark delivered"))
	}
	fmt.Printf("Stop %d delivered (order %d)\n", updated.ID, updated.OrderID)
	return nil
}

func runDriverNoPickup(cmd *cobra.Command, args []string) error {
	_, svc, err := driverService(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	stop, err := findStop(ctx, svc, args[0])
	if err != nil {
		return err
	}
	updated, err := svc.MarkNoPickup(ctx, *stop)
	if err != nil {
		return fmt.Errorf("%s", api.Message(err, "could not mark no-pickup"))
	}
	fmt.Printf("Stop %d marked %s (order %d)\n", updated.ID, updated.Status, updated.OrderID)
	return nil
}

func driverService(cmd *cobra.Command) (*app, *delivery.Service, error) {
	app, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	state, err := app.signIn(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	if !state.Capabilities.IsDriver {
		return nil, nil, fmt.Errorf("this account has no driver access")
	}
	return app, delivery.NewService(app.client), nil
}

func findStop(ctx context.Context, svc *delivery.Service, arg string) (*delivery.Stop, error) {
	stopID, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("bad stop id %q", arg)
	}
	routes, err := svc.TodayRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s", api.Message(err, "could not load routes"))
	}
	for _, route := range routes {
		for _, stop := range route.Stops {
			if stop.ID == stopID {
				return &stop, nil
			}
		}
	}
	return nil, fmt.Errorf("stop %d is not on today's routes", stopID)
}
