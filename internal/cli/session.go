package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanmilkco/storefront/internal/modules/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and show the resolved capabilities",
	RunE:  runLogin,
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the signed-in account and its capabilities",
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(meCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	state, err := app.signIn(cmd.Context())
	if err != nil {
		return err
	}
	printSession(state)
	return nil
}

func printSession(state session.State) {
	switch state.Status {
	case session.StatusAuthenticated:
		fmt.Printf("Signed in as %s (%s)\n", state.User.Username, state.User.Email)
		fmt.Printf("  staff:  %v\n", state.User.IsStaff)
		fmt.Printf("  admin:  %v\n", state.Capabilities.CanAccessAdmin)
		fmt.Printf("  driver: %v\n", state.Capabilities.IsDriver)
	case session.StatusAnonymous:
		msg := state.Err
		if msg == "" {
			msg = "not signed in"
		}
		fmt.Println(msg)
	default:
		fmt.Printf("session %s: %s\n", state.Status, state.Err)
	}
}
