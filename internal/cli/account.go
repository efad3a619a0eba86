package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanmilkco/storefront/internal/api"
	"github.com/vanmilkco/storefront/internal/modules/account"
	"github.com/vanmilkco/storefront/internal/modules/session"
)

var (
	flagRegFirstName string
	flagRegLastName  string
	flagRegPhone     string
	flagRegAddress   string
	flagRegCity      string
	flagRegPostal    string
	flagNewPassword  string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account management commands",
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account with --email/--password",
	RunE:  runRegister,
}

var updateProfileCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the signed-in account's profile",
	RunE:  runUpdateProfile,
}

var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Change the signed-in account's password",
	RunE:  runChangePassword,
}

func init() {
	registerCmd.Flags().StringVar(&flagRegFirstName, "first-name", "", "first name")
	registerCmd.Flags().StringVar(&flagRegLastName, "last-name", "", "last name")
	registerCmd.Flags().StringVar(&flagRegPhone, "phone", "", "phone number")
	registerCmd.Flags().StringVar(&flagRegAddress, "address", "", "address line")
	registerCmd.Flags().StringVar(&flagRegCity, "city", "", "city")
	registerCmd.Flags().StringVar(&flagRegPostal, "postal-code", "", "postal code")

	updateProfileCmd.Flags().StringVar(&flagRegFirstName, "first-name", "", "first name")
	updateProfileCmd.Flags().StringVar(&flagRegLastName, "last-name", "", "last name")
	updateProfileCmd.Flags().StringVar(&flagRegPhone, "phone", "", "phone number")
	updateProfileCmd.Flags().StringVar(&flagRegAddress, "address", "", "address line")
	updateProfileCmd.Flags().StringVar(&flagRegCity, "city", "", "city")
	updateProfileCmd.Flags().StringVar(&flagRegPostal, "postal-code", "", "postal code")

	changePasswordCmd.Flags().StringVar(&flagNewPassword, "new-password", "", "the new password (required)")

	accountCmd.AddCommand(registerCmd, updateProfileCmd, changePasswordCmd)
	rootCmd.AddCommand(accountCmd)
}

func runRegister(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	creds, err := app.credentials()
	if err != nil {
		return err
	}
	store := session.NewStore(app.client, session.Options{
		ProbeTimeout: app.cfg.ProbeTimeout,
		Logger:       app.log,
	})
	defer store.Close()

	reg := session.Registration{
		Email:        creds.Email,
		Password:     creds.Password,
		FirstName:    flagRegFirstName,
		LastName:     flagRegLastName,
		Phone:        flagRegPhone,
		AddressLine1: flagRegAddress,
		City:         flagRegCity,
		PostalCode:   flagRegPostal,
	}
	if err := store.Register(cmd.Context(), reg); err != nil {
		return fmt.Errorf("register: %s", api.Message(err, "registration failed"))
	}
	state, err := awaitCapabilities(cmd.Context(), store, store.Watch())
	if err != nil {
		return err
	}
	printSession(state)
	return nil
}

func runUpdateProfile(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if _, err := app.signIn(ctx); err != nil {
		return err
	}

	profile, err := account.NewService(app.client).UpdateProfile(ctx, account.ProfileUpdate{
		FirstName:    flagRegFirstName,
		LastName:     flagRegLastName,
		Phone:        flagRegPhone,
		AddressLine1: flagRegAddress,
		City:         flagRegCity,
		PostalCode:   flagRegPostal,
	})
	if err != nil {
		return fmt.Errorf("%s", api.Message(err, "could not update profile"))
	}
	fmt.Printf("Profile updated: %s %s, %s\n", profile.FirstName, profile.LastName, profile.Phone)
	return nil
}

func runChangePassword(cmd *cobra.Command, _ []string) error {
	if flagNewPassword == "" {
		return fmt.Errorf("--new-password is required")
	}
	app, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	creds, err := app.credentials()
	if err != nil {
		return err
	}
	if _, err := app.signIn(ctx); err != nil {
		return err
	}

	err = account.NewService(app.client).ChangePassword(ctx, account.PasswordChange{
		CurrentPassword:    creds.Password,
		NewPassword:        flagNewPassword,
		NewPasswordConfirm: flagNewPassword,
	})
	if err != nil {
		return fmt.Errorf("%s", api.Message(err, "could not change password"))
	}
	fmt.Println("Password changed.")
	return nil
}
