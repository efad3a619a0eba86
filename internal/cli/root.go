// Package cli implements the storefront console: thin cobra commands over
// the client SDK, for poking the API by hand.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanmilkco/storefront/internal/api"
	"github.com/vanmilkco/storefront/internal/config"
	"github.com/vanmilkco/storefront/internal/modules/session"
)

var (
	flagBaseURL  string
	flagEmail    string
	flagPassword string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Vancouver Milk Co. storefront console",
	Long: `Console for the Vancouver Milk Co. storefront API.

Customer commands browse the catalog and place orders; driver and admin
commands require an account with the matching role. Credentials come from
--email/--password or STOREFRONT_EMAIL/STOREFRONT_PASSWORD.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "API root (overrides STOREFRONT_API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagEmail, "email", "", "account email")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "account password")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log every request")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the per-invocation wiring shared by every command.
type app struct {
	cfg    *config.Config
	client *api.Client
	log    *zap.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagBaseURL != "" {
		cfg.APIBaseURL = flagBaseURL
	}

	logger := zap.NewNop()
	if flagVerbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
	}

	client, err := api.New(api.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, client: client, log: logger}, nil
}

func (a *app) credentials() (session.Credentials, error) {
	email := flagEmail
	if email == "" {
		email = os.Getenv("STOREFRONT_EMAIL")
	}
	password := flagPassword
	if password == "" {
		password = os.Getenv("STOREFRONT_PASSWORD")
	}
	if email == "" || password == "" {
		return session.Credentials{}, fmt.Errorf("credentials required: pass --email/--password or set STOREFRONT_EMAIL/STOREFRONT_PASSWORD")
	}
	return session.Credentials{Email: email, Password: password}, nil
}

// signIn logs in and waits for the capability probes so role-gated commands
// can fail with a clear message instead of a bare 403.
func (a *app) signIn(ctx context.Context) (session.State, error) {
	creds, err := a.credentials()
	if err != nil {
		return session.State{}, err
	}
	store := session.NewStore(a.client, session.Options{
		ProbeTimeout: a.cfg.ProbeTimeout,
		Logger:       a.log,
	})
	defer store.Close()

	updates := store.Watch()
	if err := store.Login(ctx, creds); err != nil {
		return store.Snapshot(), fmt.Errorf("login: %s", api.Message(err, "login failed"))
	}
	return awaitCapabilities(ctx, store, updates)
}

func awaitCapabilities(ctx context.Context, store *session.Store, updates <-chan session.State) (session.State, error) {
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		state := store.Snapshot()
		if state.Status != session.StatusAuthenticated || !state.CheckingAccess {
			return state, nil
		}
		// Watch sends are lossy under contention, so fall back to polling.
		select {
		case <-updates:
		case <-tick.C:
		case <-deadline:
			return state, fmt.Errorf("timed out waiting for capability check")
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}
