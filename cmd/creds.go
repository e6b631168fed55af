package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/creds"
	"github.com/example/resy-sniper/internal/db"
	"github.com/example/resy-sniper/internal/migrate"
	"github.com/example/resy-sniper/internal/resy"
	"github.com/spf13/cobra"
)

func newCredsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Manage per-user Resy API credentials",
	}
	cmd.AddCommand(newCredsSetCmd())
	cmd.AddCommand(newCredsShowCmd())
	return cmd
}

func newCredsSetCmd() *cobra.Command {
	var (
		userID    int64
		apiKey    string
		authToken string
		timezone  string
		verify    bool
	)

	c := &cobra.Command{
		Use:   "set",
		Short: "Register or replace a user's API key and auth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			if verify {
				client := resy.New(resy.Credentials{APIKey: apiKey, AuthToken: authToken})
				if err := client.Ping(ctx); err != nil {
					return fmt.Errorf("credential check failed: %w", err)
				}
			}

			store, err := creds.NewStore(d, cfg.CredEncKey)
			if err != nil {
				return err
			}
			if err := store.Save(ctx, userID, creds.Credentials{
				APIKey:    apiKey,
				AuthToken: authToken,
				TimeZone:  timezone,
			}); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "credentials saved for user %d\n", userID)
			return nil
		},
	}

	c.Flags().Int64Var(&userID, "user-id", 0, "user id (from DB)")
	c.Flags().StringVar(&apiKey, "api-key", "", `value of the Resy "Authorization" api_key`)
	c.Flags().StringVar(&authToken, "auth-token", "", `value of the "X-Resy-Auth-Token" header`)
	c.Flags().StringVar(&timezone, "timezone", "east", "named time zone: "+strings.Join(creds.ZoneNames(), ", "))
	c.Flags().BoolVar(&verify, "verify", false, "ping the Resy API with the credentials before saving")
	_ = c.MarkFlagRequired("user-id")
	_ = c.MarkFlagRequired("api-key")
	_ = c.MarkFlagRequired("auth-token")
	return c
}

func newCredsShowCmd() *cobra.Command {
	var userID int64
	c := &cobra.Command{
		Use:   "show",
		Short: "Show whether a user has registered credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			store, err := creds.NewStore(d, cfg.CredEncKey)
			if err != nil {
				return err
			}
			cr, err := store.Lookup(ctx, userID)
			if errors.Is(err, creds.ErrNotFound) {
				fmt.Fprintf(os.Stdout, "user %d has no registered credentials\n", userID)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "user %d registered (timezone=%s)\n", userID, cr.TimeZone)
			return nil
		},
	}
	c.Flags().Int64Var(&userID, "user-id", 0, "user id")
	_ = c.MarkFlagRequired("user-id")
	return c
}
