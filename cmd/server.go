package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/resy-sniper/internal/auth"
	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/creds"
	"github.com/example/resy-sniper/internal/db"
	"github.com/example/resy-sniper/internal/dispatch"
	"github.com/example/resy-sniper/internal/migrate"
	"github.com/example/resy-sniper/internal/snipes"
	"github.com/example/resy-sniper/internal/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the web UI + snipe dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			authStore := auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
			credStore, err := creds.NewStore(d, cfg.CredEncKey)
			if err != nil {
				return err
			}
			snipeRepo := snipes.NewRepo(d)

			disp := &dispatch.Dispatcher{
				Repo:      snipeRepo,
				Creds:     credStore,
				Interval:  cfg.PollInterval,
				Skew:      cfg.ReleaseSkew,
				DayOffset: cfg.DayOffset,
				Schedule:  cfg.Schedule,
			}
			ws := &web.Server{Auth: authStore, Snipes: snipeRepo, Creds: credStore, BaseURL: cfg.BaseURL}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return disp.Run(ctx) })
			g.Go(func() error { return web.Start(ctx, cfg.ListenAddr, ws.Routes()) })
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
