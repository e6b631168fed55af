package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/creds"
	"github.com/example/resy-sniper/internal/db"
	"github.com/example/resy-sniper/internal/migrate"
	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/snipe"
	"github.com/example/resy-sniper/internal/snipes"
	"github.com/spf13/cobra"
)

func newSnipeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snipe",
		Short: "Run or queue reservation snipes",
	}
	cmd.AddCommand(newSnipeRunCmd())
	cmd.AddCommand(newSnipeQueueCmd())
	cmd.AddCommand(newSnipeListCmd())
	return cmd
}

type snipeFlags struct {
	userID      int64
	venueID     int64
	partySize   int
	resDate     string
	desiredTime string
	releaseTime string
}

func (f *snipeFlags) register(c *cobra.Command) {
	c.Flags().Int64Var(&f.userID, "user-id", 0, "user id (from DB)")
	c.Flags().Int64Var(&f.venueID, "venue-id", 0, "resy venue id")
	c.Flags().IntVar(&f.partySize, "party-size", 2, "party size")
	c.Flags().StringVar(&f.resDate, "reservation-date", "", "reservation date YYYY-MM-DD")
	c.Flags().StringVar(&f.desiredTime, "time", "19:00", "desired seating time HH:MM")
	c.Flags().StringVar(&f.releaseTime, "release-time", "10:00", "local time of day new inventory opens HH:MM")
	_ = c.MarkFlagRequired("user-id")
	_ = c.MarkFlagRequired("venue-id")
	_ = c.MarkFlagRequired("reservation-date")
}

func (f *snipeFlags) request() (snipe.Request, error) {
	rd, err := time.Parse("2006-01-02", f.resDate)
	if err != nil {
		return snipe.Request{}, fmt.Errorf("invalid --reservation-date (want YYYY-MM-DD)")
	}
	req := snipe.Request{
		VenueID:     f.venueID,
		PartySize:   f.partySize,
		Date:        rd,
		DesiredTime: f.desiredTime,
		ReleaseTime: f.releaseTime,
	}
	return req, req.Validate()
}

// newSnipeRunCmd runs one snipe in the foreground and prints the outcome,
// without going through the dispatcher.
func newSnipeRunCmd() *cobra.Command {
	var flags snipeFlags

	c := &cobra.Command{
		Use:   "run",
		Short: "Run one snipe in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			req, err := flags.request()
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

			store, err := creds.NewStore(d, cfg.CredEncKey)
			if err != nil {
				return err
			}
			cr, err := store.Lookup(ctx, flags.userID)
			if errors.Is(err, creds.ErrNotFound) {
				return fmt.Errorf("no credentials for user %d: register first (resysnipe creds set)", flags.userID)
			}
			if err != nil {
				return err
			}

			s := &snipe.Scheduler{
				API:       resy.New(resy.Credentials{APIKey: cr.APIKey, AuthToken: cr.AuthToken}),
				Schedule:  cfg.Schedule,
				Skew:      cfg.ReleaseSkew,
				DayOffset: cfg.DayOffset,
			}
			out := s.Run(ctx, req, creds.ResolveZone(cr.TimeZone))
			fmt.Fprintln(os.Stdout, out.Message())
			if out.Status == snipe.StatusFailed && out.Err != nil {
				return out.Err
			}
			return nil
		},
	}

	flags.register(c)
	return c
}

func newSnipeQueueCmd() *cobra.Command {
	var flags snipeFlags

	c := &cobra.Command{
		Use:   "queue",
		Short: "Queue a snipe for the server's dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			req, err := flags.request()
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

			store, err := creds.NewStore(d, cfg.CredEncKey)
			if err != nil {
				return err
			}
			if _, err := store.Lookup(ctx, flags.userID); errors.Is(err, creds.ErrNotFound) {
				return fmt.Errorf("no credentials for user %d: register first (resysnipe creds set)", flags.userID)
			} else if err != nil {
				return err
			}

			repo := snipes.NewRepo(d)
			id, err := repo.Create(ctx, snipes.Record{
				UserID:          flags.userID,
				VenueID:         req.VenueID,
				PartySize:       req.PartySize,
				ReservationDate: req.Date,
				DesiredTime:     req.DesiredTime,
				ReleaseTime:     req.ReleaseTime,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "queued snipe id=%d venue=%d date=%s time=%s release=%s\n",
				id, req.VenueID, req.Date.Format("2006-01-02"), req.DesiredTime, req.ReleaseTime)
			return nil
		},
	}

	flags.register(c)
	return c
}

func newSnipeListCmd() *cobra.Command {
	var userID int64
	c := &cobra.Command{
		Use:   "list",
		Short: "List snipes for a user",
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

			repo := snipes.NewRepo(d)
			recs, err := repo.ListByUser(ctx, userID)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				outcome := ""
				if rec.Outcome != nil {
					outcome = *rec.Outcome
				}
				fmt.Fprintf(os.Stdout, "id=%d venue=%d date=%s time=%s release=%s status=%s %s\n",
					rec.ID, rec.VenueID, rec.ReservationDate.Format("2006-01-02"),
					rec.DesiredTime, rec.ReleaseTime, rec.Status, outcome)
			}
			return nil
		},
	}
	c.Flags().Int64Var(&userID, "user-id", 0, "user id")
	_ = c.MarkFlagRequired("user-id")
	return c
}
