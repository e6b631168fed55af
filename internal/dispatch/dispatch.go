package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/resy-sniper/internal/creds"
	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/snipe"
	"github.com/example/resy-sniper/internal/snipes"
)

// Dispatcher polls for pending snipes and runs each one as an independent
// goroutine. Snipes share nothing with each other beyond the read-only
// credential store; each builds its own Resy client from the owner's
// credentials.
type Dispatcher struct {
	Repo  *snipes.Repo
	Creds *creds.Store

	Interval  time.Duration
	Skew      time.Duration
	DayOffset int
	Schedule  snipe.Schedule
}

const maxConcurrentSnipes = 16

func (d *Dispatcher) Run(ctx context.Context) error {
	t := time.NewTicker(d.Interval)
	defer t.Stop()

	var g errgroup.Group
	g.SetLimit(maxConcurrentSnipes)

	// kick immediately
	d.tick(ctx, &g)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case <-t.C:
			d.tick(ctx, &g)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context, g *errgroup.Group) {
	recs, err := d.Repo.ClaimPending(ctx, maxConcurrentSnipes)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("dispatch: claim pending failed: %v", err)
		}
		return
	}
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			d.runSnipe(ctx, rec)
			return nil
		})
	}
}

func (d *Dispatcher) runSnipe(ctx context.Context, rec snipes.Record) {
	c, err := d.Creds.Lookup(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, creds.ErrNotFound) {
			log.Printf("dispatch: snipe %d: user %d has no registered credentials", rec.ID, rec.UserID)
		} else {
			log.Printf("dispatch: snipe %d: credential lookup: %v", rec.ID, err)
		}
		d.finish(rec.ID, snipe.Failed(err))
		return
	}

	s := &snipe.Scheduler{
		API:       resy.New(resy.Credentials{APIKey: c.APIKey, AuthToken: c.AuthToken}),
		Schedule:  d.Schedule,
		Skew:      d.Skew,
		DayOffset: d.DayOffset,
	}
	out := s.Run(ctx, rec.Request(), creds.ResolveZone(c.TimeZone))

	// A shutdown cancellation hands the snipe back to the next dispatcher.
	// Re-running one that got partway through its attempts is safe: the
	// platform's conflict response catches a duplicate commit.
	if out.Status == snipe.StatusFailed && errors.Is(out.Err, context.Canceled) {
		reqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.Repo.Requeue(reqCtx, rec.ID); err != nil {
			log.Printf("dispatch: snipe %d: requeue: %v", rec.ID, err)
		}
		return
	}

	d.finish(rec.ID, out)
}

func (d *Dispatcher) finish(id int64, out snipe.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Repo.Finish(ctx, id, out); err != nil {
		log.Printf("dispatch: snipe %d: record outcome: %v", id, err)
	}
	log.Printf("dispatch: snipe %d finished: %s", id, out.Status)
}
