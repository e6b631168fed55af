package snipe

import (
	"context"
	"log"
	"time"
)

// Release-timing defaults. Both are empirically tuned to Resy's publishing
// behavior and overridable through configuration: inventory for DayOffset
// days out appears at the venue's release time, and the skew lands the first
// request a moment after the platform's own clock has published it.
const (
	DefaultSkew      = 2 * time.Second
	DefaultDayOffset = 1
)

// Scheduler sleeps until the release instant and then hands off to a Runner.
// Each call to Run is one independent snipe; concurrent snipes share nothing
// but the (read-only) booking API client.
type Scheduler struct {
	API       BookingAPI
	Schedule  Schedule
	Skew      time.Duration
	DayOffset int
}

// WakeAt computes the wake instant: DayOffset days from now, at the request's
// release time interpreted in loc, pushed Skew past the nominal second.
func (s *Scheduler) WakeAt(now time.Time, req Request, loc *time.Location) time.Time {
	h, m, sec, _ := parseClock(req.ReleaseTime)
	local := now.In(loc).AddDate(0, 0, s.DayOffset)
	return time.Date(local.Year(), local.Month(), local.Day(), h, m, sec, 0, loc).Add(s.Skew)
}

// Run validates the request, waits for the wake instant, and drives the retry
// loop. A wake instant already in the past runs immediately; cancellation
// before the wake instant returns without any network call having been made.
func (s *Scheduler) Run(ctx context.Context, req Request, loc *time.Location) Outcome {
	if err := req.Validate(); err != nil {
		return Failed(err)
	}

	wake := s.WakeAt(time.Now(), req, loc)
	if d := time.Until(wake); d > 0 {
		log.Printf("snipe: venue=%d sleeping %s until release at %s", req.VenueID, d.Round(time.Second), wake.Format(time.RFC3339))
		if err := sleepUntil(ctx, wake); err != nil {
			return Failed(err)
		}
	}

	r := &Runner{API: s.API, Schedule: s.Schedule}
	return r.Run(ctx, req)
}

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	return sleepFor(ctx, d)
}
