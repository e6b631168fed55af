package snipe

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/example/resy-sniper/internal/resy"
)

// BookingAPI is the slice of the Resy client the snipe workflow drives.
// *resy.Client satisfies it; tests inject fakes.
type BookingAPI interface {
	FindSlots(ctx context.Context, venueID int64, day time.Time, partySize int) ([]resy.Slot, error)
	ReserveHold(ctx context.Context, slotToken string, day time.Time, partySize int) (resy.Hold, error)
	CommitBooking(ctx context.Context, hold resy.Hold) error
}

// Schedule is the fixed (non-exponential) retry policy: a fast burst right
// after release, a slower tail, and an overall wall-clock cap measured from
// the first attempt. Whichever bound is hit first ends the loop.
type Schedule struct {
	FastAttempts int
	FastInterval time.Duration
	SlowAttempts int
	SlowInterval time.Duration
	MaxElapsed   time.Duration
}

func DefaultSchedule() Schedule {
	return Schedule{
		FastAttempts: 30,
		FastInterval: 500 * time.Millisecond,
		SlowAttempts: 20,
		SlowInterval: 1500 * time.Millisecond,
		MaxElapsed:   35 * time.Second,
	}
}

// wait returns the pause after the given 1-based attempt number.
func (s Schedule) wait(attempt int) time.Duration {
	if attempt < s.FastAttempts {
		return s.FastInterval
	}
	return s.SlowInterval
}

func (s Schedule) maxAttempts() int { return s.FastAttempts + s.SlowAttempts }

// Runner drives discover -> match -> hold -> commit attempt cycles until a
// booking lands, the platform reports a conflict, or the schedule runs out.
// Every retry restarts from discovery; hold tokens are never reused across
// attempts since their server-side lifetime is short.
type Runner struct {
	API      BookingAPI
	Schedule Schedule
}

func (r *Runner) Run(ctx context.Context, req Request) Outcome {
	target := req.Target()
	start := time.Now()
	deadline := start.Add(r.Schedule.MaxElapsed)

	for attempt := 1; ; attempt++ {
		bookedAt, err := r.attempt(ctx, req, target)
		if err == nil {
			log.Printf("snipe: booked venue=%d start=%s attempt=%d", req.VenueID, bookedAt.Format("2006-01-02 15:04:05"), attempt)
			return Booked(bookedAt)
		}
		if errors.Is(err, resy.ErrExistingReservation) {
			log.Printf("snipe: venue=%d attempt=%d: %v", req.VenueID, attempt, err)
			return Conflict()
		}
		if ctx.Err() != nil {
			return Failed(ctx.Err())
		}
		log.Printf("snipe: venue=%d attempt=%d elapsed=%s: %v",
			req.VenueID, attempt, time.Since(start).Round(time.Millisecond), err)

		if attempt >= r.Schedule.maxAttempts() {
			return Exhausted()
		}
		wait := r.Schedule.wait(attempt)
		if !time.Now().Add(wait).Before(deadline) {
			return Exhausted()
		}
		if err := sleepFor(ctx, wait); err != nil {
			return Failed(err)
		}
	}
}

// attempt performs one full cycle and returns the booked slot's start time.
func (r *Runner) attempt(ctx context.Context, req Request, target time.Time) (time.Time, error) {
	slots, err := r.API.FindSlots(ctx, req.VenueID, req.Date, req.PartySize)
	if err != nil {
		return time.Time{}, err
	}
	if len(slots) == 0 {
		return time.Time{}, resy.ErrNoAvailability
	}
	slot := Closest(slots, target)
	hold, err := r.API.ReserveHold(ctx, slot.Token, req.Date, req.PartySize)
	if err != nil {
		return time.Time{}, err
	}
	if err := r.API.CommitBooking(ctx, hold); err != nil {
		return time.Time{}, err
	}
	return slot.Start, nil
}

func sleepFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
