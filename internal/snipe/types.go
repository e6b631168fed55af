package snipe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Request describes one snipe: what to book and when the platform releases
// inventory. Times of day are "HH:MM" or "HH:MM:SS" strings, the way they
// arrive from the CLI and web form. Immutable once validated.
type Request struct {
	VenueID     int64
	PartySize   int
	Date        time.Time // reservation calendar date
	DesiredTime string    // preferred seating time on Date
	ReleaseTime string    // local time of day new inventory opens
}

func (r Request) Validate() error {
	if r.VenueID <= 0 {
		return fmt.Errorf("venue id required")
	}
	if r.PartySize < 1 {
		return fmt.Errorf("party size must be at least 1")
	}
	if r.Date.IsZero() {
		return fmt.Errorf("reservation date required")
	}
	if _, _, _, err := parseClock(r.DesiredTime); err != nil {
		return fmt.Errorf("desired time: %w", err)
	}
	if _, _, _, err := parseClock(r.ReleaseTime); err != nil {
		return fmt.Errorf("release time: %w", err)
	}
	return nil
}

// Target is the instant the matcher aims for: the desired time of day on the
// reservation date, in the same location-free frame the platform reports
// slot starts in.
func (r Request) Target() time.Time {
	h, m, s, _ := parseClock(r.DesiredTime)
	y, mo, d := r.Date.Date()
	return time.Date(y, mo, d, h, m, s, 0, time.UTC)
}

func parseClock(s string) (hour, min, sec int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid time %q (want HH:MM or HH:MM:SS)", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, perr := strconv.Atoi(p)
		if perr != nil {
			return 0, 0, 0, fmt.Errorf("invalid time %q", s)
		}
		nums[i] = n
	}
	hour, min = nums[0], nums[1]
	if len(nums) == 3 {
		sec = nums[2]
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return 0, 0, 0, fmt.Errorf("invalid time %q", s)
	}
	return hour, min, sec, nil
}

// Status is the terminal state of one snipe. Exactly one Outcome is produced
// per run.
type Status string

const (
	StatusBooked    Status = "booked"    // commit succeeded
	StatusConflict  Status = "conflict"  // account already holds a reservation that day
	StatusExhausted Status = "exhausted" // retry budget spent without a booking
	StatusFailed    Status = "failed"    // aborted (cancellation, invalid request)
)

type Outcome struct {
	Status   Status
	BookedAt time.Time // set when Status is StatusBooked
	Err      error     // set when Status is StatusFailed
}

func Booked(at time.Time) Outcome { return Outcome{Status: StatusBooked, BookedAt: at} }
func Conflict() Outcome           { return Outcome{Status: StatusConflict} }
func Exhausted() Outcome          { return Outcome{Status: StatusExhausted} }
func Failed(err error) Outcome    { return Outcome{Status: StatusFailed, Err: err} }

// Message renders the single human-readable line the front end relays to the
// user. Raw errors and HTTP bodies never surface here.
func (o Outcome) Message() string {
	switch o.Status {
	case StatusBooked:
		return fmt.Sprintf("Reservation successfully booked, %s!", o.BookedAt.Format("2006-01-02 15:04:05"))
	case StatusConflict:
		return "You already have a reservation for that day."
	case StatusExhausted:
		return "No bookable slot appeared before the time budget ran out."
	default:
		return "Failed to book."
	}
}
