package snipe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWakeAt(t *testing.T) {
	east, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	s := &Scheduler{Skew: 2 * time.Second, DayOffset: 1}
	req := testRequest() // release at 10:00

	now := time.Date(2024, 3, 20, 8, 30, 0, 0, east)
	wake := s.WakeAt(now, req, east)

	want := time.Date(2024, 3, 21, 10, 0, 2, 0, east)
	if !wake.Equal(want) {
		t.Errorf("WakeAt = %v, want %v", wake, want)
	}
}

func TestWakeAtZeroOffsetSameDay(t *testing.T) {
	east, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	s := &Scheduler{Skew: 0, DayOffset: 0}
	now := time.Date(2024, 3, 20, 8, 30, 0, 0, east)

	wake := s.WakeAt(now, testRequest(), east)
	want := time.Date(2024, 3, 20, 10, 0, 0, 0, east)
	if !wake.Equal(want) {
		t.Errorf("WakeAt = %v, want %v", wake, want)
	}
}

func TestRunPastWakeInstantRunsImmediately(t *testing.T) {
	api := &fakeAPI{slots: slotsAt("2024-03-21 18:30:00", "2024-03-21 19:00:00")}
	// DayOffset 0 with a midnight release puts the wake instant in the past
	// for any time of day.
	req := testRequest()
	req.ReleaseTime = "00:00"
	s := &Scheduler{API: api, Schedule: testSchedule(), DayOffset: 0}

	start := time.Now()
	out := s.Run(context.Background(), req, time.UTC)
	elapsed := time.Since(start)

	if out.Status != StatusBooked {
		t.Fatalf("status = %v, want %v (err=%v)", out.Status, StatusBooked, out.Err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("elapsed = %v, want a past wake instant to run with near-zero delay", elapsed)
	}
}

func TestRunCancelDuringWakeWaitMakesNoCalls(t *testing.T) {
	api := &fakeAPI{slots: slotsAt("2024-03-21 18:30:00")}
	s := &Scheduler{API: api, Schedule: testSchedule(), DayOffset: 1}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	out := s.Run(ctx, testRequest(), time.UTC)

	if out.Status != StatusFailed || !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("outcome = %v (err=%v), want failed with context.Canceled", out.Status, out.Err)
	}
	if api.findCalls != 0 || api.holdCalls != 0 || api.commitCalls != 0 {
		t.Errorf("calls = find:%d hold:%d commit:%d, want none before the wake instant", api.findCalls, api.holdCalls, api.commitCalls)
	}
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	s := &Scheduler{API: &fakeAPI{}, Schedule: testSchedule()}
	req := testRequest()
	req.PartySize = 0

	out := s.Run(context.Background(), req, time.UTC)
	if out.Status != StatusFailed {
		t.Fatalf("status = %v, want %v", out.Status, StatusFailed)
	}
}
