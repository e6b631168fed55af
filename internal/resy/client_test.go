package resy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Credentials{APIKey: "key123", AuthToken: "token456"})
	c.baseURL = srv.URL
	c.hc = srv.Client()
	return c
}

func day(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", "2024-03-21")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestFindSlots(t *testing.T) {
	var gotReq *http.Request
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(r.Context())
		_, _ = io.WriteString(w, `{
			"results": {"venues": [{"slots": [
				{"date": {"start": "2024-03-21 18:30:00"}, "config": {"token": "tok-1830"}},
				{"date": {"start": "2024-03-21 19:00:00"}, "config": {"token": "tok-1900"}}
			]}]}
		}`)
	})

	slots, err := c.FindSlots(context.Background(), 52013, day(t), 2)
	if err != nil {
		t.Fatalf("FindSlots() error = %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("len(slots) = %d, want 2", len(slots))
	}
	if slots[0].Token != "tok-1830" || slots[1].Token != "tok-1900" {
		t.Errorf("tokens = %q, %q", slots[0].Token, slots[1].Token)
	}
	if want := time.Date(2024, 3, 21, 18, 30, 0, 0, time.UTC); !slots[0].Start.Equal(want) {
		t.Errorf("slots[0].Start = %v, want %v", slots[0].Start, want)
	}

	if gotReq.URL.Path != "/4/find" {
		t.Errorf("path = %q, want /4/find", gotReq.URL.Path)
	}
	q := gotReq.URL.Query()
	for k, want := range map[string]string{"venue_id": "52013", "day": "2024-03-21", "party_size": "2"} {
		if q.Get(k) != want {
			t.Errorf("query %s = %q, want %q", k, q.Get(k), want)
		}
	}
	if got := gotReq.Header.Get("authorization"); got != `ResyAPI api_key="key123"` {
		t.Errorf("authorization header = %q", got)
	}
	if got := gotReq.Header.Get("x-resy-auth-token"); got != "token456" {
		t.Errorf("x-resy-auth-token header = %q", got)
	}
	if got := gotReq.Header.Get("origin"); got != "https://widgets.resy.com" {
		t.Errorf("origin header = %q", got)
	}
}

func TestFindSlotsEmptyVenueSlots(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results": {"venues": [{"slots": []}]}}`)
	})
	slots, err := c.FindSlots(context.Background(), 52013, day(t), 2)
	if err != nil {
		t.Fatalf("FindSlots() error = %v, want nil for an empty slot list", err)
	}
	if len(slots) != 0 {
		t.Errorf("len(slots) = %d, want 0", len(slots))
	}
}

func TestFindSlotsMalformedResponse(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no venues", `{"results": {"venues": []}}`},
		{"not json", `<html>rate limited</html>`},
		{"bad slot start", `{"results": {"venues": [{"slots": [{"date": {"start": "soon"}, "config": {"token": "t"}}]}]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.FindSlots(context.Background(), 52013, day(t), 2)
			if !errors.Is(err, ErrDiscovery) {
				t.Errorf("FindSlots() error = %v, want ErrDiscovery", err)
			}
		})
	}
}

func TestFindSlotsNon200(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.FindSlots(context.Background(), 52013, day(t), 2)
	if !errors.Is(err, ErrDiscovery) {
		t.Errorf("FindSlots() error = %v, want ErrDiscovery", err)
	}
}

func TestReserveHold(t *testing.T) {
	var gotBody map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/details" {
			t.Errorf("path = %q, want /3/details", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = io.WriteString(w, `{
			"book_token": {"value": "bt-abc"},
			"user": {"payment_methods": [{"id": 9971}, {"id": 12}]}
		}`)
	})

	hold, err := c.ReserveHold(context.Background(), "tok-1830", day(t), 2)
	if err != nil {
		t.Fatalf("ReserveHold() error = %v", err)
	}
	if hold.BookToken != "bt-abc" {
		t.Errorf("BookToken = %q, want bt-abc", hold.BookToken)
	}
	if hold.PaymentMethodID != 9971 {
		t.Errorf("PaymentMethodID = %d, want first payment method 9971", hold.PaymentMethodID)
	}

	for k, want := range map[string]any{"commit": float64(1), "config_id": "tok-1830", "day": "2024-03-21", "party_size": float64(2)} {
		if gotBody[k] != want {
			t.Errorf("body %s = %v, want %v", k, gotBody[k], want)
		}
	}
}

func TestReserveHoldMalformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing book token", `{"user": {"payment_methods": [{"id": 1}]}}`},
		{"no payment methods", `{"book_token": {"value": "bt"}, "user": {"payment_methods": []}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.ReserveHold(context.Background(), "tok", day(t), 2)
			if !errors.Is(err, ErrHold) {
				t.Errorf("ReserveHold() error = %v, want ErrHold", err)
			}
		})
	}
}

func TestCommitBooking(t *testing.T) {
	var gotForm map[string][]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/book" {
			t.Errorf("path = %q, want /3/book", r.URL.Path)
		}
		if ct := r.Header.Get("content-type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content-type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		_, _ = io.WriteString(w, `{}`)
	})

	err := c.CommitBooking(context.Background(), Hold{BookToken: "bt-abc", PaymentMethodID: 9971})
	if err != nil {
		t.Fatalf("CommitBooking() error = %v", err)
	}
	for k, want := range map[string]string{
		"book_token":            "bt-abc",
		"struct_payment_method": `{"id":9971}`,
		"source_id":             "resy.com-venue-details",
	} {
		if len(gotForm[k]) != 1 || gotForm[k][0] != want {
			t.Errorf("form %s = %v, want %q", k, gotForm[k], want)
		}
	}
}

func TestCommitBookingConflict(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	})
	err := c.CommitBooking(context.Background(), Hold{BookToken: "bt", PaymentMethodID: 1})
	if !errors.Is(err, ErrExistingReservation) {
		t.Errorf("CommitBooking() error = %v, want ErrExistingReservation", err)
	}
}

func TestCommitBookingGenericFailure(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := c.CommitBooking(context.Background(), Hold{BookToken: "bt", PaymentMethodID: 1})
	if !errors.Is(err, ErrBooking) {
		t.Errorf("CommitBooking() error = %v, want ErrBooking", err)
	}
	if errors.Is(err, ErrExistingReservation) {
		t.Errorf("generic failure must not classify as a conflict")
	}
}
