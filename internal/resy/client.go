package resy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Error taxonomy for the booking flow. The retry loop classifies on these:
// ErrExistingReservation is terminal, everything else is retryable.
var (
	ErrDiscovery           = errors.New("unexpected availability response")
	ErrNoAvailability      = errors.New("no slots available")
	ErrHold                = errors.New("unexpected hold response")
	ErrBooking             = errors.New("booking request failed")
	ErrExistingReservation = errors.New("existing reservation for this day")
)

// statusConflict is the commit-endpoint status Resy returns when the account
// already holds a reservation for the requested day.
const statusConflict = http.StatusPreconditionFailed

type Credentials struct {
	APIKey    string
	AuthToken string
}

// Slot is one bookable time returned by availability search. The token is
// only valid until the next network call.
type Slot struct {
	Start time.Time
	Token string
}

// Hold is the short-lived commit handle returned by ReserveHold. It is
// consumed immediately by CommitBooking and never persisted.
type Hold struct {
	BookToken       string
	PaymentMethodID int64
}

// Client is a minimal Resy API client following the request flow used by the
// resy.com booking widget: find slots, fetch booking details for a slot
// token, then book. It requires an API key and auth token captured from an
// authenticated browser session.
//
// The header set is built once at construction and cloned per request, so a
// Client is safe for concurrent use and concurrent snipes stay isolated.
type Client struct {
	hc      *http.Client
	baseURL string
	header  http.Header
}

func New(creds Credentials) *Client {
	h := http.Header{}
	h.Set("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")
	h.Set("origin", "https://widgets.resy.com")
	h.Set("referer", "https://widgets.resy.com/")
	h.Set("cache-control", "no-cache")
	h.Set("authorization", fmt.Sprintf(`ResyAPI api_key="%s"`, creds.APIKey))
	h.Set("x-resy-auth-token", creds.AuthToken)
	h.Set("x-resy-universal-auth", creds.AuthToken)

	return &Client{
		hc:      &http.Client{Timeout: 3 * time.Second},
		baseURL: "https://api.resy.com",
		header:  h,
	}
}

// Ping verifies the credentials against the user endpoint.
func (c *Client) Ping(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodGet, "/2/user", "", nil, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		var r struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &r)
		if r.Message != "" {
			return fmt.Errorf("resy ping failed: %s (status=%d)", r.Message, status)
		}
		return fmt.Errorf("resy ping failed (status=%d)", status)
	}
	return nil
}

type findResponse struct {
	Results struct {
		Venues []struct {
			Slots []struct {
				Date struct {
					Start string `json:"start"`
				} `json:"date"`
				Config struct {
					Token string `json:"token"`
				} `json:"config"`
			} `json:"slots"`
		} `json:"venues"`
	} `json:"results"`
}

// FindSlots queries availability for the venue/date/party size. Slots come
// back ordered by start time ascending. A venue with zero slots is a valid
// empty result; a response without the venue structure is ErrDiscovery.
func (c *Client) FindSlots(ctx context.Context, venueID int64, day time.Time, partySize int) ([]Slot, error) {
	params := url.Values{}
	params.Set("venue_id", strconv.FormatInt(venueID, 10))
	params.Set("day", day.Format("2006-01-02"))
	params.Set("party_size", strconv.Itoa(partySize))
	// deprecated but still required by the endpoint
	params.Set("lat", "0")
	params.Set("long", "0")

	status, body, err := c.do(ctx, http.MethodGet, "/4/find", "", params, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: find returned status=%d", ErrDiscovery, status)
	}
	var res findResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	if len(res.Results.Venues) == 0 {
		return nil, fmt.Errorf("%w: no venue in response", ErrDiscovery)
	}

	raw := res.Results.Venues[0].Slots
	slots := make([]Slot, 0, len(raw))
	for _, s := range raw {
		start, err := time.Parse("2006-01-02 15:04:05", s.Date.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: bad slot start %q", ErrDiscovery, s.Date.Start)
		}
		slots = append(slots, Slot{Start: start, Token: s.Config.Token})
	}
	return slots, nil
}

type detailsResponse struct {
	BookToken struct {
		Value string `json:"value"`
	} `json:"book_token"`
	User struct {
		PaymentMethods []struct {
			ID int64 `json:"id"`
		} `json:"payment_methods"`
	} `json:"user"`
}

// ReserveHold exchanges a slot token for a book token and payment method via
// the details endpoint with commit intent.
func (c *Client) ReserveHold(ctx context.Context, slotToken string, day time.Time, partySize int) (Hold, error) {
	payload, err := json.Marshal(struct {
		Commit    int    `json:"commit"`
		ConfigID  string `json:"config_id"`
		Day       string `json:"day"`
		PartySize int    `json:"party_size"`
	}{
		Commit:    1,
		ConfigID:  slotToken,
		Day:       day.Format("2006-01-02"),
		PartySize: partySize,
	})
	if err != nil {
		return Hold{}, err
	}

	status, body, err := c.do(ctx, http.MethodPost, "/3/details", "application/json", nil, payload)
	if err != nil {
		return Hold{}, err
	}
	if status >= 400 {
		return Hold{}, fmt.Errorf("%w: details returned status=%d", ErrHold, status)
	}
	var details detailsResponse
	if err := json.Unmarshal(body, &details); err != nil {
		return Hold{}, fmt.Errorf("%w: %v", ErrHold, err)
	}
	if details.BookToken.Value == "" {
		return Hold{}, fmt.Errorf("%w: missing book token", ErrHold)
	}
	if len(details.User.PaymentMethods) == 0 {
		return Hold{}, fmt.Errorf("%w: no payment method on account", ErrHold)
	}
	return Hold{
		BookToken:       details.BookToken.Value,
		PaymentMethodID: details.User.PaymentMethods[0].ID,
	}, nil
}

// CommitBooking finalizes the reservation. A 412 means the account already
// holds a reservation for that day and is surfaced as ErrExistingReservation;
// any other non-success status is a retryable ErrBooking.
func (c *Client) CommitBooking(ctx context.Context, hold Hold) error {
	form := url.Values{}
	form.Set("book_token", hold.BookToken)
	form.Set("struct_payment_method", fmt.Sprintf(`{"id":%d}`, hold.PaymentMethodID))
	form.Set("source_id", "resy.com-venue-details")

	status, _, err := c.do(ctx, http.MethodPost, "/3/book", "application/x-www-form-urlencoded", nil, []byte(form.Encode()))
	if err != nil {
		return err
	}
	if status == statusConflict {
		return ErrExistingReservation
	}
	if status >= 400 {
		return fmt.Errorf("%w: book returned status=%d", ErrBooking, status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, query url.Values, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header = c.header.Clone()
	if contentType != "" {
		req.Header.Set("content-type", contentType)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}
